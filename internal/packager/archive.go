package packager

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/a-lang/a/internal/types"
)

func sortStaged(files []stagedFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
}

// compressor wraps w in the format's compression stream.
func compressor(w io.Writer, format types.ArchiveFormat, modTime time.Time) (io.WriteCloser, error) {
	switch format {
	case types.ArchiveTarGz:
		gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		gz.ModTime = modTime
		return gz, nil
	case types.ArchiveTarXz:
		return xz.NewWriter(w)
	default:
		return nil, format.Validate()
	}
}

// writeArchive writes the staged files as a tarball rooted at the staging
// directory's top and returns its SHA-256. Entries are sorted and carry
// fixed ownership and mtime so identical inputs give identical archives.
func writeArchive(ctx context.Context, dst string, format types.ArchiveFormat, stagingDir string, files []stagedFile, modTime time.Time) (string, error) {
	pr, pw := io.Pipe()
	h := sha256.New()

	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(tarWriter(ctx, pw, format, stagingDir, files, modTime))
	}()

	err := writeFileAtomic(dst, 0o644, io.TeeReader(pr, h))
	// Unblock the writer if the file side failed first, then wait for it to
	// release the staged files.
	_ = pr.CloseWithError(err)
	<-done
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", types.Wrap(types.KindPackaging, stepArchive, err, "could not write %s", filepath.Base(dst))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// tarWriter is a test seam for writeTar.
//
//nolint:gochecknoglobals // Test seam requires a package-level variable.
var tarWriter = writeTar

func writeTar(ctx context.Context, w io.Writer, format types.ArchiveFormat, stagingDir string, files []stagedFile, modTime time.Time) error {
	cw, err := compressor(w, format, modTime)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(cw)

	dirs := make(map[string]bool)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if dir := path.Dir(f.name); dir != "." && !dirs[dir] {
			dirs[dir] = true
			if err := tw.WriteHeader(header(dir+"/", tar.TypeDir, 0o755, 0, modTime)); err != nil {
				return err
			}
		}
		if err := addFile(tw, stagingDir, f, modTime); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return cw.Close()
}

func addFile(tw *tar.Writer, stagingDir string, f stagedFile, modTime time.Time) error {
	src, err := os.Open(filepath.Join(stagingDir, filepath.FromSlash(f.name)))
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	if err := tw.WriteHeader(header(f.name, tar.TypeReg, int64(f.mode.Perm()), info.Size(), modTime)); err != nil {
		return err
	}
	_, err = io.Copy(tw, src)
	return err
}

// header builds an entry owned by root with the given mode. The mode comes
// from the staging plan rather than the filesystem, so archives built on
// Windows still mark the binary executable.
func header(name string, typ byte, mode, size int64, modTime time.Time) *tar.Header {
	return &tar.Header{
		Typeflag: typ,
		Name:     name,
		Mode:     mode,
		Size:     size,
		ModTime:  modTime,
		Uid:      0,
		Gid:      0,
		Format:   tar.FormatUSTAR,
	}
}
