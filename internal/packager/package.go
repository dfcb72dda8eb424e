// Package packager builds the distribution packages a release publishes: a
// staging tree per target, the raw binary named by the asset naming scheme,
// and compressed archives of the staging tree.
package packager

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/a-lang/a/internal/config"
	"github.com/a-lang/a/internal/platform"
	"github.com/a-lang/a/internal/templates"
	"github.com/a-lang/a/internal/types"
	"github.com/a-lang/a/internal/update"
)

const (
	stepStage   = "stage package"
	stepRaw     = "write raw artifact"
	stepArchive = "write archive"

	// StageDir is the subdirectory of the output directory holding staging trees.
	StageDir = "stage"
	// BinDir is the staged subdirectory holding the executable.
	BinDir = "bin"

	tempPattern = ".apack-*"
)

// Request describes one packaging run for a single target.
type Request struct {
	Target     platform.Target
	BinaryPath string
	OutDir     string

	// DocsDir is where relative doc paths are looked up. Empty means the
	// manifest's directory.
	DocsDir  string
	Manifest *config.Manifest

	// ModTime is stamped on every archive entry. Zero means the Unix epoch.
	ModTime time.Time
	Logger  *log.Logger
}

// Archive is one compressed package.
type Archive struct {
	Format types.ArchiveFormat
	Path   string
	SHA256 string
}

// Artifacts are the files a packaging run produced.
type Artifacts struct {
	Target     platform.Target
	StagingDir string
	// Entries are the staged files relative to StagingDir, slash-separated
	// and sorted.
	Entries []string

	RawPath   string
	RawSHA256 string
	// ChecksumPath is the "<asset>.sha256" sidecar next to RawPath.
	ChecksumPath string

	// ArchivePath is the first archive in Archives (tar.gz by default).
	ArchivePath string
	Archives    []Archive
}

// stagedFile is one file of the staging tree.
type stagedFile struct {
	name string // slash-separated, relative to the staging root
	src  string
	data []byte
	mode fs.FileMode
}

// StagingName returns the staging directory name for t, e.g. "a-linux-x86_64".
func StagingName(t platform.Target) string {
	return platform.BinaryBase + "-" + t.String()
}

// Package stages req.BinaryPath with the docs and installer script, then
// writes the raw artifact and one archive per manifest format into OutDir.
// Any previous staging tree for the target is removed first.
func Package(ctx context.Context, req Request) (*Artifacts, error) {
	logger := req.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	manifest := req.Manifest
	if manifest == nil {
		manifest = config.Default()
	}
	if err := config.Validate(manifest); err != nil {
		return nil, types.Wrap(types.KindConfiguration, stepStage, err, "invalid manifest")
	}
	if req.OutDir == "" {
		return nil, types.Newf(types.KindConfiguration, stepStage, "output directory is required")
	}
	modTime := req.ModTime.UTC().Truncate(time.Second)
	if req.ModTime.IsZero() {
		modTime = time.Unix(0, 0).UTC()
	}

	files, err := collect(req, manifest)
	if err != nil {
		return nil, err
	}

	stagingDir := filepath.Join(req.OutDir, StageDir, StagingName(req.Target))
	logger.Debug("staging", "target", req.Target, "dir", stagingDir)
	if err := stage(ctx, stagingDir, files); err != nil {
		return nil, err
	}

	if err := removeStaleArchives(req.OutDir, req.Target, manifest.ArchiveFormats()); err != nil {
		return nil, err
	}

	art := &Artifacts{Target: req.Target, StagingDir: stagingDir}
	for _, f := range files {
		art.Entries = append(art.Entries, f.name)
	}

	art.RawPath = filepath.Join(req.OutDir, req.Target.AssetName())
	art.RawSHA256, err = writeRaw(ctx, art.RawPath, req.BinaryPath)
	if err != nil {
		return nil, err
	}
	art.ChecksumPath = filepath.Join(req.OutDir, update.ChecksumAssetName(req.Target.AssetName()))
	sidecar := fmt.Sprintf("%s  %s\n", art.RawSHA256, req.Target.AssetName())
	if err := writeFileAtomic(art.ChecksumPath, 0o644, strings.NewReader(sidecar)); err != nil {
		return nil, types.Wrap(types.KindPackaging, stepRaw, err, "could not write %s", art.ChecksumPath)
	}
	logger.Info("raw artifact", "path", art.RawPath, "sha256", art.RawSHA256)

	for _, format := range manifest.ArchiveFormats() {
		path := filepath.Join(req.OutDir, req.Target.ArchiveName(format))
		sum, err := writeArchive(ctx, path, format, stagingDir, files, modTime)
		if err != nil {
			return nil, err
		}
		art.Archives = append(art.Archives, Archive{Format: format, Path: path, SHA256: sum})
		logger.Info("archive", "path", path, "entries", len(files))
	}
	if len(art.Archives) > 0 {
		art.ArchivePath = art.Archives[0].Path
	}
	return art, nil
}

// removeStaleArchives deletes archives an earlier run wrote for formats
// this run does not produce, so dist/ only holds packages of the current
// build.
func removeStaleArchives(outDir string, target platform.Target, keep []types.ArchiveFormat) error {
	for _, format := range types.AllArchiveFormats() {
		if slices.Contains(keep, format) {
			continue
		}
		path := filepath.Join(outDir, target.ArchiveName(format))
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return types.Wrap(types.KindPackaging, stepArchive, err, "could not remove stale %s", filepath.Base(path))
		}
	}
	return nil
}

// collect resolves and checks every input before anything is written.
func collect(req Request, manifest *config.Manifest) ([]stagedFile, error) {
	if req.BinaryPath == "" {
		return nil, types.Newf(types.KindConfiguration, stepStage, "binary path is required")
	}
	info, err := os.Stat(req.BinaryPath)
	if err != nil {
		return nil, types.Wrap(types.KindConfiguration, stepStage, err, "built binary not found")
	}
	if !info.Mode().IsRegular() {
		return nil, types.Newf(types.KindConfiguration, stepStage, "%s is not a regular file", req.BinaryPath)
	}
	if err := update.VerifyExecutable(req.BinaryPath, req.Target); err != nil {
		return nil, types.Wrap(types.KindPackaging, stepStage, err, "binary does not match target %s", req.Target).
			WithHint("Pass --target matching the platform the binary was built for.")
	}

	files := []stagedFile{{
		name: BinDir + "/" + req.Target.BinaryName(),
		src:  req.BinaryPath,
		mode: 0o755,
	}}

	for _, doc := range manifest.Docs {
		src := doc
		if !filepath.IsAbs(src) {
			if req.DocsDir != "" {
				src = filepath.Join(req.DocsDir, doc)
			} else {
				src = manifest.Resolve(doc)
			}
		}
		if info, err := os.Stat(src); err != nil || !info.Mode().IsRegular() {
			if err == nil {
				err = fmt.Errorf("not a regular file")
			}
			return nil, types.Wrap(types.KindPackaging, stepStage, err, "documentation file %s missing", doc).
				WithHint("Pass --docs-dir pointing at the directory holding the docs.")
		}
		files = append(files, stagedFile{name: filepath.Base(src), src: src, mode: 0o644})
	}

	override := manifest.Installers.Posix
	if req.Target.IsWindows() {
		override = manifest.Installers.Windows
	}
	tmpl, err := templates.ForTarget(req.Target, manifest.Resolve(override))
	if err != nil {
		return nil, types.Wrap(types.KindPackaging, stepStage, err, "could not load installer script")
	}
	if err := tmpl.Validate(); err != nil {
		return nil, types.Wrap(types.KindPackaging, stepStage, err, "installer script rejected")
	}
	files = append(files, stagedFile{name: tmpl.Name, data: tmpl.Content, mode: tmpl.Mode})

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if seen[f.name] {
			return nil, types.Newf(types.KindConfiguration, stepStage, "two package files are named %s", f.name)
		}
		seen[f.name] = true
	}

	sortStaged(files)
	return files, nil
}

// stage recreates dir and copies every file into it.
func stage(ctx context.Context, dir string, files []stagedFile) error {
	if err := os.RemoveAll(dir); err != nil {
		return types.Wrap(types.KindPackaging, stepStage, err, "could not clear %s", dir)
	}
	if err := os.MkdirAll(filepath.Join(dir, BinDir), 0o755); err != nil {
		return types.Wrap(types.KindPackaging, stepStage, err, "could not create %s", dir)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := filepath.Join(dir, filepath.FromSlash(f.name))
		if err := f.writeTo(dst); err != nil {
			return types.Wrap(types.KindPackaging, stepStage, err, "could not stage %s", f.name)
		}
	}
	return nil
}

func (f stagedFile) open() (io.ReadCloser, error) {
	if f.data != nil {
		return io.NopCloser(bytes.NewReader(f.data)), nil
	}
	return os.Open(f.src)
}

func (f stagedFile) writeTo(dst string) error {
	r, err := f.open()
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile's mode is subject to the umask.
	return os.Chmod(dst, f.mode)
}

// writeRaw copies the binary to path and returns its SHA-256.
func writeRaw(ctx context.Context, path, binary string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := os.Open(binary)
	if err != nil {
		return "", types.Wrap(types.KindPackaging, stepRaw, err, "could not open %s", binary)
	}
	defer func() { _ = src.Close() }()

	h := sha256.New()
	if err := writeFileAtomic(path, 0o755, io.TeeReader(src, h)); err != nil {
		return "", types.Wrap(types.KindPackaging, stepRaw, err, "could not write %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeFileAtomic writes r to a temp file in path's directory and renames
// it into place, so a failed run never leaves a truncated artifact.
func writeFileAtomic(path string, mode fs.FileMode, r io.Reader) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		return err
	}
	if err = tmp.Chmod(mode); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ParseSourceDateEpoch parses a SOURCE_DATE_EPOCH value. Empty yields the
// zero time.
func ParseSourceDateEpoch(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs < 0 {
		return time.Time{}, types.Newf(types.KindConfiguration, "read SOURCE_DATE_EPOCH",
			"invalid SOURCE_DATE_EPOCH %q", s).WithExpected("non-negative Unix seconds", s)
	}
	return time.Unix(secs, 0).UTC(), nil
}
