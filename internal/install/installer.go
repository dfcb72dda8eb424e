package install

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/a-lang/a/internal/platform"
	"github.com/a-lang/a/internal/types"
	"github.com/a-lang/a/internal/update"
)

const stepCopy = "copy binary"

// Installer copies a binary into an authorized Location.
type Installer struct {
	Target   platform.Target
	Logger   *log.Logger
	Replacer *update.Replacer
}

// NewInstaller returns an Installer that swaps binaries in with the
// strategy for target.
func NewInstaller(target platform.Target, logger *log.Logger) *Installer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Installer{
		Target:   target,
		Logger:   logger,
		Replacer: update.NewReplacer(update.StrategyFor(target), logger),
	}
}

// InstallResult reports where the binary went.
type InstallResult struct {
	Path string
	// Unchanged is set when source already is the installed binary.
	Unchanged bool
	*update.ReplaceResult
}

// Install copies source to loc.BinaryPath. The copy is staged in loc.BinDir,
// verified as an executable for the target, then swapped in atomically, so
// an interrupted install leaves any previous binary in place.
func (i *Installer) Install(ctx context.Context, loc *Location, source string) (_ *InstallResult, err error) {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return nil, types.Wrap(types.KindConfiguration, stepCopy, err, "cannot read %s", source).
			WithHint("Pass the path of a built binary with --from.")
	}
	if dstInfo, statErr := os.Stat(loc.BinaryPath); statErr == nil && os.SameFile(srcInfo, dstInfo) {
		i.Logger.Debug("source is already installed", "path", loc.BinaryPath)
		return &InstallResult{Path: loc.BinaryPath, Unchanged: true}, nil
	}
	i.Replacer.Cleanup(loc.BinaryPath)

	if err := update.VerifyExecutable(source, i.Target); err != nil {
		return nil, err
	}

	tmpPath, err := i.stage(ctx, loc.BinDir, source)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, types.Wrap(types.KindInstall, stepCopy, err, "install cancelled")
	}

	rep, err := i.Replacer.Replace(loc.BinaryPath, &update.Artifact{Path: tmpPath, Size: srcInfo.Size()})
	res := &InstallResult{Path: loc.BinaryPath, ReplaceResult: rep}
	if err != nil {
		if rep != nil {
			return res, err
		}
		return nil, err
	}
	i.Logger.Debug("installed", "path", loc.BinaryPath)
	return res, nil
}

// stage copies source into a temporary file inside dir.
func (i *Installer) stage(ctx context.Context, dir, source string) (_ string, err error) {
	src, err := os.Open(source)
	if err != nil {
		return "", types.Wrap(types.KindConfiguration, stepCopy, err, "cannot open %s", source)
	}
	defer func() { _ = src.Close() }()

	tmp, err := os.CreateTemp(dir, ".a-install-*")
	if err != nil {
		return "", types.Wrap(types.KindInstall, stepCopy, err, "cannot write to %s", dir)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, readerWithContext(ctx, src)); err != nil {
		return "", types.Wrap(types.KindInstall, stepCopy, err, "copying %s to %s", filepath.Base(source), dir)
	}
	if err := tmp.Sync(); err != nil {
		return "", types.Wrap(types.KindInstall, stepCopy, err, "flushing %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return "", types.Wrap(types.KindInstall, stepCopy, err, "closing %s", tmpPath)
	}
	return tmpPath, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
