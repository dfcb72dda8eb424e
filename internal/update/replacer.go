package update

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"

	"github.com/a-lang/a/internal/platform"
	"github.com/a-lang/a/internal/types"
)

const (
	stepReplace = "replace binary"

	// OldSuffix marks the previous binary moved aside by a Windows swap.
	OldSuffix = ".old"
	// PendingSuffix marks a new binary staged for the next invocation.
	PendingSuffix = ".new"
)

// Strategy selects how a verified artifact is moved onto the install path.
type Strategy int

const (
	// StrategyPosixRename renames the artifact over the target in one step.
	StrategyPosixRename Strategy = iota
	// StrategyWindowsLockedSwap moves a possibly running target aside first,
	// and stages the artifact for the next run if the target is locked.
	StrategyWindowsLockedSwap
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyPosixRename:
		return "PosixRename"
	case StrategyWindowsLockedSwap:
		return "WindowsLockedSwap"
	default:
		return "Strategy(?)"
	}
}

// StrategyFor returns the strategy for binaries installed on target.
func StrategyFor(target platform.Target) Strategy {
	if target.IsWindows() {
		return StrategyWindowsLockedSwap
	}
	return StrategyPosixRename
}

// ReplaceResult describes a completed or deferred replacement.
type ReplaceResult struct {
	Strategy Strategy
	Path     string

	// Deferred is set when the new binary could only be staged. StagedPath
	// holds it until the next invocation completes the swap.
	Deferred   bool
	StagedPath string

	// PreviousPath is the moved-aside old binary still awaiting removal.
	PreviousPath string
}

// Replacer swaps verified artifacts into place.
type Replacer struct {
	strategy Strategy
	logger   *log.Logger

	rename func(oldpath, newpath string) error
	remove func(name string) error
}

// NewReplacer creates a Replacer for strategy. A nil logger discards output.
func NewReplacer(strategy Strategy, logger *log.Logger) *Replacer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Replacer{
		strategy: strategy,
		logger:   logger,
		rename:   os.Rename,
		remove:   os.Remove,
	}
}

// Strategy returns the configured strategy.
func (r *Replacer) Strategy() Strategy {
	return r.strategy
}

// Replace moves art onto targetPath. On error the target is left as it was
// and art is discarded, except for a Windows deferral, which returns both a
// result naming the staged file and a RestartRequired error.
func (r *Replacer) Replace(targetPath string, art *Artifact) (*ReplaceResult, error) {
	if err := r.preparePermissions(targetPath, art.Path); err != nil {
		art.Discard()
		return nil, err
	}

	switch r.strategy {
	case StrategyWindowsLockedSwap:
		return r.lockedSwap(targetPath, art)
	default:
		return r.posixRename(targetPath, art)
	}
}

// preparePermissions gives the artifact the target's mode plus exec bits,
// so an update never widens or narrows access to the binary.
func (r *Replacer) preparePermissions(targetPath, artPath string) error {
	mode := fs.FileMode(0o755)
	if info, err := os.Stat(targetPath); err == nil {
		mode = info.Mode().Perm() | 0o100
	}
	if err := os.Chmod(artPath, mode); err != nil {
		return types.Wrap(types.KindInstall, stepReplace, err, "could not set permissions on %s", artPath)
	}
	return nil
}

func (r *Replacer) posixRename(targetPath string, art *Artifact) (*ReplaceResult, error) {
	if err := r.rename(art.Path, targetPath); err != nil {
		art.Discard()
		return nil, renameError(err, targetPath)
	}
	r.logger.Debug("replaced binary", "path", targetPath, "strategy", r.strategy)
	return &ReplaceResult{Strategy: r.strategy, Path: targetPath}, nil
}

func (r *Replacer) lockedSwap(targetPath string, art *Artifact) (*ReplaceResult, error) {
	res := &ReplaceResult{Strategy: r.strategy, Path: targetPath}

	// Not running or not present: a plain rename-over succeeds.
	if err := r.rename(art.Path, targetPath); err == nil {
		r.logger.Debug("replaced binary", "path", targetPath, "strategy", r.strategy)
		return res, nil
	}

	oldPath := targetPath + OldSuffix
	if err := r.remove(oldPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger.Debug("stale previous binary still locked", "path", oldPath, "err", err)
		return r.stage(targetPath, art)
	}

	// A running executable can be renamed on Windows even though it cannot
	// be overwritten or deleted.
	if err := r.rename(targetPath, oldPath); err != nil {
		r.logger.Debug("could not move running binary aside", "path", targetPath, "err", err)
		return r.stage(targetPath, art)
	}

	if err := r.rename(art.Path, targetPath); err != nil {
		if restoreErr := r.rename(oldPath, targetPath); restoreErr != nil {
			art.Discard()
			return nil, types.Wrap(types.KindInstall, stepReplace, errors.Join(err, restoreErr),
				"could not restore previous binary").
				WithHint("Rename " + oldPath + " back to " + targetPath + ".")
		}
		return r.stage(targetPath, art)
	}

	if err := r.remove(oldPath); err != nil {
		res.PreviousPath = oldPath
	}
	r.logger.Debug("swapped binary", "path", targetPath, "previous", oldPath)
	return res, nil
}

// stage parks the artifact at <target>.new for CompletePending.
func (r *Replacer) stage(targetPath string, art *Artifact) (*ReplaceResult, error) {
	staged := targetPath + PendingSuffix
	if art.Path != staged {
		_ = r.remove(staged)
		if err := r.rename(art.Path, staged); err != nil {
			art.Discard()
			return nil, renameError(err, targetPath)
		}
		art.Path = staged
	}

	return &ReplaceResult{
			Strategy:   r.strategy,
			Path:       targetPath,
			Deferred:   true,
			StagedPath: staged,
		}, types.Newf(types.KindRestartRequired, stepReplace,
			"%s is in use; the new version was staged as %s", targetPath, staged).
			WithHint("Exit all running copies of a and run it again to finish the update.")
}

// Cleanup removes a previous binary left by an earlier swap.
func (r *Replacer) Cleanup(targetPath string) {
	oldPath := targetPath + OldSuffix
	if err := r.remove(oldPath); err == nil {
		r.logger.Debug("removed previous binary", "path", oldPath)
	}
}

// CompletePending finishes a deferred swap if a staged binary exists.
// It reports whether the staged binary was installed. Only the Windows
// strategy ever stages, so other strategies leave a stray <target>.new
// alone. A staged file that is not an executable for target is removed
// instead of installed.
func (r *Replacer) CompletePending(targetPath string, target platform.Target) (bool, error) {
	if r.strategy != StrategyWindowsLockedSwap {
		return false, nil
	}
	staged := targetPath + PendingSuffix
	if _, err := os.Stat(staged); err != nil {
		return false, nil //nolint:nilerr // Nothing staged.
	}

	art := &Artifact{Path: staged}
	if err := VerifyExecutable(staged, target); err != nil {
		art.Discard()
		r.logger.Warn("discarded invalid staged binary", "path", staged, "err", err)
		return false, err
	}

	res, err := r.Replace(targetPath, art)
	if err != nil {
		if res != nil && res.Deferred {
			// Still locked; leave it staged for the next run.
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func renameError(err error, targetPath string) error {
	if errors.Is(err, fs.ErrPermission) {
		return types.Wrap(types.KindInsufficientPrivilege, stepReplace, err,
			"no permission to write %s", targetPath).
			WithHint(platform.ElevationHint())
	}
	return types.Wrap(types.KindInstall, stepReplace, err, "could not move new binary into %s", targetPath)
}
