// Package install places the a binary into a user or system bin directory
// and keeps that directory on PATH.
package install

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-lang/a/internal/platform"
	"github.com/a-lang/a/internal/types"
)

const stepAuthorize = "authorize scope"

// Location is where the binary lives for one invocation. It is computed
// fresh every run and never persisted.
type Location struct {
	BinaryPath string
	BinDir     string
	Scope      types.Scope
}

// Guard decides the install scope and checks privilege before anything is
// written. The function fields are seams for tests; NewGuard fills them
// from the host.
type Guard struct {
	Target platform.Target

	IsElevated  func() bool
	HomeDir     func() (string, error)
	Getenv      func(string) string
	MkdirAll    func(string, fs.FileMode) error
	DirWritable func(string) bool
}

// NewGuard returns a Guard backed by the host environment.
func NewGuard(target platform.Target) *Guard {
	return &Guard{
		Target:      target,
		IsElevated:  isElevated,
		HomeDir:     os.UserHomeDir,
		Getenv:      os.Getenv,
		MkdirAll:    os.MkdirAll,
		DirWritable: dirWritable,
	}
}

// DefaultDir returns the conventional bin directory for scope.
func (g *Guard) DefaultDir(scope types.Scope) (string, error) {
	if g.Target.IsWindows() {
		if scope.IsSystem() {
			base := g.Getenv("ProgramFiles")
			if base == "" {
				base = `C:\Program Files`
			}
			return filepath.Join(base, "a", "bin"), nil
		}
		base := g.Getenv("LOCALAPPDATA")
		if base == "" {
			home, err := g.home()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "Programs", "a", "bin"), nil
	}

	if scope.IsSystem() {
		return "/usr/local/bin", nil
	}
	if xdg := g.Getenv("XDG_BIN_HOME"); xdg != "" && filepath.IsAbs(xdg) {
		return xdg, nil
	}
	home, err := g.home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "bin"), nil
}

func (g *Guard) home() (string, error) {
	home, err := g.HomeDir()
	if err != nil || home == "" {
		return "", types.Wrap(types.KindConfiguration, stepAuthorize, err, "could not determine home directory").
			WithHint("Set HOME or pass --dest.")
	}
	return home, nil
}

// Authorize checks privilege for scope and returns the install location,
// creating its bin directory if needed. dest overrides the default
// directory. A system-scope request without elevation fails before any
// directory is created.
func (g *Guard) Authorize(scope types.Scope, dest string) (*Location, error) {
	if err := scope.Validate(); err != nil {
		return nil, types.Wrap(types.KindConfiguration, stepAuthorize, err, "invalid scope")
	}
	scope = scope.Default()

	if scope.IsSystem() && !g.IsElevated() {
		return nil, types.Newf(types.KindInsufficientPrivilege, stepAuthorize,
			"system-wide install requires elevated privilege").
			WithHint(g.elevationHint())
	}

	dir := dest
	if dir == "" {
		var err error
		if dir, err = g.DefaultDir(scope); err != nil {
			return nil, err
		}
	}
	dir, err := filepath.Abs(expandHome(dir, g.HomeDir))
	if err != nil {
		return nil, types.Wrap(types.KindConfiguration, stepAuthorize, err, "invalid destination %q", dest)
	}

	if err := g.MkdirAll(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, types.Wrap(types.KindInsufficientPrivilege, stepAuthorize, err,
				"cannot create %s", dir).
				WithHint("Choose a writable --dest, or use --scope system. " + g.elevationHint())
		}
		return nil, types.Wrap(types.KindInstall, stepAuthorize, err, "cannot create %s", dir)
	}

	return &Location{
		BinaryPath: filepath.Join(dir, g.Target.BinaryName()),
		BinDir:     dir,
		Scope:      scope,
	}, nil
}

// ForExecutable returns the location of an already installed binary, as
// used by update. Binaries under the home directory, or in a directory the
// caller can write, are user scope; anything else needs elevation.
func (g *Guard) ForExecutable(path string) (*Location, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, types.Wrap(types.KindConfiguration, stepAuthorize, err, "invalid executable path")
	}
	dir := filepath.Dir(path)

	scope := types.ScopeSystem
	if home, err := g.HomeDir(); err == nil && home != "" && isWithin(dir, home, g.Target.IsWindows()) {
		scope = types.ScopeUser
	} else if g.DirWritable(dir) {
		scope = types.ScopeUser
	}

	if scope.IsSystem() && !g.IsElevated() {
		return nil, types.Newf(types.KindInsufficientPrivilege, stepAuthorize,
			"updating %s requires elevated privilege", path).
			WithHint(g.elevationHint())
	}

	return &Location{BinaryPath: path, BinDir: dir, Scope: scope}, nil
}

func (g *Guard) elevationHint() string {
	return g.Target.ElevationHint()
}

// isWithin reports whether dir is root or below it.
func isWithin(dir, root string, foldCase bool) bool {
	if foldCase {
		dir, root = strings.ToLower(dir), strings.ToLower(root)
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// expandHome expands a leading "~/" the way a shell would for --dest.
func expandHome(p string, homeDir func() (string, error)) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := homeDir()
	if err != nil || home == "" {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
