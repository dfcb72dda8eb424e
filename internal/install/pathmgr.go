package install

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/a-lang/a/internal/platform"
	"github.com/a-lang/a/internal/types"
)

const stepPath = "update PATH"

// PathStore is the persistent home of the PATH entries for a scope: a shell
// profile on POSIX, the environment registry key on Windows.
type PathStore interface {
	// Entries returns the directories already recorded for scope.
	Entries(scope types.Scope) ([]string, error)
	// Append records dir for scope.
	Append(scope types.Scope, dir string) error
	// Describe names the store for scope in user-facing messages.
	Describe(scope types.Scope) string
}

// ProcessEnv is the environment of the running process.
type ProcessEnv interface {
	Getenv(key string) string
	Setenv(key, value string) error
}

type osEnv struct{}

func (osEnv) Getenv(key string) string       { return os.Getenv(key) }
func (osEnv) Setenv(key, value string) error { return os.Setenv(key, value) }

// OSEnv is the real process environment.
var OSEnv ProcessEnv = osEnv{}

// PathResult reports what EnsureOnPath changed.
type PathResult struct {
	Dir string
	// Persisted is set when a new entry was written to Store.
	Persisted bool
	// AlreadyPresent is set when the directory was found and nothing was
	// persisted.
	AlreadyPresent bool
	// ProcessUpdated is set when the current process PATH gained Dir.
	ProcessUpdated bool
	StoreName      string
}

// PathManager keeps an install directory on PATH exactly once.
type PathManager struct {
	Store  PathStore
	Env    ProcessEnv
	Logger *log.Logger

	// Windows selects ';' separators and case-insensitive comparison.
	Windows bool
}

// NewPathManager returns a PathManager for target over store, using the
// real process environment.
func NewPathManager(store PathStore, target platform.Target, logger *log.Logger) *PathManager {
	return &PathManager{Store: store, Env: OSEnv, Logger: logger, Windows: target.IsWindows()}
}

func (m *PathManager) separator() string {
	if m.Windows {
		return ";"
	}
	return ":"
}

// EnsureOnPath makes loc.BinDir reachable on PATH for loc.Scope. Nothing
// is persisted when the directory is already recorded in the store or on
// the process PATH. A persist failure is returned as a PathPersistence
// error alongside the result; the installed binary is unaffected.
func (m *PathManager) EnsureOnPath(loc *Location) (*PathResult, error) {
	logger := m.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	dir := loc.BinDir
	res := &PathResult{Dir: dir, StoreName: m.Store.Describe(loc.Scope)}

	processPath := m.Env.Getenv("PATH")
	onProcessPath := ContainsDir(SplitPath(processPath, m.separator()), dir, m.Windows)

	stored, err := m.Store.Entries(loc.Scope)
	if err != nil {
		return res, types.Wrap(types.KindPathPersistence, stepPath, err, "could not read %s", res.StoreName).
			WithHint(m.manualHint(dir))
	}

	var persistErr error
	switch {
	case ContainsDir(stored, dir, m.Windows) || onProcessPath:
		res.AlreadyPresent = true
		logger.Debug("already on PATH", "dir", dir, "store", res.StoreName)
	default:
		if err := m.Store.Append(loc.Scope, dir); err != nil {
			persistErr = types.Wrap(types.KindPathPersistence, stepPath, err, "could not add %s to %s", dir, res.StoreName).
				WithHint(m.manualHint(dir))
		} else {
			res.Persisted = true
			logger.Debug("added to PATH", "dir", dir, "store", res.StoreName)
		}
	}

	if !onProcessPath {
		value := dir
		if processPath != "" {
			value = strings.TrimRight(processPath, m.separator()) + m.separator() + dir
		}
		if err := m.Env.Setenv("PATH", value); err == nil {
			res.ProcessUpdated = true
		}
	}

	return res, persistErr
}

func (m *PathManager) manualHint(dir string) string {
	if m.Windows {
		return "Add " + dir + " to your Path in System Properties > Environment Variables."
	}
	return "Add this line to your shell profile: export PATH=\"$PATH:" + dir + "\""
}

// SplitPath splits a PATH value, dropping empty segments.
func SplitPath(value, sep string) []string {
	var out []string
	for _, p := range strings.Split(value, sep) {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// ContainsDir reports whether entries holds dir as a whole path segment.
// "/opt/a/bin" does not contain "/opt/a/bi" or "/opt/a".
func ContainsDir(entries []string, dir string, foldCase bool) bool {
	want := normalizeDir(dir, foldCase)
	if want == "" {
		return false
	}
	for _, e := range entries {
		if normalizeDir(e, foldCase) == want {
			return true
		}
	}
	return false
}

func normalizeDir(p string, foldCase bool) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, `"`)
	if p == "" {
		return ""
	}
	if foldCase {
		p = strings.ReplaceAll(p, `/`, `\`)
		p = strings.TrimRight(p, `\`)
		return strings.ToLower(p)
	}
	p = filepath.Clean(p)
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
