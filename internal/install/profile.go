package install

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/a-lang/a/internal/types"
)

// ProfileMarker prefixes the comment line above every PATH block written
// to a shell profile. The rest of the line is the directory.
const ProfileMarker = "# a-installer: "

// SystemProfile is the drop-in read by login shells for every user.
const SystemProfile = "/etc/profile.d/a.sh"

// ProfileStore persists PATH entries as managed blocks in a shell profile.
type ProfileStore struct {
	Home  string
	Shell string
	GOOS  string

	// SystemPath overrides SystemProfile, for tests.
	SystemPath string
}

// NewProfileStore returns a store for the login shell named by $SHELL.
func NewProfileStore(home string) *ProfileStore {
	return &ProfileStore{Home: home, Shell: os.Getenv("SHELL"), GOOS: runtime.GOOS}
}

func (s *ProfileStore) shellName() string {
	return filepath.Base(strings.TrimSpace(s.Shell))
}

// Path returns the profile file for scope.
func (s *ProfileStore) Path(scope types.Scope) string {
	if scope.IsSystem() {
		if s.SystemPath != "" {
			return s.SystemPath
		}
		return SystemProfile
	}
	switch s.shellName() {
	case "zsh":
		return filepath.Join(s.Home, ".zshrc")
	case "bash":
		if s.GOOS == "darwin" {
			return filepath.Join(s.Home, ".bash_profile")
		}
		return filepath.Join(s.Home, ".bashrc")
	case "fish":
		return filepath.Join(s.Home, ".config", "fish", "config.fish")
	default:
		return filepath.Join(s.Home, ".profile")
	}
}

// Describe returns the profile path with the home directory shortened.
func (s *ProfileStore) Describe(scope types.Scope) string {
	p := s.Path(scope)
	if s.Home != "" && strings.HasPrefix(p, s.Home+string(filepath.Separator)) {
		return "~" + strings.TrimPrefix(p, s.Home)
	}
	return p
}

// Entries returns the directories of the managed blocks in the profile.
// A missing profile has none.
func (s *ProfileStore) Entries(scope types.Scope) ([]string, error) {
	f, err := os.Open(s.Path(scope))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var dirs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if dir, ok := strings.CutPrefix(line, ProfileMarker); ok && dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs, scanner.Err()
}

// Append adds a managed block for dir. The profile is rewritten through a
// temporary file and a rename, so a failure never truncates it.
func (s *ProfileStore) Append(scope types.Scope, dir string) error {
	path := s.Path(scope)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		// Keep dotfile symlinks intact; rewrite their target.
		path = resolved
	}
	fish := !scope.IsSystem() && s.shellName() == "fish"
	block, err := ProfileBlock(dir, fish)
	if err != nil {
		return err
	}

	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	mode := fs.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var sb strings.Builder
	sb.Write(existing)
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		sb.WriteString("\n")
	}
	if len(existing) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(block)

	return writeFileAtomic(path, []byte(sb.String()), mode)
}

// ProfileBlock renders the marker and export lines for dir. POSIX blocks
// are checked with a shell parser before use.
func ProfileBlock(dir string, fish bool) (string, error) {
	if strings.ContainsAny(dir, "\n\r") {
		return "", fmt.Errorf("directory %q contains a newline", dir)
	}
	quoted, err := syntax.Quote(dir, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("quoting %q: %w", dir, err)
	}

	if fish {
		return ProfileMarker + dir + "\nset -gx PATH $PATH " + quoted + "\n", nil
	}

	block := ProfileMarker + dir + "\nexport PATH=\"$PATH\":" + quoted + "\n"
	if _, err := syntax.NewParser(syntax.Variant(syntax.LangPOSIX)).Parse(strings.NewReader(block), "profile"); err != nil {
		return "", fmt.Errorf("generated profile line does not parse: %w", err)
	}
	return block, nil
}

// writeFileAtomic replaces path with data via a temporary file in the same
// directory.
func writeFileAtomic(path string, data []byte, mode fs.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".a-profile-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
