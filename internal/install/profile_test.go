package install

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/a-lang/a/internal/types"
)

func TestProfilePath(t *testing.T) {
	tests := []struct {
		shell string
		goos  string
		want  string
	}{
		{"/bin/zsh", "darwin", ".zshrc"},
		{"/usr/bin/bash", "linux", ".bashrc"},
		{"/bin/bash", "darwin", ".bash_profile"},
		{"/usr/bin/fish", "linux", filepath.Join(".config", "fish", "config.fish")},
		{"/bin/dash", "linux", ".profile"},
		{"", "linux", ".profile"},
	}

	for _, tt := range tests {
		t.Run(tt.shell+"_"+tt.goos, func(t *testing.T) {
			s := &ProfileStore{Home: "/home/u", Shell: tt.shell, GOOS: tt.goos}
			if got := s.Path(types.ScopeUser); got != filepath.Join("/home/u", tt.want) {
				t.Errorf("Path() = %q, want ~/%s", got, tt.want)
			}
		})
	}

	s := &ProfileStore{Home: "/home/u", Shell: "/bin/zsh"}
	if got := s.Path(types.ScopeSystem); got != SystemProfile {
		t.Errorf("system Path() = %q, want %q", got, SystemProfile)
	}
}

func TestProfileBlock(t *testing.T) {
	block, err := ProfileBlock("/home/u/my tools/bin", false)
	if err != nil {
		t.Fatalf("ProfileBlock() error = %v", err)
	}
	want := ProfileMarker + "/home/u/my tools/bin\nexport PATH=\"$PATH\":'/home/u/my tools/bin'\n"
	if block != want {
		t.Errorf("ProfileBlock() = %q, want %q", block, want)
	}

	fish, err := ProfileBlock("/home/u/.local/bin", true)
	if err != nil {
		t.Fatalf("ProfileBlock(fish) error = %v", err)
	}
	if !strings.Contains(fish, "set -gx PATH $PATH") {
		t.Errorf("fish block = %q", fish)
	}

	if _, err := ProfileBlock("/tmp/evil\nrm -rf ~", false); err == nil {
		t.Error("newline in directory should be rejected")
	}
}

func TestProfileAppendPreservesContent(t *testing.T) {
	home := t.TempDir()
	rc := filepath.Join(home, ".zshrc")
	original := "alias ll='ls -l'" // no trailing newline
	if err := os.WriteFile(rc, []byte(original), 0o600); err != nil {
		t.Fatal(err)
	}

	s := &ProfileStore{Home: home, Shell: "zsh"}
	dir := filepath.Join(home, ".local", "bin")
	if err := s.Append(types.ScopeUser, dir); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	data, err := os.ReadFile(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), original+"\n\n"+ProfileMarker) {
		t.Errorf("profile = %q", data)
	}

	entries, err := s.Entries(types.ScopeUser)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0] != dir {
		t.Errorf("Entries() = %q, want [%q]", entries, dir)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(rc)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("mode = %v, want 0600 kept", info.Mode().Perm())
		}
	}
	if names, _ := filepath.Glob(filepath.Join(home, ".a-profile-*")); len(names) != 0 {
		t.Errorf("temp files left: %v", names)
	}
}

func TestProfileAppendCreatesFishConfig(t *testing.T) {
	home := t.TempDir()
	s := &ProfileStore{Home: home, Shell: "/usr/bin/fish"}
	if err := s.Append(types.ScopeUser, "/x/bin"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(home, ".config", "fish", "config.fish"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), ProfileMarker+"/x/bin\n") {
		t.Errorf("config.fish = %q", data)
	}
}

func TestProfileEntriesMissingFile(t *testing.T) {
	s := &ProfileStore{Home: t.TempDir(), Shell: "bash"}
	entries, err := s.Entries(types.ScopeUser)
	if err != nil || entries != nil {
		t.Errorf("Entries() = %v, %v, want nil, nil", entries, err)
	}
}

func TestProfileDescribe(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX home path")
	}
	s := &ProfileStore{Home: "/home/u", Shell: "bash", GOOS: "linux"}
	if got := s.Describe(types.ScopeUser); got != "~/.bashrc" {
		t.Errorf("Describe() = %q", got)
	}
}
