package install

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/a-lang/a/internal/types"
)

var elfBinary = []byte("\x7fELF fake a binary")

func writeSource(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestInstallCopiesBinary(t *testing.T) {
	dir := t.TempDir()
	loc := &Location{BinaryPath: filepath.Join(dir, "a"), BinDir: dir, Scope: types.ScopeUser}
	src := writeSource(t, elfBinary)

	res, err := NewInstaller(linuxX64, nil).Install(context.Background(), loc, src)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if res.Unchanged || res.Path != loc.BinaryPath {
		t.Errorf("Install() = %+v", res)
	}

	got, err := os.ReadFile(loc.BinaryPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(elfBinary) {
		t.Error("installed content differs from source")
	}
	if runtime.GOOS != "windows" {
		info, _ := os.Stat(loc.BinaryPath)
		if info.Mode().Perm()&0o111 == 0 {
			t.Errorf("mode = %v, want executable", info.Mode().Perm())
		}
	}
	if names := listDir(t, dir); !slices.Equal(names, []string{"a"}) {
		t.Errorf("bin dir = %v", names)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("source must be left in place")
	}
}

func TestInstallOverExisting(t *testing.T) {
	dir := t.TempDir()
	loc := &Location{BinaryPath: filepath.Join(dir, "a"), BinDir: dir}
	if err := os.WriteFile(loc.BinaryPath, []byte("\x7fELF old"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := NewInstaller(linuxX64, nil).Install(context.Background(), loc, writeSource(t, elfBinary)); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	got, _ := os.ReadFile(loc.BinaryPath)
	if string(got) != string(elfBinary) {
		t.Errorf("content = %q", got)
	}
}

func TestInstallSameFile(t *testing.T) {
	src := writeSource(t, elfBinary)
	loc := &Location{BinaryPath: src, BinDir: filepath.Dir(src)}

	res, err := NewInstaller(linuxX64, nil).Install(context.Background(), loc, src)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if !res.Unchanged {
		t.Error("installing a binary onto itself should be a no-op")
	}
}

func TestInstallRejectsNonExecutable(t *testing.T) {
	dir := t.TempDir()
	loc := &Location{BinaryPath: filepath.Join(dir, "a"), BinDir: dir}

	_, err := NewInstaller(linuxX64, nil).Install(context.Background(), loc, writeSource(t, []byte("#!/bin/sh\necho hi\n")))
	if !errors.Is(err, types.ErrCorruptArtifact) {
		t.Fatalf("Install() error = %v, want CorruptArtifact", err)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Errorf("bin dir = %v, want empty", names)
	}
}

func TestInstallMissingSource(t *testing.T) {
	dir := t.TempDir()
	loc := &Location{BinaryPath: filepath.Join(dir, "a"), BinDir: dir}
	_, err := NewInstaller(linuxX64, nil).Install(context.Background(), loc, filepath.Join(dir, "nope"))
	if !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("Install() error = %v, want Configuration", err)
	}
}

func TestInstallCancelled(t *testing.T) {
	dir := t.TempDir()
	loc := &Location{BinaryPath: filepath.Join(dir, "a"), BinDir: dir}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewInstaller(linuxX64, nil).Install(ctx, loc, writeSource(t, elfBinary))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Install() error = %v, want context.Canceled", err)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Errorf("bin dir = %v, want empty", names)
	}
}

func TestRunInstallTwiceSinglePathEntry(t *testing.T) {
	g, home, _ := testGuard(t, linuxX64)
	store := &ProfileStore{Home: home, Shell: "/bin/bash", GOOS: "linux"}
	src := writeSource(t, elfBinary)

	for i := 0; i < 2; i++ {
		env := fakeEnv{"PATH": "/usr/bin:/bin"}
		pm := &PathManager{Store: store, Env: env}
		rep, err := Run(context.Background(), g, NewInstaller(linuxX64, nil), pm, Request{Source: src})
		if err != nil {
			t.Fatalf("run %d: Run() error = %v", i+1, err)
		}
		if rep.PathErr != nil {
			t.Fatalf("run %d: PathErr = %v", i+1, rep.PathErr)
		}
		if !strings.Contains(env["PATH"], rep.Location.BinDir) {
			t.Errorf("run %d: process PATH = %q", i+1, env["PATH"])
		}
	}

	data, err := os.ReadFile(filepath.Join(home, ".bashrc"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), ProfileMarker); n != 1 {
		t.Errorf(".bashrc has %d managed blocks after two installs, want 1", n)
	}
}

func TestRunSystemWithoutPrivilegeWritesNothing(t *testing.T) {
	g, home, created := testGuard(t, linuxX64)
	store := newFakeStore()
	dest := filepath.Join(home, "sys")

	_, err := Run(context.Background(), g, NewInstaller(linuxX64, nil), &PathManager{Store: store, Env: fakeEnv{}},
		Request{Scope: types.ScopeSystem, Dest: dest, Source: writeSource(t, elfBinary)})
	if !errors.Is(err, types.ErrInsufficientPrivilege) {
		t.Fatalf("Run() error = %v, want InsufficientPrivilege", err)
	}
	if len(*created) != 0 || store.appends != 0 {
		t.Errorf("mutations before privilege check: dirs %v, path appends %d", *created, store.appends)
	}
	if _, err := os.Stat(dest); !errors.Is(err, fs.ErrNotExist) {
		t.Error("destination created")
	}
}

func TestRunPathFailureIsNonFatal(t *testing.T) {
	g, _, _ := testGuard(t, linuxX64)
	store := newFakeStore()
	store.appendErr = os.ErrPermission

	rep, err := Run(context.Background(), g, NewInstaller(linuxX64, nil), &PathManager{Store: store, Env: fakeEnv{}},
		Request{Source: writeSource(t, elfBinary)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !errors.Is(rep.PathErr, types.ErrPathPersistence) {
		t.Errorf("PathErr = %v, want PathPersistence", rep.PathErr)
	}
	if _, err := os.Stat(rep.Location.BinaryPath); err != nil {
		t.Errorf("binary should stay installed: %v", err)
	}
}
