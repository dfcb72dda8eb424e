package cmd

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"maps"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/a-lang/a/internal/install"
	"github.com/a-lang/a/internal/platform"
	"github.com/a-lang/a/internal/update"
)

var linuxX64 = platform.Target{OS: platform.OSLinux, Arch: platform.ArchX86_64}

func elfBinary(body string) []byte {
	return append([]byte("\x7fELF"), body...)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// pinHost makes the command layer see a native linux-x86_64 host and
// isolates it from the caller's environment.
func pinHost(t *testing.T) {
	t.Helper()
	oldTarget, oldNative := detectTarget, detectNative
	detectTarget = func() (platform.Target, error) { return linuxX64, nil }
	detectNative = func(context.Context) (platform.Target, error) { return linuxX64, nil }
	t.Cleanup(func() { detectTarget, detectNative = oldTarget, oldNative })

	t.Setenv(update.RepoEnvVar, "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
}

// pinExecutable makes path the running binary.
func pinExecutable(t *testing.T, path string) {
	t.Helper()
	old := osExecutable
	osExecutable = func() (string, error) { return path, nil }
	t.Cleanup(func() { osExecutable = old })
}

// pinHome points the install guard and PATH manager at a fake home
// directory and process environment.
func pinHome(t *testing.T, home string, env *fakeEnv) {
	t.Helper()
	oldGuard, oldStore, oldEnv := newGuard, newPathStore, processEnv
	newGuard = func(target platform.Target) *install.Guard {
		g := install.NewGuard(target)
		g.HomeDir = func() (string, error) { return home, nil }
		g.IsElevated = func() bool { return false }
		g.Getenv = func(string) string { return "" }
		return g
	}
	newPathStore = func(home string) install.PathStore {
		s := install.NewProfileStore(home)
		s.Shell = "/bin/bash"
		s.GOOS = "linux"
		return s
	}
	processEnv = env
	t.Cleanup(func() { newGuard, newPathStore, processEnv = oldGuard, oldStore, oldEnv })
}

type fakeEnv struct {
	vars map[string]string
}

func (e *fakeEnv) Getenv(key string) string { return e.vars[key] }

func (e *fakeEnv) Setenv(key, value string) error {
	e.vars[key] = value
	return nil
}

// run executes root with args and returns what it wrote.
func run(t *testing.T, root *cobra.Command, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// releaseFeed serves a GitHub-shaped release feed for owner/name plus the
// asset bodies.
type releaseFeed struct {
	t     *testing.T
	srv   *httptest.Server
	tag   string
	files map[string][]byte

	mu        sync.Mutex
	downloads []string
}

func newReleaseFeed(t *testing.T, tag string, files map[string][]byte) *releaseFeed {
	t.Helper()
	f := &releaseFeed{t: t, tag: tag, files: files}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *releaseFeed) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/repos/owner/name/releases/latest", "/repos/owner/name/releases/tags/" + f.tag:
		type asset struct {
			Name string `json:"name"`
			URL  string `json:"browser_download_url"`
			Size int    `json:"size"`
		}
		assets := []asset{}
		for _, name := range slices.Sorted(maps.Keys(f.files)) {
			assets = append(assets, asset{Name: name, URL: f.srv.URL + "/download/" + name, Size: len(f.files[name])})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"tag_name": f.tag,
			"html_url": "https://github.com/owner/name/releases/tag/" + f.tag,
			"assets":   assets,
		}); err != nil {
			f.t.Errorf("encoding release: %v", err)
		}
	default:
		name := filepath.Base(r.URL.Path)
		body, ok := f.files[name]
		if !ok || !strings.HasPrefix(r.URL.Path, "/download/") {
			http.NotFound(w, r)
			return
		}
		f.mu.Lock()
		f.downloads = append(f.downloads, name)
		f.mu.Unlock()
		_, _ = w.Write(body)
	}
}

func (f *releaseFeed) downloaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.downloads)
}

func writeFile(t *testing.T, path string, content []byte, mode os.FileMode) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func dirNames(t *testing.T, dir string) []string {
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

// devNull is a stdin that is not a terminal.
func devNull(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}
