package update

import (
	"bytes"
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

	"github.com/a-lang/a/internal/platform"
)

var linuxX64 = platform.Target{OS: platform.OSLinux, Arch: platform.ArchX86_64}

// fakeBinary returns bytes that pass VerifyExecutable for target.
func fakeBinary(target platform.Target, body string) []byte {
	var header []byte
	switch target.OS {
	case platform.OSWindows:
		header = magicPE
	case platform.OSMacOS:
		header = magicMach[3]
	default:
		header = magicELF
	}
	return append(bytes.Clone(header), body...)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// releaseFeed serves a GitHub-shaped release feed plus its asset bodies.
type releaseFeed struct {
	t     *testing.T
	srv   *httptest.Server
	tag   string
	files map[string][]byte

	mu       sync.Mutex
	requests []string
}

func newReleaseFeed(t *testing.T, tag string, files map[string][]byte) *releaseFeed {
	t.Helper()
	f := &releaseFeed{t: t, tag: tag, files: files}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *releaseFeed) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.Path)
	f.mu.Unlock()

	switch r.URL.Path {
	case "/repos/owner/name/releases/latest", "/repos/owner/name/releases/tags/" + f.tag:
		assets := make([]githubAsset, 0, len(f.files))
		for _, name := range slices.Sorted(maps.Keys(f.files)) {
			assets = append(assets, githubAsset{
				Name:               name,
				BrowserDownloadURL: f.srv.URL + "/download/" + name,
				Size:               int64(len(f.files[name])),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(githubRelease{
			TagName: f.tag,
			HTMLURL: "https://github.com/owner/name/releases/tag/" + f.tag,
			Assets:  assets,
		}); err != nil {
			f.t.Errorf("encoding release: %v", err)
		}
	default:
		name := filepath.Base(r.URL.Path)
		body, ok := f.files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}
}

func (f *releaseFeed) downloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.requests {
		if strings.HasPrefix(p, "/download/") {
			out = append(out, p)
		}
	}
	return out
}

// writeInstalled creates an installed binary and returns its path.
func writeInstalled(t *testing.T, dir string, content []byte, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "a")
	if err := os.WriteFile(path, content, mode); err != nil {
		t.Fatalf("writing installed binary: %v", err)
	}
	return path
}

// dirEntries lists dir's file names.
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
