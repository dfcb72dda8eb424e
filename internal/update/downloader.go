package update

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/a-lang/a/internal/platform"
	"github.com/a-lang/a/internal/types"
)

const (
	stepFetch  = "download asset"
	stepVerify = "verify asset"

	// tempPattern is the CreateTemp pattern for in-flight downloads.
	tempPattern = ".a-update-*"
)

// Fetcher downloads release assets next to their install location.
// The zero value is usable and verifies against the host platform.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	Logger    *log.Logger

	// Target is the platform the downloaded binary must be built for.
	// Zero means the host.
	Target platform.Target
}

// Artifact is a fully downloaded and verified binary in a temporary file.
// It is either handed to a Replacer or discarded.
type Artifact struct {
	Path   string
	Asset  Asset
	Size   int64
	SHA256 string
}

// Discard removes the temporary file. It is safe to call more than once.
func (a *Artifact) Discard() {
	if a == nil || a.Path == "" {
		return
	}
	_ = os.Remove(a.Path)
}

// Verify compares the artifact's digest with expected, a hex SHA-256.
// On mismatch the artifact is discarded.
func (a *Artifact) Verify(expected string) error {
	if strings.EqualFold(a.SHA256, strings.TrimSpace(expected)) {
		return nil
	}
	a.Discard()
	return types.Newf(types.KindCorruptArtifact, stepVerify, "checksum mismatch for %s", a.Asset.Name).
		WithExpected(strings.ToLower(expected), a.SHA256)
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) logger() *log.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return log.New(io.Discard)
}

func (f *Fetcher) target() (platform.Target, error) {
	if f.Target != (platform.Target{}) {
		return f.Target, nil
	}
	return platform.Detect()
}

// Fetch downloads asset into a temporary file inside dir, which must be on
// the same volume as the install path. The file is returned only after its
// size and executable format have been verified; on any failure nothing is
// left behind in dir.
func (f *Fetcher) Fetch(ctx context.Context, asset *Asset, dir string) (_ *Artifact, err error) {
	target, err := f.target()
	if err != nil {
		return nil, err
	}

	resp, err := f.get(ctx, asset.URL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return nil, types.Wrap(types.KindInstall, stepFetch, err, "could not create temporary file in %s", dir)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	f.logger().Debug("downloading", "asset", asset.Name, "to", tmpPath)
	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.Wrap(types.KindNetwork, stepFetch, ctx.Err(), "download of %s interrupted", asset.Name)
		}
		return nil, types.Wrap(types.KindIncompleteDownload, stepFetch, err, "download of %s failed", asset.Name).
			WithHint("Retry the update.")
	}
	if err := tmp.Sync(); err != nil {
		return nil, types.Wrap(types.KindInstall, stepFetch, err, "could not flush %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return nil, types.Wrap(types.KindInstall, stepFetch, err, "could not close %s", tmpPath)
	}

	expected := asset.Size
	if expected <= 0 {
		expected = resp.ContentLength
	}
	if written == 0 || (expected > 0 && written != expected) {
		want := "a non-empty body"
		if expected > 0 {
			want = strconv.FormatInt(expected, 10) + " bytes"
		}
		return nil, types.Newf(types.KindIncompleteDownload, stepVerify, "size mismatch for %s", asset.Name).
			WithExpected(want, strconv.FormatInt(written, 10)+" bytes").
			WithHint("Retry the update.")
	}

	if err := VerifyExecutable(tmpPath, target); err != nil {
		return nil, err
	}

	if err := makeExecutable(tmpPath); err != nil {
		return nil, err
	}

	return &Artifact{
		Path:   tmpPath,
		Asset:  *asset,
		Size:   written,
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// get issues a GET for an asset URL and maps failures to typed errors.
// Credentials are never sent: asset URLs redirect to third-party storage.
func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, types.Wrap(types.KindProtocol, stepFetch, err, "invalid asset URL %q", rawURL)
	}
	req.Header.Set("Accept", "application/octet-stream")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, types.Wrap(types.KindNetwork, stepFetch, err, "could not download %s", rawURL).
			WithHint("Check your network connection and retry.")
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, types.Newf(types.KindNotFound, stepFetch, "asset %s is gone", rawURL)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, types.Newf(types.KindNetwork, stepFetch, "asset host unavailable (HTTP %d)", resp.StatusCode).
			WithHint("Retry later.")
	default:
		return nil, types.Newf(types.KindProtocol, stepFetch, "unexpected HTTP status for %s", rawURL).
			WithExpected("200", strconv.Itoa(resp.StatusCode))
	}
}

var (
	magicELF  = []byte{0x7f, 'E', 'L', 'F'}
	magicPE   = []byte{'M', 'Z'}
	magicMach = [][]byte{
		{0xfe, 0xed, 0xfa, 0xce},
		{0xfe, 0xed, 0xfa, 0xcf},
		{0xce, 0xfa, 0xed, 0xfe},
		{0xcf, 0xfa, 0xed, 0xfe},
		{0xca, 0xfe, 0xba, 0xbe},
	}
)

// VerifyExecutable checks that path starts with the executable header of
// target's OS: ELF on linux, Mach-O on macos, PE on windows.
func VerifyExecutable(path string, target platform.Target) error {
	file, err := os.Open(path)
	if err != nil {
		return types.Wrap(types.KindCorruptArtifact, stepVerify, err, "could not open %s", path)
	}
	defer func() { _ = file.Close() }()

	header := make([]byte, 4)
	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return types.Wrap(types.KindCorruptArtifact, stepVerify, err, "could not read %s", path)
	}
	header = header[:n]

	var ok bool
	var want string
	switch target.OS {
	case platform.OSLinux:
		ok, want = bytes.HasPrefix(header, magicELF), "ELF executable"
	case platform.OSWindows:
		ok, want = bytes.HasPrefix(header, magicPE), "PE executable"
	case platform.OSMacOS:
		want = "Mach-O executable"
		for _, m := range magicMach {
			if bytes.HasPrefix(header, m) {
				ok = true
				break
			}
		}
	default:
		return types.Newf(types.KindUnsupportedPlatform, stepVerify, "unknown target OS %q", target.OS)
	}

	if !ok {
		return types.Newf(types.KindCorruptArtifact, stepVerify, "%s is not a %s binary", path, target).
			WithExpected(want, fmt.Sprintf("header % x", header))
	}
	return nil
}

// makeExecutable sets 0755 and confirms the owner exec bit stuck. Windows
// has no exec bit, so only the chmod is attempted there.
func makeExecutable(path string) error {
	if err := os.Chmod(path, 0o755); err != nil {
		return types.Wrap(types.KindCorruptArtifact, stepVerify, err, "could not mark %s executable", path)
	}
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return types.Wrap(types.KindCorruptArtifact, stepVerify, err, "could not stat %s", path)
	}
	if info.Mode().Perm()&0o100 == 0 {
		return types.Newf(types.KindCorruptArtifact, stepVerify, "%s is not executable", path).
			WithExpected(fs.FileMode(0o755).String(), info.Mode().Perm().String())
	}
	return nil
}
