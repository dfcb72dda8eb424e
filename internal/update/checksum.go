package update

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/a-lang/a/internal/types"
)

const (
	// ChecksumsAsset is the combined sha256sum listing of a release.
	ChecksumsAsset = "checksums.txt"

	maxChecksumBytes = 1 << 20
)

// ChecksumAssetName is the per-asset digest file name, "<asset>.sha256".
func ChecksumAssetName(asset string) string {
	return asset + ".sha256"
}

// ParseChecksums reads sha256sum output ("<hex>  <name>" or "<hex> *<name>")
// into a map keyed by file name. Lines that do not parse are skipped.
func ParseChecksums(r io.Reader) (map[string]string, error) {
	sums := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		hash := fields[0]
		if !isHexSHA256(hash) {
			continue
		}
		name := ""
		if len(fields) > 1 {
			name = strings.TrimPrefix(fields[1], "*")
		}
		sums[name] = strings.ToLower(hash)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sums, nil
}

// FetchChecksum returns the published SHA-256 of asset, or "" when the
// release publishes none. A published digest file that omits the asset is
// a malformed release.
func (f *Fetcher) FetchChecksum(ctx context.Context, release *Release, asset *Asset) (string, error) {
	if sidecar := findAsset(release, ChecksumAssetName(asset.Name)); sidecar != nil {
		sums, err := f.fetchChecksums(ctx, sidecar)
		if err != nil {
			return "", err
		}
		// A sidecar may hold a bare digest or a single sha256sum line.
		if sum, ok := sums[asset.Name]; ok {
			return sum, nil
		}
		if sum, ok := sums[""]; ok {
			return sum, nil
		}
		return "", types.Newf(types.KindProtocol, stepVerify, "%s holds no digest for %s", sidecar.Name, asset.Name)
	}

	if listing := findAsset(release, ChecksumsAsset); listing != nil {
		sums, err := f.fetchChecksums(ctx, listing)
		if err != nil {
			return "", err
		}
		sum, ok := sums[asset.Name]
		if !ok {
			return "", types.Newf(types.KindProtocol, stepVerify, "%s lists no entry for %s", ChecksumsAsset, asset.Name)
		}
		return sum, nil
	}

	f.logger().Debug("release publishes no checksum", "asset", asset.Name)
	return "", nil
}

func (f *Fetcher) fetchChecksums(ctx context.Context, asset *Asset) (map[string]string, error) {
	resp, err := f.get(ctx, asset.URL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	sums, err := ParseChecksums(io.LimitReader(resp.Body, maxChecksumBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.Wrap(types.KindNetwork, stepFetch, ctx.Err(), "download of %s interrupted", asset.Name)
		}
		return nil, types.Wrap(types.KindIncompleteDownload, stepFetch, err, "could not read %s", asset.Name)
	}
	return sums, nil
}

func isHexSHA256(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
