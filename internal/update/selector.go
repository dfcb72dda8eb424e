package update

import (
	"strings"

	"github.com/a-lang/a/internal/platform"
	"github.com/a-lang/a/internal/types"
)

// SelectAsset returns the asset of release named for target. The match is
// exact and case-sensitive; a near miss is still a miss.
func SelectAsset(release *Release, target platform.Target) (*Asset, error) {
	want := target.AssetName()
	for i := range release.Assets {
		if release.Assets[i].Name == want {
			return &release.Assets[i], nil
		}
	}

	available := "none"
	if names := release.AssetNames(); len(names) > 0 {
		available = strings.Join(names, ", ")
	}
	return nil, types.Newf(types.KindNoMatchingAsset, "select asset",
		"release %s has no asset for %s", release.Tag, target).
		WithExpected(want, available).
		WithHint("The release was not packaged for this platform.")
}

// findAsset looks up an auxiliary asset such as a checksum file.
func findAsset(release *Release, name string) *Asset {
	for i := range release.Assets {
		if release.Assets[i].Name == name {
			return &release.Assets[i]
		}
	}
	return nil
}
