package update

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// DevVersion is the version string of an unreleased build.
const DevVersion = "dev"

// NormalizeVersion removes the 'v' prefix if present.
func NormalizeVersion(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "v")
}

// canonical returns s in the "vMAJOR.MINOR.PATCH" form semver expects, or ""
// if s is not a semantic version.
func canonical(s string) string {
	v := strings.TrimSpace(s)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// IsValidVersion reports whether s parses as a semantic version, with or
// without the 'v' prefix.
func IsValidVersion(s string) bool {
	return canonical(s) != ""
}

// CompareVersions compares two version strings.
// Returns:
//   - 1 if v1 > v2
//   - 0 if v1 == v2
//   - -1 if v1 < v2
//   - error if either version is invalid
func CompareVersions(v1, v2 string) (int, error) {
	c1, c2 := canonical(v1), canonical(v2)
	if c1 == "" {
		return 0, fmt.Errorf("invalid version v1: %q", v1)
	}
	if c2 == "" {
		return 0, fmt.Errorf("invalid version v2: %q", v2)
	}
	return semver.Compare(c1, c2), nil
}

// IsUpToDate reports whether current is at least latest. A development
// build or an unparseable current version is never up to date; an
// unparseable latest tag is compared by string equality.
func IsUpToDate(current, latest string) bool {
	if current == "" || current == DevVersion {
		return false
	}
	cmp, err := CompareVersions(current, latest)
	if err != nil {
		return NormalizeVersion(current) == NormalizeVersion(latest)
	}
	return cmp >= 0
}
