package update

import (
	"fmt"
	"strings"

	"github.com/a-lang/a/internal/types"
)

// RepoEnvVar names the environment variable holding the default repository.
const RepoEnvVar = "A_UPDATE_REPO"

// RepoID identifies a repository on the release feed as owner/name.
type RepoID struct {
	Owner string
	Name  string
}

// String returns "owner/name".
func (r RepoID) String() string {
	return r.Owner + "/" + r.Name
}

// IsZero reports whether no repository was configured.
func (r RepoID) IsZero() bool {
	return r.Owner == "" && r.Name == ""
}

// ParseRepo parses an "owner/name" identifier. A full github.com URL is
// accepted as well, since that is what users tend to paste.
func ParseRepo(s string) (RepoID, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimSuffix(raw, ".git")
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "github.com/"} {
		raw = strings.TrimPrefix(raw, prefix)
	}
	raw = strings.Trim(raw, "/")

	owner, name, ok := strings.Cut(raw, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") ||
		strings.ContainsAny(raw, " \t?#") {
		return RepoID{}, types.Newf(types.KindConfiguration, "resolve repository",
			"invalid repository identifier %q", s).
			WithExpected("owner/name", s)
	}
	return RepoID{Owner: owner, Name: name}, nil
}

// ResolveRepo returns the first non-blank candidate parsed as a RepoID.
// Callers pass candidates in precedence order: flag, environment, built-in default.
func ResolveRepo(candidates ...string) (RepoID, error) {
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		return ParseRepo(c)
	}
	return RepoID{}, types.Newf(types.KindConfiguration, "resolve repository",
		"no repository configured").
		WithHint(fmt.Sprintf("Set %s or pass --repo owner/name.", RepoEnvVar))
}

// Release is a published release and its downloadable assets.
type Release struct {
	Tag     string
	Name    string
	HTMLURL string
	Assets  []Asset
}

// AssetNames lists the release's asset filenames in feed order.
func (r *Release) AssetNames() []string {
	names := make([]string, 0, len(r.Assets))
	for _, a := range r.Assets {
		names = append(names, a.Name)
	}
	return names
}

// Asset is a single downloadable file of a release. Size is zero when the
// feed did not report one.
type Asset struct {
	Name string
	URL  string
	Size int64
}
