package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/a-lang/a/internal/types"
)

const (
	// DefaultAPIURL is the GitHub REST API root.
	DefaultAPIURL = "https://api.github.com"

	// maxFeedBytes caps the JSON body read from the release feed.
	maxFeedBytes = 10 << 20

	stepResolve = "resolve release"
)

// githubRelease is the wire format of a GitHub release.
type githubRelease struct {
	TagName string        `json:"tag_name"`
	Name    string        `json:"name"`
	HTMLURL string        `json:"html_url"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// GitHubResolver queries the GitHub Releases API.
type GitHubResolver struct {
	client    *http.Client
	baseURL   string
	token     string
	userAgent string
	logger    *log.Logger
}

// ResolverOption configures a GitHubResolver.
type ResolverOption func(*GitHubResolver)

// WithHTTPClient sets the HTTP client used for feed requests.
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *GitHubResolver) {
		r.client = c
	}
}

// WithBaseURL overrides the API root, mainly for test servers.
func WithBaseURL(base string) ResolverOption {
	return func(r *GitHubResolver) {
		if base != "" {
			r.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithToken sets a GitHub token. It is only sent to the API host.
func WithToken(token string) ResolverOption {
	return func(r *GitHubResolver) {
		r.token = strings.TrimSpace(token)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ResolverOption {
	return func(r *GitHubResolver) {
		r.userAgent = ua
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *log.Logger) ResolverOption {
	return func(r *GitHubResolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewGitHubResolver creates a resolver against the public GitHub API.
func NewGitHubResolver(opts ...ResolverOption) *GitHubResolver {
	r := &GitHubResolver{
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   DefaultAPIURL,
		userAgent: "a-updater/dev",
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches the latest release of repo, or the release named by tag
// when tag is non-empty. It performs no filesystem access.
func (r *GitHubResolver) Resolve(ctx context.Context, repo RepoID, tag string) (*Release, error) {
	var endpoint string
	if tag == "" {
		endpoint = fmt.Sprintf("%s/repos/%s/%s/releases/latest",
			r.baseURL, url.PathEscape(repo.Owner), url.PathEscape(repo.Name))
	} else {
		endpoint = fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s",
			r.baseURL, url.PathEscape(repo.Owner), url.PathEscape(repo.Name), url.PathEscape(tag))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, types.Wrap(types.KindConfiguration, stepResolve, err, "invalid release feed URL")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", r.userAgent)
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	r.logger.Debug("querying release feed", "url", endpoint)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, types.Wrap(types.KindNetwork, stepResolve, err,
			"could not reach release feed for %s", repo).
			WithHint("Check your network connection and retry.")
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp, repo, tag); err != nil {
		return nil, err
	}

	var gr githubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&gr); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, types.Wrap(types.KindNetwork, stepResolve, err, "reading release feed interrupted")
		}
		return nil, types.Wrap(types.KindProtocol, stepResolve, err, "could not decode release feed response")
	}

	release, err := toRelease(gr)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("resolved release", "tag", release.Tag, "assets", len(release.Assets))
	return release, nil
}

// statusError maps a non-200 response to a typed error.
func statusError(resp *http.Response, repo RepoID, tag string) error {
	switch code := resp.StatusCode; {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		what := "no published release"
		if tag != "" {
			what = fmt.Sprintf("no release tagged %s", tag)
		}
		return types.Newf(types.KindNotFound, stepResolve, "%s found for %s", what, repo).
			WithHint("Check the repository name, or pass --repo owner/name.")
	case isRateLimited(resp):
		msg := "GitHub API rate limit exceeded"
		if reset := rateLimitReset(resp); !reset.IsZero() {
			msg += fmt.Sprintf(" (resets at %s)", reset.UTC().Format("15:04 UTC"))
		}
		return types.Newf(types.KindNetwork, stepResolve, "%s", msg).
			WithHint("Set GITHUB_TOKEN to raise the limit, or retry later.")
	case code == http.StatusUnauthorized:
		return types.Newf(types.KindConfiguration, stepResolve, "release feed rejected credentials").
			WithHint("Check the value of GITHUB_TOKEN.")
	case code >= 500:
		return types.Newf(types.KindNetwork, stepResolve, "release feed unavailable (HTTP %d)", code).
			WithHint("Retry later.")
	default:
		return types.Newf(types.KindProtocol, stepResolve, "unexpected HTTP status from release feed").
			WithExpected("200", strconv.Itoa(code))
	}
}

func isRateLimited(resp *http.Response) bool {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return false
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.Header.Get("X-RateLimit-Remaining") == "0"
}

func rateLimitReset(resp *http.Response) time.Time {
	secs, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// toRelease validates the wire form. A release without a tag, or an asset
// without a name or URL, is a malformed response.
func toRelease(gr githubRelease) (*Release, error) {
	if strings.TrimSpace(gr.TagName) == "" {
		return nil, types.Newf(types.KindProtocol, stepResolve, "release has no tag")
	}
	rel := &Release{
		Tag:     gr.TagName,
		Name:    gr.Name,
		HTMLURL: gr.HTMLURL,
		Assets:  make([]Asset, 0, len(gr.Assets)),
	}
	for i, ga := range gr.Assets {
		if ga.Name == "" || ga.BrowserDownloadURL == "" {
			return nil, types.Newf(types.KindProtocol, stepResolve,
				"asset %d of release %s is missing a name or download URL", i, gr.TagName)
		}
		if ga.Size < 0 {
			return nil, types.Newf(types.KindProtocol, stepResolve,
				"asset %s reports negative size %d", ga.Name, ga.Size)
		}
		rel.Assets = append(rel.Assets, Asset{Name: ga.Name, URL: ga.BrowserDownloadURL, Size: ga.Size})
	}
	return rel, nil
}
