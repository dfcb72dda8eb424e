package update

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/a-lang/a/internal/platform"
	"github.com/a-lang/a/internal/types"
)

// Resolver looks up a release on the release feed.
type Resolver interface {
	Resolve(ctx context.Context, repo RepoID, tag string) (*Release, error)
}

// Config wires an Updater. Resolver and Fetcher default to the public
// GitHub API and a host-targeted Fetcher.
type Config struct {
	CurrentVersion string
	Target         platform.Target
	Resolver       Resolver
	Fetcher        *Fetcher
	Replacer       *Replacer
	Logger         *log.Logger
}

// Updater runs the resolve, select, fetch and replace pipeline.
type Updater struct {
	current  string
	target   platform.Target
	resolver Resolver
	fetcher  *Fetcher
	replacer *Replacer
	logger   *log.Logger
}

// NewUpdater creates an Updater for binaries built for cfg.Target.
func NewUpdater(cfg Config) *Updater {
	u := &Updater{
		current:  cfg.CurrentVersion,
		target:   cfg.Target,
		resolver: cfg.Resolver,
		replacer: cfg.Replacer,
		logger:   cfg.Logger,
	}
	if u.logger == nil {
		u.logger = log.New(io.Discard)
	}
	if u.resolver == nil {
		u.resolver = NewGitHubResolver(WithLogger(u.logger))
	}

	fetcher := Fetcher{Logger: u.logger}
	if cfg.Fetcher != nil {
		fetcher = *cfg.Fetcher
	}
	if fetcher.Target == (platform.Target{}) {
		fetcher.Target = cfg.Target
	}
	u.fetcher = &fetcher

	if u.replacer == nil {
		u.replacer = NewReplacer(StrategyFor(cfg.Target), u.logger)
	}
	return u
}

// Replacer returns the replacer used by Apply.
func (u *Updater) Replacer() *Replacer {
	return u.replacer
}

// CheckOptions selects the release to check against.
type CheckOptions struct {
	Repo RepoID
	// Tag pins a release; empty means the latest.
	Tag string
}

// CheckResult is the outcome of resolving and selecting, before any download.
type CheckResult struct {
	Repo           RepoID
	CurrentVersion string
	LatestVersion  string
	UpToDate       bool
	Target         platform.Target
	// Asset is nil only when UpToDate is set and the release carries no
	// asset for Target.
	Asset      *Asset
	ReleaseURL string

	release *Release
}

// String renders the result for the user.
func (c *CheckResult) String() string {
	if c.UpToDate {
		return fmt.Sprintf("Already up to date (%s)", c.LatestVersion)
	}
	current := c.CurrentVersion
	if current == "" {
		current = "unknown"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Update available: %s (current %s)", c.LatestVersion, current)
	if c.Asset != nil {
		fmt.Fprintf(&sb, "\nAsset: %s", c.Asset.Name)
	}
	return sb.String()
}

// Check resolves the release and selects the asset for the target. It
// reads from the network only and never touches the filesystem.
func (u *Updater) Check(ctx context.Context, opts CheckOptions) (*CheckResult, error) {
	release, err := u.resolver.Resolve(ctx, opts.Repo, opts.Tag)
	if err != nil {
		return nil, err
	}

	res := &CheckResult{
		Repo:           opts.Repo,
		CurrentVersion: u.current,
		LatestVersion:  release.Tag,
		Target:         u.target,
		ReleaseURL:     release.HTMLURL,
		release:        release,
	}
	if opts.Tag != "" {
		res.UpToDate = u.current != DevVersion && NormalizeVersion(u.current) == NormalizeVersion(release.Tag)
	} else {
		res.UpToDate = IsUpToDate(u.current, release.Tag)
	}

	asset, err := SelectAsset(release, u.target)
	if err != nil {
		if res.UpToDate {
			u.logger.Debug("release has no asset for target", "target", u.target, "tag", release.Tag)
			return res, nil
		}
		return nil, err
	}
	res.Asset = asset
	return res, nil
}

// ApplyResult reports what Apply installed.
type ApplyResult struct {
	Version  string
	Asset    string
	SHA256   string
	Verified bool
	*ReplaceResult
}

// Apply downloads the checked asset next to installPath, verifies it and
// swaps it in. installPath is untouched unless every step before the swap
// succeeds. A Windows deferral returns a result together with a
// RestartRequired error.
func (u *Updater) Apply(ctx context.Context, check *CheckResult, installPath string) (*ApplyResult, error) {
	if check.Asset == nil || check.release == nil {
		return nil, types.Newf(types.KindNoMatchingAsset, "select asset", "nothing to apply for %s", check.Target).
			WithExpected(check.Target.AssetName(), "none")
	}

	sum, err := u.fetcher.FetchChecksum(ctx, check.release, check.Asset)
	if err != nil {
		return nil, err
	}

	art, err := u.fetcher.Fetch(ctx, check.Asset, filepath.Dir(installPath))
	if err != nil {
		return nil, err
	}

	if sum != "" {
		if err := art.Verify(sum); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		art.Discard()
		return nil, types.Wrap(types.KindNetwork, stepReplace, err, "update cancelled before install")
	}

	out := &ApplyResult{
		Version:  check.LatestVersion,
		Asset:    check.Asset.Name,
		SHA256:   art.SHA256,
		Verified: sum != "",
	}
	rep, err := u.replacer.Replace(installPath, art)
	out.ReplaceResult = rep
	if err != nil {
		if rep != nil {
			return out, err
		}
		return nil, err
	}
	u.logger.Info("updated", "path", installPath, "version", check.LatestVersion)
	return out, nil
}
