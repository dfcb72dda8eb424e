package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/a-lang/a/internal/install"
	"github.com/a-lang/a/internal/interactive"
	"github.com/a-lang/a/internal/output"
	"github.com/a-lang/a/internal/platform"
	"github.com/a-lang/a/internal/types"
	"github.com/a-lang/a/internal/update"
)

// Seams for tests.
//
//nolint:gochecknoglobals // Test seams require package-level variables.
var (
	osExecutable = os.Executable
	detectTarget = platform.Detect
	detectNative = platform.DetectNative
)

type updateOptions struct {
	repo   string
	tag    string
	apiURL string
	check  bool
	native bool
	yes    bool
}

func newUpdateCmd(global *globalOptions, info BuildInfo) *cobra.Command {
	opts := &updateOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a to the latest release",
		Long: `Check the release feed and replace the running binary with a newer release.

The release feed is a GitHub repository. It is taken from --repo, then the
A_UPDATE_REPO environment variable, then the repository this binary was
built from. GITHUB_TOKEN, when set, raises the API rate limit.

Exit status is 3 when the new binary could only be staged and the swap
finishes on the next run.`,
		Example: `  a update                 # Update to the latest release
  a update --check         # Report whether an update is available
  a update --tag v0.4.0    # Install a specific release
  a update --repo me/a     # Use a fork's releases`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := global.writer(cmd)
			if err != nil {
				return err
			}
			logger := global.logger(cmd)

			repo, err := update.ResolveRepo(v.GetString("repo"), os.Getenv(update.RepoEnvVar), info.DefaultRepo)
			if err != nil {
				return finish(out, err)
			}
			u := &updateRun{
				opts:     opts,
				info:     info,
				repo:     repo,
				token:    v.GetString("token"),
				out:      out,
				logger:   logger,
				prompter: interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.ErrOrStderr()).AssumeYes(opts.yes),
			}
			return finish(out, u.run(cmd.Context()))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.repo, "repo", "", "Release feed as owner/name (env: "+update.RepoEnvVar+")")
	flags.StringVar(&opts.tag, "tag", "", "Install this release tag instead of the latest")
	flags.BoolVar(&opts.check, "check", false, "Only report whether an update is available")
	flags.BoolVar(&opts.native, "native", false, "Select the asset for the machine's native architecture")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")
	flags.StringVar(&opts.apiURL, "api-url", "", "Release API base URL")
	_ = flags.MarkHidden("api-url")

	_ = v.BindPFlag("repo", flags.Lookup("repo"))
	_ = v.BindEnv("repo", update.RepoEnvVar)
	_ = v.BindEnv("token", "GITHUB_TOKEN", "GH_TOKEN")

	return cmd
}

type updateRun struct {
	opts     *updateOptions
	info     BuildInfo
	repo     update.RepoID
	token    string
	out      *output.Writer
	logger   *log.Logger
	prompter *interactive.Prompter
}

// updateReport is the result document of one update run.
type updateReport struct {
	Repo           string `json:"repo" yaml:"repo"`
	Target         string `json:"target" yaml:"target"`
	CurrentVersion string `json:"current_version" yaml:"current_version"`
	LatestVersion  string `json:"latest_version" yaml:"latest_version"`
	UpToDate       bool   `json:"up_to_date" yaml:"up_to_date"`
	Asset          string `json:"asset,omitempty" yaml:"asset,omitempty"`
	ReleaseURL     string `json:"release_url,omitempty" yaml:"release_url,omitempty"`

	Applied    bool   `json:"applied" yaml:"applied"`
	Cancelled  bool   `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	Strategy   string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	SHA256     string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	Verified   bool   `json:"checksum_verified,omitempty" yaml:"checksum_verified,omitempty"`
	Deferred   bool   `json:"deferred,omitempty" yaml:"deferred,omitempty"`
	StagedPath string `json:"staged_path,omitempty" yaml:"staged_path,omitempty"`

	check *update.CheckResult
}

func (r *updateReport) String() string {
	switch {
	case r.Deferred:
		return fmt.Sprintf("Staged %s at %s; it replaces %s on the next run", r.LatestVersion, r.StagedPath, r.Path)
	case r.Applied:
		return fmt.Sprintf("Updated %s to %s", r.Path, r.LatestVersion)
	case r.Cancelled:
		return "Update cancelled"
	}
	return r.check.String()
}

func (u *updateRun) target(ctx context.Context) (platform.Target, error) {
	build, err := detectTarget()
	if err != nil {
		return platform.Target{}, types.Wrap(types.KindUnsupportedPlatform, "detect platform", err,
			"this build has no release asset").
			WithExpected(supportedList(), "unknown")
	}

	native, err := detectNative(ctx)
	if err != nil {
		u.logger.Debug("native platform detection failed", "err", err)
		return build, nil
	}
	if !platform.IsEmulated(build, native) {
		return build, nil
	}
	if u.opts.native {
		u.logger.Info("selecting native build", "build", build, "native", native)
		return native, nil
	}
	u.logger.Warn("running under emulation", "build", build, "native", native)
	u.out.Hint("Run with --native to switch to the " + native.String() + " build.")
	return build, nil
}

func (u *updateRun) run(ctx context.Context) error {
	target, err := u.target(ctx)
	if err != nil {
		return err
	}

	resolverOpts := []update.ResolverOption{
		update.WithUserAgent(userAgent(u.info.Version)),
		update.WithLogger(u.logger),
	}
	if u.token != "" {
		resolverOpts = append(resolverOpts, update.WithToken(u.token))
	}
	if u.opts.apiURL != "" {
		resolverOpts = append(resolverOpts, update.WithBaseURL(u.opts.apiURL))
	}
	updater := update.NewUpdater(update.Config{
		CurrentVersion: u.info.Version,
		Target:         target,
		Resolver:       update.NewGitHubResolver(resolverOpts...),
		Fetcher:        &update.Fetcher{UserAgent: userAgent(u.info.Version), Logger: u.logger},
		Logger:         u.logger,
	})

	// Privilege is checked before the feed is contacted so a doomed update
	// costs no download.
	var loc *install.Location
	if !u.opts.check {
		if loc, err = u.locate(target, updater.Replacer()); err != nil {
			return err
		}
	}

	check, err := updater.Check(ctx, update.CheckOptions{Repo: u.repo, Tag: u.opts.tag})
	if err != nil {
		return err
	}
	report := &updateReport{
		Repo:           check.Repo.String(),
		Target:         check.Target.String(),
		CurrentVersion: check.CurrentVersion,
		LatestVersion:  check.LatestVersion,
		UpToDate:       check.UpToDate,
		ReleaseURL:     check.ReleaseURL,
		check:          check,
	}
	if check.Asset != nil {
		report.Asset = check.Asset.Name
	}
	if check.UpToDate || u.opts.check {
		return u.out.Write(report)
	}

	ok, err := u.prompter.Confirm("Update %s from %s to %s?", loc.BinaryPath, displayVersion(check.CurrentVersion), check.LatestVersion)
	if err != nil {
		return confirmError(err)
	}
	if !ok {
		report.Cancelled = true
		return u.out.Write(report)
	}

	res, err := updater.Apply(ctx, check, loc.BinaryPath)
	if res != nil {
		report.SHA256 = res.SHA256
		report.Verified = res.Verified
		if res.ReplaceResult != nil {
			report.Applied = !res.Deferred
			report.Path = res.Path
			report.Strategy = res.Strategy.String()
			report.Deferred = res.Deferred
			report.StagedPath = res.StagedPath
		}
	}
	if err != nil && !(report.Deferred && errors.Is(err, types.ErrRestartRequired)) {
		return err
	}

	u.out.Success("Downloaded %s (sha256 %s)", report.Asset, shortHash(report.SHA256))
	if report.Verified {
		u.out.Success("Checksum verified")
	} else {
		u.out.Warn("Release publishes no checksums; only the executable format was verified")
	}
	if werr := u.out.Write(report); werr != nil {
		return werr
	}
	return err
}

// locate finds the running binary, checks it may be replaced and finishes
// any swap left over from an earlier run.
func (u *updateRun) locate(target platform.Target, r *update.Replacer) (*install.Location, error) {
	exe, err := osExecutable()
	if err != nil {
		return nil, types.Wrap(types.KindInstall, "locate executable", err, "cannot find the running binary")
	}
	loc, err := newGuard(target).ForExecutable(exe)
	if err != nil {
		return nil, err
	}

	if r.Strategy() != update.StrategyWindowsLockedSwap {
		return loc, nil
	}
	r.Cleanup(loc.BinaryPath)
	done, err := r.CompletePending(loc.BinaryPath, target)
	if err != nil {
		u.logger.Warn("could not complete staged update", "path", loc.BinaryPath, "err", err)
	} else if done {
		u.out.Success("Completed the update staged by a previous run")
	}
	return loc, nil
}

func confirmError(err error) error {
	if errors.Is(err, interactive.ErrNotTerminal) {
		return types.Wrap(types.KindConfiguration, "confirm", err, "cannot ask for confirmation").
			WithHint("Pass --yes to proceed without a prompt.")
	}
	return err
}

func userAgent(version string) string {
	return "a-updater/" + displayVersion(version)
}

func displayVersion(v string) string {
	if strings.TrimSpace(v) == "" {
		return update.DevVersion
	}
	return v
}

func shortHash(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

func supportedList() string {
	names := make([]string, 0, len(platform.Supported()))
	for _, t := range platform.Supported() {
		names = append(names, t.String())
	}
	return strings.Join(names, ", ")
}
