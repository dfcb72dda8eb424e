package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/a-lang/a/internal/install"
	"github.com/a-lang/a/internal/interactive"
	"github.com/a-lang/a/internal/output"
	"github.com/a-lang/a/internal/types"
)

// Seams for tests.
//
//nolint:gochecknoglobals // Test seams require package-level variables.
var (
	newGuard     = install.NewGuard
	newPathStore = install.DefaultPathStore
	processEnv   = install.OSEnv
)

type installOptions struct {
	scope  string
	dest   string
	from   string
	noPath bool
	yes    bool
}

func newInstallCmd(global *globalOptions) *cobra.Command {
	opts := &installOptions{}

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install a into a bin directory on PATH",
		Long: `Copy a binary of a into a user or system bin directory and make sure that
directory is on PATH.

User scope installs to ~/.local/bin (or %LOCALAPPDATA%\Programs\a\bin) and
updates your shell profile. System scope installs to /usr/local/bin (or
%ProgramFiles%\a\bin) and needs root or Administrator.

Running install again is safe: the binary is replaced atomically and the
PATH entry is never duplicated.`,
		Example: `  a install                          # Install the running binary for this user
  a install --scope system           # Install for all users
  a install --dest ~/bin --no-path   # Pick the directory, leave PATH alone
  a install --from ./dist/stage/bin/a`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := global.writer(cmd)
			if err != nil {
				return err
			}
			run := &installRun{
				opts:     opts,
				out:      out,
				logger:   global.logger(cmd),
				prompter: interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.ErrOrStderr()).AssumeYes(opts.yes),
			}
			return finish(out, run.run(cmd.Context()))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.scope, "scope", string(types.ScopeUser), "Install scope: user or system")
	flags.StringVar(&opts.dest, "dest", "", "Install into this directory instead of the scope default")
	flags.StringVar(&opts.from, "from", "", "Binary to install (default: the running binary)")
	flags.BoolVar(&opts.noPath, "no-path", false, "Do not add the directory to PATH")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")

	_ = cmd.RegisterFlagCompletionFunc("scope", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		var scopes []string
		for _, s := range types.AllScopes() {
			scopes = append(scopes, s.String())
		}
		return scopes, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

type installRun struct {
	opts     *installOptions
	out      *output.Writer
	logger   *log.Logger
	prompter *interactive.Prompter
}

// installReport is the result document of one install run.
type installReport struct {
	Path      string `json:"path" yaml:"path"`
	BinDir    string `json:"bin_dir" yaml:"bin_dir"`
	Scope     string `json:"scope" yaml:"scope"`
	Unchanged bool   `json:"unchanged,omitempty" yaml:"unchanged,omitempty"`

	PathSkipped    bool   `json:"path_skipped,omitempty" yaml:"path_skipped,omitempty"`
	PathPersisted  bool   `json:"path_persisted" yaml:"path_persisted"`
	PathPresent    bool   `json:"path_already_present,omitempty" yaml:"path_already_present,omitempty"`
	PathStore      string `json:"path_store,omitempty" yaml:"path_store,omitempty"`
	PathError      string `json:"path_error,omitempty" yaml:"path_error,omitempty"`
	RestartSession bool   `json:"restart_session,omitempty" yaml:"restart_session,omitempty"`
}

func (r *installReport) String() string {
	var sb strings.Builder
	if r.Unchanged {
		fmt.Fprintf(&sb, "a is already installed at %s (%s scope)", r.Path, r.Scope)
	} else {
		fmt.Fprintf(&sb, "Installed a to %s (%s scope)", r.Path, r.Scope)
	}
	if r.RestartSession {
		sb.WriteString("\nOpen a new shell for the PATH change to take effect.")
	}
	return sb.String()
}

func (r *installRun) run(ctx context.Context) error {
	scope, err := types.ParseScope(r.opts.scope)
	if err != nil {
		return types.Wrap(types.KindConfiguration, "parse flags", err, "invalid --scope").
			WithExpected("user or system", r.opts.scope)
	}

	target, err := detectTarget()
	if err != nil {
		return types.Wrap(types.KindUnsupportedPlatform, "detect platform", err, "cannot install on this platform").
			WithExpected(supportedList(), "unknown")
	}

	source := r.opts.from
	if source == "" {
		if source, err = osExecutable(); err != nil {
			return types.Wrap(types.KindInstall, "locate executable", err, "cannot find the running binary").
				WithHint("Pass the binary to install with --from.")
		}
	}

	g := newGuard(target)
	if dir := r.previewDir(g, scope); dir != "" {
		ok, err := r.prompter.Confirm("Install a to %s (%s scope)?", dir, scope)
		if err != nil {
			return confirmError(err)
		}
		if !ok {
			r.out.Warn("Install cancelled")
			return nil
		}
	}

	var pm *install.PathManager
	if !r.opts.noPath {
		home, _ := g.HomeDir()
		pm = install.NewPathManager(newPathStore(home), target, r.logger)
		pm.Env = processEnv
	}

	rep, err := install.Run(ctx, g, install.NewInstaller(target, r.logger), pm, install.Request{
		Scope:    scope,
		Dest:     r.opts.dest,
		Source:   source,
		SkipPath: r.opts.noPath,
	})
	if err != nil {
		return err
	}

	report := &installReport{
		Path:        rep.Install.Path,
		BinDir:      rep.Location.BinDir,
		Scope:       rep.Location.Scope.String(),
		Unchanged:   rep.Install.Unchanged,
		PathSkipped: r.opts.noPath,
	}
	if !rep.Install.Unchanged {
		r.out.Success("Copied %s to %s", source, rep.Install.Path)
	}
	switch {
	case rep.PathErr != nil:
		report.PathError = rep.PathErr.Error()
		r.out.Warn("Could not add %s to PATH: %v", rep.Location.BinDir, rep.PathErr)
		r.out.Hint(output.NewErrorReport(rep.PathErr).Hint)
	case rep.Path != nil:
		report.PathPersisted = rep.Path.Persisted
		report.PathPresent = rep.Path.AlreadyPresent
		report.PathStore = rep.Path.StoreName
		report.RestartSession = rep.Path.Persisted
		if rep.Path.Persisted {
			r.out.Success("Added %s to PATH in %s", rep.Path.Dir, rep.Path.StoreName)
		}
	}
	return r.out.Write(report)
}

// previewDir is the directory named in the confirmation prompt. Authorize
// computes the real location later, after its privilege check. An empty
// result skips the prompt, as when Authorize is bound to refuse.
func (r *installRun) previewDir(g *install.Guard, scope types.Scope) string {
	if scope.IsSystem() && !g.IsElevated() {
		return ""
	}
	if r.opts.dest != "" {
		return r.opts.dest
	}
	dir, err := g.DefaultDir(scope)
	if err != nil {
		return ""
	}
	return dir
}
