// Package cmd implements the a and apack command lines.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/a-lang/a/internal/output"
	"github.com/a-lang/a/internal/types"
)

// BuildInfo is stamped into the binaries with -ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
	// DefaultRepo is the owner/name release feed used when neither --repo
	// nor A_UPDATE_REPO is set.
	DefaultRepo string
}

// globalOptions holds the persistent flags of one invocation.
type globalOptions struct {
	output  string
	verbose bool
	quiet   bool
}

func (o *globalOptions) register(flags *pflag.FlagSet) {
	flags.StringVarP(&o.output, "output", "o", "text", "Output format: text, json, yaml")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "Quiet mode (errors only)")
}

// writer returns the result writer for cmd's stdout.
func (o *globalOptions) writer(cmd *cobra.Command) (*output.Writer, error) {
	format, err := output.ParseFormat(o.output)
	if err != nil {
		return nil, types.Wrap(types.KindConfiguration, "parse flags", err, "invalid --output").
			WithExpected("text, json or yaml", o.output)
	}
	w := output.NewWriter(cmd.OutOrStdout(), format)
	w.SetQuiet(o.quiet)
	return w, nil
}

// logger returns a diagnostic logger on cmd's stderr.
func (o *globalOptions) logger(cmd *cobra.Command) *log.Logger {
	level := log.InfoLevel
	switch {
	case o.verbose:
		level = log.DebugLevel
	case o.quiet:
		level = log.ErrorLevel
	}
	return log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Prefix: cmd.Root().Name(),
		Level:  level,
	})
}

func registerOutputCompletion(root *cobra.Command) {
	_ = root.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func newRootCmd(info BuildInfo) *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "a",
		Short: "The a programming language",
		Long: `a is the command line of the a programming language.

This build carries its own distribution tooling: it installs itself onto PATH
and updates itself from the project's GitHub releases.`,
		Version:      info.Version,
		SilenceUsage: true,
	}
	opts.register(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newInstallCmd(opts))
	rootCmd.AddCommand(newUpdateCmd(opts, info))
	rootCmd.AddCommand(newVersionCmd(opts, info))
	rootCmd.AddCommand(newCompletionCmd())

	registerOutputCompletion(rootCmd)
	return rootCmd
}

// Execute runs the a command line.
func Execute(ctx context.Context, info BuildInfo) error {
	return execute(ctx, newRootCmd(info), info)
}

// ExecutePack runs the apack release packager.
func ExecutePack(ctx context.Context, info BuildInfo) error {
	return execute(ctx, newPackCmd(info), info)
}

func execute(ctx context.Context, root *cobra.Command, info BuildInfo) error {
	return fang.Execute(ctx, root,
		fang.WithVersion(info.Version),
		fang.WithCommit(info.Commit),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(errorHandler),
	)
}

// errorHandler prints typed failures as a step report with their hint.
// Errors already written in json or yaml are not printed again, and
// anything else, such as a usage error, gets fang's rendering.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Reported {
		return
	}
	var te *types.Error
	if !errors.As(err, &te) {
		fang.DefaultErrorHandler(w, styles, err)
		return
	}
	_, _ = fmt.Fprintln(w, output.NewErrorReport(err).String())
}

// finish maps the outcome of a command body to what cobra should see. In
// json or yaml mode the error is written to stdout as a document and marked
// reported.
func finish(out *output.Writer, err error) error {
	if err == nil {
		return nil
	}
	code := ExitCode(err)
	if out != nil && !out.IsText() {
		out.Error(err)
		return &ExitError{Code: code, Err: err, Reported: true}
	}
	if code != ExitFailure {
		return &ExitError{Code: code, Err: err}
	}
	return err
}
