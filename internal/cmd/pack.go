package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/a-lang/a/internal/config"
	"github.com/a-lang/a/internal/output"
	"github.com/a-lang/a/internal/packager"
	"github.com/a-lang/a/internal/platform"
	"github.com/a-lang/a/internal/types"
)

const sourceDateEpochEnv = "SOURCE_DATE_EPOCH"

type packOptions struct {
	target   string
	binary   string
	out      string
	docsDir  string
	manifest string
	xz       bool
}

func newPackCmd(info BuildInfo) *cobra.Command {
	global := &globalOptions{}
	opts := &packOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "apack",
		Short: "Package a release of a",
		Long: `apack turns a built binary of a into the files a release publishes:

  <out>/a-<os>-<arch>[.exe]           the raw binary, fetched by 'a update'
  <out>/a-<os>-<arch>[.exe].sha256    its checksum
  <out>/a-<os>-<arch>.tar.gz          binary, docs and installer script
  <out>/stage/a-<os>-<arch>/          the staging tree the archive is made from

Docs, archive formats and installer overrides come from an apack.toml,
apack.yaml or apack.json manifest in the current directory, or the file
named by --manifest or APACK_MANIFEST. Archive timestamps come from
SOURCE_DATE_EPOCH so repeated runs produce identical archives.`,
		Example: `  apack --binary ./build/a
  apack --target aarch64-apple-darwin --binary ./build/a-darwin-arm64 --xz
  apack --target windows/amd64 --binary ./build/a.exe --out dist`,
		Version:      info.Version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := global.writer(cmd)
			if err != nil {
				return err
			}
			run := &packRun{
				opts:   opts,
				epoch:  v.GetString("source_date_epoch"),
				out:    out,
				logger: global.logger(cmd),
			}
			return finish(out, run.run(cmd.Context()))
		},
	}
	global.register(cmd.PersistentFlags())

	flags := cmd.Flags()
	flags.StringVarP(&opts.target, "target", "t", "", "Target platform, e.g. linux-x86_64 or aarch64-apple-darwin (default: host)")
	flags.StringVarP(&opts.binary, "binary", "b", "", "Built binary of a for the target")
	flags.StringVar(&opts.out, "out", "dist", "Output directory")
	flags.StringVar(&opts.docsDir, "docs-dir", "", "Directory holding the docs (default: the manifest's directory)")
	flags.StringVarP(&opts.manifest, "manifest", "m", "", "Package manifest (env: "+config.ManifestEnvVar+")")
	flags.BoolVar(&opts.xz, "xz", false, "Also write a tar.xz archive")
	_ = cmd.MarkFlagRequired("binary")

	_ = v.BindEnv("source_date_epoch", sourceDateEpochEnv)

	_ = cmd.RegisterFlagCompletionFunc("target", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, 0, len(platform.Supported()))
		for _, t := range platform.Supported() {
			names = append(names, t.String())
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
	registerOutputCompletion(cmd)
	cmd.AddCommand(newCompletionCmd())

	return cmd
}

type packRun struct {
	opts   *packOptions
	epoch  string
	out    *output.Writer
	logger *log.Logger
}

type archiveReport struct {
	Format string `json:"format" yaml:"format"`
	Path   string `json:"path" yaml:"path"`
	SHA256 string `json:"sha256" yaml:"sha256"`
}

// packReport is the result document of one apack run.
type packReport struct {
	Target       string          `json:"target" yaml:"target"`
	StagingDir   string          `json:"staging_dir" yaml:"staging_dir"`
	Entries      []string        `json:"entries" yaml:"entries"`
	Raw          string          `json:"raw" yaml:"raw"`
	RawSHA256    string          `json:"raw_sha256" yaml:"raw_sha256"`
	ChecksumFile string          `json:"checksum_file" yaml:"checksum_file"`
	Archives     []archiveReport `json:"archives" yaml:"archives"`
}

func (r *packReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", output.TitleStyle.Render("Packaged a for "+r.Target))
	fmt.Fprintf(&sb, "  %s %s\n", output.MutedStyle.Render("raw:    "), r.Raw)
	fmt.Fprintf(&sb, "  %s %s\n", output.MutedStyle.Render("sha256: "), r.ChecksumFile)
	for _, a := range r.Archives {
		fmt.Fprintf(&sb, "  %s %s\n", output.MutedStyle.Render(fmt.Sprintf("%-8s", a.Format+":")), a.Path)
	}
	fmt.Fprintf(&sb, "  %s %s", output.MutedStyle.Render("staged: "), r.StagingDir)
	return sb.String()
}

func (r *packRun) run(ctx context.Context) error {
	target, err := r.target()
	if err != nil {
		return err
	}

	modTime, err := packager.ParseSourceDateEpoch(r.epoch)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return types.Wrap(types.KindConfiguration, "manifest", err, "cannot determine working directory")
	}
	manifest, err := config.LoadOrDefault(cwd, r.opts.manifest)
	if err != nil {
		return err
	}
	if r.opts.xz && !slices.Contains(manifest.ArchiveFormats(), types.ArchiveTarXz) {
		manifest.Formats = append(manifest.Formats, types.ArchiveTarXz.String())
	}
	r.logger.Debug("packaging", "target", target, "binary", r.opts.binary, "formats", manifest.ArchiveFormats())

	art, err := packager.Package(ctx, packager.Request{
		Target:     target,
		BinaryPath: r.opts.binary,
		OutDir:     r.opts.out,
		DocsDir:    r.opts.docsDir,
		Manifest:   manifest,
		ModTime:    modTime,
		Logger:     r.logger,
	})
	if err != nil {
		return err
	}

	report := &packReport{
		Target:       art.Target.String(),
		StagingDir:   art.StagingDir,
		Entries:      art.Entries,
		Raw:          art.RawPath,
		RawSHA256:    art.RawSHA256,
		ChecksumFile: art.ChecksumPath,
	}
	r.out.Success("Staged %d files in %s", len(art.Entries), art.StagingDir)
	r.out.Success("Wrote %s", filepath.Base(art.RawPath))
	for _, a := range art.Archives {
		report.Archives = append(report.Archives, archiveReport{Format: a.Format.String(), Path: a.Path, SHA256: a.SHA256})
		r.out.Success("Wrote %s", filepath.Base(a.Path))
	}
	return r.out.Write(report)
}

func (r *packRun) target() (platform.Target, error) {
	if r.opts.target == "" {
		t, err := detectTarget()
		if err != nil {
			return platform.Target{}, types.Wrap(types.KindUnsupportedPlatform, "parse flags", err,
				"the host is not a release target").
				WithExpected(supportedList(), "host").
				WithHint("Pass --target.")
		}
		return t, nil
	}
	t, err := platform.Parse(r.opts.target)
	if err != nil {
		return platform.Target{}, types.Wrap(types.KindUnsupportedPlatform, "parse flags", err,
			"invalid --target").
			WithExpected(supportedList(), r.opts.target)
	}
	return t, nil
}
