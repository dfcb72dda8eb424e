package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/a-lang/a/internal/output"
)

// versionReport is the result document of version.
type versionReport struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Date    string `json:"date,omitempty" yaml:"date,omitempty"`
	Repo    string `json:"repo,omitempty" yaml:"repo,omitempty"`
	Target  string `json:"target" yaml:"target"`
}

func (r versionReport) String() string {
	s := output.TitleStyle.Render("a "+r.Version) + fmt.Sprintf(" (%s)", r.Target)
	if r.Commit != "" {
		s += fmt.Sprintf("\ncommit: %s", r.Commit)
	}
	if r.Date != "" {
		s += fmt.Sprintf("\nbuilt:  %s", r.Date)
	}
	return s
}

func newVersionCmd(global *globalOptions, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the version of a and the build it came from.

Run 'a update --check' to see whether a newer release exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := global.writer(cmd)
			if err != nil {
				return err
			}
			target := runtime.GOOS + "/" + runtime.GOARCH
			if t, err := detectTarget(); err == nil {
				target = t.String()
			}
			return finish(out, out.Write(versionReport{
				Version: displayVersion(info.Version),
				Commit:  knownOrEmpty(info.Commit),
				Date:    knownOrEmpty(info.Date),
				Repo:    info.DefaultRepo,
				Target:  target,
			}))
		},
	}
}

// knownOrEmpty drops the placeholders left by a build without -ldflags.
func knownOrEmpty(s string) string {
	switch s {
	case "none", "unknown":
		return ""
	}
	return s
}
