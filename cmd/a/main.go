package main

import (
	"context"
	"os"

	"github.com/a-lang/a/internal/cmd"
)

var (
	version     = "dev"
	commit      = "none"
	date        = "unknown"
	defaultRepo = "a-lang/a"
)

func main() {
	err := cmd.Execute(context.Background(), cmd.BuildInfo{
		Version:     version,
		Commit:      commit,
		Date:        date,
		DefaultRepo: defaultRepo,
	})
	os.Exit(cmd.ExitCode(err))
}
