package main

import (
	"context"
	"os"

	"github.com/a-lang/a/internal/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := cmd.ExecutePack(context.Background(), cmd.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	os.Exit(cmd.ExitCode(err))
}
