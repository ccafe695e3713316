// Package main provides the lookervault CLI entrypoint.
//
// Usage:
//
//	lookervault <command> [subcommand] [options]
//
// Exit codes (spec §6):
//   - 0: success
//   - 1: general failure (partial failure / non-empty DLQ)
//   - 2: configuration error
//   - 3: connection error
//   - 4: Looker API error
//   - 130: user cancelled (SIGINT/SIGTERM)
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lookervault/lookervault/cli/cmd"
	"github.com/lookervault/lookervault/types"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "lookervault",
		Usage:          "Looker BI backup and restore tool",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ExtractCommand(),
			cmd.RestoreCommand(),
			cmd.SnapshotCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes set via cli.Exit() so extraction/
// restoration/snapshot failures surface the right code to scripts.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
