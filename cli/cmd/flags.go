package cmd

import "github.com/urfave/cli/v2"

// commonFlags apply to every command that talks to Looker and/or the
// content store.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to YAML config file (env LOOKERVAULT_CONFIG)",
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "Path to the content store SQLite file (env LOOKERVAULT_DB_PATH)",
		},
		&cli.StringFlag{
			Name:  "looker-base-url",
			Usage: "Looker instance API root, e.g. https://instance.looker.com/api/4.0 (env LOOKER_BASE_URL)",
		},
		&cli.IntFlag{
			Name:  "rate-limit-per-minute",
			Usage: "Requests allowed per 60s window",
		},
		&cli.IntFlag{
			Name:  "rate-limit-per-second",
			Usage: "Requests allowed per 1s window",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output format: table or json",
			Value: "table",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress structured logging output",
		},
	}
}
