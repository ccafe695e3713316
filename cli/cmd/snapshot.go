package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lookervault/lookervault/config"
	"github.com/lookervault/lookervault/snapshot"
	"github.com/lookervault/lookervault/types"
)

// SnapshotCommand returns the "snapshot" command and its upload/list/
// download/delete/cleanup subcommands (spec §6 CLI surface).
func SnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Upload, list, and manage store snapshots in object storage",
		Subcommands: []*cli.Command{
			snapshotUploadCommand(),
			snapshotListCommand(),
			snapshotDownloadCommand(),
			snapshotDeleteCommand(),
			snapshotCleanupCommand(),
		},
	}
}

func snapshotFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "Path to YAML config file (env LOOKERVAULT_CONFIG)"},
		&cli.StringFlag{Name: "bucket", Usage: "S3 bucket name (env LOOKERVAULT_SNAPSHOT_BUCKET)"},
		&cli.StringFlag{Name: "prefix", Usage: "Snapshot filename prefix (env LOOKERVAULT_SNAPSHOT_PREFIX)"},
		&cli.StringFlag{Name: "region", Usage: "AWS region (env LOOKERVAULT_SNAPSHOT_REGION)"},
		&cli.StringFlag{Name: "endpoint", Usage: "S3-compatible endpoint override (env LOOKERVAULT_SNAPSHOT_ENDPOINT)"},
		&cli.BoolFlag{Name: "use-path-style", Usage: "Force path-style S3 addressing"},
		&cli.StringFlag{Name: "output", Usage: "Output format: table or json", Value: "table"},
	}
}

// buildSink resolves snapshot sink config from flags/env/config file and
// constructs a snapshot.Sink for one CLI invocation.
func buildSink(ctx context.Context, c *cli.Context, cfg *config.Config) (*snapshot.Sink, error) {
	bucket := resolveString(c, "bucket", firstNonEmpty(os.Getenv("LOOKERVAULT_SNAPSHOT_BUCKET"), cfg.Snapshot.Bucket))
	if bucket == "" {
		return nil, cli.Exit("a snapshot bucket is required (--bucket, LOOKERVAULT_SNAPSHOT_BUCKET, or config snapshot.bucket)", exitConfigError)
	}

	sinkCfg := snapshot.Config{
		Bucket:       bucket,
		Prefix:       resolveString(c, "prefix", firstNonEmpty(os.Getenv("LOOKERVAULT_SNAPSHOT_PREFIX"), cfg.Snapshot.Prefix)),
		Region:       resolveString(c, "region", firstNonEmpty(os.Getenv("LOOKERVAULT_SNAPSHOT_REGION"), cfg.Snapshot.Region)),
		Endpoint:     resolveString(c, "endpoint", firstNonEmpty(os.Getenv("LOOKERVAULT_SNAPSHOT_ENDPOINT"), cfg.Snapshot.Endpoint)),
		UsePathStyle: resolveBool(c, "use-path-style", cfg.Snapshot.UsePathStyle),
	}
	sink, err := snapshot.New(ctx, sinkCfg)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("snapshot sink: %v", err), exitConfigError)
	}
	return sink, nil
}

func snapshotUploadCommand() *cli.Command {
	flags := append(snapshotFlags(),
		&cli.StringFlag{Name: "file", Usage: "Path to the store file to upload (default: resolved db path)"},
		&cli.BoolFlag{Name: "gzip", Usage: "Gzip-encode the uploaded snapshot"},
	)
	return &cli.Command{
		Name:  "upload",
		Usage: "Upload the content store as a new snapshot",
		Flags: flags,
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			sink, err := buildSink(ctx, c, cfg)
			if err != nil {
				return err
			}

			path := c.String("file")
			if path == "" {
				path = resolveString(c, "db", firstNonEmpty(os.Getenv("LOOKERVAULT_DB_PATH"), cfg.Extraction.DBPath))
			}
			f, err := os.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("open store file: %v", err), exitConfigError)
			}
			defer f.Close()

			encoding := ""
			if c.Bool("gzip") {
				encoding = "gzip"
			}
			meta := types.SnapshotMetadata{
				Prefix:          firstNonEmpty(resolveString(c, "prefix", firstNonEmpty(os.Getenv("LOOKERVAULT_SNAPSHOT_PREFIX"), cfg.Snapshot.Prefix)), "lookervault"),
				Timestamp:       time.Now(),
				ContentEncoding: encoding,
			}
			result, err := sink.Upload(ctx, f, meta)
			if err != nil {
				return cli.Exit(err.Error(), exitGeneralFailure)
			}
			return printOutput(c, result)
		},
	}
}

func snapshotListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List snapshots, newest first",
		Flags: snapshotFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			sink, err := buildSink(ctx, c, cfg)
			if err != nil {
				return err
			}
			entries, err := sink.List(ctx)
			if err != nil {
				return cli.Exit(err.Error(), exitGeneralFailure)
			}
			return printOutput(c, entries)
		},
	}
}

func snapshotDownloadCommand() *cli.Command {
	flags := append(snapshotFlags(),
		&cli.StringFlag{Name: "out", Usage: "Path to write the downloaded snapshot to (required)"},
	)
	return &cli.Command{
		Name:      "download",
		Usage:     "Download a snapshot by key",
		ArgsUsage: "REF",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			ref := c.Args().First()
			if ref == "" {
				return cli.Exit("a snapshot ref is required", exitConfigError)
			}
			out := c.String("out")
			if out == "" {
				return cli.Exit("--out is required", exitConfigError)
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			sink, err := buildSink(ctx, c, cfg)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return cli.Exit(fmt.Sprintf("create output file: %v", err), exitConfigError)
			}
			defer f.Close()

			meta, err := sink.Download(ctx, ref, f)
			if err != nil {
				return cli.Exit(err.Error(), exitGeneralFailure)
			}
			return printOutput(c, meta)
		},
	}
}

func snapshotDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a snapshot by key",
		ArgsUsage: "REF",
		Flags:     snapshotFlags(),
		Action: func(c *cli.Context) error {
			ref := c.Args().First()
			if ref == "" {
				return cli.Exit("a snapshot ref is required", exitConfigError)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			sink, err := buildSink(ctx, c, cfg)
			if err != nil {
				return err
			}
			if err := sink.Delete(ctx, ref); err != nil {
				return cli.Exit(err.Error(), exitGeneralFailure)
			}
			fmt.Printf("deleted %s\n", ref)
			return nil
		},
	}
}

func snapshotCleanupCommand() *cli.Command {
	flags := append(snapshotFlags(),
		&cli.IntFlag{Name: "keep", Usage: "Number of most recent snapshots to retain"},
	)
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Delete all but the most recent N snapshots",
		Flags: flags,
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			sink, err := buildSink(ctx, c, cfg)
			if err != nil {
				return err
			}
			keep := resolveInt(c, "keep", cfg.Snapshot.Keep)
			deleted, err := sink.Cleanup(ctx, keep)
			if err != nil {
				return cli.Exit(err.Error(), exitGeneralFailure)
			}
			fmt.Printf("deleted %d snapshots\n", len(deleted))
			for _, key := range deleted {
				fmt.Printf("  - %s\n", key)
			}
			return nil
		},
	}
}
