package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/lookervault/lookervault/extraction"
	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/store"
	"github.com/lookervault/lookervault/types"
)

// ExtractCommand returns the "extract" command (spec §6 CLI surface).
func ExtractCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringSliceFlag{Name: "types", Usage: "Content types to extract (default: all)"},
		&cli.IntFlag{Name: "workers", Usage: "Worker pool size per content type"},
		&cli.IntFlag{Name: "batch-size", Usage: "Page size per API call"},
		&cli.StringSliceFlag{Name: "folder-id", Usage: "Restrict extraction to these folder ids (repeatable)"},
		&cli.BoolFlag{Name: "incremental", Usage: "Only fetch items updated after the last completed run's start time"},
		&cli.StringFlag{Name: "updated-after", Usage: "Only fetch items updated after this RFC3339 timestamp"},
		&cli.StringSliceFlag{Name: "fields", Usage: "Comma-separated field list to request per item"},
		&cli.BoolFlag{Name: "resume", Usage: "Resume the latest incomplete checkpoint per content type"},
	)

	return &cli.Command{
		Name:  "extract",
		Usage: "Extract content from a Looker instance into the local store",
		Flags: flags,
		Action: func(c *cli.Context) error {
			return runExtract(c)
		},
	}
}

func runExtract(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cleanup := signalContext()
	defer cleanup()

	contentTypes, err := parseContentTypes(resolveStringSlice(c, "types", nil))
	if err != nil {
		return err
	}

	client, err := buildLookerClient(ctx, c, cfg)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	updatedAfter, err := resolveUpdatedAfter(ctx, c, st)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	sessionID := uuid.NewString()
	run := &types.RunMeta{SessionID: sessionID, Kind: types.SessionKindExtraction, StartedAt: time.Now()}
	logger := newLogger(c, run)

	orch := extraction.New(st, client, logger)
	result, err := orch.Run(ctx, sessionID, extraction.Config{
		Types:        contentTypes,
		Workers:      resolveInt(c, "workers", cfg.Parallel.Workers),
		BatchSize:    resolveInt(c, "batch-size", cfg.Extraction.BatchSize),
		FolderIDs:    resolveStringSlice(c, "folder-id", nil),
		UpdatedAfter: updatedAfter,
		Resume:       resolveBool(c, "resume", cfg.Extraction.AutoResume),
		Fields:       resolveStringSlice(c, "fields", cfg.Extraction.DefaultFields),
	})

	if printErr := printOutput(c, result); printErr != nil {
		return printErr
	}

	return exitForExtraction(err)
}

// resolveUpdatedAfter honors an explicit --updated-after timestamp, or
// (with --incremental) derives it from the most recently completed
// extraction session's start time. Neither flag set returns nil: a full
// extraction.
func resolveUpdatedAfter(ctx context.Context, c *cli.Context, st *store.Store) (*time.Time, error) {
	if raw := c.String("updated-after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --updated-after timestamp %q: %w", raw, err)
		}
		return &t, nil
	}
	if !c.Bool("incremental") {
		return nil, nil
	}

	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if sess.Kind == types.SessionKindExtraction && sess.Status == types.SessionCompleted {
			started := sess.StartedAt
			return &started, nil
		}
	}
	return nil, nil
}

func exitForExtraction(err error) error {
	if err == nil {
		return nil
	}
	if err == lverrors.Cancelled {
		return cli.Exit("extraction cancelled", exitUserCancelled)
	}
	var apiErr *lverrors.APIError
	if errors.As(err, &apiErr) {
		return cli.Exit(err.Error(), exitAPIError)
	}
	return cli.Exit(err.Error(), exitGeneralFailure)
}
