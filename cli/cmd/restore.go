package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/lookervault/lookervault/config"
	"github.com/lookervault/lookervault/depgraph"
	"github.com/lookervault/lookervault/idmapper"
	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/restoration"
	"github.com/lookervault/lookervault/store"
	"github.com/lookervault/lookervault/types"
)

// RestoreCommand returns the "restore" command and its resume/dlq/status
// subcommands (spec §6 CLI surface).
func RestoreCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{Name: "from-snapshot", Usage: "Restore from a downloaded snapshot ref instead of the local store"},
		&cli.IntFlag{Name: "workers", Usage: "Worker pool size per content type"},
		&cli.IntFlag{Name: "checkpoint-interval", Usage: "Successful items between checkpoint writes"},
		&cli.IntFlag{Name: "max-retries", Usage: "Max per-item retry attempts before DLQ"},
		&cli.BoolFlag{Name: "skip-if-modified", Usage: "Skip items whose destination copy is newer than the source"},
		&cli.BoolFlag{Name: "dry-run", Usage: "Run without issuing create/update calls"},
		&cli.BoolFlag{Name: "force", Usage: "Restore even when destination items already exist and are current"},
	)

	return &cli.Command{
		Name:  "restore",
		Usage: "Restore stored content into a Looker instance",
		Flags: flags,
		Action: func(c *cli.Context) error {
			return runRestore(c, c.Args().Slice(), false)
		},
		Subcommands: []*cli.Command{
			restoreResumeCommand(),
			restoreDLQCommand(),
			restoreStatusCommand(),
		},
	}
}

func restoreResumeCommand() *cli.Command {
	return &cli.Command{
		Name:      "resume",
		Usage:     "Resume the latest incomplete restoration checkpoint per content type, whichever session wrote it (the session-id argument is accepted but not used)",
		ArgsUsage: "[session-id]",
		Flags:     commonFlags(),
		Action: func(c *cli.Context) error {
			return runRestore(c, nil, true)
		},
	}
}

func runRestore(c *cli.Context, typeArgs []string, resume bool) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cleanup := signalContext()
	defer cleanup()

	contentTypes, err := parseContentTypes(typeArgs)
	if err != nil {
		return err
	}

	client, err := buildLookerClient(ctx, c, cfg)
	if err != nil {
		return err
	}

	dbPath, dbCleanup, err := resolveRestoreSource(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer dbCleanup()

	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open store at %s: %v", dbPath, err), exitConfigError)
	}
	defer st.Close()

	graph, err := depgraph.New()
	if err != nil {
		return cli.Exit(fmt.Sprintf("dependency graph: %v", err), exitConfigError)
	}

	baseURL := resolveString(c, "looker-base-url", cfg.Looker.BaseURL)
	mapper := idmapper.New(st, baseURL, baseURL)

	sessionID := uuid.NewString()
	run := &types.RunMeta{SessionID: sessionID, Kind: types.SessionKindRestoration, StartedAt: time.Now()}
	logger := newLogger(c, run)

	skipIfModified := c.Bool("skip-if-modified") && !c.Bool("force")

	orch := restoration.NewOrchestrator(st, client, mapper, graph, logger)
	summary, err := orch.Run(ctx, sessionID, restoration.Config{
		Types:              contentTypes,
		Workers:            resolveInt(c, "workers", cfg.Restore.Workers),
		CheckpointInterval: resolveInt(c, "checkpoint-interval", cfg.Restore.CheckpointInterval),
		SkipIfModified:     skipIfModified,
		DryRun:             c.Bool("dry-run"),
		Resume:             resume || c.Bool("resume"),
		MaxRetries:         resolveInt(c, "max-retries", cfg.Restore.MaxRetries),
	})

	if printErr := printOutput(c, summary); printErr != nil {
		return printErr
	}

	return exitForRestore(err, summary)
}

// resolveRestoreSource resolves the content store path a restore run
// reads from: the configured db path, or (with --from-snapshot) a
// temporary file the named snapshot is downloaded into first. The
// returned cleanup func removes that temp file; it is a no-op for the
// non-snapshot path.
func resolveRestoreSource(ctx context.Context, c *cli.Context, cfg *config.Config) (string, func(), error) {
	ref := c.String("from-snapshot")
	if ref == "" {
		path := resolveString(c, "db", firstNonEmpty(os.Getenv("LOOKERVAULT_DB_PATH"), cfg.Extraction.DBPath))
		if path == "" {
			path = "lookervault.db"
		}
		return path, func() {}, nil
	}

	sink, err := buildSink(ctx, c, cfg)
	if err != nil {
		return "", nil, err
	}

	tmp, err := os.CreateTemp("", "lookervault-restore-*.db")
	if err != nil {
		return "", nil, cli.Exit(fmt.Sprintf("create temp store file: %v", err), exitGeneralFailure)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := sink.Download(ctx, ref, tmp); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, cli.Exit(fmt.Sprintf("download snapshot %q: %v", ref, err), exitConnectionError)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, cli.Exit(fmt.Sprintf("close temp store file: %v", err), exitGeneralFailure)
	}
	return tmp.Name(), cleanup, nil
}

func exitForRestore(err error, summary restoration.Summary) error {
	if err != nil {
		if err == lverrors.Cancelled {
			return cli.Exit("restoration cancelled", exitUserCancelled)
		}
		var apiErr *lverrors.APIError
		if errors.As(err, &apiErr) {
			return cli.Exit(err.Error(), exitAPIError)
		}
		return cli.Exit(err.Error(), exitGeneralFailure)
	}
	if summary.Errors > 0 {
		return cli.Exit(fmt.Sprintf("restoration completed with %d item errors (see restore dlq list)", summary.Errors), exitGeneralFailure)
	}
	return nil
}

// restoreDLQCommand groups the list/show/retry/clear DLQ subcommands.
func restoreDLQCommand() *cli.Command {
	return &cli.Command{
		Name:  "dlq",
		Usage: "Inspect and manage the restoration dead letter queue",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List DLQ entries",
				Flags: append(commonFlags(),
					&cli.StringFlag{Name: "session-id", Usage: "Restrict to one session"},
					&cli.StringFlag{Name: "type", Usage: "Restrict to one content type"},
				),
				Action: dlqList,
			},
			{
				Name:      "show",
				Usage:     "Show one DLQ entry by id",
				ArgsUsage: "ID",
				Flags:     commonFlags(),
				Action:    dlqShow,
			},
			{
				Name:      "retry",
				Usage:     "Retry one DLQ entry by id, removing it from the queue on success",
				ArgsUsage: "ID",
				Flags:     commonFlags(),
				Action:    dlqRetry,
			},
			{
				Name:  "clear",
				Usage: "Delete DLQ entries matching the given filters",
				Flags: append(commonFlags(),
					&cli.StringFlag{Name: "session-id", Usage: "Restrict to one session"},
					&cli.StringFlag{Name: "type", Usage: "Restrict to one content type"},
				),
				Action: dlqClear,
			},
		},
	}
}

func dlqFilterFromFlags(c *cli.Context) (types.DLQFilter, error) {
	filter := types.DLQFilter{SessionID: c.String("session-id")}
	if name := c.String("type"); name != "" {
		ct, err := types.ParseContentType(name)
		if err != nil {
			return filter, cli.Exit(err.Error(), exitConfigError)
		}
		filter.ContentType = &ct
	}
	return filter, nil
}

func dlqList(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := openStore(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	filter, err := dlqFilterFromFlags(c)
	if err != nil {
		return err
	}
	entries, err := st.DLQList(ctx, filter)
	if err != nil {
		return cli.Exit(err.Error(), exitGeneralFailure)
	}
	return printOutput(c, entries)
}

func dlqShow(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	id, err := parseDLQID(c)
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := openStore(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	entry, err := st.DLQGet(ctx, id)
	if err != nil {
		return cli.Exit(err.Error(), exitGeneralFailure)
	}
	if entry == nil {
		return cli.Exit(fmt.Sprintf("no dlq entry with id %d", id), exitGeneralFailure)
	}
	return printOutput(c, entry)
}

// dlqRetry replays a single DLQ entry's stored payload through Restorer,
// removing it from the queue on success and leaving it unchanged on repeat
// failure (its retry_count is not bumped).
func dlqRetry(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	id, err := parseDLQID(c)
	if err != nil {
		return err
	}

	ctx, cleanup := signalContext()
	defer cleanup()

	st, err := openStore(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	entry, err := st.DLQGet(ctx, id)
	if err != nil {
		return cli.Exit(err.Error(), exitGeneralFailure)
	}
	if entry == nil {
		return cli.Exit(fmt.Sprintf("no dlq entry with id %d", id), exitGeneralFailure)
	}

	client, err := buildLookerClient(ctx, c, cfg)
	if err != nil {
		return err
	}
	baseURL := resolveString(c, "looker-base-url", cfg.Looker.BaseURL)
	mapper := idmapper.New(st, baseURL, baseURL)
	restorer := restoration.New(client, mapper)

	item := &types.ContentItem{
		ID:          entry.ContentID,
		ContentType: entry.ContentType,
		ContentData: entry.ContentData,
	}
	result, restoreErr := restorer.Restore(ctx, item, false)
	if restoreErr != nil {
		return cli.Exit(fmt.Sprintf("retry failed: %v", restoreErr), exitGeneralFailure)
	}
	if err := st.DLQRemove(ctx, entry.SessionID, entry.ContentID); err != nil {
		return cli.Exit(err.Error(), exitGeneralFailure)
	}
	return printOutput(c, result)
}

func dlqClear(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := openStore(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	filter, err := dlqFilterFromFlags(c)
	if err != nil {
		return err
	}
	n, err := st.DLQClear(ctx, filter)
	if err != nil {
		return cli.Exit(err.Error(), exitGeneralFailure)
	}
	fmt.Printf("cleared %d dlq entries\n", n)
	return nil
}

func parseDLQID(c *cli.Context) (int64, error) {
	arg := c.Args().First()
	if arg == "" {
		return 0, cli.Exit("a DLQ entry id is required", exitConfigError)
	}
	var id int64
	if _, err := fmt.Sscanf(arg, "%d", &id); err != nil {
		return 0, cli.Exit(fmt.Sprintf("invalid dlq entry id %q", arg), exitConfigError)
	}
	return id, nil
}

// restoreStatusCommand reports session/checkpoint/dlq state for one
// session-id or, with --all, every recorded session.
func restoreStatusCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.BoolFlag{Name: "all", Usage: "Show every recorded session, not just one"},
	)
	return &cli.Command{
		Name:      "status",
		Usage:     "Show extraction/restoration session status",
		ArgsUsage: "[session-id]",
		Flags:     flags,
		Action:    restoreStatus,
	}
}

// sessionStatus is the CLI-facing status report for one session.
type sessionStatus struct {
	Session     *types.Session
	Checkpoints []*types.Checkpoint
	DLQCount    int
}

func restoreStatus(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := openStore(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if c.Bool("all") {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return cli.Exit(err.Error(), exitGeneralFailure)
		}
		statuses := make([]*sessionStatus, 0, len(sessions))
		for _, sess := range sessions {
			s, err := buildSessionStatus(ctx, st, sess)
			if err != nil {
				return cli.Exit(err.Error(), exitGeneralFailure)
			}
			statuses = append(statuses, s)
		}
		return printOutput(c, statuses)
	}

	sessionID := c.Args().First()
	if sessionID == "" {
		return cli.Exit("a session-id is required, or pass --all", exitConfigError)
	}
	sess, err := st.GetSession(ctx, sessionID)
	if err != nil {
		return cli.Exit(err.Error(), exitGeneralFailure)
	}
	if sess == nil {
		return cli.Exit(fmt.Sprintf("no session %q", sessionID), exitGeneralFailure)
	}
	status, err := buildSessionStatus(ctx, st, sess)
	if err != nil {
		return cli.Exit(err.Error(), exitGeneralFailure)
	}
	return printOutput(c, status)
}

func buildSessionStatus(ctx context.Context, st *store.Store, sess *types.Session) (*sessionStatus, error) {
	checkpoints, err := st.ListCheckpointsForSession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	dlqEntries, err := st.DLQList(ctx, types.DLQFilter{SessionID: sess.ID})
	if err != nil {
		return nil, err
	}
	return &sessionStatus{Session: sess, Checkpoints: checkpoints, DLQCount: len(dlqEntries)}, nil
}
