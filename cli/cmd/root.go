// Package cmd wires urfave/cli/v2 commands onto the core extraction,
// restoration, and snapshot packages. Grounded on the teacher's
// cmd/quarry/main.go + cli/cmd/run.go: CLI flag > environment > config
// file > built-in default precedence via resolveString/resolveInt/etc
// helpers keyed on cli.Context.IsSet, and cli.Exit(msg, code) for every
// validation failure so exit codes survive urfave's error plumbing.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/lookervault/lookervault/config"
	"github.com/lookervault/lookervault/lookerclient"
	"github.com/lookervault/lookervault/log"
	"github.com/lookervault/lookervault/ratelimiter"
	"github.com/lookervault/lookervault/store"
	"github.com/lookervault/lookervault/types"
)

// Exit codes per spec §6's CLI surface.
const (
	exitSuccess         = 0
	exitGeneralFailure  = 1
	exitConfigError     = 2
	exitConnectionError = 3
	exitAPIError        = 4
	exitUserCancelled   = 130
)

func resolveString(c *cli.Context, flag string, configVal string) string {
	if c.IsSet(flag) {
		return c.String(flag)
	}
	if configVal != "" {
		return configVal
	}
	return c.String(flag)
}

func resolveInt(c *cli.Context, flag string, configVal int) int {
	if c.IsSet(flag) {
		return c.Int(flag)
	}
	if configVal != 0 {
		return configVal
	}
	return c.Int(flag)
}

func resolveBool(c *cli.Context, flag string, configVal bool) bool {
	if c.IsSet(flag) {
		return c.Bool(flag)
	}
	if configVal {
		return configVal
	}
	return c.Bool(flag)
}

func resolveStringSlice(c *cli.Context, flag string, configVal []string) []string {
	if c.IsSet(flag) {
		return c.StringSlice(flag)
	}
	if len(configVal) > 0 {
		return configVal
	}
	return c.StringSlice(flag)
}

// loadConfig reads --config (falling back to LOOKERVAULT_CONFIG), applying
// built-in defaults to every still-zero field.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		path = os.Getenv("LOOKERVAULT_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("failed to load config: %v", err), exitConfigError)
	}
	cfg.FillDefaults()
	return cfg, nil
}

// parseContentTypes resolves content type names (e.g. {"dashboard", "look"})
// into ContentTypes, one name per element; elements are not split on
// commas, and empty elements are skipped. An empty csv returns every
// content type, per the extract/restore "all types" default.
func parseContentTypes(csv []string) ([]types.ContentType, error) {
	if len(csv) == 0 {
		return types.AllContentTypes, nil
	}
	out := make([]types.ContentType, 0, len(csv))
	for _, name := range csv {
		if name == "" {
			continue
		}
		ct, err := types.ParseContentType(name)
		if err != nil {
			return nil, cli.Exit(err.Error(), exitConfigError)
		}
		out = append(out, ct)
	}
	return out, nil
}

// buildLookerClient resolves Looker credentials (direct token, or client
// id/secret exchanged via Login) and constructs a shared Client/RateLimiter
// pair for one CLI command invocation.
func buildLookerClient(ctx context.Context, c *cli.Context, cfg *config.Config) (*lookerclient.Client, error) {
	baseURL := resolveString(c, "looker-base-url", firstNonEmpty(os.Getenv("LOOKER_BASE_URL"), cfg.Looker.BaseURL))
	if baseURL == "" {
		return nil, cli.Exit("looker base URL is required (--looker-base-url, LOOKER_BASE_URL, or config looker.base_url)", exitConfigError)
	}

	token := os.Getenv("LOOKER_TOKEN")
	if token == "" {
		clientID := firstNonEmpty(os.Getenv("LOOKER_CLIENT_ID"), cfg.Looker.ClientID)
		clientSecret := firstNonEmpty(os.Getenv("LOOKER_CLIENT_SECRET"), cfg.Looker.ClientSecret)
		if clientID == "" || clientSecret == "" {
			return nil, cli.Exit("Looker credentials required: set LOOKER_TOKEN, or both LOOKER_CLIENT_ID/LOOKER_CLIENT_SECRET (or their config equivalents)", exitConfigError)
		}
		tok, err := lookerclient.Login(ctx, baseURL, clientID, clientSecret, nil)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("looker login failed: %v", err), exitConnectionError)
		}
		token = tok
	}

	rl := ratelimiter.New(ratelimiter.Config{
		PerMinute: resolveInt(c, "rate-limit-per-minute", cfg.Parallel.RateLimitPerMinute),
		PerSecond: resolveInt(c, "rate-limit-per-second", cfg.Parallel.RateLimitPerSecond),
	})

	return lookerclient.New(lookerclient.Config{
		BaseURL:     baseURL,
		Token:       token,
		RateLimiter: rl,
	}), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// openStore opens the content store at the resolved db path.
func openStore(ctx context.Context, c *cli.Context, cfg *config.Config) (*store.Store, error) {
	dbPath := resolveString(c, "db", firstNonEmpty(os.Getenv("LOOKERVAULT_DB_PATH"), cfg.Extraction.DBPath))
	if dbPath == "" {
		dbPath = "lookervault.db"
	}
	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("failed to open store at %s: %v", dbPath, err), exitConfigError)
	}
	return st, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, alongside a
// cleanup func callers should defer.
func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// newLogger builds a core logger for one session, or a silent nil logger
// when --quiet is set.
func newLogger(c *cli.Context, run *types.RunMeta) *log.Logger {
	if c.Bool("quiet") {
		return nil
	}
	return log.New(run)
}

// printOutput renders v as a JSON or table document depending on
// --output, defaulting to table. Table rendering is intentionally
// minimal: one line per top-level field, since detailed rendering is an
// out-of-scope CLI concern.
func printOutput(c *cli.Context, v any) error {
	format := c.String("output")
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return printTable(os.Stdout, v)
}
