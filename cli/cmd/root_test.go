package cmd

import (
	"flag"
	"testing"

	"github.com/urfave/cli/v2"
)

// newTestStringContext builds a minimal *cli.Context with one string flag,
// optionally marked as explicitly set via c.IsSet.
func newTestStringContext(t *testing.T, name, value string, set bool) *cli.Context {
	t.Helper()
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.StringFlag{Name: name}}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String(name, "", "")
	if set {
		if err := fs.Set(name, value); err != nil {
			t.Fatalf("fs.Set: %v", err)
		}
	}
	return cli.NewContext(app, fs, nil)
}

func newTestIntContext(t *testing.T, name string, value int, set bool) *cli.Context {
	t.Helper()
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.IntFlag{Name: name}}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int(name, 0, "")
	if set {
		if err := fs.Set(name, intToString(value)); err != nil {
			t.Fatalf("fs.Set: %v", err)
		}
	}
	return cli.NewContext(app, fs, nil)
}

func intToString(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func TestResolveStringCLIWins(t *testing.T) {
	c := newTestStringContext(t, "base-url", "cli-val", true)
	if got := resolveString(c, "base-url", "config-val"); got != "cli-val" {
		t.Fatalf("expected cli-val, got %q", got)
	}
}

func TestResolveStringFallsBackToConfig(t *testing.T) {
	c := newTestStringContext(t, "base-url", "", false)
	if got := resolveString(c, "base-url", "config-val"); got != "config-val" {
		t.Fatalf("expected config-val, got %q", got)
	}
}

func TestResolveStringFallsBackToFlagDefault(t *testing.T) {
	c := newTestStringContext(t, "base-url", "", false)
	if got := resolveString(c, "base-url", ""); got != "" {
		t.Fatalf("expected empty default, got %q", got)
	}
}

func TestResolveIntCLIWins(t *testing.T) {
	c := newTestIntContext(t, "workers", 4, true)
	if got := resolveInt(c, "workers", 8); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func TestResolveIntFallsBackToConfig(t *testing.T) {
	c := newTestIntContext(t, "workers", 0, false)
	if got := resolveInt(c, "workers", 8); got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
}
