package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/hamed0406/upmon/internal/config"
)

func runPreflight(cmd *cobra.Command, args []string) error {
	if n := preflight(loadConfig(), cmd.OutOrStdout(), cmd.ErrOrStderr()); n > 0 {
		return fmt.Errorf("preflight failed with %d problem(s)", n)
	}
	return nil
}

// preflight prints one line per check and returns the number of failures.
func preflight(cfg config.Config, out, errOut io.Writer) int {
	failures := 0
	fail := func(msg string) {
		fmt.Fprintln(errOut, "✖", msg)
		failures++
	}
	warn := func(msg string) { fmt.Fprintln(errOut, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(out, "✔", msg) }

	if err := cfg.Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			fail(e.Error())
		}
	} else {
		ok(fmt.Sprintf("%d API key(s) configured", len(cfg.APIKeys)))
	}

	for _, k := range cfg.APIKeys {
		if len(k) < 16 {
			warn("an API key is shorter than 16 characters")
			break
		}
	}

	ok("API_ADDR=" + cfg.Addr)

	switch cfg.DatabaseDriver {
	case config.DriverMemory:
		warn("DATABASE_URL empty; history and status are kept in memory only.")
	default:
		ok("database driver " + cfg.DatabaseDriver)
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; any origin may call the API from a browser.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if cfg.SlackWebhookURL == "" {
		warn("SLACK_WEBHOOK_URL empty; alerts only go to the log.")
	} else {
		ok("Slack alerting enabled")
	}

	if dir := filepath.Dir(cfg.CachePath); dir != "." {
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			fail("cache directory " + dir + " does not exist")
		}
	}

	file, err := config.LoadMonitors(cfg.MonitorsPath)
	if err != nil {
		fail(err.Error())
	} else {
		specs, err := file.Resolve()
		switch {
		case err != nil:
			for _, e := range multierr.Errors(err) {
				fail(e.Error())
			}
		case len(specs) == 0:
			warn(cfg.MonitorsPath + " defines no monitors; the scheduler will idle.")
		default:
			ok(fmt.Sprintf("%s: %d monitors", cfg.MonitorsPath, len(specs)))
		}
	}

	if failures == 0 {
		ok("preflight passed")
	}
	return failures
}
