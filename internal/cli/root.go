package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"RepoSentinel/internal/app"
	"RepoSentinel/internal/config"
	"RepoSentinel/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "reposentinel",
	Short:         "RepoSentinel - GitHub repository activity digests",
	Long:          "RepoSentinel tracks subscribed GitHub repositories, captures their daily activity into snapshot files, and ships Markdown digests to subscribers.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute wires subcommands and runs the CLI.
func Execute() error {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(unsubscribeCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(processAllCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(hackernewsCmd)
	rootCmd.AddCommand(schedulerCmd)
	rootCmd.AddCommand(daemonCmd)

	return rootCmd.Execute()
}

// newApp loads configuration and builds the wired application. Commands
// that talk to the upstream API additionally require a token.
func newApp(requireToken bool) (*app.Application, error) {
	cfg := config.Load()
	if requireToken {
		if err := cfg.ValidateForProcessing(); err != nil {
			return nil, err
		}
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.File)
	return app.New(cfg, logger)
}

// parseDay accepts YYYY-MM-DD or RFC 3339 and normalizes to UTC.
func parseDay(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want YYYY-MM-DD or RFC 3339)", value)
	}
	return t.UTC(), nil
}
