// Package cmd defines and implements the CLI commands for the profilegrab executable.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/profilegrab/internal/config"
)

var (
	cfgFile string
	envFile string
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profilegrab",
		Short: "Archive the videos and photo galleries of a public profile.",
		Long: `profilegrab drives a real Chrome window through a profile page, scrolls
until every post is loaded and downloads each post's media into a dated
session folder. A human operator clears any challenge page before the crawl
starts.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file with PROFILEGRAB_* overrides")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running
// command; any command error exits non-zero.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
