package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/profilegrab/internal/browser"
	"github.com/JakeFAU/profilegrab/internal/clock/system"
	"github.com/JakeFAU/profilegrab/internal/config"
	"github.com/JakeFAU/profilegrab/internal/fetcher/media"
	"github.com/JakeFAU/profilegrab/internal/gate"
	"github.com/JakeFAU/profilegrab/internal/id/uuid"
	"github.com/JakeFAU/profilegrab/internal/logging"
	"github.com/JakeFAU/profilegrab/internal/metrics"
	"github.com/JakeFAU/profilegrab/internal/scrape"
)

const metricsShutdownTimeout = 5 * time.Second

// scrapeFlagBindings maps config keys to the scrape command's flags.
var scrapeFlagBindings = map[string]string{
	"output.root":               "output",
	"scroll.delay":              "scroll-delay",
	"download.small_file_bytes": "small-file-bytes",
	"metrics.addr":              "metrics-addr",
	"browser.headless":          "headless",
	"browser.remote_url":        "remote-url",
}

// newLauncher is a variable so tests can swap in a fake browser.
var newLauncher = func(cfg browser.Config, logger *zap.Logger) scrape.Launcher {
	return browser.NewLauncher(cfg, logger)
}

// newLogger is a variable so tests can capture output.
var newLogger = logging.New

// newScrapeCmd creates the 'scrape' subcommand.
func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [profile-url]",
		Short: "Download every video and photo post of a profile",
		Long: `Opens the profile in Chrome, waits for the operator to confirm the page is
visible, scrolls until no new posts load and downloads each post's media.
The profile URL may also come from the config file or PROFILEGRAB_PROFILE_URL.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScrapeCommand,
	}

	flags := cmd.Flags()
	flags.String("output", "", "root folder for session output")
	flags.Duration("scroll-delay", 0, "pause after each scroll step")
	flags.Int64("small-file-bytes", 0, "warn when a download is smaller than this many bytes")
	flags.Bool("no-gate", false, "skip the manual confirmation step")
	flags.String("metrics-addr", "", "serve /metrics and /healthz on this address during the run")
	flags.Bool("headless", false, "run Chrome without a window")
	flags.String("remote-url", "", "attach to a running Chrome at this DevTools websocket URL")
	return cmd
}

func runScrapeCommand(cmd *cobra.Command, args []string) error {
	var profileURL string
	if len(args) > 0 {
		profileURL = args[0]
	}

	cfg, err := config.Load(cfgFile,
		config.WithEnvFile(envFile),
		config.WithFlags(cmd.Flags(), scrapeFlagBindings),
		config.WithOverride("profile.url", profileURL),
	)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if noGate, _ := cmd.Flags().GetBool("no-gate"); noGate {
		cfg.Gate.Enabled = false
	}

	base, err := newLogger(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer base.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(base)

	runID, err := uuid.New().NewID()
	if err != nil {
		return err
	}
	logger := logging.ForRun(base, runID, cfg.Profile.URL)

	metrics.Init()
	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Start(cfg.Metrics.Addr, logger.Named("metrics"))
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if serr := srv.Shutdown(ctx); serr != nil {
				logger.Warn("metrics server shutdown failed", zap.Error(serr))
			}
		}()
	}

	var confirm scrape.Gate = gate.Disabled{Logger: logger.Named("gate")}
	if cfg.Gate.Enabled {
		confirm = gate.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout(), logger.Named("gate"))
	}

	crawler := scrape.NewCrawler(
		cfg.CrawlerConfig(),
		newLauncher(cfg.LauncherConfig(), logger.Named("browser")),
		confirm,
		media.New(cfg.FetcherConfig(), logger.Named("download")),
		system.New(),
		logger.Named("crawler"),
	)

	summary, err := crawler.Run(cmd.Context())
	logSummary(logger, summary)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("scrape interrupted")
		}
		return fmt.Errorf("scrape %s: %w", cfg.Profile.URL, err)
	}
	return nil
}

func logSummary(logger *zap.Logger, summary scrape.Summary) {
	counts := summary.Counts()
	failedPosts := 0
	for _, post := range summary.Posts {
		if post.Err != nil {
			failedPosts++
		}
	}
	logger.Info("scrape summary",
		zap.String("folder", summary.Root),
		zap.Int("scroll_iterations", summary.ScrollIterations),
		zap.Bool("partial", summary.Partial),
		zap.Int("links", len(summary.Links)),
		zap.Int("posts_failed", failedPosts),
		zap.Int("downloads_ok", counts[scrape.OutcomeOK]),
		zap.Int("downloads_small", counts[scrape.OutcomeSmall]),
		zap.Int("downloads_failed", counts[scrape.OutcomeFailed]),
	)
}
