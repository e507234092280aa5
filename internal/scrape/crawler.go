package scrape

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/profilegrab/internal/metrics"
)

// Defaults for the infinite-scroll loop.
const (
	DefaultScrollStepPx        = 15000
	DefaultScrollDelay         = 3 * time.Second
	DefaultMaxScrollIterations = 200
	DefaultDebugFile           = "debug_page.html"
)

// Config controls one profile crawl.
type Config struct {
	ProfileURL          string
	OutputRoot          string
	DebugFile           string
	ScrollStepPx        float64
	ScrollDelay         time.Duration
	StableChecks        int
	MaxScrollIterations int
	LinkSelectors       []string
	Processor           ProcessorConfig
}

// Crawler walks a profile page and dispatches every post to a Processor.
type Crawler struct {
	cfg        Config
	launcher   Launcher
	gate       Gate
	downloader Downloader
	clock      Clock
	logger     *zap.Logger
}

// NewCrawler constructs a Crawler.
func NewCrawler(
	cfg Config,
	launcher Launcher,
	gate Gate,
	downloader Downloader,
	clock Clock,
	logger *zap.Logger,
) *Crawler {
	if cfg.ScrollStepPx <= 0 {
		cfg.ScrollStepPx = DefaultScrollStepPx
	}
	if cfg.StableChecks <= 0 {
		cfg.StableChecks = DefaultStableChecks
	}
	if cfg.DebugFile == "" {
		cfg.DebugFile = DefaultDebugFile
	}
	if len(cfg.LinkSelectors) == 0 {
		cfg.LinkSelectors = DefaultLinkSelectors
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		cfg:        cfg,
		launcher:   launcher,
		gate:       gate,
		downloader: downloader,
		clock:      clock,
		logger:     logger,
	}
}

// Run executes the crawl: launch, navigate, manual gate, scroll, extract
// links and process each post. Per-post failures are absorbed; anything
// else aborts the run with an error.
func (c *Crawler) Run(ctx context.Context) (Summary, error) {
	layout := NewLayout(c.cfg.OutputRoot, c.cfg.ProfileURL, c.clock.Now())
	summary := Summary{Username: layout.Username, Root: layout.Root}
	if err := layout.Prepare(); err != nil {
		return summary, err
	}
	logger := c.logger.With(zap.String("username", layout.Username))

	logger.Info("launching browser")
	browser, err := c.launcher.Launch(ctx)
	if err != nil {
		return summary, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			logger.Warn("close browser failed", zap.Error(cerr))
		}
	}()

	profile, err := browser.NewPage(ctx, PageOptions{})
	if err != nil {
		return summary, fmt.Errorf("open profile page: %w", err)
	}

	logger.Info("navigating to profile", zap.String("url", c.cfg.ProfileURL))
	if err := profile.Navigate(ctx, c.cfg.ProfileURL); err != nil {
		return summary, fmt.Errorf("navigate to profile: %w", err)
	}

	if err := c.gate.Wait(ctx); err != nil {
		return summary, fmt.Errorf("manual gate: %w", err)
	}

	iterations, err := c.scroll(ctx, profile, logger)
	summary.ScrollIterations = iterations
	metrics.SetScrollIterations(iterations)
	switch {
	case errors.Is(err, ErrScrollCapReached):
		summary.Partial = true
		logger.Warn("scroll cap reached; continuing with a partial crawl", zap.Int("iterations", iterations))
	case err != nil:
		return summary, err
	}

	logger.Info("extracting links")
	hrefs, err := profile.Hrefs(ctx, c.cfg.LinkSelectors)
	if err != nil {
		return summary, fmt.Errorf("extract links: %w", err)
	}
	summary.Links = CollectLinks(hrefs)
	metrics.SetLinksFound(len(summary.Links))
	logger.Info("found unique links", zap.Int("count", len(summary.Links)))

	if len(summary.Links) == 0 {
		path, err := c.dumpDebugPage(ctx, profile)
		if err != nil {
			return summary, err
		}
		summary.DebugFile = path
		logger.Warn("no post links found; dumped page content", zap.String("path", path))
	}

	processor := NewProcessor(browser, c.downloader, c.clock, c.cfg.Processor, logger.Named("post"))
	for i, link := range summary.Links {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("crawl canceled: %w", err)
		}
		logger.Info("processing post", zap.Int("n", i+1), zap.Int("total", len(summary.Links)))
		summary.Posts = append(summary.Posts, processor.Process(ctx, link, layout.FolderFor(link.Kind), i))
	}

	logger.Info("scraping completed")
	return summary, nil
}

// scroll wheels the profile page until its height is stable or the
// iteration cap is reached.
func (c *Crawler) scroll(ctx context.Context, page Page, logger *zap.Logger) (int, error) {
	logger.Info("starting infinite scroll")
	tracker := NewScrollTracker(c.cfg.StableChecks)
	iterations := 0
	for {
		if c.cfg.MaxScrollIterations > 0 && iterations >= c.cfg.MaxScrollIterations {
			return iterations, ErrScrollCapReached
		}
		if err := page.Wheel(ctx, c.cfg.ScrollStepPx); err != nil {
			return iterations, fmt.Errorf("scroll: %w", err)
		}
		if err := sleep(ctx, c.cfg.ScrollDelay); err != nil {
			return iterations, err
		}
		height, err := page.ScrollHeight(ctx)
		if err != nil {
			return iterations, fmt.Errorf("read scroll height: %w", err)
		}
		iterations++
		if tracker.Observe(height) {
			return iterations, nil
		}
		if tracker.Unchanged() == 0 {
			logger.Debug("scrolling", zap.Int64("height", height))
		}
	}
}

func (c *Crawler) dumpDebugPage(ctx context.Context, page Page) (string, error) {
	markup, err := page.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("read profile markup: %w", err)
	}
	path := c.cfg.DebugFile
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create debug dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(markup), 0o600); err != nil {
		return "", fmt.Errorf("write debug page %s: %w", path, err)
	}
	return path, nil
}
