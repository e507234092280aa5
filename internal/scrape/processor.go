package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/profilegrab/internal/metrics"
)

// ProcessorConfig holds the settle heuristics used on post pages.
type ProcessorConfig struct {
	VideoSettle time.Duration
	PhotoSettle time.Duration
	IdleTimeout time.Duration
	MinImagePx  int
}

// Processor opens one post at a time, resolves its media and hands each
// resource to the Downloader.
type Processor struct {
	browser    Browser
	downloader Downloader
	resolver   *Resolver
	clock      Clock
	cfg        ProcessorConfig
	logger     *zap.Logger
}

// NewProcessor constructs a Processor bound to a running browser session.
func NewProcessor(
	browser Browser,
	downloader Downloader,
	clock Clock,
	cfg ProcessorConfig,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		browser:    browser,
		downloader: downloader,
		resolver:   NewResolver(cfg.MinImagePx, logger),
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Process handles a single post link. Failures are logged and reported,
// never propagated, so one bad post cannot stop the crawl.
func (p *Processor) Process(ctx context.Context, link PostLink, folder string, index int) (report PostReport) {
	report = PostReport{Link: link, Index: index}
	logger := p.logger.With(zap.String("url", link.URL), zap.Int("index", index), zap.String("kind", string(link.Kind)))

	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("post processing panic: %v", r)
			logger.Error("post processing panicked", zap.Any("panic", r))
		}
		metrics.ObservePost(string(link.Kind), postResult(report))
	}()

	var err error
	switch link.Kind {
	case PostKindVideo:
		err = p.processVideo(ctx, link, folder, index, &report, logger)
	case PostKindPhoto:
		err = p.processPhoto(ctx, link, folder, index, &report, logger)
	default:
		err = fmt.Errorf("unsupported post kind %q", link.Kind)
	}
	if err != nil {
		report.Err = err
		if errors.Is(err, ErrNoMedia) {
			logger.Warn("could not find media content")
		} else {
			logger.Error("error processing post", zap.Error(err))
		}
	}
	return report
}

func (p *Processor) processVideo(
	ctx context.Context,
	link PostLink,
	folder string,
	index int,
	report *PostReport,
	logger *zap.Logger,
) error {
	page, err := p.browser.NewPage(ctx, PageOptions{ResponseFilter: IsVideoResponse})
	if err != nil {
		return fmt.Errorf("open video page: %w", err)
	}
	defer p.closePage(page, logger)

	logger.Info("opening video page")
	if err := page.Navigate(ctx, link.URL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := sleep(ctx, p.cfg.VideoSettle); err != nil {
		return err
	}

	mediaURL, strategy, err := p.resolver.ResolveVideo(ctx, page)
	if err != nil {
		return err
	}
	report.Strategy = strategy
	metrics.ObserveResolution(string(strategy))
	logger.Info("resolved video url", zap.String("strategy", string(strategy)))

	cookies, userAgent, err := p.sessionContext(ctx, page)
	if err != nil {
		return err
	}
	result := p.downloader.Fetch(ctx, DownloadRequest{
		URL:       mediaURL,
		Dir:       folder,
		Filename:  VideoFilename(index, p.clock.Now()),
		Cookies:   cookies,
		UserAgent: userAgent,
	})
	report.Files = append(report.Files, result)
	return nil
}

func (p *Processor) processPhoto(
	ctx context.Context,
	link PostLink,
	folder string,
	index int,
	report *PostReport,
	logger *zap.Logger,
) error {
	page, err := p.browser.NewPage(ctx, PageOptions{})
	if err != nil {
		return fmt.Errorf("open photo page: %w", err)
	}
	defer p.closePage(page, logger)

	logger.Info("opening photo page")
	if err := page.Navigate(ctx, link.URL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitNetworkIdle(ctx, p.cfg.IdleTimeout); err != nil {
		if ctx.Err() != nil {
			return err
		}
		logger.Warn("network idle not reached; collecting images anyway", zap.Error(err))
	}
	if err := sleep(ctx, p.cfg.PhotoSettle); err != nil {
		return err
	}

	sources, err := p.resolver.ResolveImages(ctx, page)
	if err != nil {
		return err
	}
	report.Strategy = StrategyImages
	logger.Info("found potential images", zap.Int("count", len(sources)))
	if len(sources) == 0 {
		return nil
	}
	metrics.ObserveResolution(string(StrategyImages))

	cookies, userAgent, err := p.sessionContext(ctx, page)
	if err != nil {
		return err
	}
	for j, src := range sources {
		result := p.downloader.Fetch(ctx, DownloadRequest{
			URL:       src,
			Dir:       folder,
			Filename:  ImageFilename(index, j, p.clock.Now()),
			Cookies:   cookies,
			UserAgent: userAgent,
		})
		report.Files = append(report.Files, result)
	}
	return nil
}

// sessionContext captures the cookie jar and user-agent that downloads must
// present to look like the browser.
func (p *Processor) sessionContext(ctx context.Context, page Page) ([]Cookie, string, error) {
	cookies, err := p.browser.Cookies(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("read cookies: %w", err)
	}
	userAgent, err := page.UserAgent(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("read user agent: %w", err)
	}
	return cookies, userAgent, nil
}

func (p *Processor) closePage(page Page, logger *zap.Logger) {
	if err := page.Close(); err != nil {
		logger.Warn("close page failed", zap.Error(err))
	}
}

func postResult(report PostReport) string {
	switch {
	case errors.Is(report.Err, ErrNoMedia):
		return "no_media"
	case report.Err != nil:
		return "error"
	case len(report.Files) == 0:
		return "empty"
	default:
		return "downloaded"
	}
}
