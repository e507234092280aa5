// Package browser implements scrape.Browser on top of chromedp. One Chrome
// process backs a run; every scrape.Page is a tab in that process.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/profilegrab/internal/scrape"
)

// ErrClosed is returned by operations on a closed browser.
var ErrClosed = errors.New("browser closed")

// DefaultUserAgent is the desktop user-agent presented by the browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls how Chrome is launched.
type Config struct {
	UserAgent string
	// Headless is off by default: the operator has to see the window to
	// solve challenges.
	Headless bool
	ExecPath string
	// RemoteURL attaches to an already running Chrome through its DevTools
	// websocket instead of starting one.
	RemoteURL        string
	ResponseLogLimit int
}

// Launcher starts Chrome sessions; it satisfies scrape.Launcher.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

// NewLauncher builds a Launcher.
func NewLauncher(cfg Config, logger *zap.Logger) *Launcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger}
}

// Launch starts a browser and waits for it to accept commands.
func (l *Launcher) Launch(ctx context.Context) (scrape.Browser, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if l.cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, l.cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocatorOptions(l.cfg)...)
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	l.logger.Info("browser started", zap.Bool("headless", l.cfg.Headless), zap.Bool("remote", l.cfg.RemoteURL != ""))
	return &Browser{
		cfg:           l.cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        l.logger,
	}, nil
}

// allocatorOptions starts from chromedp's defaults and strips the switches
// that make the automation obvious to the site.
func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("hide-scrollbars", cfg.Headless),
		chromedp.Flag("mute-audio", cfg.Headless),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Browser is a running Chrome session.
type Browser struct {
	cfg           Config
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewPage opens a tab. The response filter, if any, is attached before the
// tab is created so no early responses are missed.
func (b *Browser) NewPage(ctx context.Context, opts scrape.PageOptions) (scrape.Page, error) {
	if b.browserCtx.Err() != nil {
		return nil, ErrClosed
	}
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	p := &Page{
		ctx:    tabCtx,
		cancel: tabCancel,
		log:    scrape.NewResponseLog(b.cfg.ResponseLogLimit),
		filter: opts.ResponseFilter,
		idle:   newIdleSignal(),
		logger: b.logger,
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)

	// The first Run attaches the target and its event loop lives on the
	// context it is given, so it must be the tab context itself.
	stop := forwardCancel(ctx, tabCancel)
	err := chromedp.Run(tabCtx, pageSetupActions()...)
	stop()
	if err != nil {
		tabCancel()
		if ctx != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("open tab: %w: %w", ctx.Err(), err)
		}
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		// A page target's main frame shares the target's ID.
		p.idle.setMainFrame(cdp.FrameID(c.Target.TargetID))
	}
	return p, nil
}

// Cookies returns every cookie in the browser context, across domains.
func (b *Browser) Cookies(ctx context.Context) ([]scrape.Cookie, error) {
	if b.browserCtx.Err() != nil {
		return nil, ErrClosed
	}
	c := chromedp.FromContext(b.browserCtx)
	if c == nil || c.Browser == nil {
		return nil, ErrClosed
	}
	runCtx, cancel := context.WithCancel(cdp.WithExecutor(b.browserCtx, c.Browser))
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	cookies, err := storage.GetCookies().Do(runCtx)
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}
	return toCookies(cookies), nil
}

// Close shuts the browser down. It is safe to call more than once.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		if err := chromedp.Cancel(b.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
			b.closeErr = fmt.Errorf("close browser: %w", err)
		}
		b.browserCancel()
		b.allocCancel()
		b.logger.Info("browser closed")
	})
	return b.closeErr
}

func toCookies(in []*network.Cookie) []scrape.Cookie {
	out := make([]scrape.Cookie, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		out = append(out, scrape.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return out
}

// forwardCancel cancels a chromedp run context when the caller's context is
// done, without tying the tab's lifetime to the caller.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
