package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/profilegrab/internal/scrape"
)

const (
	networkIdleEvent   = "networkIdle"
	lifecycleInitEvent = "init"
	defaultIdleTimeout = 30 * time.Second

	// Wheel events are dispatched at a point inside the viewport.
	wheelX = 400
	wheelY = 400
)

const (
	scrollHeightJS = `document.body.scrollHeight`
	userAgentJS    = `navigator.userAgent`
	videoSrcJS     = `(() => { const v = document.querySelector('video'); return v ? (v.currentSrc || v.src || '') : ''; })()`
	imagesJS       = `Array.from(document.querySelectorAll('img')).map(img => ({src: img.src, width: img.naturalWidth, height: img.naturalHeight}))`
	hrefsJSFormat  = `(() => {
	const selectors = %s;
	let found = [];
	for (const sel of selectors) {
		const elements = document.querySelectorAll(sel);
		if (elements.length > 0) {
			found = found.concat(Array.from(elements).map(a => a.href).filter(Boolean));
		}
	}
	return found;
})()`
)

// Page is a chromedp tab; it satisfies scrape.Page.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *scrape.ResponseLog
	filter func(scrape.ResponseRecord) bool
	idle   *idleSignal
	logger *zap.Logger
}

func pageSetupActions() []chromedp.Action {
	return []chromedp.Action{
		network.Enable(),
		cdppage.SetLifecycleEventsEnabled(true),
	}
}

// onEvent runs on chromedp's event goroutine and must not block.
func (p *Page) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if p.filter == nil {
			return
		}
		rec, ok := responseRecordFrom(e)
		if !ok || !p.filter(rec) {
			return
		}
		if !p.log.Append(rec) {
			p.logger.Debug("response log full; dropping entry", zap.String("url", rec.URL))
		}
	case *cdppage.EventLifecycleEvent:
		p.idle.observe(e)
	}
}

func responseRecordFrom(e *network.EventResponseReceived) (scrape.ResponseRecord, bool) {
	if e == nil || e.Response == nil {
		return scrape.ResponseRecord{}, false
	}
	mime := e.Response.MimeType
	if mime == "" {
		mime = headerValue(e.Response.Headers, "content-type")
	}
	return scrape.ResponseRecord{
		URL:      e.Response.URL,
		MIMEType: mime,
		Status:   int(e.Response.Status),
	}, true
}

func headerValue(headers network.Headers, name string) string {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return fmt.Sprint(value)
		}
	}
	return ""
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.idle.reset()
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitNetworkIdle blocks until Chrome reports the network idle lifecycle
// event for the current navigation, ctx is done, or timeout elapses.
func (p *Page) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultIdleTimeout
	}
	return p.idle.wait(ctx, timeout)
}

// Wheel dispatches a mouse-wheel event scrolling by deltaY pixels.
func (p *Page) Wheel(ctx context.Context, deltaY float64) error {
	return p.run(ctx, input.DispatchMouseEvent(input.MouseWheel, wheelX, wheelY).
		WithDeltaX(0).
		WithDeltaY(deltaY))
}

// ScrollHeight returns document.body.scrollHeight.
func (p *Page) ScrollHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := p.run(ctx, chromedp.Evaluate(scrollHeightJS, &height)); err != nil {
		return 0, fmt.Errorf("evaluate scroll height: %w", err)
	}
	return height, nil
}

// HTML returns the rendered document markup.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read outer html: %w", err)
	}
	return html, nil
}

// Hrefs returns the href of every element matched by each selector, in
// selector order. Duplicates are kept.
func (p *Page) Hrefs(ctx context.Context, selectors []string) ([]string, error) {
	encoded, err := json.Marshal(selectors)
	if err != nil {
		return nil, fmt.Errorf("encode selectors: %w", err)
	}
	var hrefs []string
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(hrefsJSFormat, encoded), &hrefs)); err != nil {
		return nil, fmt.Errorf("evaluate hrefs: %w", err)
	}
	return hrefs, nil
}

// VideoSrc returns the source of the first <video> element, or "".
func (p *Page) VideoSrc(ctx context.Context) (string, error) {
	var src string
	if err := p.run(ctx, chromedp.Evaluate(videoSrcJS, &src)); err != nil {
		return "", fmt.Errorf("evaluate video src: %w", err)
	}
	return src, nil
}

// Images returns every <img> with its natural dimensions.
func (p *Page) Images(ctx context.Context) ([]scrape.Image, error) {
	var images []scrape.Image
	if err := p.run(ctx, chromedp.Evaluate(imagesJS, &images)); err != nil {
		return nil, fmt.Errorf("evaluate images: %w", err)
	}
	return images, nil
}

// UserAgent returns navigator.userAgent.
func (p *Page) UserAgent(ctx context.Context) (string, error) {
	var ua string
	if err := p.run(ctx, chromedp.Evaluate(userAgentJS, &ua)); err != nil {
		return "", fmt.Errorf("evaluate user agent: %w", err)
	}
	return ua, nil
}

// Responses returns the recorded responses in arrival order.
func (p *Page) Responses() []scrape.ResponseRecord {
	return p.log.Snapshot()
}

// Close closes the tab.
func (p *Page) Close() error {
	p.cancel()
	return nil
}

// run executes actions on an already attached tab. The per-call context is a
// child of the tab context, so cancelling it never tears the tab down.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx != nil && ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return err
	}
	return nil
}

// idleSignal latches the main frame's network-idle lifecycle event for the
// current document. Subframe events and events carrying an older loader ID
// are ignored.
type idleSignal struct {
	mu        sync.Mutex
	ch        chan struct{}
	fired     bool
	mainFrame cdp.FrameID
	loader    cdp.LoaderID
	// awaitingInit is set by reset until the next document's init event
	// names its loader.
	awaitingInit bool
}

func newIdleSignal() *idleSignal {
	return &idleSignal{ch: make(chan struct{})}
}

func (s *idleSignal) setMainFrame(id cdp.FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mainFrame = id
}

// reset rearms the latch before a navigation.
func (s *idleSignal) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rearmLocked()
	s.awaitingInit = true
}

func (s *idleSignal) observe(e *cdppage.EventLifecycleEvent) {
	if e == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mainFrame != "" && e.FrameID != s.mainFrame {
		return
	}
	switch e.Name {
	case lifecycleInitEvent:
		s.loader = e.LoaderID
		s.awaitingInit = false
		s.rearmLocked()
	case networkIdleEvent:
		if s.awaitingInit || e.LoaderID != s.loader {
			return
		}
		s.fireLocked()
	}
}

func (s *idleSignal) rearmLocked() {
	if s.fired {
		s.ch = make(chan struct{})
		s.fired = false
	}
}

func (s *idleSignal) fireLocked() {
	if !s.fired {
		s.fired = true
		close(s.ch)
	}
}

func (s *idleSignal) wait(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return fmt.Errorf("network idle not reached within %s", timeout)
	case <-ctx.Done():
		return fmt.Errorf("wait for network idle: %w", ctx.Err())
	}
}
