package scrape

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

// fakePage is scripted per URL by fakeBrowser.
type fakePage struct {
	mu         sync.Mutex
	url        string
	navErr     error
	html       string
	htmlErr    error
	videoSrc   string
	images     []Image
	imagesErr  error
	userAgent  string
	responses  []ResponseRecord
	heights    []int64
	wheels     int
	hrefs      []string
	selectors  []string
	idleErr    error
	closed     bool
	panicOnNav bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicOnNav {
		panic("navigation exploded")
	}
	p.url = url
	return p.navErr
}

func (p *fakePage) WaitNetworkIdle(context.Context, time.Duration) error {
	return p.idleErr
}

func (p *fakePage) Wheel(context.Context, float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wheels++
	return nil
}

func (p *fakePage) ScrollHeight(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.heights) == 0 {
		return 0, errors.New("no height scripted")
	}
	h := p.heights[0]
	if len(p.heights) > 1 {
		p.heights = p.heights[1:]
	}
	return h, nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	return p.html, p.htmlErr
}

func (p *fakePage) Hrefs(_ context.Context, selectors []string) ([]string, error) {
	p.selectors = selectors
	return p.hrefs, nil
}

func (p *fakePage) VideoSrc(context.Context) (string, error) {
	return p.videoSrc, nil
}

func (p *fakePage) Images(context.Context) ([]Image, error) {
	return p.images, p.imagesErr
}

func (p *fakePage) UserAgent(context.Context) (string, error) {
	return p.userAgent, nil
}

func (p *fakePage) Responses() []ResponseRecord {
	return append([]ResponseRecord(nil), p.responses...)
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeBrowser hands out pages in order: the first NewPage call gets pages[0].
type fakeBrowser struct {
	pages    []*fakePage
	opened   []PageOptions
	cookies  []Cookie
	closed   bool
	pageErr  error
	launches int
}

func (b *fakeBrowser) NewPage(_ context.Context, opts PageOptions) (Page, error) {
	if b.pageErr != nil {
		return nil, b.pageErr
	}
	if len(b.opened) >= len(b.pages) {
		return nil, errors.New("no more scripted pages")
	}
	page := b.pages[len(b.opened)]
	b.opened = append(b.opened, opts)
	return page, nil
}

func (b *fakeBrowser) Cookies(context.Context) ([]Cookie, error) {
	return b.cookies, nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

func (b *fakeBrowser) Launch(context.Context) (Browser, error) {
	b.launches++
	return b, nil
}

type fakeDownloader struct {
	requests []DownloadRequest
	outcome  DownloadOutcome
}

func (d *fakeDownloader) Fetch(_ context.Context, req DownloadRequest) DownloadResult {
	d.requests = append(d.requests, req)
	outcome := d.outcome
	if outcome == "" {
		outcome = OutcomeOK
	}
	return DownloadResult{Path: req.Dir + "/" + req.Filename, Outcome: outcome, StatusCode: 200}
}

type fakeGate struct {
	calls int
	err   error
}

func (g *fakeGate) Wait(context.Context) error {
	g.calls++
	return g.err
}
