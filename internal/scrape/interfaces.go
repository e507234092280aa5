package scrape

import (
	"context"
	"time"
)

// Launcher starts a browser session.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is one long-lived browser context shared by every page of a run.
type Browser interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	Close() error
}

// PageOptions configures a newly opened page.
type PageOptions struct {
	// ResponseFilter, when set, selects network responses to record in the
	// page's response log. It is attached before any navigation.
	ResponseFilter func(ResponseRecord) bool
}

// Page is a single browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error
	Wheel(ctx context.Context, deltaY float64) error
	ScrollHeight(ctx context.Context) (int64, error)
	HTML(ctx context.Context) (string, error)
	Hrefs(ctx context.Context, selectors []string) ([]string, error)
	VideoSrc(ctx context.Context) (string, error)
	Images(ctx context.Context) ([]Image, error)
	UserAgent(ctx context.Context) (string, error)
	Responses() []ResponseRecord
	Close() error
}

// Downloader fetches a media resource to disk. Failures are reported in the
// result rather than returned.
type Downloader interface {
	Fetch(ctx context.Context, req DownloadRequest) DownloadResult
}

// Gate blocks until an operator confirms the crawl may continue.
type Gate interface {
	Wait(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
