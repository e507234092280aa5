// Package media implements scrape.Downloader over plain HTTP(S), presenting
// the browser session's cookies and user-agent so the CDN serves the file.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/JakeFAU/profilegrab/internal/metrics"
	"github.com/JakeFAU/profilegrab/internal/scrape"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultReferer        = "https://www.tiktok.com/"
	DefaultOrigin         = "https://www.tiktok.com"
	DefaultSmallFileBytes = 10000
	DefaultChunkBytes     = 1 << 20

	sniffBytes = 261
)

// Config controls request headers and the post-write size heuristic.
type Config struct {
	UserAgent      string
	Referer        string
	Origin         string
	SmallFileBytes int64
	ChunkBytes     int
	// Timeout bounds a whole download; zero leaves it to the transport.
	Timeout time.Duration
}

// Fetcher streams media to disk.
type Fetcher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Referer == "" {
		cfg.Referer = DefaultReferer
	}
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	if cfg.SmallFileBytes <= 0 {
		cfg.SmallFileBytes = DefaultSmallFileBytes
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = DefaultChunkBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: newHTTPTransport(),
			Timeout:   cfg.Timeout,
		},
		logger: logger,
	}
}

// Fetch downloads req.URL into req.Dir/req.Filename. Every failure is logged
// and folded into the result; nothing is retried and partial files are left
// in place.
func (f *Fetcher) Fetch(ctx context.Context, req scrape.DownloadRequest) scrape.DownloadResult {
	logger := f.logger.With(zap.String("file", req.Filename))
	result := f.fetch(ctx, req, logger)
	metrics.ObserveDownload(req.URL, string(result.Outcome), result.Bytes)
	switch result.Outcome {
	case scrape.OutcomeOK:
		logger.Info("download succeeded", zap.String("path", result.Path), zap.Int64("bytes", result.Bytes), zap.String("mime", result.MIME))
	case scrape.OutcomeSmall:
		logger.Warn("downloaded file is very small, might be invalid",
			zap.String("path", result.Path),
			zap.Int64("bytes", result.Bytes),
			zap.Int64("threshold", f.cfg.SmallFileBytes),
			zap.String("mime", result.MIME),
		)
	default:
		logger.Error("download failed", zap.Int("status", result.StatusCode), zap.Error(result.Err))
	}
	return result
}

func (f *Fetcher) fetch(ctx context.Context, req scrape.DownloadRequest, logger *zap.Logger) scrape.DownloadResult {
	failed := func(status int, err error) scrape.DownloadResult {
		return scrape.DownloadResult{Outcome: scrape.OutcomeFailed, StatusCode: status, Err: err}
	}

	httpReq, err := f.buildRequest(ctx, req)
	if err != nil {
		return failed(0, err)
	}
	logger.Info("downloading")
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return failed(0, fmt.Errorf("request media: %w", err))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debug("close response body failed", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return failed(resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	path, file, err := createUnique(req.Dir, req.Filename)
	if err != nil {
		return failed(resp.StatusCode, err)
	}
	if path != filepath.Join(req.Dir, req.Filename) {
		logger.Warn("target exists; writing under a disambiguated name", zap.String("path", path))
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			logger.Warn("close file failed", zap.Error(cerr))
		}
	}()

	written, err := chunkedCopy(file, resp.Body, f.cfg.ChunkBytes)
	if err != nil {
		result := failed(resp.StatusCode, fmt.Errorf("write %s: %w", path, err))
		result.Path = path
		result.Bytes = written
		return result
	}

	outcome := scrape.OutcomeOK
	if written < f.cfg.SmallFileBytes {
		outcome = scrape.OutcomeSmall
	}
	return scrape.DownloadResult{
		Path:       path,
		Outcome:    outcome,
		StatusCode: resp.StatusCode,
		Bytes:      written,
		MIME:       sniff(file),
	}
}

func (f *Fetcher) buildRequest(ctx context.Context, req scrape.DownloadRequest) (*http.Request, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, errors.New("media url is required")
	}
	if req.Filename == "" {
		return nil, errors.New("filename is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = f.cfg.UserAgent
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Referer", f.cfg.Referer)
	httpReq.Header.Set("Origin", f.cfg.Origin)

	jar := CookieMap(req.Cookies)
	names := make([]string, 0, len(jar))
	for name := range jar {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: jar[name]})
	}
	return httpReq, nil
}

// CookieMap flattens browser cookies to name/value pairs. Domain and path are
// dropped, so cookies from every domain in the jar are sent; on a name
// collision the last value wins.
func CookieMap(cookies []scrape.Cookie) map[string]string {
	jar := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		jar[c.Name] = c.Value
	}
	return jar
}

// createUnique opens dir/name for writing without clobbering an existing
// file; on collision an xid suffix is added before the extension.
func createUnique(dir, name string) (string, *os.File, error) {
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err == nil {
		return path, file, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return "", nil, fmt.Errorf("create %s: %w", path, err)
	}
	ext := filepath.Ext(name)
	path = filepath.Join(dir, fmt.Sprintf("%s_%s%s", strings.TrimSuffix(name, ext), xid.New().String(), ext))
	file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", nil, fmt.Errorf("create %s: %w", path, err)
	}
	return path, file, nil
}

// chunkedCopy copies src to dst through a fixed-size buffer. The wrappers
// hide ReaderFrom/WriterTo so the buffer size actually applies.
func chunkedCopy(dst io.Writer, src io.Reader, chunk int) (int64, error) {
	buf := make([]byte, chunk)
	n, err := io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, buf)
	if err != nil {
		return n, fmt.Errorf("copy body: %w", err)
	}
	return n, nil
}

func sniff(file *os.File) string {
	head := make([]byte, sniffBytes)
	n, err := file.ReadAt(head, 0)
	if n == 0 && err != nil {
		return ""
	}
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
