package media

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/profilegrab/internal/scrape"
)

// mp4Header is enough of an ISO BMFF "ftyp" box for content sniffing.
var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0, 0, 0, 0, 'm', 'p', '4', '2', 'i', 's', 'o', 'm'}

func TestCookieMapLastValueWins(t *testing.T) {
	t.Parallel()

	jar := CookieMap([]scrape.Cookie{
		{Name: "sid", Value: "one", Domain: ".tiktok.com"},
		{Name: "ttwid", Value: "t", Domain: ".tiktok.com"},
		{Name: "sid", Value: "two", Domain: ".tiktokcdn.com", Path: "/v"},
		{Name: "", Value: "ignored"},
	})
	assert.Equal(t, map[string]string{"sid": "two", "ttwid": "t"}, jar)
	assert.Empty(t, CookieMap(nil))
}

func TestFetchWritesFileWithBrowserHeaders(t *testing.T) {
	t.Parallel()

	body := append(append([]byte(nil), mp4Header...), bytes.Repeat([]byte{0xAB}, 3<<20)...)
	seen := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := New(Config{ChunkBytes: 64 << 10}, zap.NewNop())
	result := f.Fetch(context.Background(), scrape.DownloadRequest{
		URL:       srv.URL + "/video/tos/clip.mp4",
		Dir:       dir,
		Filename:  "video_0_1700000000.mp4",
		Cookies:   []scrape.Cookie{{Name: "sid", Value: "a"}, {Name: "sid", Value: "b"}, {Name: "msToken", Value: "m"}},
		UserAgent: "BrowserUA/1.0",
	})

	require.Equal(t, scrape.OutcomeOK, result.Outcome, "err: %v", result.Err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, int64(len(body)), result.Bytes)
	assert.Equal(t, filepath.Join(dir, "video_0_1700000000.mp4"), result.Path)
	assert.Equal(t, "video/mp4", result.MIME)

	written, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, body, written)

	got := <-seen
	assert.Equal(t, "BrowserUA/1.0", got.Header.Get("User-Agent"))
	assert.Equal(t, DefaultReferer, got.Header.Get("Referer"))
	assert.Equal(t, DefaultOrigin, got.Header.Get("Origin"))
	sid, err := got.Cookie("sid")
	require.NoError(t, err)
	assert.Equal(t, "b", sid.Value)
	assert.Len(t, got.Cookies(), 2)
}

func TestFetchDefaultUserAgent(t *testing.T) {
	t.Parallel()

	agents := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.UserAgent()
		_, _ = w.Write(bytes.Repeat([]byte("x"), DefaultSmallFileBytes))
	}))
	defer srv.Close()

	result := New(Config{}, zap.NewNop()).Fetch(context.Background(), scrape.DownloadRequest{
		URL: srv.URL, Dir: t.TempDir(), Filename: "image_1_0_1.jpg",
	})
	assert.Equal(t, scrape.OutcomeOK, result.Outcome)
	assert.Equal(t, DefaultUserAgent, <-agents)
}

func TestFetchPartialContentIsSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(bytes.Repeat([]byte("p"), 20000))
	}))
	defer srv.Close()

	result := New(Config{}, zap.NewNop()).Fetch(context.Background(), scrape.DownloadRequest{
		URL: srv.URL, Dir: t.TempDir(), Filename: "video_3_1.mp4",
	})
	assert.Equal(t, scrape.OutcomeOK, result.Outcome)
	assert.Equal(t, http.StatusPartialContent, result.StatusCode)
}

func TestFetchSmallFileIsKeptWithWarning(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write(bytes.Repeat([]byte("s"), 5000))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	dir := t.TempDir()
	result := New(Config{}, zap.New(core)).Fetch(context.Background(), scrape.DownloadRequest{
		URL: srv.URL, Dir: dir, Filename: "video_0_1.mp4",
	})

	assert.Equal(t, scrape.OutcomeSmall, result.Outcome)
	assert.NoError(t, result.Err)
	assert.Equal(t, int64(5000), result.Bytes)
	assert.Equal(t, int32(1), requests.Load(), "small downloads must not be retried")

	info, err := os.Stat(filepath.Join(dir, "video_0_1.mp4"))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), info.Size())

	entries := logs.FilterMessageSnippet("very small").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestFetchErrorStatusWritesNothing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	dir := t.TempDir()
	result := New(Config{}, zap.NewNop()).Fetch(context.Background(), scrape.DownloadRequest{
		URL: srv.URL, Dir: dir, Filename: "video_0_1.mp4",
	})
	assert.Equal(t, scrape.OutcomeFailed, result.Outcome)
	assert.Equal(t, http.StatusForbidden, result.StatusCode)
	assert.Error(t, result.Err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchTransportErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	result := New(Config{}, zap.NewNop()).Fetch(context.Background(), scrape.DownloadRequest{
		URL: url, Dir: t.TempDir(), Filename: "video_0_1.mp4",
	})
	assert.Equal(t, scrape.OutcomeFailed, result.Outcome)
	assert.Error(t, result.Err)
}

func TestFetchRejectsIncompleteRequest(t *testing.T) {
	t.Parallel()

	f := New(Config{}, zap.NewNop())
	assert.Equal(t, scrape.OutcomeFailed, f.Fetch(context.Background(), scrape.DownloadRequest{Filename: "a.mp4"}).Outcome)
	assert.Equal(t, scrape.OutcomeFailed, f.Fetch(context.Background(), scrape.DownloadRequest{URL: "https://x"}).Outcome)
}

func TestFetchDoesNotOverwriteExistingFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("n"), 12000))
	}))
	defer srv.Close()

	dir := t.TempDir()
	existing := filepath.Join(dir, "image_2_0_1.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o600))

	result := New(Config{}, zap.NewNop()).Fetch(context.Background(), scrape.DownloadRequest{
		URL: srv.URL, Dir: dir, Filename: "image_2_0_1.jpg",
	})
	require.Equal(t, scrape.OutcomeOK, result.Outcome)
	assert.NotEqual(t, existing, result.Path)
	assert.True(t, strings.HasPrefix(filepath.Base(result.Path), "image_2_0_1_"))
	assert.Equal(t, ".jpg", filepath.Ext(result.Path))

	old, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
}

func TestChunkedCopy(t *testing.T) {
	t.Parallel()

	var dst bytes.Buffer
	n, err := chunkedCopy(&dst, strings.NewReader("hello world"), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, "hello world", dst.String())
}
