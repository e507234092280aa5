package scrape

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rehydrationMarkup = `<html><head>
<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">
{"__DEFAULT_SCOPE__":{"webapp.video-detail":{"itemInfo":{"itemStruct":{"video":{"downloadAddr":"https://cdn/dl.mp4","playAddr":"https://cdn/play.mp4"}}}}}}
</script></head><body></body></html>`

func TestEmbeddedJSONURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		markup string
		want   string
		ok     bool
	}{
		{name: "rehydration script prefers playAddr", markup: rehydrationMarkup, want: "https://cdn/play.mp4", ok: true},
		{
			name:   "sigi state fallback to downloadAddr",
			markup: `<script id="SIGI_STATE">{"ItemModule":{"1":{"video":{"downloadAddr":"https://cdn/d.mp4"}}}}</script>`,
			want:   "https://cdn/d.mp4",
			ok:     true,
		},
		{
			name: "first present script wins even without keys",
			markup: `<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__">{"other":1}</script>` +
				`<script id="SIGI_STATE">{"playAddr":"https://cdn/ignored.mp4"}</script>`,
			ok: false,
		},
		{name: "unparsable payload", markup: `<script id="SIGI_STATE">{not json</script>`, ok: false},
		{name: "no script", markup: `<html><body><video src="x"></video></body></html>`, ok: false},
		{name: "empty markup", markup: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := EmbeddedJSONURL(tt.markup)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterceptedURLReturnsEarliestMatch(t *testing.T) {
	t.Parallel()

	records := []ResponseRecord{
		{URL: "https://site/api/item", MIMEType: "application/json"},
		{URL: "https://v16.cdn/video/tos/abc", MIMEType: "application/octet-stream"},
		{URL: "https://v19.cdn/other.mp4", MIMEType: "video/mp4"},
	}
	got, ok := InterceptedURL(records)
	require.True(t, ok)
	assert.Equal(t, "https://v16.cdn/video/tos/abc", got)

	_, ok = InterceptedURL(records[:1])
	assert.False(t, ok)
}

func TestFilterImages(t *testing.T) {
	t.Parallel()

	images := []Image{
		{Src: "https://img/a.jpg", Width: 1080, Height: 1440},
		{Src: "https://img/avatar.jpg", Width: 100, Height: 100},
		{Src: "https://img/edge.jpg", Width: 400, Height: 900},
		{Src: "https://img/a.jpg", Width: 1080, Height: 1440},
		{Src: "", Width: 900, Height: 900},
		{Src: "https://img/b.jpg", Width: 401, Height: 401},
	}
	assert.Equal(t, []string{"https://img/a.jpg", "https://img/b.jpg"}, FilterImages(images, DefaultMinImagePx))
}

func TestResolveVideoStrategyOrder(t *testing.T) {
	t.Parallel()

	r := NewResolver(0, nil)
	ctx := context.Background()
	tosRecord := ResponseRecord{URL: "https://cdn/video/tos/1", MIMEType: "video/mp4"}

	url, strategy, err := r.ResolveVideo(ctx, &fakePage{html: rehydrationMarkup, responses: []ResponseRecord{tosRecord}, videoSrc: "blob:x"})
	require.NoError(t, err)
	assert.Equal(t, StrategyEmbeddedJSON, strategy)
	assert.Equal(t, "https://cdn/play.mp4", url)

	url, strategy, err = r.ResolveVideo(ctx, &fakePage{html: "<html></html>", responses: []ResponseRecord{tosRecord}, videoSrc: "blob:x"})
	require.NoError(t, err)
	assert.Equal(t, StrategyNetwork, strategy)
	assert.Equal(t, tosRecord.URL, url)

	url, strategy, err = r.ResolveVideo(ctx, &fakePage{html: "<html></html>", videoSrc: "https://cdn/dom.mp4"})
	require.NoError(t, err)
	assert.Equal(t, StrategyDOM, strategy)
	assert.Equal(t, "https://cdn/dom.mp4", url)

	_, strategy, err = r.ResolveVideo(ctx, &fakePage{html: "<html></html>"})
	require.ErrorIs(t, err, ErrNoMedia)
	assert.Equal(t, StrategyNone, strategy)
}

func TestResolveImagesUsesThreshold(t *testing.T) {
	t.Parallel()

	page := &fakePage{images: []Image{
		{Src: "https://img/small.jpg", Width: 300, Height: 300},
		{Src: "https://img/large.jpg", Width: 800, Height: 800},
	}}
	got, err := NewResolver(200, nil).ResolveImages(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img/small.jpg", "https://img/large.jpg"}, got)

	got, err = NewResolver(0, nil).ResolveImages(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img/large.jpg"}, got)
}
