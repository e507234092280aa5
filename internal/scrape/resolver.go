package scrape

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/profilegrab/internal/jsontree"
)

// Script element IDs that carry the app state, newest layout first.
var embeddedStateScripts = []string{
	"__UNIVERSAL_DATA_FOR_REHYDRATION__",
	"SIGI_STATE",
}

// Keys searched in the embedded state, in priority order.
var mediaAddrKeys = []string{"playAddr", "downloadAddr"}

const (
	videoMIME        = "video/mp4"
	videoPathPattern = "/video/tos/"

	// DefaultMinImagePx is the exclusive lower bound on both natural
	// dimensions of a gallery image.
	DefaultMinImagePx = 400
)

// Resolver derives direct media URLs from rendered post pages.
type Resolver struct {
	minImagePx int
	logger     *zap.Logger
}

// NewResolver builds a Resolver. minImagePx <= 0 selects DefaultMinImagePx.
func NewResolver(minImagePx int, logger *zap.Logger) *Resolver {
	if minImagePx <= 0 {
		minImagePx = DefaultMinImagePx
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{minImagePx: minImagePx, logger: logger}
}

// ResolveVideo tries the embedded JSON, network interception and DOM
// strategies in that order; the first non-empty URL wins.
func (r *Resolver) ResolveVideo(ctx context.Context, page Page) (string, Strategy, error) {
	markup, err := page.HTML(ctx)
	if err != nil {
		r.logger.Warn("read page markup failed", zap.Error(err))
	} else if mediaURL, ok := EmbeddedJSONURL(markup); ok {
		return mediaURL, StrategyEmbeddedJSON, nil
	}

	if mediaURL, ok := InterceptedURL(page.Responses()); ok {
		return mediaURL, StrategyNetwork, nil
	}

	src, err := page.VideoSrc(ctx)
	if err != nil {
		return "", StrategyNone, fmt.Errorf("read video element: %w", err)
	}
	if src = strings.TrimSpace(src); src != "" {
		return src, StrategyDOM, nil
	}
	return "", StrategyNone, ErrNoMedia
}

// ResolveImages returns the distinct sources of gallery-sized images.
func (r *Resolver) ResolveImages(ctx context.Context, page Page) ([]string, error) {
	images, err := page.Images(ctx)
	if err != nil {
		return nil, fmt.Errorf("read images: %w", err)
	}
	return FilterImages(images, r.minImagePx), nil
}

// EmbeddedJSONURL looks for the app-state script in markup and searches it
// for playAddr, then downloadAddr. A missing script, unparsable payload or
// absent keys all report false.
func EmbeddedJSONURL(markup string) (string, bool) {
	payload, ok := embeddedState(markup)
	if !ok {
		return "", false
	}
	mediaURL, _, ok := jsontree.FindFirstString([]byte(payload), mediaAddrKeys...)
	return mediaURL, ok
}

func embeddedState(markup string) (string, bool) {
	if strings.TrimSpace(markup) == "" {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", false
	}
	for _, id := range embeddedStateScripts {
		sel := doc.Find("script#" + id).First()
		if sel.Length() == 0 {
			continue
		}
		return sel.Text(), true
	}
	return "", false
}

// IsVideoResponse reports whether a network response looks like video media.
func IsVideoResponse(rec ResponseRecord) bool {
	return strings.Contains(rec.MIMEType, videoMIME) || strings.Contains(rec.URL, videoPathPattern)
}

// InterceptedURL returns the earliest recorded video response.
func InterceptedURL(records []ResponseRecord) (string, bool) {
	for _, rec := range records {
		if rec.URL != "" && IsVideoResponse(rec) {
			return rec.URL, true
		}
	}
	return "", false
}

// FilterImages keeps images whose width and height both exceed minPx and
// removes duplicate sources, preserving first-seen order.
func FilterImages(images []Image, minPx int) []string {
	seen := make(map[string]struct{}, len(images))
	out := make([]string, 0, len(images))
	for _, img := range images {
		if img.Width <= minPx || img.Height <= minPx || img.Src == "" {
			continue
		}
		if _, dup := seen[img.Src]; dup {
			continue
		}
		seen[img.Src] = struct{}{}
		out = append(out, img.Src)
	}
	return out
}
