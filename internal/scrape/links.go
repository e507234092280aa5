package scrape

import (
	"strings"
)

// Path markers that classify a post link.
const (
	videoMarker = "/video/"
	photoMarker = "/photo/"
)

// DefaultLinkSelectors are tried in order and their matches unioned; the site
// has shipped several profile grid layouts.
var DefaultLinkSelectors = []string{
	"#user-post-item-list a",
	`[data-e2e="user-post-item-list"] a`,
	`a[href*="/video/"]`,
	`a[href*="/photo/"]`,
}

// ClassifyLink reports the post kind of href. The video marker is checked
// first, so a link carrying both markers is a video.
func ClassifyLink(href string) (PostKind, bool) {
	switch {
	case strings.Contains(href, videoMarker):
		return PostKindVideo, true
	case strings.Contains(href, photoMarker):
		return PostKindPhoto, true
	default:
		return "", false
	}
}

// CollectLinks keeps only post links and removes duplicates. First-seen
// order is kept, though nothing downstream depends on it.
func CollectLinks(hrefs []string) []PostLink {
	seen := make(map[string]struct{}, len(hrefs))
	links := make([]PostLink, 0, len(hrefs))
	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		kind, ok := ClassifyLink(href)
		if !ok {
			continue
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		links = append(links, PostLink{URL: href, Kind: kind})
	}
	return links
}
