package scrape

import (
	"errors"
)

// ErrNoMedia indicates no resolution strategy produced a media URL.
var ErrNoMedia = errors.New("no media found")

// ErrScrollCapReached indicates the scroll loop stopped at its iteration cap
// before the page height stabilized.
var ErrScrollCapReached = errors.New("scroll iteration cap reached")

// PostKind classifies a post link.
type PostKind string

// Supported post kinds.
const (
	PostKindVideo PostKind = "video"
	PostKindPhoto PostKind = "photo"
)

// PostLink is a post URL discovered on the profile page.
type PostLink struct {
	URL  string
	Kind PostKind
}

// Cookie is a browser cookie as captured from the session.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Image describes an <img> element rendered on a post page.
type Image struct {
	Src    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ResponseRecord describes a network response observed while a page loaded.
type ResponseRecord struct {
	URL      string
	MIMEType string
	Status   int
}

// Strategy names the method that resolved a media URL.
type Strategy string

// Resolution strategies in priority order.
const (
	StrategyNone         Strategy = ""
	StrategyEmbeddedJSON Strategy = "embedded_json"
	StrategyNetwork      Strategy = "network"
	StrategyDOM          Strategy = "dom"
	StrategyImages       Strategy = "images"
)

// DownloadOutcome is the result class of a single download.
type DownloadOutcome string

// Download outcomes. OutcomeSmall is a warning: the file is kept.
const (
	OutcomeOK     DownloadOutcome = "ok"
	OutcomeSmall  DownloadOutcome = "small"
	OutcomeFailed DownloadOutcome = "failed"
)

// DownloadRequest carries everything needed to fetch one media resource.
type DownloadRequest struct {
	URL       string
	Dir       string
	Filename  string
	Cookies   []Cookie
	UserAgent string
}

// DownloadResult reports what happened to a DownloadRequest.
type DownloadResult struct {
	Path       string
	Outcome    DownloadOutcome
	StatusCode int
	Bytes      int64
	MIME       string
	Err        error
}

// PostReport summarizes the handling of one post link.
type PostReport struct {
	Link     PostLink
	Index    int
	Strategy Strategy
	Files    []DownloadResult
	Err      error
}

// Summary describes a finished crawl.
type Summary struct {
	Username         string
	Root             string
	ScrollIterations int
	Partial          bool
	Links            []PostLink
	Posts            []PostReport
	DebugFile        string
}

// Counts tallies download outcomes across all posts.
func (s Summary) Counts() map[DownloadOutcome]int {
	counts := make(map[DownloadOutcome]int)
	for _, post := range s.Posts {
		for _, f := range post.Files {
			counts[f.Outcome]++
		}
	}
	return counts
}
