package scrape

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const unknownUsername = "unknown"

// Layout is the on-disk layout of one profile session.
type Layout struct {
	Username  string
	Root      string
	VideosDir string
	ImagesDir string
}

// NewLayout derives the session folders from the profile URL and the run date:
// {outputRoot}/{username}-{YYYYMMDD}/{videos,images}.
func NewLayout(outputRoot, profileURL string, now time.Time) Layout {
	username := UsernameFromURL(profileURL)
	root := filepath.Join(outputRoot, fmt.Sprintf("%s-%s", username, now.Format("20060102")))
	return Layout{
		Username:  username,
		Root:      root,
		VideosDir: filepath.Join(root, "videos"),
		ImagesDir: filepath.Join(root, "images"),
	}
}

// Prepare creates the videos and images folders.
func (l Layout) Prepare() error {
	for _, dir := range []string{l.VideosDir, l.ImagesDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	return nil
}

// FolderFor returns the output folder for a post kind.
func (l Layout) FolderFor(kind PostKind) string {
	if kind == PostKindPhoto {
		return l.ImagesDir
	}
	return l.VideosDir
}

// UsernameFromURL extracts the handle following "@" up to the next "/" or
// "?". URLs without "@" map to "unknown".
func UsernameFromURL(profileURL string) string {
	_, rest, ok := strings.Cut(profileURL, "@")
	if !ok {
		return unknownUsername
	}
	if i := strings.IndexAny(rest, "/?@"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// VideoFilename names the file for a video post.
func VideoFilename(index int, ts time.Time) string {
	return fmt.Sprintf("video_%d_%d.mp4", index, ts.Unix())
}

// ImageFilename names the file for the sub-th image of a photo post.
func ImageFilename(index, sub int, ts time.Time) string {
	return fmt.Sprintf("image_%d_%d_%d.jpg", index, sub, ts.Unix())
}
