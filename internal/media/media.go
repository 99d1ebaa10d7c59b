// Package media classifies media URLs and resolves their file extensions.
// All matching is case-insensitive and works on raw URL or path strings; CDN
// URLs rarely end in a clean extension, so substring heuristics are used
// instead of path parsing.
package media

import (
	"strings"

	"github.com/justmiho/XHS-Downloader-Android/internal/entity"
)

var (
	videoSuffixes = []string{"mp4", "mov", "avi", "mkv"}
	imageSuffixes = []string{"jpg", "jpeg", "png", "gif", "webp"}
	videoMarkers  = []string{"video", "sns-video"}
)

// extensionRules map dotted substrings to extensions, probed in order.
// jpg needs no rule: it is the default.
var extensionRules = []struct {
	substr string
	ext    string
}{
	{".mp4", "mp4"},
	{".mov", "mov"},
	{".avi", "avi"},
	{".mkv", "mkv"},
	{".webm", "webm"},
	{".png", "png"},
	{".gif", "gif"},
	{".webp", "webp"},
}

// Classify reports the media kind of a URL or file path. Video checks take
// priority over image checks; anything unmatched (webm included) is
// MediaKindOther.
func Classify(pathOrURL string) entity.MediaKind {
	s := strings.ToLower(pathOrURL)

	for _, suffix := range videoSuffixes {
		if strings.HasSuffix(s, suffix) {
			return entity.MediaKindVideo
		}
	}

	for _, marker := range videoMarkers {
		if strings.Contains(s, marker) {
			return entity.MediaKindVideo
		}
	}

	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(s, suffix) {
			return entity.MediaKindImage
		}
	}

	return entity.MediaKindOther
}

// ResolveExtension picks a file extension (without dot) for a media URL.
// Dotted occurrences anywhere in the URL win first, then video markers force
// mp4, and everything else falls back to jpg. The empty string resolves to
// jpg as well.
func ResolveExtension(rawURL string) string {
	s := strings.ToLower(rawURL)

	for _, rule := range extensionRules {
		if strings.Contains(s, rule.substr) {
			return rule.ext
		}
	}

	for _, marker := range videoMarkers {
		if strings.Contains(s, marker) {
			return "mp4"
		}
	}

	return "jpg"
}
