// Package entity defines the core entities used in the application.
package entity

import (
	"log/slog"
)

// MediaKind classifies a surfaced media file.
type MediaKind string

const (
	// MediaKindImage indicates a still image.
	MediaKindImage MediaKind = "image"
	// MediaKindVideo indicates a video stream or file.
	MediaKindVideo MediaKind = "video"
	// MediaKindOther indicates media that is neither a known image nor video type.
	MediaKindOther MediaKind = "other"
)

// MediaEntry is one downloaded file surfaced by a session. Path is the local
// stored path and is unique within a session.
type MediaEntry struct {
	Path string    `json:"path"`
	Kind MediaKind `json:"kind"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (m MediaEntry) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", m.Path),
		slog.String("kind", string(m.Kind)),
	)
}

// Snapshot is the immutable aggregate view of a session handed to observers.
// Slices are copies taken at publish time; holders may read them freely but
// must not assume later snapshots share backing arrays.
type Snapshot struct {
	URL               string       `json:"url"`
	Status            []string     `json:"status"`
	Media             []MediaEntry `json:"media"`
	InProgress        bool         `json:"inProgress"`
	ProgressLabel     string       `json:"progressLabel"`
	ProgressFraction  float64      `json:"progressFraction"`
	FallbackSuggested bool         `json:"fallbackSuggested"`
}

// LastStatus returns the most recent status line, or "" when none exist.
func (s Snapshot) LastStatus() string {
	if len(s.Status) == 0 {
		return ""
	}

	return s.Status[len(s.Status)-1]
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", s.URL),
		slog.Bool("in_progress", s.InProgress),
		slog.String("progress", s.ProgressLabel),
		slog.Int("media", len(s.Media)),
		slog.Bool("fallback_suggested", s.FallbackSuggested),
		slog.String("last_status", s.LastStatus()),
	)
}

// FallbackBatch carries externally discovered media URLs for a session whose
// primary extraction failed, plus optional note text destined for the
// clipboard. URLs keep their submission order; filenames are numbered from it.
type FallbackBatch struct {
	URLs    []string `json:"urls"`
	Content string   `json:"content,omitempty"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (b FallbackBatch) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("urls", len(b.URLs)),
		slog.Bool("has_content", b.Content != ""),
	)
}
