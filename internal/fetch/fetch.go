// Package fetch defines the fetcher interface behind which all network and
// extraction work happens, plus the event model fetchers report through.
package fetch

import (
	"context"
	"errors"
	"log/slog"
)

// EventKind discriminates the events a fetcher emits while streaming.
type EventKind uint8

const (
	// EventFileCompleted reports one media file stored on disk.
	EventFileCompleted EventKind = iota + 1
	// EventProgress reports byte-level progress for the current item.
	EventProgress
	// EventItemError reports a per-item failure; the stream keeps going.
	EventItemError
)

// Event is one item-level report from a running stream.
type Event struct {
	Kind EventKind

	// Path is the stored file path (EventFileCompleted).
	Path string

	// BytesDone and BytesTotal carry transfer progress (EventProgress).
	BytesDone  int64
	BytesTotal int64

	// Err and URL describe a per-item failure (EventItemError).
	Err error
	URL string
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{slog.Int("kind", int(e.Kind))}

	if e.Path != "" {
		attrs = append(attrs, slog.String("path", e.Path))
	}

	if e.Err != nil {
		attrs = append(attrs, slog.Any("error", e.Err), slog.String("url", e.URL))
	}

	return slog.GroupValue(attrs...)
}

// EmitFunc receives stream events. Implementations must be safe to call from
// the fetcher's goroutine; the orchestrator's emit func only forwards into
// its event queue.
type EmitFunc func(Event)

// Fetcher hides the network, extraction and download mechanics from the
// session core. Implementations must honor ctx cancellation on every
// blocking call.
type Fetcher interface {
	// ProbeCount returns the number of media items expected for the URL.
	// Errors leave the session total unknown rather than failing the run.
	ProbeCount(ctx context.Context, url string) (int, error)

	// Stream extracts and downloads all media for the URL, emitting an
	// event per item. The returned error is the overall stream outcome;
	// item errors alone do not fail a stream.
	Stream(ctx context.Context, url string, emit EmitFunc) error

	// Describe returns the note's textual description, possibly empty.
	Describe(ctx context.Context, url string) (string, error)

	// PostID derives a post identifier from the URL, or "" when it cannot.
	PostID(url string) string

	// TransformURL rewrites a raw media URL to its preferred CDN form, or
	// returns "" when no transform applies.
	TransformURL(raw string) string

	// Download fetches one media URL into storage under filename and
	// returns the stored path.
	Download(ctx context.Context, url, filename string) (string, error)
}

func classifyFetchError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "fetch"
	}
}
