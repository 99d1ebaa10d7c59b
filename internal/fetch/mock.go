package fetch

import (
	"context"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/justmiho/XHS-Downloader-Android/internal/consts"
)

// Mock is a scripted fetcher for tests. Fields are plain data so each test
// arranges exactly the behavior it needs; delays combine with
// testing/synctest for deterministic ordering.
type Mock struct {
	log *slog.Logger

	// ProbeCount script.
	Total      int
	ProbeErr   error
	ProbeDelay time.Duration

	// Stream script: each event is emitted after EventDelay, then the
	// stream settles to StreamErr after StreamDelay.
	Events      []Event
	EventDelay  time.Duration
	StreamErr   error
	StreamDelay time.Duration

	// Describe script.
	Description string
	DescribeErr error

	// PostID and TransformURL scripts.
	ID         string
	Transforms map[string]string

	// Download script, keyed by the requested URL.
	DownloadDelays map[string]time.Duration
	DownloadErrs   map[string]error

	mu        sync.Mutex
	downloads []DownloadCall
}

// DownloadCall records one Download invocation.
type DownloadCall struct {
	URL      string
	Filename string
}

var _ Fetcher = (*Mock)(nil)

// NewMock returns a mock with no scripted behavior. Tests set fields before
// wiring it into an orchestrator.
func NewMock(log *slog.Logger) *Mock {
	return &Mock{
		log: log.With(slog.String("package", "fetch"), slog.String("fetcher", consts.FetcherMock)),
	}
}

func (m *Mock) ProbeCount(ctx context.Context, url string) (int, error) {
	if err := wait(ctx, m.ProbeDelay); err != nil {
		return 0, err
	}

	if m.ProbeErr != nil {
		return 0, m.ProbeErr
	}

	return m.Total, nil
}

func (m *Mock) Stream(ctx context.Context, url string, emit EmitFunc) error {
	log := m.log.With(slog.String("func", "Stream"), slog.String("url", url))

	for _, ev := range m.Events {
		if err := wait(ctx, m.EventDelay); err != nil {
			return err
		}

		log.DebugContext(ctx, "emitting scripted event", slog.Any("event", ev))
		emit(ev)
	}

	if err := wait(ctx, m.StreamDelay); err != nil {
		return err
	}

	return m.StreamErr
}

func (m *Mock) Describe(ctx context.Context, url string) (string, error) {
	return m.Description, m.DescribeErr
}

func (m *Mock) PostID(url string) string {
	return m.ID
}

func (m *Mock) TransformURL(raw string) string {
	return m.Transforms[raw]
}

func (m *Mock) Download(ctx context.Context, url, filename string) (string, error) {
	if err := wait(ctx, m.DownloadDelays[url]); err != nil {
		return "", err
	}

	if err := m.DownloadErrs[url]; err != nil {
		return "", err
	}

	m.mu.Lock()
	m.downloads = append(m.downloads, DownloadCall{URL: url, Filename: filename})
	m.mu.Unlock()

	return path.Join("/mock/downloads", filename), nil
}

// Downloads returns a copy of the recorded Download calls.
func (m *Mock) Downloads() []DownloadCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]DownloadCall, len(m.downloads))
	copy(out, m.downloads)

	return out
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
