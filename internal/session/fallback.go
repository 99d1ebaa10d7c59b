package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/justmiho/XHS-Downloader-Android/internal/consts"
	"github.com/justmiho/XHS-Downloader-Android/internal/entity"
	"github.com/justmiho/XHS-Downloader-Android/internal/errs"
	"github.com/justmiho/XHS-Downloader-Android/internal/media"
)

type fallbackItem struct {
	index int
	url   string
}

// IngestFallback resumes the current session with media URLs discovered
// outside the primary extraction path, typically by a WebView the host app
// pointed at the post. Note text, when present, goes to the clipboard sink
// before any transfer starts. Transfers run until ctx ends.
func (s *session) IngestFallback(ctx context.Context, batch entity.FallbackBatch) error {
	if s.closed.Load() {
		return errs.ErrOrchestratorClosed
	}

	s.mu.RLock()
	token := s.token
	sourceURL := s.latest.URL
	s.mu.RUnlock()

	if token == "" {
		return errs.ErrNoSession
	}

	log := s.log.With(slog.String("func", "IngestFallback"))

	if len(batch.URLs) == 0 {
		log.InfoContext(ctx, "empty fallback batch", slog.String("url", sourceURL))
		s.send(event{kind: evFallbackBegin, token: token})

		return nil
	}

	copied := false
	if strings.TrimSpace(batch.Content) != "" {
		s.clip.Write(batch.Content)

		copied = true
	}

	// filenames are keyed by the post id of the session source; when even
	// that cannot be extracted the batch still lands under a generic stem
	postID := s.fetcher.PostID(sourceURL)
	if postID == "" {
		postID = consts.DefaultPostID
	}

	log.InfoContext(ctx, "fallback batch accepted",
		slog.Int("items", len(batch.URLs)),
		slog.String("post_id", postID),
		slog.Bool("copied", copied))

	s.send(event{kind: evFallbackBegin, token: token, count: len(batch.URLs), copied: copied})

	go s.runFallback(ctx, token, postID, slices.Clone(batch.URLs))

	return nil
}

// runFallback drains the batch through a small worker pool. Item order is
// preserved in the filenames, not in completion order.
func (s *session) runFallback(ctx context.Context, token, postID string, urls []string) {
	log := s.log.With(slog.String("func", "runFallback"))

	workers := s.cfg.Session.FallbackWorkers
	if workers <= 0 {
		workers = consts.DefaultFallbackWorkers
	}

	if workers > len(urls) {
		workers = len(urls)
	}

	items := make(chan fallbackItem)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for item := range items {
				s.transferItem(ctx, token, postID, item)
			}
		}()
	}

	for i, url := range urls {
		items <- fallbackItem{index: i, url: url}
	}

	close(items)
	wg.Wait()

	s.send(event{kind: evFallbackEnd, token: token})
	log.InfoContext(ctx, "fallback batch settled", slog.Int("items", len(urls)))
}

func (s *session) transferItem(ctx context.Context, token, postID string, item fallbackItem) {
	target := s.fetcher.TransformURL(item.url)
	if target == "" {
		target = item.url
	}

	filename := fmt.Sprintf("%s_%d.%s", postID, item.index+1, media.ResolveExtension(target))

	path, err := s.fetcher.Download(ctx, target, filename)
	if err != nil {
		s.send(event{kind: evItemError, token: token, err: err, url: item.url})

		return
	}

	s.send(event{kind: evFile, token: token, path: path})
}

// beginFallback runs on the loop. An empty batch only leaves a status line
// behind; a real one re-opens the session and stretches the expected total
// past what the primary phase already delivered.
func (s *session) beginFallback(ctx context.Context, ev event) bool {
	if ev.count == 0 {
		s.run.status = append(s.run.status, consts.StatusFallbackEmpty)

		return true
	}

	if ev.copied {
		s.run.status = append(s.run.status, consts.StatusNoteCopied)
	}

	s.run.inProgress = true
	s.run.tracker.SetTotal(s.run.tracker.Completed() + ev.count)
	s.metrics.RecordFallbackStarted()
	s.log.InfoContext(ctx, "fallback transfer started",
		slog.Int("items", ev.count),
		slog.String("url", s.run.url))

	return true
}

func (s *session) finishFallback(ctx context.Context) {
	s.run.status = append(s.run.status, consts.StatusFallbackComplete)
	s.run.fallback = false
	s.run.inProgress = false
	s.metrics.RecordFallbackIngest()
	s.log.InfoContext(ctx, "fallback transfer complete", slog.String("url", s.run.url))
}
