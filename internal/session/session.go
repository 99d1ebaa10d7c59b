// Package session owns the download session state machine: one source URL at
// a time, from submission to batch completion. All state lives behind a
// single consumer event loop; fetch goroutines communicate with it only
// through tagged events, and observers only ever see immutable snapshots.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/justmiho/XHS-Downloader-Android/internal/clipboard"
	"github.com/justmiho/XHS-Downloader-Android/internal/config"
	"github.com/justmiho/XHS-Downloader-Android/internal/consts"
	"github.com/justmiho/XHS-Downloader-Android/internal/dedup"
	"github.com/justmiho/XHS-Downloader-Android/internal/entity"
	"github.com/justmiho/XHS-Downloader-Android/internal/errs"
	"github.com/justmiho/XHS-Downloader-Android/internal/fetch"
	"github.com/justmiho/XHS-Downloader-Android/internal/media"
	"github.com/justmiho/XHS-Downloader-Android/internal/observability"
	"github.com/justmiho/XHS-Downloader-Android/internal/progress"
)

type eventKind uint8

const (
	evStart eventKind = iota + 1
	evTotal
	evFile
	evProgress
	evItemError
	evStreamDone
	evFallbackBegin
	evFallbackEnd
	evFlag
)

// event is the loop's internal message. Every event after evStart carries
// the token of the run that produced it; mismatched tokens are stale and get
// dropped.
type event struct {
	kind  eventKind
	token string

	url        string // evStart source url; evItemError origin url
	total      int    // evTotal
	path       string // evFile
	bytesDone  int64  // evProgress
	bytesTotal int64  // evProgress
	err        error  // evItemError; evStreamDone outcome (nil = success)
	count      int    // evFallbackBegin batch size
	copied     bool   // evFallbackBegin: note text went to the clipboard
	flag       bool   // evFlag
}

// run is the mutable state of the current session. Only the loop goroutine
// touches it.
type run struct {
	token      string
	url        string
	tracker    *progress.Tracker
	registry   *dedup.Registry
	media      []entity.MediaEntry
	status     []string
	inProgress bool
	fallback   bool
	cancel     context.CancelFunc
	timerStop  func()
}

type session struct {
	log     *slog.Logger
	cfg     *config.Config
	fetcher fetch.Fetcher
	clip    clipboard.Sink
	metrics *observability.Metrics

	events chan event
	done   chan struct{}

	mu     sync.RWMutex
	latest entity.Snapshot
	token  string
	subs   map[uint64]chan entity.Snapshot
	subSeq uint64

	run *run

	closed    atomic.Bool
	startOnce sync.Once
}

// Orchestrator is the session entry surface exposed to the embedding app.
type Orchestrator interface {
	// Start launches the event loop; the loop runs until ctx ends.
	Start(ctx context.Context)

	// StartSession begins a fresh session for url, superseding any session
	// in flight. Validation is synchronous; the transfer is not.
	StartSession(url string) error

	// NoteDescription fetches the note text for url without touching
	// session state.
	NoteDescription(ctx context.Context, url string) (string, error)

	// IngestFallback resumes the current session with externally
	// discovered media URLs.
	IngestFallback(ctx context.Context, batch entity.FallbackBatch) error

	// SuggestFallback raises the fallback-suggested flag on the current
	// session; ResetFallbackFlag clears it.
	SuggestFallback()
	ResetFallbackFlag()

	// Snapshot returns the latest published state.
	Snapshot() entity.Snapshot

	// Subscribe returns a latest-wins snapshot stream primed with the
	// current state, plus a cancel func that closes it.
	Subscribe() (<-chan entity.Snapshot, func())
}

var _ Orchestrator = (*session)(nil)

// New wires an orchestrator. Call Start before submitting sessions.
func New(cfg *config.Config, log *slog.Logger, fetcher fetch.Fetcher, clip clipboard.Sink, metrics *observability.Metrics) Orchestrator {
	buffer := cfg.Session.EventBuffer
	if buffer <= 0 {
		buffer = consts.DefaultEventBuffer
	}

	return &session{
		log:     log.With(slog.String("package", "session")),
		cfg:     cfg,
		fetcher: fetcher,
		clip:    clip,
		metrics: metrics,
		events:  make(chan event, buffer),
		done:    make(chan struct{}),
		subs:    make(map[uint64]chan entity.Snapshot),
	}
}

func (s *session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.loop(ctx)
	})
}

func (s *session) loop(ctx context.Context) {
	log := s.log.With(slog.String("func", "loop"))

	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.closed.Store(true)

			if s.run != nil && s.run.cancel != nil {
				s.run.cancel()
			}

			log.InfoContext(ctx, "got ctx done signal", slog.Any("error", ctx.Err()))

			return
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

func (s *session) handle(ctx context.Context, ev event) {
	if ev.kind == evStart {
		s.beginRun(ctx, ev)

		return
	}

	if s.run == nil || ev.token != s.run.token {
		s.log.DebugContext(ctx, "discarding stale event",
			slog.Int("kind", int(ev.kind)),
			slog.String("token", ev.token))
		s.metrics.RecordStaleEvent()

		return
	}

	changed := false

	switch ev.kind {
	case evTotal:
		s.run.tracker.SetTotal(ev.total)
		changed = true
	case evFile:
		changed = s.registerFile(ctx, ev.path)
	case evProgress:
		// byte-level progress is accepted for fetcher compatibility but
		// never feeds the session counters
	case evItemError:
		s.appendError(ctx, ev)
		changed = true
	case evStreamDone:
		s.finishStream(ctx, ev)
		changed = true
	case evFallbackBegin:
		changed = s.beginFallback(ctx, ev)
	case evFallbackEnd:
		s.finishFallback(ctx)
		changed = true
	case evFlag:
		s.run.fallback = ev.flag
		changed = true
	}

	if changed {
		s.publish()
	}
}

// beginRun resets all session state for a fresh submission and spawns the
// probe and stream goroutines on the run context.
func (s *session) beginRun(ctx context.Context, ev event) {
	log := s.log.With(slog.String("func", "beginRun"))

	if s.run != nil {
		if s.run.cancel != nil {
			s.run.cancel()
		}

		if s.run.inProgress {
			s.metrics.RecordSessionSuperseded()
		}

		log.InfoContext(ctx, "session superseded", slog.String("url", s.run.url))
	}

	// a non-positive timeout means the run is bounded only by the loop
	// context; long fetches are then the fetcher's concern
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)

	if timeout := s.cfg.Session.Timeout; timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	s.run = &run{
		token:      ev.token,
		url:        ev.url,
		tracker:    progress.New(),
		registry:   dedup.New(),
		status:     []string{fmt.Sprintf("processing: %s", ev.url)},
		inProgress: true,
		cancel:     cancel,
		timerStop:  s.metrics.SessionTimer(),
	}

	s.metrics.RecordSessionStarted()
	s.publish()

	go s.probe(runCtx, ev.token, ev.url)
	go s.stream(runCtx, ev.token, ev.url)
}

// registerFile surfaces a stored file once; duplicate paths are suppressed.
func (s *session) registerFile(ctx context.Context, path string) bool {
	if !s.run.registry.TryRegister(path) {
		s.log.DebugContext(ctx, "duplicate path suppressed", slog.String("path", path))
		s.metrics.RecordDuplicateSkipped()

		return false
	}

	kind := media.Classify(path)
	s.run.media = append(s.run.media, entity.MediaEntry{Path: path, Kind: kind})
	s.run.tracker.Increment()
	s.metrics.RecordFileCompleted(string(kind))

	if total, known := s.run.tracker.Total(); known && s.run.tracker.Completed() > total {
		s.log.WarnContext(ctx, "completions exceed expected total",
			slog.Int("completed", s.run.tracker.Completed()),
			slog.Int("total", total))
	}

	return true
}

func (s *session) appendError(ctx context.Context, ev event) {
	msg := "unknown error"
	if ev.err != nil {
		msg = ev.err.Error()
	}

	s.run.status = append(s.run.status, fmt.Sprintf("error: %s (%s)", msg, ev.url))
	s.metrics.RecordItemError()

	if triggersFallback(msg) && !s.run.fallback {
		s.run.fallback = true
		s.metrics.RecordFallbackSuggested()
		s.log.InfoContext(ctx, "fallback suggested", slog.String("trigger", msg))
	}
}

func (s *session) finishStream(ctx context.Context, ev event) {
	s.run.inProgress = false

	if s.run.timerStop != nil {
		s.run.timerStop()
		s.run.timerStop = nil
	}

	if ev.err != nil {
		s.run.status = append(s.run.status, consts.StatusDownloadFailed)
		s.metrics.RecordSessionFailed()
		s.log.WarnContext(ctx, "stream failed",
			slog.Any("error", ev.err),
			slog.String("url", s.run.url))

		return
	}

	s.run.status = append(s.run.status, consts.StatusAllComplete)
	s.metrics.RecordSessionCompleted()
	s.log.InfoContext(ctx, "stream finished",
		slog.String("url", s.run.url),
		slog.Int("media", len(s.run.media)))
}

// publish freezes the current run into a snapshot and hands it to the
// synchronous getter and every subscriber.
func (s *session) publish() {
	label, fraction := s.run.tracker.Snapshot()

	snap := entity.Snapshot{
		URL:               s.run.url,
		Status:            slices.Clone(s.run.status),
		Media:             slices.Clone(s.run.media),
		InProgress:        s.run.inProgress,
		ProgressLabel:     label,
		ProgressFraction:  fraction,
		FallbackSuggested: s.run.fallback,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = snap
	s.token = s.run.token

	for _, ch := range s.subs {
		sendLatest(ch, snap)
	}
}

// sendLatest delivers snap without ever blocking the loop: when the
// subscriber buffer is full, the stale snapshot is dropped in favor of this
// one.
func sendLatest(ch chan entity.Snapshot, snap entity.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}

		select {
		case <-ch:
		default:
		}
	}
}

func (s *session) probe(ctx context.Context, token, url string) {
	total, err := s.fetcher.ProbeCount(ctx, url)
	if err != nil {
		// a failed probe leaves the total unknown; only the stream
		// decides the session outcome
		s.log.DebugContext(ctx, "probe failed",
			slog.Any("error", err),
			slog.String("url", url))

		total = 0
	}

	s.send(event{kind: evTotal, token: token, total: total})
}

func (s *session) stream(ctx context.Context, token, url string) {
	err := s.fetcher.Stream(ctx, url, func(fe fetch.Event) {
		s.send(translateEvent(token, fe))
	})

	s.send(event{kind: evStreamDone, token: token, err: err})
}

func translateEvent(token string, fe fetch.Event) event {
	switch fe.Kind {
	case fetch.EventFileCompleted:
		return event{kind: evFile, token: token, path: fe.Path}
	case fetch.EventItemError:
		return event{kind: evItemError, token: token, err: fe.Err, url: fe.URL}
	default:
		return event{kind: evProgress, token: token, bytesDone: fe.BytesDone, bytesTotal: fe.BytesTotal}
	}
}

// send queues an event for the loop. Terminal events must not be lost to a
// canceled run context, so the only escape here is loop shutdown.
func (s *session) send(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
		s.log.Debug("event dropped after shutdown", slog.Int("kind", int(ev.kind)))
	}
}

func (s *session) StartSession(rawURL string) error {
	if s.closed.Load() {
		return errs.ErrOrchestratorClosed
	}

	url := strings.TrimSpace(rawURL)
	if url == "" {
		return errs.ErrEmptyURL
	}

	select {
	case s.events <- event{kind: evStart, token: uuid.NewString(), url: url}:
		return nil
	default:
		return fmt.Errorf("%w: %d/%d", errs.ErrEventQueueFull, len(s.events), cap(s.events))
	}
}

func (s *session) NoteDescription(ctx context.Context, rawURL string) (string, error) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return "", errs.ErrEmptyURL
	}

	desc, err := s.fetcher.Describe(ctx, url)
	if err != nil {
		return "", fmt.Errorf("describe note: %w", err)
	}

	return desc, nil
}

func (s *session) SuggestFallback() {
	s.setFallbackFlag(true)
}

func (s *session) ResetFallbackFlag() {
	s.setFallbackFlag(false)
}

func (s *session) setFallbackFlag(flag bool) {
	if s.closed.Load() {
		return
	}

	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		return
	}

	select {
	case s.events <- event{kind: evFlag, token: token, flag: flag}:
	default:
		s.log.Warn("flag event dropped, queue full", slog.Bool("flag", flag))
	}
}

func (s *session) Snapshot() entity.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latest
}

func (s *session) Subscribe() (<-chan entity.Snapshot, func()) {
	ch := make(chan entity.Snapshot, 1)

	s.mu.Lock()
	s.subSeq++
	id := s.subSeq
	s.subs[id] = ch
	ch <- s.latest
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}

	return ch, cancel
}

// fallbackTriggers are the extraction failures after which the primary path
// cannot make progress and externally discovered URLs are the only way
// forward. Matching is case-insensitive on substrings.
var fallbackTriggers = []string{
	"no media urls found",
	"failed to fetch post details",
	"could not extract post id",
}

func triggersFallback(msg string) bool {
	msg = strings.ToLower(msg)

	for _, trigger := range fallbackTriggers {
		if strings.Contains(msg, trigger) {
			return true
		}
	}

	return false
}
