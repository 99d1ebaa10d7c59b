// Package clipboard defines the sink for note text destined for the system
// clipboard. The Android host bridges Sink to the real clipboard; this module
// only ships headless implementations.
package clipboard

import (
	"log/slog"
	"sync"
)

// Sink receives note text when a fallback batch carries content.
type Sink interface {
	Write(text string)
}

// Discard drops everything.
type Discard struct{}

// Write implements Sink.
func (Discard) Write(string) {}

// Logged writes clipboard text to the log, for environments without a
// system clipboard.
type Logged struct {
	log *slog.Logger
}

// NewLogged returns a sink that logs each write.
func NewLogged(log *slog.Logger) *Logged {
	return &Logged{log: log.With(slog.String("package", "clipboard"))}
}

// Write implements Sink.
func (l *Logged) Write(text string) {
	l.log.Info("note text captured", slog.Int("chars", len([]rune(text))))
}

// Memory records writes for inspection in tests.
type Memory struct {
	mu    sync.Mutex
	texts []string
}

// Write implements Sink.
func (m *Memory) Write(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.texts = append(m.texts, text)
}

// Texts returns a copy of everything written so far.
func (m *Memory) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.texts))
	copy(out, m.texts)

	return out
}
