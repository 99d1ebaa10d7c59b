// Package progress tracks per-session completion counts. A Tracker is owned
// by the session event loop and must not be shared across goroutines.
package progress

import "fmt"

// Tracker counts completed downloads against an expected total. The total is
// unknown until SetTotal is called with a positive value; probe failures
// leave it unknown for the whole session.
type Tracker struct {
	completed int
	total     int
	known     bool
}

// New returns a tracker with zero completions and an unknown total.
func New() *Tracker {
	return &Tracker{}
}

// SetTotal sets the expected number of downloads. Values <= 0 mark the total
// as unknown.
func (t *Tracker) SetTotal(n int) {
	if n <= 0 {
		t.total = 0
		t.known = false

		return
	}

	t.total = n
	t.known = true
}

// Increment records one completed download.
func (t *Tracker) Increment() {
	t.completed++
}

// Reset clears completions and forgets the total.
func (t *Tracker) Reset() {
	t.completed = 0
	t.total = 0
	t.known = false
}

// Completed returns the number of completed downloads.
func (t *Tracker) Completed() int {
	return t.completed
}

// Total returns the expected total and whether it is known.
func (t *Tracker) Total() (int, bool) {
	return t.total, t.known
}

// Snapshot renders the display label ("N/M", or "N/?" while the total is
// unknown) and the completion fraction in [0,1]. The fraction stays 0 until
// the total is known and clamps at 1 if completions ever exceed it.
func (t *Tracker) Snapshot() (string, float64) {
	if !t.known {
		return fmt.Sprintf("%d/?", t.completed), 0.0
	}

	fraction := float64(t.completed) / float64(t.total)
	if fraction > 1 {
		fraction = 1
	}

	return fmt.Sprintf("%d/%d", t.completed, t.total), fraction
}
