// Package consts defines application-wide constants.
package consts

import "time"

const (
	// DefaultEventBuffer is the default capacity of the session event queue.
	DefaultEventBuffer = 64
	// DefaultFallbackWorkers is the default number of workers for fallback transfers.
	DefaultFallbackWorkers = 2
	// DefaultHTTPTimeout is the default timeout for a single fetch request.
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultPostID is the post identifier used when none can be derived from the URL.
	DefaultPostID = "image"
)

// Status messages surfaced to the embedding app. The session status log is
// user-facing, so these strings are part of the external contract.
const (
	// StatusAllComplete is appended when the primary stream finishes cleanly.
	StatusAllComplete = "all downloads complete"
	// StatusDownloadFailed is appended when the primary stream fails outright.
	StatusDownloadFailed = "download failed, check link or network"
	// StatusFallbackComplete is appended when a fallback transfer finishes.
	StatusFallbackComplete = "fallback transfer complete"
	// StatusFallbackEmpty is appended when a fallback batch carries no URLs.
	StatusFallbackEmpty = "no fallback media to transfer"
	// StatusNoteCopied is appended when note text is placed on the clipboard.
	StatusNoteCopied = "note text copied to clipboard"
)

// Fetcher identifiers.
const (
	// FetcherXHS is the native xiaohongshu fetcher identifier.
	FetcherXHS = "xhs"
	// FetcherMock is the scripted fetcher identifier for testing.
	FetcherMock = "mock"
)
