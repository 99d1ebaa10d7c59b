// Package errs defines common error variables used across the application.
package errs

import "errors"

// Orchestrator errors. These are returned synchronously from the entry
// points and never change session state.
var (
	// ErrOrchestratorClosed indicates that the orchestrator is shut down and cannot accept new sessions.
	ErrOrchestratorClosed = errors.New("orchestrator is closed")
	// ErrEmptyURL indicates that the submitted URL is empty or blank.
	ErrEmptyURL = errors.New("url is empty")
	// ErrEventQueueFull indicates that the session event queue is full.
	ErrEventQueueFull = errors.New("event queue is full")
	// ErrNoSession indicates that no session has been started yet.
	ErrNoSession = errors.New("no active session")
)

// Extraction errors. Their messages double as the fallback trigger
// substrings matched by the session loop, so the wording is load-bearing.
var (
	// ErrNoMediaURLs indicates that the note page yielded no downloadable media.
	ErrNoMediaURLs = errors.New("no media URLs found")
	// ErrPostDetails indicates that the note page could not be fetched or decoded.
	ErrPostDetails = errors.New("failed to fetch post details")
	// ErrPostID indicates that no post identifier could be derived from the URL.
	ErrPostID = errors.New("could not extract post ID")
)

// Transfer and storage errors.
var (
	// ErrUnexpectedStatus indicates a non-2xx response while downloading media.
	ErrUnexpectedStatus = errors.New("unexpected http status")
	// ErrAllItemsFailed indicates that every item in a stream failed to transfer.
	ErrAllItemsFailed = errors.New("all items failed")
	// ErrEmptyFilename indicates that a file was submitted for storage without a name.
	ErrEmptyFilename = errors.New("filename is empty")
	// ErrNothingToBundle indicates that an archive was requested for zero files.
	ErrNothingToBundle = errors.New("nothing to bundle")
)
