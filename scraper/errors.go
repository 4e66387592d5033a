package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPage means the page parsed fine but held zero listing nodes.
	ErrEmptyPage = errors.New("empty page: no listing nodes found")

	// ErrNoResults means listing nodes existed but none survived extraction
	// and validation.
	ErrNoResults = errors.New("no results: every candidate was rejected")
)

// BlockedError is fatal for the run: the marketplace served an anti-bot
// interstitial instead of results. Retrying the same request only burns the
// identity further, so the fetcher never retries past it.
type BlockedError struct {
	Signature string // which detection rule fired
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by anti-bot protection (%s)", e.Signature)
}

// NetworkError wraps the last transient failure after the retry budget is
// exhausted.
type NetworkError struct {
	Attempts int
	Last     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *NetworkError) Unwrap() error { return e.Last }

// PersistenceError marks a storage failure during the persist step. The
// pipeline degrades instead of failing outright when it sees one: scraped
// items are still returned to the caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
