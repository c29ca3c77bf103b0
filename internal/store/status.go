package store

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition flags a bookmark status change that is not in the
// allowed-transition table. It indicates a programming error in the pipeline,
// not a runtime failure, so it never participates in retry classification.
var ErrInvalidTransition = errors.New("invalid bookmark status transition")

var allowedTransitions = map[BookmarkStatus][]BookmarkStatus{
	StatusPending:       {StatusMarkdownReady, StatusFailed},
	StatusMarkdownReady: {StatusContentReady, StatusFailed},
	StatusContentReady:  {StatusChunksReady, StatusFailed},
	StatusChunksReady:   {StatusDone, StatusFailed},
	StatusDone:          {},
	StatusFailed:        {},
}

// CanTransition reports whether from → to is in the allowed-transition table.
func CanTransition(from, to BookmarkStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change on the in-memory bookmark.
// Callers persist the result with UpdateBookmark.
func (b *Bookmark) Transition(to BookmarkStatus) error {
	if b == nil {
		return errors.New("bookmark is nil")
	}
	if !CanTransition(b.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}
	b.Status = to
	if to != StatusFailed {
		b.ErrorMessage = ""
	}
	return nil
}
