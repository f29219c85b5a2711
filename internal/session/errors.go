package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrSessionNotFound = errors.New("session: not found")

// InputError reports an article or card sequence that cannot back a session.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return "session: " + e.Message }

// ValidationError reports rejected settings. Nothing was applied.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return "session: invalid settings: " + strings.Join(parts, "; ")
}

// StateError reports a transition that is not allowed in the current state.
type StateError struct {
	Op    string
	State State
	Msg   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("session: %s not allowed while %s: %s", e.Op, e.State, e.Msg)
}

// SyncError reports a failed round trip to the durable store. For writes the
// local transition has already been applied; Pending is the number of queued
// writes, including the failed one, that Retry will resend. Op "reload" means
// the fetch failed and nothing was dropped.
type SyncError struct {
	Op      string
	Pending int
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("session: sync %s failed (%d pending): %v", e.Op, e.Pending, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
