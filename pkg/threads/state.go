// Package threads loads the active threads of a forum and fills in the
// author and first post of each one in the background.
package threads

import (
	"github.com/aeolun/afternoon/pkg/api"
)

// Status is the phase of the thread list
type Status int

const (
	StatusLoading Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of the thread list.
// While loading, Threads still holds the previous list. Err is only set in
// StatusError.
type State struct {
	Status  Status
	Threads []api.Thread
	Err     string
}

// Find returns the thread with id from the snapshot
func (s State) Find(id string) (api.Thread, bool) {
	for _, th := range s.Threads {
		if th.ID == id {
			return th, true
		}
	}
	return api.Thread{}, false
}

// Visible returns the threads whose id is not in hidden, preserving order.
// With nothing hidden the input slice itself is returned.
func Visible(threads []api.Thread, hidden map[string]bool) []api.Thread {
	if len(hidden) == 0 {
		return threads
	}
	out := make([]api.Thread, 0, len(threads))
	for _, th := range threads {
		if !hidden[th.ID] {
			out = append(out, th)
		}
	}
	return out
}
