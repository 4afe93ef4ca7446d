package ui

import "github.com/aeolun/afternoon/pkg/api"

// Safe pointer dereference helpers to prevent nil pointer crashes

// SafeThreadID safely gets the thread ID, returning "" if nil
func SafeThreadID(th *api.Thread) string {
	if th == nil {
		return ""
	}
	return th.ID
}

// SafeThreadName safely gets the thread name, returning fallback if nil
func SafeThreadName(th *api.Thread, fallback string) string {
	if th == nil || th.Name == "" {
		return fallback
	}
	return th.Name
}

// HasCurrentThread checks if model has a thread open
func (m Model) HasCurrentThread() bool {
	return m.currentThread != nil
}
