package client

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// MockState is an in-memory test implementation of StateInterface
type MockState struct {
	mu sync.RWMutex

	// In-memory storage
	values map[string]string
	sets   map[string]map[string]bool
	dir    string

	// Error injection
	getErr error
	setErr error
}

// NewMockState creates a new mock state
func NewMockState() *MockState {
	return &MockState{
		values: make(map[string]string),
		sets:   make(map[string]map[string]bool),
		dir:    "/tmp/mock-state",
	}
}

// GetString retrieves a value
func (s *MockState) GetString(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.getErr != nil {
		return "", s.getErr
	}
	return s.values[key], nil
}

// SetString stores a value
func (s *MockState) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

// GetBool retrieves a boolean
func (s *MockState) GetBool(key string) (bool, error) {
	v, err := s.GetString(key)
	if err != nil || v == "" {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("setting %s is not a boolean: %q", key, v)
	}
	return b, nil
}

// SetBool stores a boolean
func (s *MockState) SetBool(key string, value bool) error {
	return s.SetString(key, strconv.FormatBool(value))
}

// GetStringSet returns the members of a set, sorted
func (s *MockState) GetStringSet(name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []string
	for v := range s.sets[name] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// SetStringSet replaces a set
func (s *MockState) SetStringSet(name string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setErr != nil {
		return s.setErr
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	s.sets[name] = set
	return nil
}

// GetStateDir returns the mock directory
func (s *MockState) GetStateDir() string {
	return s.dir
}

// Close is a no-op
func (s *MockState) Close() error {
	return nil
}

// SetGetError makes every read fail with err (nil to reset)
func (s *MockState) SetGetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

// SetSetError makes every write fail with err (nil to reset)
func (s *MockState) SetSetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = err
}
