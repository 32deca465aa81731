// Package monitor keeps the raw traffic feeds shown to the operator.
package monitor

import "sync"

// DefaultLimit is how many lines a feed keeps
const DefaultLimit = 1000

// Feed is an append-only, bounded list of lines. When full, the oldest
// line is dropped.
type Feed struct {
	mu          sync.Mutex
	limit       int
	lines       []string
	subscribers []func(line string)
}

// NewFeed creates a feed keeping at most limit lines
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Feed{limit: limit}
}

// Append adds a line and notifies subscribers
func (f *Feed) Append(line string) {
	f.mu.Lock()
	f.lines = append(f.lines, line)
	if over := len(f.lines) - f.limit; over > 0 {
		f.lines = append([]string(nil), f.lines[over:]...)
	}
	subs := make([]func(string), len(f.subscribers))
	copy(subs, f.subscribers)
	f.mu.Unlock()

	for _, s := range subs {
		s(line)
	}
}

// Lines returns a copy of the current lines, oldest first
func (f *Feed) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

// Clear drops all lines
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = nil
}

// Subscribe registers fn to be called for each appended line
func (f *Feed) Subscribe(fn func(line string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers = append(f.subscribers, fn)
}
