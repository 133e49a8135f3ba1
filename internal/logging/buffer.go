package logging

import (
	"strings"
	"sync"
	"time"
)

// Entry represents a single captured log entry
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Buffer is a thread-safe ring buffer for log entries
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	cap     int
}

// NewBuffer creates a new log buffer with the given capacity
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		entries: make([]Entry, 0, capacity),
		cap:     capacity,
	}
}

// Add adds an entry to the buffer, dropping the oldest when full
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) >= b.cap {
		copy(b.entries, b.entries[1:])
		b.entries[len(b.entries)-1] = e
	} else {
		b.entries = append(b.entries, e)
	}
}

// Entries returns all entries, optionally filtered by level
func (b *Buffer) Entries(levels []string) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(levels) == 0 {
		result := make([]Entry, len(b.entries))
		copy(result, b.entries)
		return result
	}

	levelSet := make(map[string]bool)
	for _, l := range levels {
		levelSet[strings.ToLower(l)] = true
	}

	result := make([]Entry, 0)
	for _, e := range b.entries {
		if levelSet[strings.ToLower(e.Level)] {
			result = append(result, e)
		}
	}
	return result
}

// Len returns the number of buffered entries
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Clear removes all entries
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = b.entries[:0]
}
