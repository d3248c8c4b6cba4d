// Package history keeps the capped, newest-first log of saved predictions.
package history

import (
	"fmt"
	"sync"
	"time"

	"foodvision/internal/models"
)

const (
	DefaultCapacity = 6
	TimeLayout      = "15:04:05"
)

type Entry struct {
	Timestamp   string  `json:"timestamp"`
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

func NewEntry(at time.Time, best models.Best) Entry {
	return Entry{
		Timestamp:   at.Format(TimeLayout),
		Class:       best.Class,
		Probability: best.Probability,
	}
}

// String renders "15:04:05 → Healthy (95.0%)".
func (e Entry) String() string {
	return fmt.Sprintf("%s → %s (%s)", e.Timestamp, e.Class, models.FormatPercent(e.Probability))
}

type Log struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
}

func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity, entries: make([]Entry, 0, capacity)}
}

// Add prepends e, evicting the oldest entry beyond capacity. Entries
// without a class are ignored.
func (l *Log) Add(e Entry) bool {
	if e.Class == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]Entry{e}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
	return true
}

// Entries returns a copy, newest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log) Capacity() int { return l.capacity }
