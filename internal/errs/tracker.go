package errs

import (
	"sync"
	"time"
)

// ErrorTracker tracks error metrics for observability, the same shape as
// a generic error tracker but keyed on this package's
// Category instead of the document store's ErrorCategory.
type ErrorTracker struct {
	mu             sync.RWMutex
	counts         map[Category]uint64
	lastOccurrence map[Category]time.Time
	criticalAlerts []CriticalAlert
}

// CriticalAlert records one critical-category error occurrence.
type CriticalAlert struct {
	Category   Category
	Error      error
	OccurredAt time.Time
}

func NewErrorTracker() *ErrorTracker {
	return &ErrorTracker{
		counts:         make(map[Category]uint64),
		lastOccurrence: make(map[Category]time.Time),
	}
}

// RecordError records an error occurrence under its category.
func (t *ErrorTracker) RecordError(err error, cat Category) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[cat]++
	t.lastOccurrence[cat] = time.Now()

	if cat == CategoryCritical {
		t.criticalAlerts = append(t.criticalAlerts, CriticalAlert{Category: cat, Error: err, OccurredAt: time.Now()})
		if len(t.criticalAlerts) > 100 {
			t.criticalAlerts = t.criticalAlerts[len(t.criticalAlerts)-100:]
		}
	}
}

// Count returns how many errors of cat have been recorded.
func (t *ErrorTracker) Count(cat Category) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[cat]
}

// CriticalAlerts returns a copy of all recorded critical alerts.
func (t *ErrorTracker) CriticalAlerts() []CriticalAlert {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]CriticalAlert, len(t.criticalAlerts))
	copy(out, t.criticalAlerts)
	return out
}
