// Package eventwindow decides which ride events count as recent.
//
// "Recent" is a trailing window that ends at the instant a request is served,
// so callers pass their own now on every call. Nothing here reads the clock.
package eventwindow

import (
	"time"

	"github.com/pkordes/ride-dispatch/internal/domain"
)

// Window is the length of the trailing recent-events window.
const Window = 24 * time.Hour

// Since returns the inclusive lower bound of the window ending at now.
func Since(now time.Time) time.Time {
	return now.Add(-Window)
}

// Contains reports whether an event created at createdAt is recent relative
// to now. There is no upper bound: an event stamped at or after now is kept.
func Contains(now, createdAt time.Time) bool {
	return !createdAt.Before(Since(now))
}

// Filter returns the events of events that are recent relative to now, in
// their original order. The result is never nil.
func Filter(now time.Time, events []domain.RideEvent) []domain.RideEvent {
	out := make([]domain.RideEvent, 0, len(events))
	for _, e := range events {
		if Contains(now, e.CreatedAt) {
			out = append(out, e)
		}
	}
	return out
}
