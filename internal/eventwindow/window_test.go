package eventwindow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/ride-dispatch/internal/domain"
	"github.com/pkordes/ride-dispatch/internal/eventwindow"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSince(t *testing.T) {
	assert.Equal(t, time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC), eventwindow.Since(now))
}

func TestContains_Boundaries(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"exactly at lower bound", now.Add(-24 * time.Hour), true},
		{"one nanosecond before lower bound", now.Add(-24*time.Hour - time.Nanosecond), false},
		{"one hour ago", now.Add(-time.Hour), true},
		{"thirty hours ago", now.Add(-30 * time.Hour), false},
		{"exactly now", now, true},
		{"clock skew after now", now.Add(time.Second), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, eventwindow.Contains(now, tc.at))
		})
	}
}

// TestFilter_OnlyRecent covers the case of one event an hour old and one
// thirty hours old: only the first survives.
func TestFilter_OnlyRecent(t *testing.T) {
	events := []domain.RideEvent{
		{ID: 1, RideID: 7, Description: "Status changed to pickup", CreatedAt: now.Add(-time.Hour)},
		{ID: 2, RideID: 7, Description: "Status changed to dropoff", CreatedAt: now.Add(-30 * time.Hour)},
	}

	got := eventwindow.Filter(now, events)

	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}

// TestFilter_MatchesDefinitionForAnyNow checks that Filter keeps exactly the
// events with created_at >= now-24h for a spread of reference instants.
func TestFilter_MatchesDefinitionForAnyNow(t *testing.T) {
	var events []domain.RideEvent
	base := now.Add(-72 * time.Hour)
	for i := range 144 {
		events = append(events, domain.RideEvent{ID: int64(i), CreatedAt: base.Add(time.Duration(i) * 30 * time.Minute)})
	}

	for offset := -48 * time.Hour; offset <= 48*time.Hour; offset += 7 * time.Hour {
		ref := now.Add(offset)
		got := eventwindow.Filter(ref, events)

		var want []int64
		for _, e := range events {
			if !e.CreatedAt.Before(ref.Add(-24 * time.Hour)) {
				want = append(want, e.ID)
			}
		}
		var gotIDs []int64
		for _, e := range got {
			gotIDs = append(gotIDs, e.ID)
		}
		assert.Equal(t, want, gotIDs, "now=%s", ref)
	}
}

func TestFilter_EmptyIsNonNil(t *testing.T) {
	got := eventwindow.Filter(now, nil)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}
