package repo

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/ride-dispatch/internal/domain"
	"github.com/pkordes/ride-dispatch/internal/eventwindow"
)

// ---- fake db ---------------------------------------------------------------

// countingDB is an in-memory stand-in for the db interface. It answers the
// handful of statements pgRideRepo issues and counts every round-trip so tests
// can assert the hydration strategy without a running Postgres.
type countingDB struct {
	rides  []domain.Ride
	users  map[int64]domain.User
	events []domain.RideEvent

	calls     int
	lastSince time.Time
}

func (f *countingDB) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	f.calls++
	return pgconn.CommandTag{}, nil
}

func (f *countingDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.calls++
	named := args[0].(pgx.NamedArgs)

	switch {
	case strings.Contains(sql, "FROM ride_events"):
		f.lastSince = named["since"].(time.Time)
		want := idSet(named["ride_ids"].([]int64))
		var out [][]any
		for _, e := range f.events {
			if _, ok := want[e.RideID]; ok && !e.CreatedAt.Before(f.lastSince) {
				out = append(out, []any{e.ID, e.RideID, e.Description, e.CreatedAt})
			}
		}
		return &fakeRows{rows: out}, nil

	case strings.Contains(sql, "FROM users u"):
		var out [][]any
		for _, id := range named["ids"].([]int64) {
			if u, ok := f.users[id]; ok {
				out = append(out, []any{u.ID, u.Role, u.FirstName, u.LastName, u.Email, u.PhoneNumber})
			}
		}
		return &fakeRows{rows: out}, nil

	case strings.Contains(sql, "FROM rides r"):
		rides := f.rides
		if limit, ok := named["limit"].(int); ok {
			start, end := domain.PaginationParams{Page: named["offset"].(int)/limit + 1, Limit: limit}.Window(len(rides))
			rides = rides[start:end]
		}
		out := make([][]any, 0, len(rides))
		for _, r := range rides {
			out = append(out, []any{
				r.ID, string(r.Status), r.RiderID, r.DriverID,
				r.Pickup.Lat, r.Pickup.Lon, r.Dropoff.Lat, r.Dropoff.Lon, r.PickupTime,
			})
		}
		return &fakeRows{rows: out}, nil
	}
	return nil, fmt.Errorf("countingDB: unexpected query: %s", sql)
}

func (f *countingDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.calls++
	if strings.Contains(sql, "count(*)") {
		return &fakeRows{rows: [][]any{{int64(len(f.rides))}}, i: 0}
	}
	return &fakeRows{}
}

func idSet(ids []int64) map[int64]struct{} {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// fakeRows implements pgx.Rows and pgx.Row over pre-built value slices.
// Scan assigns by reflection, so each value must match its destination type.
type fakeRows struct {
	rows [][]any
	i    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.rows) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.rows[r.i-1], nil }

func (r *fakeRows) Scan(dest ...any) error {
	// Used as a pgx.Row: advance to the first row implicitly.
	if r.i == 0 {
		if !r.Next() {
			return pgx.ErrNoRows
		}
	}
	row := r.rows[r.i-1]
	if len(dest) != len(row) {
		return fmt.Errorf("fakeRows: %d destinations for %d values", len(dest), len(row))
	}
	for j, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[j]))
	}
	return nil
}

// snapshotDB is a countingDB that can also begin transactions, like a pool.
type snapshotDB struct {
	*countingDB
	opts pgx.TxOptions
	tx   *fakeTx
}

func (s *snapshotDB) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	s.opts = opts
	s.tx = &fakeTx{db: s.countingDB}
	return s.tx, nil
}

// fakeTx routes statements to the wrapped countingDB and records how the
// transaction ended. Methods not overridden panic through the nil pgx.Tx.
type fakeTx struct {
	pgx.Tx
	db         *countingDB
	statements int
	committed  bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.statements++
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	t.statements++
	return t.db.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	t.statements++
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error { return nil }

// ---- fixtures --------------------------------------------------------------

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// seed builds n rides, each with its own rider, a shared driver, one event
// inside the window and one outside it.
func seed(n int) *countingDB {
	f := &countingDB{users: map[int64]domain.User{
		1: {ID: 1, Role: "driver", FirstName: "Dana", LastName: "Driver", Email: "dana@example.com"},
	}}
	for i := range n {
		riderID := int64(1000 + i)
		rideID := int64(i + 1)
		f.users[riderID] = domain.User{ID: riderID, Role: "rider", Email: fmt.Sprintf("rider%d@example.com", i)}
		f.rides = append(f.rides, domain.Ride{
			ID: rideID, Status: domain.StatusPickup, RiderID: riderID, DriverID: 1,
			Pickup:     domain.Coordinate{Lat: 37.77, Lon: -122.41},
			Dropoff:    domain.Coordinate{Lat: 37.80, Lon: -122.27},
			PickupTime: testNow.Add(-time.Duration(i) * time.Minute),
		})
		f.events = append(f.events,
			domain.RideEvent{ID: rideID * 10, RideID: rideID, Description: "recent", CreatedAt: testNow.Add(-time.Hour)},
			domain.RideEvent{ID: rideID*10 + 1, RideID: rideID, Description: "stale", CreatedAt: testNow.Add(-30 * time.Hour)},
		)
	}
	return f
}

// ---- tests -----------------------------------------------------------------

// TestFind_RoundTripsConstant verifies that hydrating relations costs the same
// number of round-trips whether one ride or a thousand are returned.
func TestFind_RoundTripsConstant(t *testing.T) {
	for _, n := range []int{1, 10, 100, 1000} {
		t.Run(fmt.Sprintf("rides=%d", n), func(t *testing.T) {
			f := seed(n)
			r := NewRideRepo(f)

			rides, err := r.Find(context.Background(), domain.RideFilter{}, domain.OrderPickupTimeAsc, testNow)

			require.NoError(t, err)
			require.Len(t, rides, n)
			assert.Equal(t, 3, f.calls, "rides + users + events")
		})
	}
}

func TestFindPage_RoundTripsConstant(t *testing.T) {
	for _, n := range []int{1, 1000} {
		t.Run(fmt.Sprintf("rides=%d", n), func(t *testing.T) {
			f := seed(n)
			r := NewRideRepo(f)

			rides, total, err := r.FindPage(context.Background(), domain.RideFilter{}, domain.OrderPickupTimeAsc, testNow,
				domain.PaginationParams{Page: 1, Limit: 20})

			require.NoError(t, err)
			assert.Equal(t, int64(n), total)
			assert.Len(t, rides, min(n, 20))
			assert.Equal(t, 4, f.calls, "count + rides + users + events")
		})
	}
}

func TestFind_AttachesRelations(t *testing.T) {
	f := seed(3)
	r := NewRideRepo(f)

	rides, err := r.Find(context.Background(), domain.RideFilter{}, domain.OrderPickupTimeAsc, testNow)

	require.NoError(t, err)
	assert.Equal(t, eventwindow.Since(testNow), f.lastSince, "events query must use the window lower bound")
	for _, ride := range rides {
		assert.Equal(t, ride.RiderID, ride.Rider.ID)
		assert.Equal(t, "dana@example.com", ride.Driver.Email)
		require.Len(t, ride.RecentEvents, 1)
		assert.Equal(t, "recent", ride.RecentEvents[0].Description)
	}
}

func TestFind_NoEventsIsEmptySlice(t *testing.T) {
	f := seed(1)
	f.events = nil
	r := NewRideRepo(f)

	rides, err := r.Find(context.Background(), domain.RideFilter{}, domain.OrderPickupTimeAsc, testNow)

	require.NoError(t, err)
	require.Len(t, rides, 1)
	assert.NotNil(t, rides[0].RecentEvents)
	assert.Empty(t, rides[0].RecentEvents)
}

func TestFind_EmptyResultSkipsHydration(t *testing.T) {
	f := seed(0)
	r := NewRideRepo(f)

	rides, err := r.Find(context.Background(), domain.RideFilter{}, domain.OrderPickupTimeAsc, testNow)

	require.NoError(t, err)
	assert.Empty(t, rides)
	assert.Equal(t, 1, f.calls)
}

func TestFind_UnknownStatusMatchesNothing(t *testing.T) {
	f := seed(5)
	r := NewRideRepo(f)

	rides, err := r.Find(context.Background(), domain.NewRideFilter("teleported", ""), domain.OrderPickupTimeAsc, testNow)

	require.NoError(t, err)
	assert.Empty(t, rides)
	assert.Zero(t, f.calls)
}

// TestFindPage_SharesOneSnapshot verifies that the count and the page are read
// inside a single read-only repeatable-read transaction when the repo owns
// its connection.
func TestFindPage_SharesOneSnapshot(t *testing.T) {
	db := &snapshotDB{countingDB: seed(5)}
	r := NewRideRepo(db)

	rides, total, err := r.FindPage(context.Background(), domain.RideFilter{}, domain.OrderPickupTimeAsc, testNow,
		domain.PaginationParams{Page: 2, Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, rides, 2)
	assert.Equal(t, pgx.RepeatableRead, db.opts.IsoLevel)
	assert.Equal(t, pgx.ReadOnly, db.opts.AccessMode)
	require.NotNil(t, db.tx)
	assert.Equal(t, 4, db.tx.statements, "every statement runs inside the transaction")
	assert.True(t, db.tx.committed)
}

func TestClassify(t *testing.T) {
	t.Run("deadline exceeded", func(t *testing.T) {
		err := classify(fmt.Errorf("query: %w", context.DeadlineExceeded))
		assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
	t.Run("statement timeout", func(t *testing.T) {
		err := classify(&pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"})
		assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	})
	t.Run("caller cancelled", func(t *testing.T) {
		err := classify(context.Canceled)
		assert.NotErrorIs(t, err, domain.ErrUpstreamTimeout)
	})
	t.Run("rider foreign key", func(t *testing.T) {
		err := classify(&pgconn.PgError{Code: "23503", ConstraintName: "rides_id_rider_fkey"})
		require.ErrorIs(t, err, domain.ErrReference)
		var fe *domain.FieldError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "rider_id", fe.Field)
	})
	t.Run("driver foreign key", func(t *testing.T) {
		err := classify(&pgconn.PgError{Code: "23503", ConstraintName: "rides_id_driver_fkey"})
		var fe *domain.FieldError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "driver_id", fe.Field)
	})
	t.Run("already classified", func(t *testing.T) {
		err := classify(classify(context.DeadlineExceeded))
		assert.Equal(t, fmt.Sprintf("%v: %v", domain.ErrUpstreamTimeout, context.DeadlineExceeded), err.Error())
	})
	t.Run("no rows", func(t *testing.T) {
		assert.ErrorIs(t, notFound(pgx.ErrNoRows), domain.ErrNotFound)
	})
}
