// Package repo contains all database access logic for the ride dispatch API.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/ride-dispatch/internal/domain"
	"github.com/pkordes/ride-dispatch/internal/eventwindow"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RideRepo defines the read and write operations for Rides.
//
// Every read returns rides with Rider, Driver and RecentEvents attached.
// Relations are loaded in batched lookups, so the number of round-trips does
// not grow with the number of rides returned. now anchors the recent-events
// window (see package eventwindow).
type RideRepo interface {
	// Find returns every ride matching filter in the given order.
	Find(ctx context.Context, filter domain.RideFilter, order domain.Ordering, now time.Time) ([]domain.Ride, error)

	// FindPage returns one page of rides matching filter using the database's
	// ORDER BY / LIMIT / OFFSET, plus the total number of matching rides.
	FindPage(ctx context.Context, filter domain.RideFilter, order domain.Ordering, now time.Time, p domain.PaginationParams) ([]domain.Ride, int64, error)

	// GetByID retrieves a single ride by primary key.
	// Returns domain.ErrNotFound if no ride with that ID exists.
	GetByID(ctx context.Context, id int64, now time.Time) (domain.Ride, error)

	// Create inserts a ride and returns the stored record without relations.
	Create(ctx context.Context, ride domain.Ride) (domain.Ride, error)

	// Update overwrites the mutable fields of a ride and returns the stored
	// record without relations. Returns domain.ErrNotFound if it does not exist.
	Update(ctx context.Context, ride domain.Ride) (domain.Ride, error)
}

// pgRideRepo is the Postgres implementation of RideRepo.
type pgRideRepo struct {
	db db
}

// NewRideRepo constructs a RideRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewRideRepo(db db) RideRepo {
	return &pgRideRepo{db: db}
}

const rideColumns = `
		r.id_ride, r.status, r.id_rider, r.id_driver,
		r.pickup_latitude, r.pickup_longitude,
		r.dropoff_latitude, r.dropoff_longitude, r.pickup_time`

// rideFilterSQL joins the rider so the email predicate can be applied.
// Empty parameters disable their predicate.
const rideFilterSQL = `
		FROM rides r
		JOIN users rider ON rider.id_user = r.id_rider
		WHERE (@status::text = '' OR r.status = @status::text)
		  AND (@rider_email::text = '' OR strpos(lower(rider.email), lower(@rider_email::text)) > 0)`

// orderSQL returns the ORDER BY clause for o. The ride id is always the final
// key so equal pickup times come back in a stable order.
func orderSQL(o domain.Ordering) string {
	if o == domain.OrderPickupTimeDesc {
		return ` ORDER BY r.pickup_time DESC, r.id_ride DESC`
	}
	return ` ORDER BY r.pickup_time ASC, r.id_ride ASC`
}

func filterArgs(f domain.RideFilter) pgx.NamedArgs {
	return pgx.NamedArgs{
		"status":      string(f.Status),
		"rider_email": f.RiderEmail,
	}
}

// Find returns the full filtered set in three round-trips: rides, users, events.
func (r *pgRideRepo) Find(ctx context.Context, filter domain.RideFilter, order domain.Ordering, now time.Time) ([]domain.Ride, error) {
	if filter.MatchNone {
		return []domain.Ride{}, nil
	}

	q := `SELECT` + rideColumns + rideFilterSQL + orderSQL(order)

	rides, err := r.queryRides(ctx, q, filterArgs(filter))
	if err != nil {
		return nil, fmt.Errorf("repo.RideRepo.Find: %w", err)
	}
	if err := r.hydrate(ctx, rides, now); err != nil {
		return nil, fmt.Errorf("repo.RideRepo.Find: %w", err)
	}
	return rides, nil
}

// txBeginner is satisfied by *pgxpool.Pool and *pgx.Conn but not by pgx.Tx.
type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// snapshotOptions gives every statement of a read the same view of the data.
var snapshotOptions = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

// inSnapshot runs fn against a repo bound to a read-only repeatable-read
// transaction. When r is already bound to a transaction fn runs on it directly.
func (r *pgRideRepo) inSnapshot(ctx context.Context, fn func(*pgRideRepo) error) error {
	b, ok := r.db.(txBeginner)
	if !ok {
		return fn(r)
	}
	err := pgx.BeginTxFunc(ctx, b, snapshotOptions, func(tx pgx.Tx) error {
		return fn(&pgRideRepo{db: tx})
	})
	return classify(err)
}

// FindPage adds a COUNT to the three hydration round-trips of Find. All of
// them share one snapshot so the total always agrees with the page.
func (r *pgRideRepo) FindPage(ctx context.Context, filter domain.RideFilter, order domain.Ordering, now time.Time, p domain.PaginationParams) ([]domain.Ride, int64, error) {
	if filter.MatchNone {
		return []domain.Ride{}, 0, nil
	}

	var (
		rides []domain.Ride
		total int64
	)
	err := r.inSnapshot(ctx, func(tx *pgRideRepo) error {
		var err error
		rides, total, err = tx.findPage(ctx, filter, order, now, p)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.RideRepo.FindPage: %w", err)
	}
	return rides, total, nil
}

func (r *pgRideRepo) findPage(ctx context.Context, filter domain.RideFilter, order domain.Ordering, now time.Time, p domain.PaginationParams) ([]domain.Ride, int64, error) {
	var total int64
	countQ := `SELECT count(*)` + rideFilterSQL
	if err := r.db.QueryRow(ctx, countQ, filterArgs(filter)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", classify(err))
	}
	if total == 0 {
		return []domain.Ride{}, 0, nil
	}

	q := `SELECT` + rideColumns + rideFilterSQL + orderSQL(order) + `
		LIMIT @limit OFFSET @offset`
	args := filterArgs(filter)
	args["limit"] = p.Limit
	args["offset"] = p.Offset()

	rides, err := r.queryRides(ctx, q, args)
	if err != nil {
		return nil, 0, err
	}
	if err := r.hydrate(ctx, rides, now); err != nil {
		return nil, 0, err
	}
	return rides, total, nil
}

// GetByID retrieves a ride by primary key with its relations attached.
func (r *pgRideRepo) GetByID(ctx context.Context, id int64, now time.Time) (domain.Ride, error) {
	q := `SELECT` + rideColumns + `
		FROM rides r
		WHERE r.id_ride = @id`

	ride, err := scanRide(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Ride{}, fmt.Errorf("repo.RideRepo.GetByID: %w", classify(err))
	}

	rides := []domain.Ride{ride}
	if err := r.hydrate(ctx, rides, now); err != nil {
		return domain.Ride{}, fmt.Errorf("repo.RideRepo.GetByID: %w", err)
	}
	return rides[0], nil
}

// Create inserts a new ride row and returns the persisted record.
func (r *pgRideRepo) Create(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	q := `
		INSERT INTO rides AS r (status, id_rider, id_driver,
		                        pickup_latitude, pickup_longitude,
		                        dropoff_latitude, dropoff_longitude, pickup_time)
		VALUES (@status, @id_rider, @id_driver,
		        @pickup_latitude, @pickup_longitude,
		        @dropoff_latitude, @dropoff_longitude, @pickup_time)
		RETURNING` + rideColumns

	result, err := scanRide(r.db.QueryRow(ctx, q, writeArgs(ride)))
	if err != nil {
		return domain.Ride{}, fmt.Errorf("repo.RideRepo.Create: %w", classify(err))
	}
	return result, nil
}

// Update overwrites the mutable fields of a ride and returns the updated record.
func (r *pgRideRepo) Update(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	q := `
		UPDATE rides AS r
		SET status            = @status,
		    id_rider          = @id_rider,
		    id_driver         = @id_driver,
		    pickup_latitude   = @pickup_latitude,
		    pickup_longitude  = @pickup_longitude,
		    dropoff_latitude  = @dropoff_latitude,
		    dropoff_longitude = @dropoff_longitude,
		    pickup_time       = @pickup_time
		WHERE r.id_ride = @id
		RETURNING` + rideColumns

	args := writeArgs(ride)
	args["id"] = ride.ID

	result, err := scanRide(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Ride{}, fmt.Errorf("repo.RideRepo.Update: %w", classify(err))
	}
	return result, nil
}

func writeArgs(ride domain.Ride) pgx.NamedArgs {
	return pgx.NamedArgs{
		"status":            string(ride.Status),
		"id_rider":          ride.RiderID,
		"id_driver":         ride.DriverID,
		"pickup_latitude":   ride.Pickup.Lat,
		"pickup_longitude":  ride.Pickup.Lon,
		"dropoff_latitude":  ride.Dropoff.Lat,
		"dropoff_longitude": ride.Dropoff.Lon,
		"pickup_time":       ride.PickupTime,
	}
}

func (r *pgRideRepo) queryRides(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Ride, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	rides := []domain.Ride{}
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", classify(err))
	}
	return rides, nil
}

// hydrate attaches riders, drivers and recent events to rides in place using
// one users query and one events query, whatever len(rides) is.
func (r *pgRideRepo) hydrate(ctx context.Context, rides []domain.Ride, now time.Time) error {
	if len(rides) == 0 {
		return nil
	}

	rideIDs := make([]int64, len(rides))
	seen := make(map[int64]struct{}, len(rides)*2)
	var userIDs []int64
	for i, ride := range rides {
		rideIDs[i] = ride.ID
		for _, id := range []int64{ride.RiderID, ride.DriverID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				userIDs = append(userIDs, id)
			}
		}
	}

	users, err := r.usersByID(ctx, userIDs)
	if err != nil {
		return fmt.Errorf("users: %w", err)
	}
	events, err := r.recentEventsByRide(ctx, rideIDs, eventwindow.Since(now))
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}

	for i := range rides {
		rides[i].Rider = users[rides[i].RiderID]
		rides[i].Driver = users[rides[i].DriverID]
		// The query already applies the window; Filter also guarantees a
		// non-nil slice for rides without events.
		rides[i].RecentEvents = eventwindow.Filter(now, events[rides[i].ID])
	}
	return nil
}

func (r *pgRideRepo) usersByID(ctx context.Context, ids []int64) (map[int64]domain.User, error) {
	q := `SELECT` + userColumns + `
		FROM users u
		WHERE u.id_user = ANY(@ids)`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	users := make(map[int64]domain.User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		users[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return users, nil
}

// recentEventsByRide loads the events of rideIDs created at or after since,
// grouped by ride and ordered oldest first.
func (r *pgRideRepo) recentEventsByRide(ctx context.Context, rideIDs []int64, since time.Time) (map[int64][]domain.RideEvent, error) {
	const q = `
		SELECT e.id_ride_event, e.id_ride, e.description, e.created_at
		FROM ride_events e
		WHERE e.id_ride = ANY(@ride_ids)
		  AND e.created_at >= @since
		ORDER BY e.id_ride, e.created_at, e.id_ride_event`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"ride_ids": rideIDs, "since": since})
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	events := make(map[int64][]domain.RideEvent)
	for rows.Next() {
		var e domain.RideEvent
		if err := rows.Scan(&e.ID, &e.RideID, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		events[e.RideID] = append(events[e.RideID], e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return events, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanRide to be
// reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanRide maps a single rideColumns row into a domain.Ride.
func scanRide(s scanner) (domain.Ride, error) {
	var (
		ride   domain.Ride
		status string
	)
	err := s.Scan(
		&ride.ID, &status, &ride.RiderID, &ride.DriverID,
		&ride.Pickup.Lat, &ride.Pickup.Lon,
		&ride.Dropoff.Lat, &ride.Dropoff.Lon, &ride.PickupTime,
	)
	if err != nil {
		return domain.Ride{}, notFound(err)
	}
	ride.Status = domain.RideStatus(status)
	return ride, nil
}
