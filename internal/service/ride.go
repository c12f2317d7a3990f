// Package service contains the business logic for the ride dispatch API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here; services depend on repo interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pkordes/ride-dispatch/internal/domain"
	"github.com/pkordes/ride-dispatch/internal/geo"
	"github.com/pkordes/ride-dispatch/internal/repo"
)

// originCellPrecision is the geohash length recorded for a ranking origin,
// roughly a 5 km cell.
const originCellPrecision = 5

// RideService implements the ride listing query engine and ride writes.
// It holds no state between calls: every method receives the caller's now,
// and fetched rides live only for the duration of one call.
type RideService struct {
	rides  repo.RideRepo
	users  repo.UserRepo
	tracer trace.Tracer
}

// NewRideService constructs a RideService backed by the provided repos.
// Spans go to the global otel TracerProvider.
func NewRideService(rides repo.RideRepo, users repo.UserRepo) *RideService {
	return &RideService{
		rides:  rides,
		users:  users,
		tracer: otel.Tracer("github.com/pkordes/ride-dispatch/internal/service"),
	}
}

// List returns one page of rides matching q.
//
// Without an origin the repository orders and paginates natively. With an
// origin the whole filtered set is fetched, ranked by distance from origin to
// each pickup point, and only then sliced, so page boundaries always agree
// with the global order.
func (s *RideService) List(ctx context.Context, q domain.RideQuery, now time.Time) (domain.RidePage, error) {
	ctx, span := s.tracer.Start(ctx, "RideService.List")
	defer span.End()

	var (
		page domain.RidePage
		err  error
	)
	if q.Origin == nil {
		span.SetAttributes(attribute.String("rides.ordering", q.Ordering.String()))
		page, err = s.listOrdered(ctx, q, now)
	} else {
		span.SetAttributes(attribute.String("rides.origin_cell", geo.Cell(*q.Origin, originCellPrecision)))
		page, err = s.listByDistance(ctx, q, now)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.RidePage{}, fmt.Errorf("service.RideService.List: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("rides.total", page.Total),
		attribute.Int("rides.page", q.Page.Page),
		attribute.Int("rides.returned", len(page.Rides)),
	)
	return page, nil
}

func (s *RideService) listOrdered(ctx context.Context, q domain.RideQuery, now time.Time) (domain.RidePage, error) {
	ctx, span := s.tracer.Start(ctx, "fetch")
	defer span.End()

	rides, total, err := s.rides.FindPage(ctx, q.Filter, q.Ordering, now, q.Page)
	if err != nil {
		span.RecordError(err)
		return domain.RidePage{}, fmt.Errorf("fetch: %w", err)
	}
	return domain.RidePage{Rides: rides, Total: total, Page: q.Page}, nil
}

func (s *RideService) listByDistance(ctx context.Context, q domain.RideQuery, now time.Time) (domain.RidePage, error) {
	rides, err := s.fetchAll(ctx, q.Filter, now)
	if err != nil {
		return domain.RidePage{}, fmt.Errorf("fetch: %w", err)
	}

	// The caller may have gone away while the fetch was in flight.
	if err := ctx.Err(); err != nil {
		return domain.RidePage{}, fmt.Errorf("rank: %w", err)
	}

	_, span := s.tracer.Start(ctx, "rank")
	slog.DebugContext(ctx, "ranking rides by distance",
		"origin_cell", geo.Cell(*q.Origin, originCellPrecision),
		"candidates", len(rides),
	)
	ranked := RankByDistance(rides, *q.Origin)
	span.End()

	start, end := q.Page.Window(len(ranked))
	return domain.RidePage{
		Rides: ranked[start:end],
		Total: int64(len(ranked)),
		Page:  q.Page,
	}, nil
}

// fetchAll loads the full filtered set. Ordering is irrelevant because the
// distance ranking fully determines the output order; the repository default
// still fixes the fetch order that breaks distance ties.
func (s *RideService) fetchAll(ctx context.Context, f domain.RideFilter, now time.Time) ([]domain.Ride, error) {
	ctx, span := s.tracer.Start(ctx, "fetch")
	defer span.End()

	rides, err := s.rides.Find(ctx, f, domain.OrderPickupTimeAsc, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return rides, nil
}

// GetByID returns a single ride with its relations attached.
// Returns domain.ErrNotFound if no ride with that ID exists.
func (s *RideService) GetByID(ctx context.Context, id int64, now time.Time) (domain.Ride, error) {
	ride, err := s.rides.GetByID(ctx, id, now)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("service.RideService.GetByID: %w", err)
	}
	return ride, nil
}

// Create validates a new ride, verifies the rider and driver exist, then persists.
// Returns domain.ErrValidation for invalid input and domain.ErrReference when
// the rider or driver does not resolve.
func (s *RideService) Create(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	if err := validateRide(ride); err != nil {
		return domain.Ride{}, err
	}
	rider, err := s.resolveUser(ctx, "rider_id", ride.RiderID)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("service.RideService.Create: %w", err)
	}
	driver, err := s.resolveUser(ctx, "driver_id", ride.DriverID)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("service.RideService.Create: %w", err)
	}

	created, err := s.rides.Create(ctx, ride)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("service.RideService.Create: %w", err)
	}
	created.Rider = rider
	created.Driver = driver
	created.RecentEvents = []domain.RideEvent{}
	return created, nil
}

// Update applies patch to an existing ride and persists the result.
// Only references that the patch changes are re-resolved.
// Returns domain.ErrNotFound if the ride does not exist.
func (s *RideService) Update(ctx context.Context, id int64, patch domain.RidePatch, now time.Time) (domain.Ride, error) {
	current, err := s.rides.GetByID(ctx, id, now)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("service.RideService.Update: %w", err)
	}

	next := patch.Apply(current)
	if err := validateRide(next); err != nil {
		return domain.Ride{}, err
	}
	if next.RiderID != current.RiderID {
		if next.Rider, err = s.resolveUser(ctx, "rider_id", next.RiderID); err != nil {
			return domain.Ride{}, fmt.Errorf("service.RideService.Update: %w", err)
		}
	}
	if next.DriverID != current.DriverID {
		if next.Driver, err = s.resolveUser(ctx, "driver_id", next.DriverID); err != nil {
			return domain.Ride{}, fmt.Errorf("service.RideService.Update: %w", err)
		}
	}

	updated, err := s.rides.Update(ctx, next)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("service.RideService.Update: %w", err)
	}
	updated.Rider = next.Rider
	updated.Driver = next.Driver
	updated.RecentEvents = current.RecentEvents
	return updated, nil
}

// resolveUser loads the user a write refers to, turning a missing user into a
// reference error naming field.
func (s *RideService) resolveUser(ctx context.Context, field string, id int64) (domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ReferenceError(field, fmt.Sprintf("user %d does not exist", id))
	}
	return u, err
}
