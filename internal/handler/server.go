// Package handler implements the HTTP handlers for the ride dispatch API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, ride.go) but share the same Server struct so they can
// access its dependencies.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/ride-dispatch/internal/domain"
)

// RideServicer defines the business operations the ride handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type RideServicer interface {
	List(ctx context.Context, q domain.RideQuery, now time.Time) (domain.RidePage, error)
	GetByID(ctx context.Context, id int64, now time.Time) (domain.Ride, error)
	Create(ctx context.Context, ride domain.Ride) (domain.Ride, error)
	Update(ctx context.Context, id int64, patch domain.RidePatch, now time.Time) (domain.Ride, error)
}

// Server holds the dependencies shared by every handler.
type Server struct {
	rides RideServicer
	now   func() time.Time
}

// NewServer constructs the Server. now is the clock used for the recent
// events window; nil means time.Now.
func NewServer(rides RideServicer, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	return &Server{rides: rides, now: now}
}

// Routes registers every endpoint on r. rideMiddleware wraps only the /rides
// subtree, which is where the administrator gate belongs.
func (s *Server) Routes(r chi.Router, rideMiddleware ...func(http.Handler) http.Handler) {
	r.Get("/healthz", s.GetHealth)

	r.Route("/rides", func(r chi.Router) {
		r.Use(rideMiddleware...)
		r.Get("/", s.ListRides)
		r.Post("/", s.CreateRide)
		r.Get("/{id}", s.GetRide)
		r.Patch("/{id}", s.UpdateRide)
	})
}
