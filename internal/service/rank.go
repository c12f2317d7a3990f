package service

import (
	"cmp"
	"slices"

	"github.com/pkordes/ride-dispatch/internal/domain"
	"github.com/pkordes/ride-dispatch/internal/geo"
)

// RankByDistance returns rides ordered by ascending distance from origin to
// each pickup point, with DistanceKM set on every ride. The sort is stable:
// rides at equal distance keep their input order. rides is not modified.
func RankByDistance(rides []domain.Ride, origin domain.Coordinate) []domain.Ride {
	type rankedRide struct {
		ride domain.Ride
		km   float64
	}

	ranked := make([]rankedRide, len(rides))
	for i, r := range rides {
		ranked[i] = rankedRide{ride: r, km: geo.Distance(origin, r.Pickup)}
	}
	slices.SortStableFunc(ranked, func(a, b rankedRide) int {
		return cmp.Compare(a.km, b.km)
	})

	out := make([]domain.Ride, len(ranked))
	for i, rr := range ranked {
		km := rr.km
		out[i] = rr.ride
		out[i].DistanceKM = &km
	}
	return out
}
