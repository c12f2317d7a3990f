package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkordes/ride-dispatch/internal/domain"
)

// validateRide enforces the rules common to both Create and Update.
//   - Status must be one of the fixed statuses.
//   - Rider, driver and pickup time must be present.
//   - Coordinates must be finite and inside the latitude/longitude ranges.
func validateRide(r domain.Ride) error {
	if !r.Status.Valid() {
		return domain.ValidationError("status", "must be one of "+statusList())
	}
	if r.RiderID <= 0 {
		return domain.ValidationError("rider_id", "is required")
	}
	if r.DriverID <= 0 {
		return domain.ValidationError("driver_id", "is required")
	}
	if r.PickupTime.IsZero() {
		return domain.ValidationError("pickup_time", "is required")
	}
	for _, c := range []struct {
		field string
		value float64
		limit float64
	}{
		{"pickup_lat", r.Pickup.Lat, 90},
		{"pickup_lon", r.Pickup.Lon, 180},
		{"dropoff_lat", r.Dropoff.Lat, 90},
		{"dropoff_lon", r.Dropoff.Lon, 180},
	} {
		if math.IsNaN(c.value) || math.Abs(c.value) > c.limit {
			return domain.ValidationError(c.field, fmt.Sprintf("must be between -%g and %g", c.limit, c.limit))
		}
	}
	return nil
}

func statusList() string {
	names := make([]string, len(domain.RideStatuses))
	for i, st := range domain.RideStatuses {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}
