// Package domain contains the core data types for the ride dispatch API.
// This package has no external dependencies and is imported by every other
// internal package (repo, service, handler).
package domain

import (
	"strings"
	"time"
)

// RideStatus is the lifecycle state of a ride. Values are lowercase and
// hyphenated exactly as they are stored in the rides.status column.
type RideStatus string

const (
	StatusEnRoute   RideStatus = "en-route"
	StatusPickup    RideStatus = "pickup"
	StatusDropoff   RideStatus = "dropoff"
	StatusCompleted RideStatus = "completed"
	StatusCancelled RideStatus = "cancelled"
)

// RideStatuses lists every valid status in display order.
var RideStatuses = []RideStatus{
	StatusEnRoute,
	StatusPickup,
	StatusDropoff,
	StatusCompleted,
	StatusCancelled,
}

// ParseRideStatus matches s case-insensitively against the fixed status set.
// The second return value is false when s is not a known status.
func ParseRideStatus(s string) (RideStatus, bool) {
	for _, st := range RideStatuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, true
		}
	}
	return "", false
}

// Valid reports whether st is exactly one of the fixed statuses.
func (st RideStatus) Valid() bool {
	for _, s := range RideStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Ride is a single trip record.
//
// Rider, Driver and RecentEvents are read-path enrichment: the repository
// attaches them in batched lookups, they are ignored on writes.
// DistanceKM is only set when a listing was ranked by distance.
type Ride struct {
	ID         int64
	Status     RideStatus
	RiderID    int64
	DriverID   int64
	Pickup     Coordinate
	Dropoff    Coordinate
	PickupTime time.Time

	Rider        User
	Driver       User
	RecentEvents []RideEvent
	DistanceKM   *float64
}

// RidePatch carries the fields of a partial ride update.
// Nil fields are left unchanged.
type RidePatch struct {
	Status     *RideStatus
	RiderID    *int64
	DriverID   *int64
	PickupLat  *float64
	PickupLon  *float64
	DropoffLat *float64
	DropoffLon *float64
	PickupTime *time.Time
}

// Apply returns a copy of r with every non-nil patch field written over it.
func (p RidePatch) Apply(r Ride) Ride {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.RiderID != nil {
		r.RiderID = *p.RiderID
	}
	if p.DriverID != nil {
		r.DriverID = *p.DriverID
	}
	if p.PickupLat != nil {
		r.Pickup.Lat = *p.PickupLat
	}
	if p.PickupLon != nil {
		r.Pickup.Lon = *p.PickupLon
	}
	if p.DropoffLat != nil {
		r.Dropoff.Lat = *p.DropoffLat
	}
	if p.DropoffLon != nil {
		r.Dropoff.Lon = *p.DropoffLon
	}
	if p.PickupTime != nil {
		r.PickupTime = *p.PickupTime
	}
	return r
}
