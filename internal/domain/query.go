package domain

import "strings"

// RideFilter holds the optional predicates of a ride listing.
// The zero value matches every ride.
type RideFilter struct {
	// Status restricts results to one status. Empty means any status.
	Status RideStatus
	// RiderEmail restricts results to riders whose email contains this
	// substring, case-insensitively. Empty means any rider.
	RiderEmail string
	// MatchNone is set when the caller asked for a status outside the fixed
	// set. Exact-match semantics mean nothing can match.
	MatchNone bool
}

// NewRideFilter builds a RideFilter from raw query-string values.
// Blank values are treated as absent.
func NewRideFilter(status, riderEmail string) RideFilter {
	f := RideFilter{RiderEmail: strings.TrimSpace(riderEmail)}
	if strings.TrimSpace(status) == "" {
		return f
	}
	if st, ok := ParseRideStatus(status); ok {
		f.Status = st
	} else {
		f.MatchNone = true
	}
	return f
}

// Ordering is a field-ordering directive for ride listings.
type Ordering int

const (
	// OrderPickupTimeAsc is the default ordering.
	OrderPickupTimeAsc Ordering = iota
	OrderPickupTimeDesc
)

// ParseOrdering maps the ordering query value to an Ordering.
// "pickup_time" sorts ascending and "-pickup_time" descending; anything else
// falls back to the default rather than failing.
func ParseOrdering(s string) Ordering {
	switch strings.TrimSpace(s) {
	case "-pickup_time":
		return OrderPickupTimeDesc
	default:
		return OrderPickupTimeAsc
	}
}

func (o Ordering) String() string {
	if o == OrderPickupTimeDesc {
		return "-pickup_time"
	}
	return "pickup_time"
}

// RideQuery is a complete listing request.
// Origin is nil unless distance ranking was requested with a usable coordinate;
// when set, Ordering is ignored.
type RideQuery struct {
	Filter   RideFilter
	Ordering Ordering
	Origin   *Coordinate
	Page     PaginationParams
}

// RidePage is one page of a listing plus the size of the full filtered set.
type RidePage struct {
	Rides []Ride
	Total int64
	Page  PaginationParams
}
