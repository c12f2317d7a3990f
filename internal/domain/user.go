package domain

import "time"

// User is the identity and contact projection of a rider or driver.
// Users are owned by the account subsystem; this API only reads them.
type User struct {
	ID          int64
	Role        string
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
}

// RideEvent is a timestamped status or narrative entry attached to one ride.
// CreatedAt is set once on insert and never updated.
type RideEvent struct {
	ID          int64
	RideID      int64
	Description string
	CreatedAt   time.Time
}
