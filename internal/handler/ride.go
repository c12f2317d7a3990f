package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/ride-dispatch/internal/domain"
	"github.com/pkordes/ride-dispatch/internal/geo"
)

// ListRides handles GET /rides.
// Supports ?status=, ?rider_email=, ?ordering=, ?page= and ?page_size=, plus
// ?sort_by_distance=true&lat=&lon= to rank by distance from a coordinate.
func (s *Server) ListRides(w http.ResponseWriter, r *http.Request) {
	q, err := parseRideQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := s.rides.List(r.Context(), q, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ridesListed.WithLabelValues(rankingLabel(q)).Inc()

	resp := rideListResponse{
		Count:   page.Total,
		Results: make([]rideResponse, len(page.Rides)),
	}
	for i, ride := range page.Rides {
		resp.Results[i] = rideToResponse(ride)
	}
	if q.Page.HasNext(page.Total) {
		next := pageURL(r, q.Page.Page+1)
		resp.Next = &next
	}
	if q.Page.Page > 1 {
		prev := pageURL(r, q.Page.Page-1)
		resp.Previous = &prev
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRide handles GET /rides/{id}.
func (s *Server) GetRide(w http.ResponseWriter, r *http.Request) {
	id, err := rideID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ride, err := s.rides.GetByID(r.Context(), id, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rideToResponse(ride))
}

// CreateRide handles POST /rides.
func (s *Server) CreateRide(w http.ResponseWriter, r *http.Request) {
	var body rideRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	ride, err := body.toRide()
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.rides.Create(r.Context(), ride)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rideToResponse(created))
}

// UpdateRide handles PATCH /rides/{id}. Only the fields present in the body
// change.
func (s *Server) UpdateRide(w http.ResponseWriter, r *http.Request) {
	id, err := rideID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body rideRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.rides.Update(r.Context(), id, body.toPatch(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rideToResponse(updated))
}

// --- request parsing --------------------------------------------------------

// parseRideQuery builds a RideQuery from the query string. Only page and
// page_size can fail; every other parameter falls back to its default when
// it is missing or unusable.
func parseRideQuery(r *http.Request) (domain.RideQuery, error) {
	values := r.URL.Query()

	var page, pageSize *int
	if err := runtime.BindQueryParameter("form", true, false, "page", values, &page); err != nil {
		return domain.RideQuery{}, domain.InputError("page", "must be a positive integer")
	}
	if err := runtime.BindQueryParameter("form", true, false, "page_size", values, &pageSize); err != nil {
		return domain.RideQuery{}, domain.InputError("page_size", "must be a positive integer")
	}
	params, err := domain.NewPaginationParams(page, pageSize)
	if err != nil {
		return domain.RideQuery{}, err
	}

	return domain.RideQuery{
		Filter:   domain.NewRideFilter(values.Get("status"), values.Get("rider_email")),
		Ordering: domain.ParseOrdering(values.Get("ordering")),
		Origin:   parseOrigin(r, values),
		Page:     params,
	}, nil
}

// parseOrigin returns the ranking origin, or nil when distance ranking was not
// asked for or the coordinate is missing, unparseable, non-finite or out of
// range.
func parseOrigin(r *http.Request, values url.Values) *domain.Coordinate {
	on, err := strconv.ParseBool(strings.TrimSpace(values.Get("sort_by_distance")))
	if err != nil || !on {
		return nil
	}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(values.Get("lat")), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(values.Get("lon")), 64)
	origin := domain.Coordinate{Lat: lat, Lon: lon}
	if latErr != nil || lonErr != nil || !geo.Valid(origin) {
		slog.DebugContext(r.Context(), "distance ranking ignored: unusable coordinate",
			"lat", values.Get("lat"),
			"lon", values.Get("lon"),
		)
		return nil
	}
	return &origin
}

func rideID(r *http.Request) (int64, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || id < 1 {
		return 0, domain.InputError("id", "must be a positive integer")
	}
	return id, nil
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return domain.InputError("body", "must be a valid JSON object")
	}
	return nil
}

// pageURL returns the absolute URL of the current listing at page, keeping
// every other query parameter. Page 1 is addressed without a page parameter.
func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}

	values := r.URL.Query()
	if page == 1 {
		values.Del("page")
	} else {
		values.Set("page", strconv.Itoa(page))
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: values.Encode()}
	return u.String()
}

func rankingLabel(q domain.RideQuery) string {
	if q.Origin != nil {
		return "distance"
	}
	return "ordered"
}

// --- wire types -------------------------------------------------------------

// rideRequest is the body of POST and PATCH. Pointer fields distinguish an
// absent field from a zero value, which matters for coordinates.
type rideRequest struct {
	Status     *string    `json:"status"`
	RiderID    *int64     `json:"rider_id"`
	DriverID   *int64     `json:"driver_id"`
	PickupLat  *float64   `json:"pickup_lat"`
	PickupLon  *float64   `json:"pickup_lon"`
	DropoffLat *float64   `json:"dropoff_lat"`
	DropoffLon *float64   `json:"dropoff_lon"`
	PickupTime *time.Time `json:"pickup_time"`
}

// toRide converts a create body into a domain.Ride.
// Returns a validation error naming the first missing field.
func (b rideRequest) toRide() (domain.Ride, error) {
	for _, f := range []struct {
		name    string
		present bool
	}{
		{"status", b.Status != nil},
		{"rider_id", b.RiderID != nil},
		{"driver_id", b.DriverID != nil},
		{"pickup_lat", b.PickupLat != nil},
		{"pickup_lon", b.PickupLon != nil},
		{"dropoff_lat", b.DropoffLat != nil},
		{"dropoff_lon", b.DropoffLon != nil},
		{"pickup_time", b.PickupTime != nil},
	} {
		if !f.present {
			return domain.Ride{}, domain.ValidationError(f.name, "is required")
		}
	}
	return domain.Ride{
		Status:     parseStatus(*b.Status),
		RiderID:    *b.RiderID,
		DriverID:   *b.DriverID,
		Pickup:     domain.Coordinate{Lat: *b.PickupLat, Lon: *b.PickupLon},
		Dropoff:    domain.Coordinate{Lat: *b.DropoffLat, Lon: *b.DropoffLon},
		PickupTime: b.PickupTime.UTC(),
	}, nil
}

func (b rideRequest) toPatch() domain.RidePatch {
	p := domain.RidePatch{
		RiderID:    b.RiderID,
		DriverID:   b.DriverID,
		PickupLat:  b.PickupLat,
		PickupLon:  b.PickupLon,
		DropoffLat: b.DropoffLat,
		DropoffLon: b.DropoffLon,
	}
	if b.Status != nil {
		st := parseStatus(*b.Status)
		p.Status = &st
	}
	if b.PickupTime != nil {
		t := b.PickupTime.UTC()
		p.PickupTime = &t
	}
	return p
}

// parseStatus normalises a known status and passes anything else through
// unchanged so validation can report it.
func parseStatus(s string) domain.RideStatus {
	if st, ok := domain.ParseRideStatus(s); ok {
		return st
	}
	return domain.RideStatus(s)
}

type rideListResponse struct {
	Count    int64          `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []rideResponse `json:"results"`
}

type rideResponse struct {
	ID           int64           `json:"id"`
	Status       string          `json:"status"`
	RiderID      int64           `json:"rider_id"`
	DriverID     int64           `json:"driver_id"`
	PickupLat    float64         `json:"pickup_lat"`
	PickupLon    float64         `json:"pickup_lon"`
	DropoffLat   float64         `json:"dropoff_lat"`
	DropoffLon   float64         `json:"dropoff_lon"`
	PickupTime   time.Time       `json:"pickup_time"`
	Rider        userResponse    `json:"rider"`
	Driver       userResponse    `json:"driver"`
	RecentEvents []eventResponse `json:"recent_events"`
	DistanceKM   *float64        `json:"distance_km,omitempty"`
}

type userResponse struct {
	ID          int64  `json:"id"`
	Role        string `json:"role"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

type eventResponse struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func rideToResponse(r domain.Ride) rideResponse {
	resp := rideResponse{
		ID:           r.ID,
		Status:       string(r.Status),
		RiderID:      r.RiderID,
		DriverID:     r.DriverID,
		PickupLat:    r.Pickup.Lat,
		PickupLon:    r.Pickup.Lon,
		DropoffLat:   r.Dropoff.Lat,
		DropoffLon:   r.Dropoff.Lon,
		PickupTime:   r.PickupTime,
		Rider:        userToResponse(r.Rider),
		Driver:       userToResponse(r.Driver),
		RecentEvents: make([]eventResponse, len(r.RecentEvents)),
		DistanceKM:   r.DistanceKM,
	}
	for i, e := range r.RecentEvents {
		resp.RecentEvents[i] = eventResponse{ID: e.ID, Description: e.Description, CreatedAt: e.CreatedAt}
	}
	return resp
}

func userToResponse(u domain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Role:        u.Role,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
	}
}
