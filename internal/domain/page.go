package domain

import "math"

// Default and maximum page sizes for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationParams carries page/limit values from the HTTP layer to the repo layer.
// Page is 1-indexed. Limit is capped at MaxPageSize by NewPaginationParams.
type PaginationParams struct {
	// Page is the current page number, starting at 1.
	Page int
	// Limit is the maximum number of items to return.
	Limit int
}

// NewPaginationParams builds a PaginationParams from optional HTTP query params.
// Nil pointers fall back to defaults (page=1, limit=DefaultPageSize).
// A supplied value below 1 is an input error naming the offending field;
// a limit above MaxPageSize is silently capped.
func NewPaginationParams(page, limit *int) (PaginationParams, error) {
	p := PaginationParams{Page: 1, Limit: DefaultPageSize}
	if page != nil {
		if *page < 1 {
			return PaginationParams{}, InputError("page", "must be a positive integer")
		}
		p.Page = *page
	}
	if limit != nil {
		if *limit < 1 {
			return PaginationParams{}, InputError("page_size", "must be a positive integer")
		}
		p.Limit = min(*limit, MaxPageSize)
	}
	return p, nil
}

// Offset returns the zero-based row offset for a SQL OFFSET clause.
// Pages too far out to address saturate at math.MaxInt, which lies past the
// end of any result set.
func (p PaginationParams) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Window returns the [start, end) bounds of this page within a sequence of
// n items. Both bounds are clamped to n, so a page past the end is empty.
func (p PaginationParams) Window(n int) (start, end int) {
	start = min(p.Offset(), n)
	end = min(start+p.Limit, n)
	return start, end
}

// HasNext reports whether another page follows this one given total items.
func (p PaginationParams) HasNext(total int64) bool {
	return int64(p.Offset()) < total-int64(p.Limit)
}
