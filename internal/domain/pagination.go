package domain

// Page is the envelope returned by every list endpoint: total count, the
// items for the current window, and the offsets of the neighbouring pages
// when they exist.
type Page[T any] struct {
	Count    int  `json:"count"`
	Next     *int `json:"next"`
	Previous *int `json:"previous"`
	Results  []T  `json:"results"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// NewPage builds the envelope for a window [offset, offset+limit) over a
// result set of count items.
func NewPage[T any](results []T, count, limit, offset int) Page[T] {
	if results == nil {
		results = []T{}
	}
	page := Page[T]{Count: count, Results: results}
	if offset+limit < count {
		next := offset + limit
		page.Next = &next
	}
	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		page.Previous = &prev
	}
	return page
}

// ClampPage normalizes raw limit/offset query values.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
