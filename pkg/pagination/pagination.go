package pagination

import (
	"math"
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 24
	MaxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings.
// PerPage 0 means "everything", which the storefront listing uses when no
// page is requested.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// FromRequest reads page and per_page. Without either parameter the whole
// collection is returned as a single page.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	p := Params{Page: 1}

	if page := q.Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
		p.PerPage = DefaultPerPage
	}

	if perPage := q.Get("per_page"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 {
			p.PerPage = min(v, MaxPerPage)
		}
	}

	if p.PerPage > 0 {
		// Pages past the addressable range start beyond any collection.
		if p.Page-1 > math.MaxInt/p.PerPage {
			p.Offset = math.MaxInt
		} else {
			p.Offset = (p.Page - 1) * p.PerPage
		}
	}
	return p
}

// Slice returns the window of items described by p.
func Slice[T any](items []T, p Params) []T {
	if p.PerPage <= 0 {
		return items
	}
	if p.Offset < 0 || p.Offset >= len(items) {
		return []T{}
	}
	end := min(p.Offset+p.PerPage, len(items))
	return items[p.Offset:end]
}

// Result wraps a paginated response.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Paginate slices items and describes the window.
func Paginate[T any](items []T, p Params) Result[T] {
	page := Slice(items, p)
	if page == nil {
		page = []T{}
	}

	perPage := p.PerPage
	totalPages := 1
	if perPage > 0 {
		totalPages = len(items) / perPage
		if len(items)%perPage > 0 {
			totalPages++
		}
	} else {
		perPage = len(items)
	}

	return Result[T]{
		Data:       page,
		TotalCount: len(items),
		Page:       p.Page,
		PerPage:    perPage,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}
