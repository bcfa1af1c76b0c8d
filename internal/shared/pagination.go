package shared

import "math"

// Default and upper page sizes for paginated listings.
const (
	DefaultPerPage = 20
	MaxPerPage     = 500
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset is the zero-based index of the first record on the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Window returns the [start, end) slice bounds of the page, clamped to Total.
// Pages past the last one yield an empty window without computing Offset.
func (p Pagination) Window() (int, int) {
	if p.PerPage <= 0 || p.Page-1 > p.Total/p.PerPage {
		return p.Total, p.Total
	}
	start := min(p.Offset(), p.Total)
	end := min(start+p.PerPage, p.Total)
	return start, end
}
