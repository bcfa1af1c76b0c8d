package shared

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPaginationDefaults(t *testing.T) {
	p := NewPagination(0, 0, 45)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 3, p.TotalPages)
}

func TestPaginationWindow(t *testing.T) {
	cases := []struct {
		page, perPage, total int
		start, end           int
	}{
		{1, 10, 25, 0, 10},
		{3, 10, 25, 20, 25},
		{4, 10, 25, 25, 25},
		{1, 10, 0, 0, 0},
	}
	for _, tc := range cases {
		start, end := NewPagination(tc.page, tc.perPage, tc.total).Window()
		assert.Equal(t, tc.start, start, "page %d", tc.page)
		assert.Equal(t, tc.end, end, "page %d", tc.page)
	}
}

func TestPaginationWindowHugePage(t *testing.T) {
	for _, page := range []int{math.MaxInt64/20 + 2, math.MaxInt64} {
		start, end := NewPagination(page, 20, 45).Window()
		assert.Equal(t, 45, start, "page %d", page)
		assert.Equal(t, 45, end, "page %d", page)
	}
}
