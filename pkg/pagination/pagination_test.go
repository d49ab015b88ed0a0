package pagination

import (
	"math"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query   string
		page    int
		perPage int
		offset  int
	}{
		{"", 1, 0, 0},
		{"?page=2", 2, DefaultPerPage, DefaultPerPage},
		{"?page=3&per_page=10", 3, 10, 20},
		{"?per_page=500", 1, MaxPerPage, 0},
		{"?page=-1&per_page=x", 1, DefaultPerPage, 0},
		{"?page=9223372036854775807", math.MaxInt, DefaultPerPage, math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := FromRequest(httptest.NewRequest("GET", "/storefront/products"+tt.query, nil))
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.perPage, p.PerPage)
			assert.Equal(t, tt.offset, p.Offset)
		})
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	all := Paginate(items, Params{Page: 1})
	assert.Equal(t, items, all.Data)
	assert.Equal(t, 1, all.TotalPages)
	assert.False(t, all.HasNext)

	second := Paginate(items, Params{Page: 2, PerPage: 2, Offset: 2})
	assert.Equal(t, []int{3, 4}, second.Data)
	assert.Equal(t, 3, second.TotalPages)
	assert.True(t, second.HasNext)
	assert.True(t, second.HasPrev)

	beyond := Paginate(items, Params{Page: 9, PerPage: 2, Offset: 16})
	assert.Empty(t, beyond.Data)
	assert.NotNil(t, beyond.Data)
}

func TestPaginate_PageBeyondIntRange(t *testing.T) {
	items := []int{1, 2, 3}

	for _, page := range []string{"2305843009213693952", "9223372036854775807"} {
		t.Run(page, func(t *testing.T) {
			p := FromRequest(httptest.NewRequest("GET", "/storefront/products?page="+page, nil))

			var res Result[int]
			assert.NotPanics(t, func() { res = Paginate(items, p) })
			assert.Empty(t, res.Data)
			assert.Equal(t, 3, res.TotalCount)
			assert.False(t, res.HasNext)
			assert.True(t, res.HasPrev)
		})
	}
}

func TestSlice_NegativeOffset(t *testing.T) {
	assert.Empty(t, Slice([]int{1, 2}, Params{Page: 1, PerPage: 2, Offset: -4}))
}
