package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 35)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 10, p.PerPage)
	assert.Equal(t, 35, p.Total)
	assert.Equal(t, 4, p.TotalPages)

	// Defaults kick in for zero values.
	p = NewPagination(0, 0, 10)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 50, p.PerPage)
	assert.Equal(t, 1, p.TotalPages)
}

func TestPaginationFromOffset(t *testing.T) {
	p := PaginationFromOffset(10, 20, 35)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 10, p.PerPage)
	assert.Equal(t, 4, p.TotalPages)

	p = PaginationFromOffset(0, 0, 120)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 50, p.PerPage)
	assert.Equal(t, 3, p.TotalPages)
}
