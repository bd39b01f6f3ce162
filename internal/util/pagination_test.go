package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		page, size     int
		wantFrom, want int
	}{
		{1, 10, 0, 10},
		{3, 20, 40, 20},
		{0, 0, 0, DefaultPageSize},
		{-4, 500, 0, DefaultPageSize},
		{2, 100, 100, 100},
	}
	for _, tt := range tests {
		from, limit := Calculate(tt.page, tt.size)
		assert.Equal(t, tt.wantFrom, from, "page=%d size=%d", tt.page, tt.size)
		assert.Equal(t, tt.want, limit, "page=%d size=%d", tt.page, tt.size)
	}
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("", 7))
	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 3, ParseIntDefault("3", 7))
	assert.Equal(t, -2, ParseIntDefault("-2", 7))
}
