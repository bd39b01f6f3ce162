package util

import "strconv"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps page to >= 1 and size to 1..MaxPageSize, falling back to the default size.
func Normalize(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return page, size
}

func Calculate(page, size int) (from, limit int) {
	page, size = Normalize(page, size)
	return (page - 1) * size, size
}

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
