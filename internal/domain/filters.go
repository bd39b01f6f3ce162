package domain

import "strings"

type BookFilter struct {
	Query      string
	CategoryID *uint
	MinPrice   *int64
	MaxPrice   *int64
	Author     string
}

func (f BookFilter) Normalized() BookFilter {
	f.Query = strings.TrimSpace(f.Query)
	f.Author = strings.TrimSpace(f.Author)
	return f
}

func (f BookFilter) Empty() bool {
	return f.Query == "" && f.CategoryID == nil && f.MinPrice == nil && f.MaxPrice == nil && f.Author == ""
}
