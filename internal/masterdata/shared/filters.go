// Package shared holds helpers common to the masterdata CRUD modules.
package shared

// ListFilters represents standard list filters.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string
}

const (
	DefaultPage  = 1
	DefaultLimit = 25
)

// Normalize fills defaults for zero-valued fields.
func (f ListFilters) Normalize() ListFilters {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	return f
}

// Offset computes the SQL offset for the current page.
func (f ListFilters) Offset() int {
	offset := (f.Page - 1) * f.Limit
	if offset < 0 {
		return 0
	}
	return offset
}
