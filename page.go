package veil

// Pager is implemented by paged result wrappers. Only the element list is
// transformed; paging metadata is left alone.
type Pager interface {
	// PageItems returns the element slice of the page.
	PageItems() any
}

// Page is a generic paged result.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// PageItems returns p.Items.
func (p Page[T]) PageItems() any {
	return p.Items
}
