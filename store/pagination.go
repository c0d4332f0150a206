package store

// Pagination defaults and bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is a pagination request: 1-based page number and page size.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize clamps the request to sane bounds: page defaults to 1, limit
// to DefaultLimit, capped at MaxLimit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// PageInfo is the pagination envelope computed for one query result.
type PageInfo struct {
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

// NewPageInfo computes the envelope for a total row count. A total of zero
// yields zero total pages and no next/previous page.
func NewPageInfo(p Page, total int64) PageInfo {
	n := p.Normalize()
	totalPages := int((total + int64(n.Limit) - 1) / int64(n.Limit))
	return PageInfo{
		Total:       total,
		Page:        n.Page,
		Limit:       n.Limit,
		TotalPages:  totalPages,
		HasNext:     n.Page < totalPages,
		HasPrevious: n.Page > 1 && total > 0,
	}
}
