package repository

// PageQuery carries pagination parameters shared by the list
// endpoints. Normalize clamps the values to the platform contract:
// page >= 1 and limit inside [1,100], defaulting to 10.
type PageQuery struct {
	Page  int
	Limit int
}

// Normalize returns a copy with page and limit forced into range.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return q
}

// Offset returns the number of rows to skip for the current page.
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Pagination is the envelope returned alongside list results.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// NewPagination builds the envelope for a normalized query and a
// total row count. Pages is ceil(total/limit).
func NewPagination(q PageQuery, total int64) Pagination {
	pages := total / int64(q.Limit)
	if total%int64(q.Limit) != 0 {
		pages++
	}
	return Pagination{Page: q.Page, Limit: q.Limit, Total: total, Pages: pages}
}
