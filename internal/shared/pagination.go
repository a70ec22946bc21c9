package shared

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// NewPagination computes pagination metadata from a limit+1 style query.
func NewPagination(page, pageSize int, hasNext bool) Pagination {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	p := Pagination{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		p.PrevPage = page - 1
	}
	if hasNext {
		p.NextPage = page + 1
	}
	return p
}
