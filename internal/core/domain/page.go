package domain

import "strings"

const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type PageRequest struct {
	Number    int
	Size      int
	SortBy    string
	SortOrder SortOrder
}

// Normalize clamps paging and falls back to "id" when the sort key is not in
// allowed.
func (p PageRequest) Normalize(allowed ...string) PageRequest {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	sortBy := "id"
	for _, field := range allowed {
		if strings.EqualFold(field, p.SortBy) {
			sortBy = field
			break
		}
	}
	p.SortBy = sortBy
	if strings.EqualFold(string(p.SortOrder), string(SortAsc)) {
		p.SortOrder = SortAsc
	} else {
		p.SortOrder = SortDesc
	}
	return p
}

// Page is the envelope the remote store returns for every list endpoint.
type Page[T any] struct {
	Content       []T   `json:"content"`
	PageNumber    int   `json:"pageNumber"`
	PageSize      int   `json:"pageSize"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	LastPage      bool  `json:"lastPage"`
}

// Paginate slices an already sorted collection.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	total := len(items)
	totalPages := 0
	if req.Size > 0 {
		totalPages = (total + req.Size - 1) / req.Size
	}
	start := req.Number * req.Size
	if start > total {
		start = total
	}
	end := start + req.Size
	if end > total {
		end = total
	}
	content := make([]T, end-start)
	copy(content, items[start:end])
	return Page[T]{
		Content:       content,
		PageNumber:    req.Number,
		PageSize:      req.Size,
		TotalElements: int64(total),
		TotalPages:    totalPages,
		LastPage:      req.Number >= totalPages-1,
	}
}
