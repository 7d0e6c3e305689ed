package handler

import "net/http"

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset. Non-integers are rejected; a
// limit above MaxLimit is clamped and a non-positive one means the default.
func ParsePagination(r *http.Request) (PaginationParams, error) {
	limit, err := intParam(r, "limit", DefaultLimit)
	if err != nil {
		return PaginationParams{}, err
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		return PaginationParams{}, err
	}

	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

type listResponse[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func newListResponse[T any](items []T, total int64, p PaginationParams) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset}
}
