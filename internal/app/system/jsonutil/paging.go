package jsonutil

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// Paging limits shared by every list endpoint.
const (
	DefaultPageSize = 30
	MaxPageSize     = 50

	// MaxPage bounds the page number so Skip stays far from overflow.
	MaxPage = 1_000_000
)

// Paging errors
var (
	ErrInvalidPage  = errors.New("Page number cannot be less than zero.")
	ErrPageTooLarge = errors.New("Page number is too large.")
	ErrInvalidSize  = errors.New("Page size must be between 1 and 50.")
)

// PageRequest is a zero-based page selection.
type PageRequest struct {
	Page int
	Size int
}

// Skip returns the number of documents before the requested page.
func (p PageRequest) Skip() int64 {
	return int64(p.Page) * int64(p.Size)
}

// ParsePage reads the page and size query parameters, applying the defaults
// (page 0, size 30) when they are absent.
func ParsePage(r *http.Request) (PageRequest, error) {
	pr := PageRequest{Page: 0, Size: DefaultPageSize}

	if v := query.Get(r, "page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return pr, ErrInvalidPage
		}
		if n > MaxPage {
			return pr, ErrPageTooLarge
		}
		pr.Page = n
	}
	if v := query.Get(r, "size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxPageSize {
			return pr, ErrInvalidSize
		}
		pr.Size = n
	}
	return pr, nil
}

// PagedResponse is one page of a list endpoint.
type PagedResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Last          bool  `json:"last"`
}

// NewPaged builds a PagedResponse for content fetched with pr out of total
// matching documents.
func NewPaged[T any](content []T, pr PageRequest, total int64) PagedResponse[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if pr.Size > 0 {
		pages = int((total + int64(pr.Size) - 1) / int64(pr.Size))
	}
	return PagedResponse[T]{
		Content:       content,
		Page:          pr.Page,
		Size:          pr.Size,
		TotalElements: total,
		TotalPages:    pages,
		Last:          pr.Page+1 >= pages,
	}
}
