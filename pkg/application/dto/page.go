package dto

import "github.com/vsinha/cims/pkg/domain/repositories"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageMeta describes the window of a paginated listing
type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// Page is the envelope of every paginated response
type Page[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// NormalizePage applies the default page and limit and caps the limit
func NormalizePage(page, limit int) repositories.Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return repositories.Page{Page: page, Limit: limit}
}

// NewPage wraps one page of rows with its metadata
func NewPage[T any](data []T, total int, page repositories.Page) Page[T] {
	if data == nil {
		data = []T{}
	}
	meta := PageMeta{Total: total, Page: page.Page, Limit: page.Limit}
	if page.Limit > 0 {
		meta.TotalPages = (total + page.Limit - 1) / page.Limit
	}
	return Page[T]{Data: data, Meta: meta}
}

// ImportResult reports a CSV import
type ImportResult struct {
	Imported int           `json:"imported"`
	Failed   int           `json:"failed"`
	Errors   []ImportError `json:"errors"`
}

// ImportError is one rejected CSV row
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}
