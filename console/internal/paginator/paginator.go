// Package paginator holds the page arithmetic shared by the alarm list and the
// alarm event tables, and a generic walker over paged fetches.
package paginator

import (
	"context"
	"fmt"
)

// State is a page position. It is a value type; methods return updated copies.
type State struct {
	TotalItems  int `json:"total_items"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	MaxVisible  int `json:"max_visible"`
}

// New returns a State on page 1.
func New(perPage, maxVisible int) State {
	if perPage <= 0 {
		perPage = 1
	}
	if maxVisible <= 0 {
		maxVisible = 1
	}
	return State{PerPage: perPage, CurrentPage: 1, MaxVisible: maxVisible}
}

// Pages is the number of pages, never less than 1.
func (s State) Pages() int {
	if s.PerPage <= 0 || s.TotalItems <= 0 {
		return 1
	}
	return (s.TotalItems + s.PerPage - 1) / s.PerPage
}

// Offset is the `from` of the current page.
func (s State) Offset() int {
	page := s.CurrentPage
	if page < 1 {
		page = 1
	}
	return (page - 1) * s.PerPage
}

// Select moves to page, clamped to [1, Pages()].
func (s State) Select(page int) State {
	if page < 1 {
		page = 1
	}
	if p := s.Pages(); page > p {
		page = p
	}
	s.CurrentPage = page
	return s
}

// WithTotal records a new total and re-clamps the current page.
func (s State) WithTotal(total int) State {
	if total < 0 {
		total = 0
	}
	s.TotalItems = total
	return s.Select(s.CurrentPage)
}

// Window returns the page numbers to show, centered on the current page.
func (s State) Window() []int {
	pages := s.Pages()
	visible := s.MaxVisible
	if visible <= 0 || visible > pages {
		visible = pages
	}

	start := s.CurrentPage - visible/2
	if start < 1 {
		start = 1
	}
	end := start + visible - 1
	if end > pages {
		end = pages
		start = end - visible + 1
	}

	window := make([]int, 0, visible)
	for p := start; p <= end; p++ {
		window = append(window, p)
	}
	return window
}

// FetchFunc loads size items starting at from and reports the total available.
type FetchFunc[T any] func(ctx context.Context, from, size int) ([]T, int, error)

// Paginator drives a FetchFunc.
type Paginator[T any] struct {
	fetch    FetchFunc[T]
	pageSize int
}

// NewPaginator returns a Paginator whose All walks pages of pageSize.
func NewPaginator[T any](fetch FetchFunc[T], pageSize int) *Paginator[T] {
	if pageSize <= 0 {
		pageSize = 1
	}
	return &Paginator[T]{fetch: fetch, pageSize: pageSize}
}

// Fetch loads the page selected by state and returns state updated with the
// fetched total.
func (p *Paginator[T]) Fetch(ctx context.Context, state State) ([]T, State, error) {
	items, total, err := p.fetch(ctx, state.Offset(), state.PerPage)
	if err != nil {
		return nil, state, err
	}
	return items, state.WithTotal(total), nil
}

// All collects up to limit items, page by page. It stops early once the
// reported total is reached or a page comes back empty.
func (p *Paginator[T]) All(ctx context.Context, limit int) ([]T, error) {
	out := make([]T, 0)
	for from := 0; from < limit; {
		size := p.pageSize
		if rest := limit - from; rest < size {
			size = rest
		}

		items, total, err := p.fetch(ctx, from, size)
		if err != nil {
			return out, fmt.Errorf("fetch page at %d: %w", from, err)
		}
		out = append(out, items...)
		from += len(items)

		if len(items) == 0 || from >= total {
			break
		}
	}
	return out, nil
}
