// Package pagination gates page navigation and computes the window of page
// links to show.
//
// THE STATE MACHINE:
//
//	Idle ──RequestPageChange(n) accepted──▶ Loading
//	Loading ──page n arrived──▶ Idle at n
//	Loading ──page n arrived, total < n──▶ Loading the new last page
//	Loading ──load failed──▶ Idle at the previous page
//
// Requests that are invalid, target the current page, or arrive while a load
// is pending are ignored without an error: clicking a disabled link does
// nothing.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/inflight"
)

// ErrClosed is returned for a load that completed after Close; its result
// was dropped.
var ErrClosed = errors.New("pagination: pager closed")

// maxClampLoads bounds the extra loads one fetch makes while the total
// keeps dropping below the requested page.
const maxClampLoads = 3

// State is the pagination state shown by the UI.
type State struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	IsLoading   bool `json:"isLoading"`
}

// IsValidPage reports whether n is a page that exists.
func (s State) IsValidPage(n int) bool {
	return n >= 1 && n <= s.TotalPages
}

// VisiblePageWindow returns up to maxVisible consecutive page numbers around
// current, shifted near the edges so it stays inside [1, total]. It returns
// nil when there is nothing to render.
func VisiblePageWindow(current, total, maxVisible int) []int {
	if total <= 0 || maxVisible <= 0 {
		return nil
	}
	start := max(1, current-maxVisible/2)
	end := min(total, start+maxVisible-1)
	start = max(1, end-maxVisible+1)

	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Page is one page of results as returned by a Loader.
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalPages int `json:"totalPages"`
}

// Loader fetches page n.
type Loader[T any] func(ctx context.Context, page int) (Page[T], error)

// View bundles what a pagination control needs to render.
type View struct {
	State
	Window  []int `json:"window"`
	HasPrev bool  `json:"hasPrev"`
	HasNext bool  `json:"hasNext"`
}

// Pager is one pagination control together with the items of its current
// page.
type Pager[T any] struct {
	load       Loader[T]
	maxVisible int
	logger     *slog.Logger
	latch      inflight.Latch

	mu     sync.RWMutex
	state  State
	items  []T
	closed bool
}

// NewPager starts at page 1 with no known pages. Call Reload to fetch it.
func NewPager[T any](load Loader[T], maxVisible int, logger *slog.Logger) *Pager[T] {
	return &Pager[T]{
		load:       load,
		maxVisible: maxVisible,
		logger:     logger,
		state:      State{CurrentPage: 1},
	}
}

// State returns the current state.
func (p *Pager[T]) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Items returns a copy of the items of the current page.
func (p *Pager[T]) Items() []T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]T, len(p.items))
	copy(out, p.items)
	return out
}

// View returns the render model for the current state.
func (p *Pager[T]) View() View {
	st := p.State()
	return View{
		State:   st,
		Window:  VisiblePageWindow(st.CurrentPage, st.TotalPages, p.maxVisible),
		HasPrev: st.IsValidPage(st.CurrentPage - 1),
		HasNext: st.IsValidPage(st.CurrentPage + 1),
	}
}

// RequestPageChange moves to page n. It returns nil without doing anything
// when n is invalid, already current, or a load is pending. A loader error
// is returned and the pager stays on its previous page.
func (p *Pager[T]) RequestPageChange(ctx context.Context, n int) error {
	st := p.State()
	if !st.IsValidPage(n) || n == st.CurrentPage {
		return nil
	}
	return p.fetch(ctx, n)
}

// Reload fetches the current page again. It is how the first page is loaded,
// since nothing is valid before the total is known. Ignored while a load is
// pending.
func (p *Pager[T]) Reload(ctx context.Context) error {
	return p.fetch(ctx, p.State().CurrentPage)
}

// Close detaches the pager. Loads finishing afterwards are discarded.
func (p *Pager[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *Pager[T]) fetch(ctx context.Context, n int) error {
	if !p.latch.TryAcquire() {
		return nil
	}
	defer p.latch.Release()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.state.IsLoading = true
	p.mu.Unlock()

	page, err := p.load(ctx, n)
	// The total can shrink between loads, e.g. after the last item of the
	// last page is deleted. Follow it down so the current page stays valid.
	for tries := 0; err == nil && page.TotalPages > 0 && n > page.TotalPages && tries < maxClampLoads; tries++ {
		p.logger.Debug("page no longer exists, loading last page",
			slog.Int("page", n),
			slog.Int("totalPages", page.TotalPages),
		)
		n = page.TotalPages
		page, err = p.load(ctx, n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.IsLoading = false

	if p.closed {
		p.logger.Debug("discarding page for closed pager", slog.Int("page", n))
		return ErrClosed
	}
	if err != nil {
		p.logger.Warn("page load failed",
			slog.Int("page", n),
			slog.Int("stayingOn", p.state.CurrentPage),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("pagination: loading page %d: %w", n, err)
	}

	total := max(page.TotalPages, 0)
	if total > 0 && n > total {
		// Still shrinking after maxClampLoads; keep the page valid and let
		// the next reload fetch its items.
		n = total
	}
	p.state.TotalPages = total
	p.state.CurrentPage = n
	p.items = page.Items
	return nil
}
