// Package search turns what the operator types into a short list of products.
//
// Each keystroke reschedules a lookup after a quiet period. A lookup runs the
// exact-id fast path for 1-3 digit input and falls back to a substring search.
// Results are applied only if no newer query was typed in the meantime.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"store-pos/internal/catalog"
	"store-pos/internal/logging"

	"go.uber.org/zap"
)

const DefaultDebounce = 300 * time.Millisecond

var ErrNoCandidate = errors.New("no product to select")

// Lookup is the backend side of a search.
type Lookup interface {
	Product(ctx context.Context, id string) (catalog.Product, error)
	Search(ctx context.Context, query string) ([]catalog.Product, error)
}

// Timer is the part of *time.Timer the resolver needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Snapshot is what the presentation renders.
type Snapshot struct {
	Query      string
	Candidates []catalog.Product
	Cursor     int // -1 when nothing is highlighted
	Pending    bool
}

type Option func(*Resolver)

func WithDebounce(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.debounce = d
		}
	}
}

func WithAfterFunc(fn AfterFunc) Option {
	return func(r *Resolver) { r.afterFunc = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = logging.OrNop(l) }
}

// WithTimeout bounds each background lookup.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// OnUpdate is called, outside the lock, whenever the candidate list changes.
func OnUpdate(fn func(Snapshot)) Option {
	return func(r *Resolver) { r.onUpdate = fn }
}

type Resolver struct {
	lookup    Lookup
	debounce  time.Duration
	timeout   time.Duration
	afterFunc AfterFunc
	logger    *zap.Logger
	onUpdate  func(Snapshot)

	mu         sync.Mutex
	query      string
	candidates []catalog.Product
	// resolved is the query the candidates were found for
	resolved   string
	cursor     int
	generation uint64
	pending    Timer
}

func NewResolver(lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{
		lookup:    lookup,
		debounce:  DefaultDebounce,
		timeout:   5 * time.Second,
		afterFunc: realAfterFunc,
		logger:    zap.NewNop(),
		cursor:    -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnQueryChange records text and schedules a lookup, cancelling any lookup
// scheduled by an earlier call.
func (r *Resolver) OnQueryChange(text string) {
	r.mu.Lock()
	r.query = text
	r.cursor = -1
	r.generation++
	gen := r.generation
	r.stopPendingLocked()

	if strings.TrimSpace(text) == "" {
		r.candidates = nil
		r.resolved = text
		snap := r.snapshotLocked()
		r.mu.Unlock()
		r.notify(snap)
		return
	}

	r.pending = r.afterFunc(r.debounce, func() { r.run(gen, text) })
	r.mu.Unlock()
}

func (r *Resolver) stopPendingLocked() {
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}

func (r *Resolver) run(gen uint64, text string) {
	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		return
	}
	r.pending = nil
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	found := r.resolve(ctx, strings.TrimSpace(text))

	r.mu.Lock()
	if gen != r.generation || r.query != text {
		r.mu.Unlock()
		r.logger.Debug("discarding stale search result", zap.String("query", text))
		return
	}
	r.candidates = found
	r.resolved = text
	r.cursor = -1
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.notify(snap)
}

// resolve tries the exact id first for short numeric input and falls back to
// a substring search. Backend failures yield no candidates.
func (r *Resolver) resolve(ctx context.Context, text string) []catalog.Product {
	if id, ok := catalog.PadID(text); ok {
		p, err := r.lookup.Product(ctx, id)
		switch {
		case err == nil:
			return []catalog.Product{p}
		case !errors.Is(err, catalog.ErrProductNotFound):
			r.logger.Debug("exact id lookup failed", zap.String("id", id), zap.Error(err))
			return nil
		}
	}

	found, err := r.lookup.Search(ctx, text)
	if err != nil {
		r.logger.Debug("product search failed", zap.String("query", text), zap.Error(err))
		return nil
	}
	return found
}

// MoveCursor shifts the highlight by delta, clamped to the list, and returns
// the index the presentation should scroll into view (-1 for an empty list).
func (r *Resolver) MoveCursor(delta int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.candidates) == 0 {
		r.cursor = -1
		return -1
	}
	c := r.cursor + delta
	if c < 0 {
		c = 0
	}
	if last := len(r.candidates) - 1; c > last {
		c = last
	}
	r.cursor = c
	return c
}

// CommitSelection picks index when given, else the highlighted candidate,
// else the first one.
func (r *Resolver) CommitSelection(index *int) (catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.candidates) == 0 {
		return catalog.Product{}, ErrNoCandidate
	}
	i := 0
	switch {
	case index != nil:
		i = *index
	case r.cursor >= 0:
		i = r.cursor
	}
	if i < 0 || i >= len(r.candidates) {
		return catalog.Product{}, ErrNoCandidate
	}
	return r.candidates[i], nil
}

// Enter handles the Enter key. A bare 1-3 digit query is looked up by id
// directly, skipping the list and any pending search. Anything else selects
// from the candidates; when they are not yet those of the current query the
// lookup runs now instead of after the debounce.
func (r *Resolver) Enter(ctx context.Context) (catalog.Product, error) {
	r.mu.Lock()
	text := r.query
	query := strings.TrimSpace(text)
	id, numeric := catalog.PadID(query)
	stale := r.pending != nil || r.resolved != text
	if numeric || stale {
		r.generation++
		r.stopPendingLocked()
	}
	gen := r.generation
	r.mu.Unlock()

	if !numeric {
		if stale && query != "" {
			if err := r.resolveNow(ctx, gen, text); err != nil {
				return catalog.Product{}, err
			}
		}
		return r.CommitSelection(nil)
	}
	p, err := r.lookup.Product(ctx, id)
	if err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

// resolveNow runs the lookup for text in the caller's goroutine and installs
// the result unless the query changed meanwhile.
func (r *Resolver) resolveNow(ctx context.Context, gen uint64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	found := r.resolve(ctx, strings.TrimSpace(text))

	r.mu.Lock()
	if gen != r.generation || r.query != text {
		r.mu.Unlock()
		return ErrNoCandidate
	}
	r.candidates = found
	r.resolved = text
	r.cursor = -1
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.notify(snap)
	return nil
}

// Reset clears the query and the list, dropping any pending lookup.
func (r *Resolver) Reset() {
	r.OnQueryChange("")
}

func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Resolver) snapshotLocked() Snapshot {
	out := make([]catalog.Product, len(r.candidates))
	copy(out, r.candidates)
	return Snapshot{
		Query:      r.query,
		Candidates: out,
		Cursor:     r.cursor,
		Pending:    r.pending != nil,
	}
}

func (r *Resolver) notify(s Snapshot) {
	if r.onUpdate != nil {
		r.onUpdate(s)
	}
}
