package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"store-pos/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source delivers a full catalog snapshot, in catalog order.
type Source interface {
	Products(ctx context.Context) ([]Product, error)
}

// Index is a read-only cached copy of the catalog. Readers never see a
// half-applied reload: each Load swaps in a fresh snapshot.
type Index struct {
	source Source
	logger *zap.Logger
	group  singleflight.Group
	snap   atomic.Pointer[snapshot]
}

type snapshot struct {
	ordered  []Product
	byID     map[string]int
	loadedAt time.Time
}

func NewIndex(source Source, logger *zap.Logger) *Index {
	idx := &Index{source: source, logger: logging.OrNop(logger)}
	idx.snap.Store(&snapshot{byID: map[string]int{}})
	return idx
}

// Load refreshes the snapshot from the source. Concurrent callers share one
// fetch. On failure the previous snapshot stays in place and the error wraps
// ErrCatalogUnavailable.
func (i *Index) Load(ctx context.Context) (map[string]Product, error) {
	v, err, shared := i.group.Do("load", func() (any, error) {
		products, err := i.source.Products(ctx)
		if err != nil {
			return nil, err
		}
		s := &snapshot{
			ordered:  make([]Product, len(products)),
			byID:     make(map[string]int, len(products)),
			loadedAt: time.Now(),
		}
		copy(s.ordered, products)
		for n, p := range s.ordered {
			s.byID[p.ProductID] = n
		}
		i.snap.Store(s)
		return s, nil
	})
	if err != nil {
		i.logger.Warn("catalog reload failed, keeping previous snapshot", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	s := v.(*snapshot)
	if !shared {
		i.logger.Debug("catalog reloaded", zap.Int("products", len(s.ordered)))
	}
	out := make(map[string]Product, len(s.ordered))
	for _, p := range s.ordered {
		out[p.ProductID] = p
	}
	return out, nil
}

func (i *Index) ByID(id string) (Product, bool) {
	s := i.snap.Load()
	n, ok := s.byID[id]
	if !ok {
		return Product{}, false
	}
	return s.ordered[n], true
}

// Search returns products whose name or id contains substr, keeping catalog
// order. No ranking is applied.
func (i *Index) Search(substr string, caseInsensitive bool) []Product {
	s := i.snap.Load()
	needle := substr
	if caseInsensitive {
		needle = strings.ToLower(substr)
	}

	var out []Product
	for _, p := range s.ordered {
		name := p.Name
		if caseInsensitive {
			name = strings.ToLower(name)
		}
		if strings.Contains(name, needle) || strings.Contains(p.ProductID, needle) {
			out = append(out, p)
		}
	}
	return out
}

// All returns the snapshot in catalog order.
func (i *Index) All() []Product {
	s := i.snap.Load()
	out := make([]Product, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// LoadedAt is zero until the first successful Load.
func (i *Index) LoadedAt() time.Time {
	return i.snap.Load().loadedAt
}
