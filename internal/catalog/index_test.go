package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu       sync.Mutex
	products []Product
	err      error
	calls    atomic.Int32
	gate     chan struct{}
}

func (s *stubSource) Products(ctx context.Context) ([]Product, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products, s.err
}

func sampleProducts() []Product {
	return []Product{
		{ProductID: "001", Name: "Anchor Milk Powder", Stock: 12, SellingPrice: decimal.NewFromInt(1250)},
		{ProductID: "007", Name: "Sugar 1kg", Stock: 40, SellingPrice: decimal.RequireFromString("280.50")},
		{ProductID: "017", Name: "Red Rice", Stock: 0, SellingPrice: decimal.NewFromInt(230)},
		{ProductID: "070", Name: "Milk Toffee", Stock: 5, SellingPrice: decimal.NewFromInt(50)},
	}
}

func TestIndexLoadAndLookup(t *testing.T) {
	idx := NewIndex(&stubSource{products: sampleProducts()}, nil)

	_, ok := idx.ByID("007")
	assert.False(t, ok, "empty before the first load")

	m, err := idx.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, m, 4)

	p, ok := idx.ByID("007")
	require.True(t, ok)
	assert.Equal(t, "Sugar 1kg", p.Name)
	assert.False(t, idx.LoadedAt().IsZero())
}

func TestIndexSearchKeepsCatalogOrder(t *testing.T) {
	idx := NewIndex(&stubSource{products: sampleProducts()}, nil)
	_, err := idx.Load(context.Background())
	require.NoError(t, err)

	got := idx.Search("milk", true)
	require.Len(t, got, 2)
	assert.Equal(t, "001", got[0].ProductID)
	assert.Equal(t, "070", got[1].ProductID)

	assert.Empty(t, idx.Search("milk", false), "case-sensitive search misses capitalised names")

	byID := idx.Search("7", true)
	require.Len(t, byID, 3)
	assert.Equal(t, []string{"007", "017", "070"}, []string{byID[0].ProductID, byID[1].ProductID, byID[2].ProductID})
}

func TestIndexFailedLoadKeepsPreviousSnapshot(t *testing.T) {
	src := &stubSource{products: sampleProducts()}
	idx := NewIndex(src, nil)
	_, err := idx.Load(context.Background())
	require.NoError(t, err)

	src.mu.Lock()
	src.err = errors.New("connection refused")
	src.products = nil
	src.mu.Unlock()

	_, err = idx.Load(context.Background())
	require.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Len(t, idx.All(), 4)
	_, ok := idx.ByID("001")
	assert.True(t, ok)
}

func TestIndexConcurrentLoadsShareOneFetch(t *testing.T) {
	src := &stubSource{products: sampleProducts(), gate: make(chan struct{})}
	idx := NewIndex(src, nil)

	var wg sync.WaitGroup
	for n := 0; n < 5; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := idx.Load(context.Background())
			assert.NoError(t, err)
		}()
	}

	// let every goroutine reach the singleflight group before releasing the fetch
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.LessOrEqual(t, src.calls.Load(), int32(2))
}
