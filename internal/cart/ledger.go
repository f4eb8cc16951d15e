// Package cart keeps the lines of the sale being rung up.
package cart

import (
	"errors"
	"fmt"
	"sync"

	"store-pos/internal/catalog"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
)

// StockError is returned when a mutation would put more in the cart than the
// shelf holds, as last known.
type StockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Line struct {
	Product  catalog.Product
	Quantity int
}

func (l Line) Total() decimal.Decimal {
	return l.Product.SellingPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Ledger is the insertion-ordered set of cart lines, one per product id.
// It is safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	lines []Line
}

func (l *Ledger) find(id string) int {
	for i := range l.lines {
		if l.lines[i].Product.ProductID == id {
			return i
		}
	}
	return -1
}

// Add puts quantity of product in the cart, merging into an existing line.
// Prices come from the product as passed in, replacing what the line held.
// On error nothing changes.
func (l *Ledger) Add(product catalog.Product, quantity int) (Line, error) {
	if quantity < 1 {
		return Line{}, ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.find(product.ProductID)
	newQty := quantity
	if i >= 0 {
		newQty += l.lines[i].Quantity
	}
	if newQty > product.Stock {
		return Line{}, &StockError{ProductID: product.ProductID, Requested: newQty, Available: product.Stock}
	}

	line := Line{Product: product, Quantity: newQty}
	if i >= 0 {
		l.lines[i] = line
	} else {
		l.lines = append(l.lines, line)
	}
	return line, nil
}

// SetQuantity overwrites a line's quantity; zero or less removes the line.
// Unknown ids are ignored.
func (l *Ledger) SetQuantity(productID string, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.find(productID)
	if i < 0 {
		return nil
	}
	if quantity <= 0 {
		l.lines = append(l.lines[:i], l.lines[i+1:]...)
		return nil
	}
	if stock := l.lines[i].Product.Stock; quantity > stock {
		return &StockError{ProductID: productID, Requested: quantity, Available: stock}
	}
	l.lines[i].Quantity = quantity
	return nil
}

func (l *Ledger) Remove(productID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.find(productID); i >= 0 {
		l.lines = append(l.lines[:i], l.lines[i+1:]...)
	}
}

// Total is recomputed from the lines on every call.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, line := range l.lines {
		total = total.Add(line.Total())
	}
	return total
}

// Lines returns a copy in insertion order.
func (l *Ledger) Lines() []Line {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Line, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
}
