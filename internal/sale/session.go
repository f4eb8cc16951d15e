// Package sale runs the bill being rung up at the register: it owns the cart,
// the tendered cash and the search box, and finalizes the sale against the
// backend.
//
// Stock checks made here are optimistic. The backend re-reads stock and
// prices when the bill is submitted and may refuse a sale the cart allowed;
// the cart is then kept so the operator can fix it and retry.
package sale

import (
	"context"
	"strings"
	"sync"

	"store-pos/internal/backend"
	"store-pos/internal/cart"
	"store-pos/internal/catalog"
	"store-pos/internal/logging"
	"store-pos/internal/search"
	"store-pos/internal/tender"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type State int

const (
	Idle State = iota
	Submitting
	Committed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// FocusTarget tells the presentation which input should take the cursor
// next. The session never moves focus itself.
type FocusTarget int

const (
	FocusSearch FocusTarget = iota
	FocusQuantity
	FocusCash
)

type Focus struct {
	Target    FocusTarget
	ProductID string // set for FocusQuantity
}

type Backend interface {
	CreateBill(ctx context.Context, req backend.BillRequest) (backend.Bill, error)
	EndDay(ctx context.Context) (backend.DaySummary, error)
}

type Summary interface {
	Refresh(ctx context.Context) (backend.DayTotals, error)
}

type Printer interface {
	Print(ctx context.Context, bill backend.Bill) error
}

// Result is what a successful commit hands back.
type Result struct {
	Bill backend.Bill
	// AdvisoryTotal is what the cart showed when the bill was submitted.
	AdvisoryTotal decimal.Decimal
	// TotalChanged is set when the backend billed a different amount, after a
	// price change since the product was added.
	TotalChanged bool
	Printed      bool
	PrintErr     error
}

type Option func(*Session)

func WithPrinter(p Printer) Option {
	return func(s *Session) { s.printer = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = logging.OrNop(l) }
}

// WithKeyFunc replaces the idempotency key generator.
func WithKeyFunc(fn func() string) Option {
	return func(s *Session) { s.newKey = fn }
}

type Session struct {
	backend  Backend
	summary  Summary
	resolver *search.Resolver
	printer  Printer
	logger   *zap.Logger
	newKey   func() string

	ledger cart.Ledger

	mu    sync.Mutex
	state State
	cash  decimal.NullDecimal
	// key identifies the current cart contents to the backend; it survives
	// a failed submit so a retry of the same cart cannot bill twice.
	key string
}

func NewSession(b Backend, summary Summary, resolver *search.Resolver, opts ...Option) *Session {
	s := &Session{
		backend:  b,
		summary:  summary,
		resolver: resolver,
		logger:   zap.NewNop(),
		newKey:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Resolver() *search.Resolver { return s.resolver }

// State reports the committer state without acknowledging it.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Observe returns the state and, when it is Committed or Failed, moves the
// session back to Idle.
func (s *Session) Observe() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st == Committed || st == Failed {
		s.state = Idle
	}
	return st
}

// guard runs fn with the session locked unless a bill is being submitted.
func (s *Session) guard(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Submitting {
		return ErrCommitInProgress
	}
	return fn()
}

// Add puts quantity of p in the cart and clears the search box.
func (s *Session) Add(p catalog.Product, quantity int) (Focus, error) {
	err := s.guard(func() error {
		if _, err := s.ledger.Add(p, quantity); err != nil {
			return err
		}
		s.key = ""
		return nil
	})
	if err != nil {
		return Focus{Target: FocusSearch}, err
	}
	if s.resolver != nil {
		s.resolver.Reset()
	}
	return Focus{Target: FocusQuantity, ProductID: p.ProductID}, nil
}

// AddSelection adds one of the chosen search candidate; index nil means the
// highlighted one, or the first.
func (s *Session) AddSelection(index *int) (Focus, error) {
	p, err := s.resolver.CommitSelection(index)
	if err != nil {
		return Focus{Target: FocusSearch}, err
	}
	return s.Add(p, 1)
}

// Enter is the Enter key in the search box.
func (s *Session) Enter(ctx context.Context) (Focus, error) {
	p, err := s.resolver.Enter(ctx)
	if err != nil {
		return Focus{Target: FocusSearch}, err
	}
	return s.Add(p, 1)
}

func (s *Session) SetQuantity(productID string, quantity int) error {
	return s.guard(func() error {
		if err := s.ledger.SetQuantity(productID, quantity); err != nil {
			return err
		}
		s.key = ""
		return nil
	})
}

func (s *Session) Remove(productID string) error {
	return s.guard(func() error {
		s.ledger.Remove(productID)
		s.key = ""
		return nil
	})
}

// SetCash records the cash field as typed. Blank clears it; anything that is
// not a number counts as zero.
func (s *Session) SetCash(text string) error {
	return s.guard(func() error {
		if strings.TrimSpace(text) == "" {
			s.cash = decimal.NullDecimal{}
		} else {
			s.cash = decimal.NullDecimal{Decimal: tender.ParseCash(text), Valid: true}
		}
		return nil
	})
}

// Cancel drops the cart, the cash and the search box.
func (s *Session) Cancel() error {
	err := s.guard(func() error {
		s.resetLocked()
		return nil
	})
	if err == nil && s.resolver != nil {
		s.resolver.Reset()
	}
	return err
}

func (s *Session) resetLocked() {
	s.ledger.Clear()
	s.cash = decimal.NullDecimal{}
	s.key = ""
}

func (s *Session) Lines() []cart.Line { return s.ledger.Lines() }

func (s *Session) Total() decimal.Decimal { return s.ledger.Total() }

func (s *Session) Cash() decimal.NullDecimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cash
}

// Change is derived from the live total on every call.
func (s *Session) Change() decimal.Decimal {
	return tender.Change(s.Cash().Decimal, s.ledger.Total())
}

// Commit submits the cart as a bill. An empty cart fails without touching the
// backend. On success the cart and cash are cleared, the day totals are
// refreshed once and, when printReceipt is set, the receipt is printed; a printer
// failure is reported in the Result and does not undo the sale.
func (s *Session) Commit(ctx context.Context, printReceipt bool) (Result, error) {
	s.mu.Lock()
	if s.state == Submitting {
		s.mu.Unlock()
		return Result{}, ErrCommitInProgress
	}
	lines := s.ledger.Lines()
	if len(lines) == 0 {
		s.mu.Unlock()
		return Result{}, ErrEmptyCart
	}

	total := decimal.Zero
	req := backend.BillRequest{Items: make([]backend.BillLine, 0, len(lines))}
	for _, l := range lines {
		req.Items = append(req.Items, backend.BillLine{ProductID: l.Product.ProductID, Quantity: l.Quantity})
		total = total.Add(l.Total())
	}
	cash := s.cash.Decimal
	req.Cash = cash
	req.Change = tender.Change(cash, total)
	if s.key == "" {
		s.key = s.newKey()
	}
	req.IdempotencyKey = s.key
	s.state = Submitting
	s.mu.Unlock()

	bill, err := s.backend.CreateBill(ctx, req)

	s.mu.Lock()
	if err != nil {
		s.state = Failed
		s.mu.Unlock()
		cerr := commitError(err)
		s.logger.Warn("bill rejected", zap.String("reason", cerr.Message), zap.Error(err))
		return Result{}, cerr
	}
	s.resetLocked()
	s.state = Committed
	s.mu.Unlock()

	if s.resolver != nil {
		s.resolver.Reset()
	}

	res := Result{
		Bill:          bill,
		AdvisoryTotal: total,
		TotalChanged:  !bill.TotalAmount.Equal(total),
	}
	s.logger.Info("bill saved",
		zap.String("bill_id", bill.BillID),
		zap.String("total", bill.TotalAmount.StringFixed(2)),
		zap.Bool("total_changed", res.TotalChanged))

	if _, err := s.summary.Refresh(ctx); err != nil {
		s.logger.Warn("day totals not refreshed after bill", zap.Error(err))
	}

	if printReceipt && s.printer != nil {
		if err := s.printer.Print(ctx, bill); err != nil {
			res.PrintErr = err
			s.logger.Warn("receipt not printed", zap.String("bill_id", bill.BillID), zap.Error(err))
		} else {
			res.Printed = true
		}
	}
	return res, nil
}

// EndDay closes the day at the backend. It is refused while the cart holds
// lines, so an unsaved sale is never left outside the day it was rung up in.
func (s *Session) EndDay(ctx context.Context) (backend.DaySummary, error) {
	err := s.guard(func() error {
		if s.ledger.Len() > 0 {
			return ErrUnsavedCart
		}
		return nil
	})
	if err != nil {
		return backend.DaySummary{}, err
	}

	day, err := s.backend.EndDay(ctx)
	if err != nil {
		s.logger.Warn("end of day failed", zap.Error(err))
		return backend.DaySummary{}, err
	}
	s.logger.Info("day ended", zap.String("date", day.Date), zap.Int("bills", day.BillCount))

	if _, err := s.summary.Refresh(ctx); err != nil {
		s.logger.Warn("day totals not refreshed after end of day", zap.Error(err))
	}
	return day, nil
}
