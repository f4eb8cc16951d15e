// Package daysummary shows the running totals of the open day. The figures
// are computed by the backend; nothing here adds bills up locally.
package daysummary

import (
	"context"
	"sync"
	"time"

	"store-pos/internal/backend"
	"store-pos/internal/logging"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Source interface {
	CurrentDay(ctx context.Context) (backend.DayTotals, error)
	TodayBills(ctx context.Context) ([]backend.Bill, error)
}

type View struct {
	source Source
	logger *zap.Logger

	mu        sync.RWMutex
	current   backend.DayTotals
	updatedAt time.Time
}

func New(source Source, logger *zap.Logger) *View {
	return &View{
		source: source,
		logger: logging.OrNop(logger),
		current: backend.DayTotals{
			TotalSales:  decimal.Zero,
			TotalProfit: decimal.Zero,
		},
	}
}

// Refresh pulls the open-day totals. On failure the last figures stay.
func (v *View) Refresh(ctx context.Context) (backend.DayTotals, error) {
	totals, err := v.source.CurrentDay(ctx)
	if err != nil {
		v.logger.Warn("day summary refresh failed", zap.Error(err))
		return v.Current(), err
	}

	v.mu.Lock()
	v.current = totals
	v.updatedAt = time.Now()
	v.mu.Unlock()
	return totals, nil
}

func (v *View) Current() backend.DayTotals {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// UpdatedAt is zero until the first successful refresh.
func (v *View) UpdatedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.updatedAt
}

func (v *View) TodayBills(ctx context.Context) ([]backend.Bill, error) {
	return v.source.TodayBills(ctx)
}
