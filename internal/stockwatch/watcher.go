// Package stockwatch polls the catalog and reports products that are running
// out.
package stockwatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"store-pos/internal/catalog"
	"store-pos/internal/logging"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultThreshold = 10
	DefaultSpec      = "@every 30s"

	criticalStock = 5
)

type Level int

const (
	Low Level = iota
	Critical
	OutOfStock
)

func (l Level) String() string {
	switch l {
	case OutOfStock:
		return "OUT OF STOCK"
	case Critical:
		return "CRITICAL"
	}
	return "LOW"
}

func LevelOf(stock int) Level {
	switch {
	case stock <= 0:
		return OutOfStock
	case stock <= criticalStock:
		return Critical
	}
	return Low
}

type Alert struct {
	Product catalog.Product
	Level   Level
}

// Classify picks the products at or under threshold, emptiest first.
func Classify(products []catalog.Product, threshold int) []Alert {
	var out []Alert
	for _, p := range products {
		if p.Stock <= threshold {
			out = append(out, Alert{Product: p, Level: LevelOf(p.Stock)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Product.Stock != out[j].Product.Stock {
			return out[i].Product.Stock < out[j].Product.Stock
		}
		return out[i].Product.ProductID < out[j].Product.ProductID
	})
	return out
}

// Catalog is the part of catalog.Index the watcher needs.
type Catalog interface {
	Load(ctx context.Context) (map[string]catalog.Product, error)
	All() []catalog.Product
}

type Option func(*Watcher)

func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = logging.OrNop(l) }
}

// OnChange is called after every check with the current alerts.
func OnChange(fn func([]Alert)) Option {
	return func(w *Watcher) { w.onChange = fn }
}

// WithCheckTimeout bounds each scheduled reload.
func WithCheckTimeout(d time.Duration) Option {
	return func(w *Watcher) { w.timeout = d }
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Watcher struct {
	catalog   Catalog
	threshold int
	timeout   time.Duration
	logger    *zap.Logger
	onChange  func([]Alert)

	mu     sync.Mutex
	alerts []Alert
	sched  *cron.Cron
}

func New(c Catalog, threshold int, opts ...Option) *Watcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	w := &Watcher{
		catalog:   c,
		threshold: threshold,
		timeout:   10 * time.Second,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Check reloads the catalog and recomputes the alerts. When the reload fails
// the alerts are computed from the last good snapshot and the error is
// returned alongside them.
func (w *Watcher) Check(ctx context.Context) ([]Alert, error) {
	_, err := w.catalog.Load(ctx)
	if err != nil {
		w.logger.Warn("stock check on stale catalog", zap.Error(err))
	}
	alerts := Classify(w.catalog.All(), w.threshold)

	w.mu.Lock()
	w.alerts = alerts
	onChange := w.onChange
	w.mu.Unlock()

	if onChange != nil {
		onChange(alerts)
	}
	return alerts, err
}

func (w *Watcher) Alerts() []Alert {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Alert, len(w.alerts))
	copy(out, w.alerts)
	return out
}

// Start runs one check right away and then one per tick of spec.
func (w *Watcher) Start(spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}
	sched := cron.New(cron.WithParser(cronParser))
	if _, err := sched.AddFunc(spec, w.tick); err != nil {
		return err
	}

	w.mu.Lock()
	if w.sched != nil {
		w.mu.Unlock()
		return nil
	}
	w.sched = sched
	w.mu.Unlock()

	go w.tick()
	sched.Start()
	w.logger.Debug("stock watcher started", zap.String("spec", spec), zap.Int("threshold", w.threshold))
	return nil
}

func (w *Watcher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	_, _ = w.Check(ctx)
}

// Stop halts the schedule; the returned context is done once a running
// check has finished.
func (w *Watcher) Stop() context.Context {
	w.mu.Lock()
	sched := w.sched
	w.sched = nil
	w.mu.Unlock()

	if sched == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return sched.Stop()
}
