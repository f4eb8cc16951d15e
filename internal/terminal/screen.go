// Package terminal is the line-based operator screen of the register. Each
// input line is either search text or a colon command; commands that stand
// for keys go through the screen's Keymap.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"store-pos/internal/backend"
	"store-pos/internal/catalog"
	"store-pos/internal/logging"
	"store-pos/internal/receipt"
	"store-pos/internal/sale"
	"store-pos/internal/search"
	"store-pos/internal/stockwatch"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Day is the open-day view the screen reads totals and bills from.
type Day interface {
	Refresh(ctx context.Context) (backend.DayTotals, error)
	Current() backend.DayTotals
	TodayBills(ctx context.Context) ([]backend.Bill, error)
}

// Reports loads closed summaries.
type Reports interface {
	DailySummary(ctx context.Context, date string) (backend.DaySummary, error)
	CreateMonthlySummary(ctx context.Context, month string) (backend.MonthlySummary, error)
}

type StockAlerts interface {
	Alerts() []stockwatch.Alert
}

type Option func(*Screen)

func WithLogger(l *zap.Logger) Option {
	return func(s *Screen) { s.logger = logging.OrNop(l) }
}

func WithReports(r Reports) Option {
	return func(s *Screen) { s.reports = r }
}

func WithStockAlerts(a StockAlerts) Option {
	return func(s *Screen) { s.stock = a }
}

// WithClock sets the clock used for "today" and "yesterday".
func WithClock(now func() time.Time) Option {
	return func(s *Screen) { s.now = now }
}

type Screen struct {
	session *sale.Session
	day     Day
	reports Reports
	stock   StockAlerts
	keys    *Keymap
	logger  *zap.Logger
	now     func() time.Time

	outMu sync.Mutex
	out   io.Writer

	// focus is only touched from the input goroutine.
	focus sale.Focus
}

func NewScreen(session *sale.Session, day Day, out io.Writer, opts ...Option) *Screen {
	s := &Screen{
		session: session,
		day:     day,
		out:     out,
		keys:    NewKeymap(),
		logger:  zap.NewNop(),
		now:     time.Now,
		focus:   sale.Focus{Target: sale.FocusSearch},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.keys.Bind(KeyUp, func(context.Context) error { s.move(-1); return nil })
	s.keys.Bind(KeyDown, func(context.Context) error { s.move(1); return nil })
	s.keys.Bind(KeyEnter, s.enter)
	s.keys.Bind(KeyEscape, func(context.Context) error { return s.cancel() })
	s.keys.Bind(KeySave, func(ctx context.Context) error {
		if len(s.session.Lines()) == 0 {
			return nil
		}
		return s.commit(ctx, true)
	})
	return s
}

func (s *Screen) Keys() *Keymap { return s.keys }

// Run reads lines from in until :quit, EOF or ctx is done. The keymap is
// attached for the duration of the call.
func (s *Screen) Run(ctx context.Context, in io.Reader) error {
	s.keys.Attach()
	defer s.keys.Detach()

	if _, err := s.day.Refresh(ctx); err != nil {
		s.notice(sale.Message(err))
	}
	s.printf("%s\n", helpText)
	s.render()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if quit := s.Handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// Handle processes one input line and redraws. It reports true for :quit.
func (s *Screen) Handle(ctx context.Context, line string) (quit bool) {
	input := strings.TrimSpace(line)
	var err error

	switch {
	case input == "":
		if s.focus.Target == sale.FocusQuantity {
			s.focus = sale.Focus{Target: sale.FocusSearch}
			break
		}
		err = s.press(ctx, KeyEnter)
	case strings.HasPrefix(input, ":"):
		quit, err = s.command(ctx, input[1:])
		if quit {
			return true
		}
	case s.focus.Target == sale.FocusQuantity && isNumber(input):
		qty, _ := strconv.Atoi(input)
		err = s.session.SetQuantity(s.focus.ProductID, qty)
		if err == nil {
			s.focus = sale.Focus{Target: sale.FocusSearch}
		}
	default:
		s.focus = sale.Focus{Target: sale.FocusSearch}
		s.session.Resolver().OnQueryChange(input)
		return false
	}

	if err != nil {
		s.logger.Debug("input refused", zap.String("input", input), zap.Error(err))
		s.notice(sale.Message(err))
	}
	s.render()
	return false
}

func (s *Screen) press(ctx context.Context, key Key) error {
	_, err := s.keys.Dispatch(ctx, key)
	return err
}

func (s *Screen) command(ctx context.Context, cmd string) (bool, error) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false, nil
	}
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "quit", "q":
		return true, nil
	case "help":
		s.printf("%s\n", helpText)
	case "up":
		return false, s.press(ctx, KeyUp)
	case "down":
		return false, s.press(ctx, KeyDown)
	case "cancel":
		return false, s.press(ctx, KeyEscape)
	case "print":
		return false, s.press(ctx, KeySave)
	case "save":
		return false, s.commit(ctx, false)
	case "pick":
		n, err := intArg(args, 0)
		if err != nil {
			return false, err
		}
		idx := n - 1
		f, err := s.session.AddSelection(&idx)
		s.focus = f
		return false, err
	case "qty":
		return false, s.quantity(args)
	case "rm":
		if len(args) != 1 {
			return false, errors.New("usage: :rm ID")
		}
		return false, s.session.Remove(padded(args[0]))
	case "cash":
		return false, s.session.SetCash(strings.Join(args, ""))
	case "day":
		_, err := s.day.Refresh(ctx)
		return false, err
	case "bills":
		return false, s.bills(ctx)
	case "endday":
		return false, s.endDay(ctx)
	case "stock":
		s.stockReport()
	case "daily":
		return false, s.daily(ctx, strings.Join(args, " "))
	case "monthly":
		return false, s.monthly(ctx, strings.Join(args, " "))
	default:
		return false, fmt.Errorf("unknown command :%s, try :help", fields[0])
	}
	return false, nil
}

func (s *Screen) move(delta int) {
	s.session.Resolver().MoveCursor(delta)
	s.showCandidates(s.session.Resolver().Snapshot())
}

func (s *Screen) enter(ctx context.Context) error {
	f, err := s.session.Enter(ctx)
	s.focus = f
	return err
}

func (s *Screen) cancel() error {
	if err := s.session.Cancel(); err != nil {
		return err
	}
	s.focus = sale.Focus{Target: sale.FocusSearch}
	return nil
}

// quantity handles ":qty N" for the focused line and ":qty ID N".
func (s *Screen) quantity(args []string) error {
	var id, raw string
	switch len(args) {
	case 1:
		id, raw = s.focus.ProductID, args[0]
		if id == "" {
			if lines := s.session.Lines(); len(lines) > 0 {
				id = lines[len(lines)-1].Product.ProductID
			}
		}
	case 2:
		id, raw = padded(args[0]), args[1]
	default:
		return errors.New("usage: :qty [ID] N")
	}
	qty, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("quantity %q is not a number", raw)
	}
	if err := s.session.SetQuantity(id, qty); err != nil {
		return err
	}
	s.focus = sale.Focus{Target: sale.FocusSearch}
	return nil
}

func (s *Screen) commit(ctx context.Context, printReceipt bool) error {
	res, err := s.session.Commit(ctx, printReceipt)
	s.session.Observe()
	if err != nil {
		return err
	}
	s.focus = sale.Focus{Target: sale.FocusSearch}

	s.notice(fmt.Sprintf("Bill %s saved, total %s", receipt.FormatBillID(res.Bill.BillID), res.Bill.TotalAmount.StringFixed(2)))
	if res.TotalChanged {
		s.notice(fmt.Sprintf("Prices changed since the items were added: cart showed %s", res.AdvisoryTotal.StringFixed(2)))
	}
	if res.PrintErr != nil {
		s.notice("Bill saved but the receipt could not be printed")
	}
	return nil
}

func (s *Screen) endDay(ctx context.Context) error {
	day, err := s.session.EndDay(ctx)
	if err != nil {
		return err
	}
	s.printf("Day %s closed: %d bills, income %s, profit %s\n",
		day.Date, day.BillCount, day.TotalIncome.StringFixed(2), day.TotalProfit.StringFixed(2))
	s.printItems(day.Items)
	return nil
}

func (s *Screen) bills(ctx context.Context) error {
	bills, err := s.day.TodayBills(ctx)
	if err != nil {
		return err
	}
	if len(bills) == 0 {
		s.printf("No bills today\n")
		return nil
	}
	for _, b := range bills {
		s.printf("  %s  %s  %3d items  %10s\n", receipt.FormatBillID(b.BillID), b.Time, len(b.Items), b.TotalAmount.StringFixed(2))
	}
	return nil
}

func (s *Screen) stockReport() {
	if s.stock == nil {
		s.printf("Stock watch is off\n")
		return
	}
	alerts := s.stock.Alerts()
	if len(alerts) == 0 {
		s.printf("All products are stocked\n")
		return
	}
	for _, a := range alerts {
		s.printf("  %-12s %s %-20s %d left\n", a.Level, a.Product.ProductID, a.Product.Name, a.Product.Stock)
	}
}

func (s *Screen) daily(ctx context.Context, arg string) error {
	if s.reports == nil {
		return errors.New("reports are not available")
	}
	date, err := s.parseDate(arg)
	if err != nil {
		return err
	}
	sum, err := s.reports.DailySummary(ctx, date.Format(dateLayout))
	if err != nil {
		return err
	}
	s.printf("Summary %s: %d bills, income %s, profit %s\n",
		sum.Date, sum.BillCount, sum.TotalIncome.StringFixed(2), sum.TotalProfit.StringFixed(2))
	s.printItems(sum.Items)
	return nil
}

func (s *Screen) monthly(ctx context.Context, arg string) error {
	if s.reports == nil {
		return errors.New("reports are not available")
	}
	month := ""
	if strings.TrimSpace(arg) != "" {
		t, err := s.parseDate(arg)
		if err != nil {
			return err
		}
		month = t.Format(monthLayout)
	}
	sum, err := s.reports.CreateMonthlySummary(ctx, month)
	if err != nil {
		return err
	}
	s.printf("%s: %d days, income %s, profit %s\n",
		sum.MonthName, sum.DaysIncluded, sum.TotalIncome.StringFixed(2), sum.TotalProfit.StringFixed(2))
	s.printItems(sum.Items)
	return nil
}

// parseDate accepts "today", "yesterday" and anything dateparse understands.
func (s *Screen) parseDate(arg string) (time.Time, error) {
	arg = strings.TrimSpace(arg)
	now := s.now()
	switch strings.ToLower(arg) {
	case "", "today":
		return now, nil
	case "yesterday":
		return now.AddDate(0, 0, -1), nil
	}
	t, err := dateparse.ParseIn(arg, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot read date %q", arg)
	}
	return t, nil
}

func (s *Screen) printItems(items []backend.SummaryItem) {
	for _, it := range items {
		s.printf("  %s %-20s %4d  %10s  %10s\n",
			it.ProductID, it.Name, it.SoldQuantity, it.TotalIncome.StringFixed(2), it.Profit.StringFixed(2))
	}
}

// ShowCandidates draws the search list. It is the resolver's update hook
// and may be called from a timer goroutine.
func (s *Screen) ShowCandidates(snap search.Snapshot) {
	s.showCandidates(snap)
}

func (s *Screen) showCandidates(snap search.Snapshot) {
	if strings.TrimSpace(snap.Query) == "" {
		return
	}
	if len(snap.Candidates) == 0 {
		s.printf("  no products match %q\n", snap.Query)
		return
	}
	for i, p := range snap.Candidates {
		mark := " "
		if i == snap.Cursor {
			mark = ">"
		}
		s.printf(" %s%2d. %s %-20s stock %-4d %10s\n", mark, i+1, p.ProductID, p.Name, p.Stock, p.SellingPrice.StringFixed(2))
	}
}

func (s *Screen) render() {
	lines := s.session.Lines()
	totals := s.day.Current()

	s.outMu.Lock()
	defer s.outMu.Unlock()

	fmt.Fprintf(s.out, "---- today: %s sold, %s profit\n", totals.TotalSales.StringFixed(2), totals.TotalProfit.StringFixed(2))
	if len(lines) == 0 {
		fmt.Fprintln(s.out, "  (no items in cart)")
	}
	for _, l := range lines {
		fmt.Fprintf(s.out, "  %s %-20s x%-4d %10s\n", l.Product.ProductID, l.Product.Name, l.Quantity, l.Total().StringFixed(2))
	}
	cash := s.session.Cash()
	if cash.Valid {
		fmt.Fprintf(s.out, "  Total: %s  Cash: %s  Change: %s\n",
			s.session.Total().StringFixed(2), cash.Decimal.StringFixed(2), s.session.Change().StringFixed(2))
	} else {
		fmt.Fprintf(s.out, "  Total: %s\n", s.session.Total().StringFixed(2))
	}
	fmt.Fprint(s.out, s.prompt())
}

func (s *Screen) prompt() string {
	if s.focus.Target == sale.FocusQuantity {
		return "qty " + s.focus.ProductID + "> "
	}
	return "search> "
}

func (s *Screen) notice(msg string) {
	if msg == "" {
		return
	}
	s.printf("! %s\n", msg)
}

func (s *Screen) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func intArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, errors.New("missing number")
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", args[i])
	}
	return n, nil
}

func padded(id string) string {
	if p, ok := catalog.PadID(id); ok {
		return p
	}
	return id
}

const helpText = `type to search, empty line adds the first/highlighted match
  :up :down        move the highlight     :pick N       add match N
  :qty [ID] N      set a quantity         :rm ID        remove a line
  :cash X          cash handed over       :cancel       drop the bill
  :save            save the bill          :print        save and print
  :day             refresh today's totals :bills        list today's bills
  :endday          close the day          :stock        low stock report
  :daily [DATE]    closed day summary     :monthly [YYYY-MM] month summary
  :quit`
