// Package receipt renders a bill for a 58 mm thermal printer.
package receipt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"store-pos/internal/backend"
	"store-pos/internal/config"

	"github.com/shopspring/decimal"
)

// Width is the printable columns of a 58 mm roll in the default font.
const Width = 32

// Columns are separated by one space: 9+1+4+1+8+1+8 == Width.
const (
	nameCol  = 9
	qtyCol   = 4
	priceCol = 8
	totalCol = 8
)

// FormatBillID left-pads a server bill id to six digits.
func FormatBillID(id string) string {
	if n := utf8.RuneCountInString(id); n < 6 {
		return strings.Repeat("0", 6-n) + id
	}
	return id
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func center(s string) string {
	n := utf8.RuneCountInString(s)
	if n >= Width {
		return s
	}
	return strings.Repeat(" ", (Width-n)/2) + s
}

func rightAlign(label, value string) string {
	gap := Width - utf8.RuneCountInString(label) - utf8.RuneCountInString(value)
	if gap < 1 {
		gap = 1
	}
	return label + strings.Repeat(" ", gap) + value
}

// wrap breaks s into lines of at most width runes, on spaces when it can.
func wrap(s string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(s) {
		for utf8.RuneCountInString(word) > width {
			if cur.Len() > 0 {
				lines = append(lines, cur.String())
				cur.Reset()
			}
			r := []rune(word)
			lines = append(lines, string(r[:width]))
			word = string(r[width:])
		}
		switch {
		case cur.Len() == 0:
			cur.WriteString(word)
		case utf8.RuneCountInString(cur.String())+1+utf8.RuneCountInString(word) <= width:
			cur.WriteByte(' ')
			cur.WriteString(word)
		default:
			lines = append(lines, cur.String())
			cur.Reset()
			cur.WriteString(word)
		}
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

func itemRow(name string, qty int, price, total decimal.Decimal) string {
	return fmt.Sprintf("%-*s %*d %*s %*s", nameCol, name, qtyCol, qty, priceCol, money(price), totalCol, money(total))
}

// itemRows lays out one bill item. Names longer than the name column go on
// their own lines; amounts too wide for their columns are printed as
// "qty x price" with the total right aligned below.
func itemRows(it backend.BillItem) []string {
	price, total := money(it.Price), money(it.Total)
	if utf8.RuneCountInString(price) > priceCol || utf8.RuneCountInString(total) > totalCol {
		rows := wrap(it.Name, Width)
		rows = append(rows, fmt.Sprintf("  %d x %s", it.Quantity, price))
		return append(rows, rightAlign("", total))
	}
	if utf8.RuneCountInString(it.Name) <= nameCol {
		return []string{itemRow(it.Name, it.Quantity, it.Price, it.Total)}
	}
	return append(wrap(it.Name, Width), itemRow("", it.Quantity, it.Price, it.Total))
}

// Render writes the receipt for bill as plain text.
func Render(w io.Writer, store config.StoreInfo, bill backend.Bill) error {
	bw := bufio.NewWriter(w)
	line := func(s string) { bw.WriteString(strings.TrimRight(s, " ") + "\n") }
	sep := strings.Repeat("-", Width)

	for _, l := range wrap(store.Name, Width) {
		line(center(l))
	}
	for _, l := range wrap(store.Address, Width) {
		line(center(l))
	}
	if store.Phone != "" {
		line(center("Tel: " + store.Phone))
	}
	line("")
	line("Bill ID - " + FormatBillID(bill.BillID))
	line(strings.ReplaceAll(bill.Date, "-", ".") + " | " + bill.Time)
	line(sep)
	line(fmt.Sprintf("%-*s %*s %*s %*s", nameCol, "Name", qtyCol, "Qty", priceCol, "Price", totalCol, "Total"))
	line(sep)

	for _, it := range bill.Items {
		for _, l := range itemRows(it) {
			line(l)
		}
	}

	line(sep)
	line(rightAlign("Total:", money(bill.TotalAmount)+"/="))
	if bill.Cash.IsPositive() {
		line(rightAlign("Cash:", money(bill.Cash)))
		line(rightAlign("Change:", money(bill.Change)))
	}
	line("")
	line(center("Thank You..!"))
	return bw.Flush()
}

// Printer sends rendered receipts to w, one at a time.
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	store config.StoreInfo
}

func NewPrinter(w io.Writer, store config.StoreInfo) *Printer {
	return &Printer{w: w, store: store}
}

func (p *Printer) Print(ctx context.Context, bill backend.Bill) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return Render(p.w, p.store, bill)
}
