// Package catalog holds the product model shared by the register and the
// backend, plus a local snapshot of the catalog for offline-speed lookups.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts go over the wire as JSON numbers. The switch is process wide; the
// backend's models package flips it too so a binary linking either side gets
// the same encoding. Every package that encodes amounts imports one of the two.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// MaxProductID is the highest id a three digit catalog can hand out.
const MaxProductID = 999

var (
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrProductNotFound    = errors.New("product not found")
)

var shortID = regexp.MustCompile(`^\d{1,3}$`)

type Product struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	Stock        int             `json:"stock"`
	BuyingPrice  decimal.Decimal `json:"buyingPrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
}

// IsShortID reports whether s is a bare 1-3 digit id such as "7" or "042".
func IsShortID(s string) bool {
	return shortID.MatchString(s)
}

// PadID zero-pads a short id to three digits. ok is false for anything that
// is not 1-3 digits.
func PadID(s string) (id string, ok bool) {
	if !IsShortID(s) {
		return "", false
	}
	return strings.Repeat("0", 3-len(s)) + s, true
}

// FormatID renders n as a catalog id.
func FormatID(n int) string {
	return fmt.Sprintf("%03d", n)
}

// ParseID validates a catalog id and returns its numeric value (1-999).
func ParseID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !IsShortID(s) {
		return 0, fmt.Errorf("product id %q must be 1-3 digits", s)
	}
	n, _ := strconv.Atoi(s)
	if n < 1 || n > MaxProductID {
		return 0, fmt.Errorf("product id %q out of range 001-%03d", s, MaxProductID)
	}
	return n, nil
}
