package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amounts go over the wire as JSON numbers, matching catalog on the register
// side. The switch is process wide and set only here and in catalog.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ProductID    string          `gorm:"primaryKey;size:3"` // "001" - "999"
	Name         string          `gorm:"size:100;not null;index"`
	Stock        int             `gorm:"not null;default:0"`
	BuyingPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
