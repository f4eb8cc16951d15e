package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill: a finalized sale. ID is assigned by the database in increasing order.
type Bill struct {
	ID          uint            `gorm:"primaryKey"`
	Date        string          `gorm:"size:10;index;not null"` // "2006-01-02"
	Time        string          `gorm:"size:8;not null"`        // "15:04:05"
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Profit      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Cash        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Change      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	// nil until the day is ended
	DailySummaryID *uint `gorm:"index"`

	Items     []BillItem `gorm:"foreignKey:BillID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BillItem keeps the price and cost captured at sale time, never the live price.
type BillItem struct {
	ID          uint            `gorm:"primaryKey"`
	BillID      uint            `gorm:"index;not null"`
	Position    int             `gorm:"not null"`
	ProductID   string          `gorm:"size:3;index;not null"`
	Name        string          `gorm:"size:100;not null"`
	Quantity    int             `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	BuyingPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

// Open: bill belongs to the day that is still running.
func (b *Bill) Open() bool {
	return b.DailySummaryID == nil
}
