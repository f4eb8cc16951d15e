package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary: per-product fold of the open bills, written at end of day
type DailySummary struct {
	ID          uint            `gorm:"primaryKey"`
	Date        string          `gorm:"size:10;uniqueIndex;not null"`
	BillCount   int             `gorm:"not null;default:0"`
	TotalIncome decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	TotalProfit decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	ClosedAt    time.Time       `gorm:"not null"`

	Items     []DailySummaryItem `gorm:"foreignKey:DailySummaryID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type DailySummaryItem struct {
	ID             uint            `gorm:"primaryKey"`
	DailySummaryID uint            `gorm:"index;not null"`
	ProductID      string          `gorm:"size:3;not null"`
	Name           string          `gorm:"size:100;not null"`
	SoldQuantity   int             `gorm:"not null"`
	TotalIncome    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Profit         decimal.Decimal `gorm:"type:decimal(14,2);not null"`
}

// MonthlySummary is rebuilt from the daily summaries of the month
type MonthlySummary struct {
	ID           uint            `gorm:"primaryKey"`
	Month        string          `gorm:"size:7;uniqueIndex;not null"` // "2006-01"
	StartDate    string          `gorm:"size:10;not null"`
	EndDate      string          `gorm:"size:10;not null"`
	DaysIncluded int             `gorm:"not null;default:0"`
	TotalIncome  decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	TotalProfit  decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`

	Items     []MonthlySummaryItem `gorm:"foreignKey:MonthlySummaryID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MonthlySummaryItem struct {
	ID               uint            `gorm:"primaryKey"`
	MonthlySummaryID uint            `gorm:"index;not null"`
	ProductID        string          `gorm:"size:3;not null"`
	Name             string          `gorm:"size:100;not null"`
	SoldQuantity     int             `gorm:"not null"`
	TotalIncome      decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Profit           decimal.Decimal `gorm:"type:decimal(14,2);not null"`
}
