package backend

import (
	"github.com/shopspring/decimal"
)

// BillLine is one requested line; prices are never sent.
type BillLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type BillRequest struct {
	IdempotencyKey string `json:"-"`

	Items  []BillLine      `json:"items"`
	Cash   decimal.Decimal `json:"cash"`
	Change decimal.Decimal `json:"change"`
}

type BillItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

// Bill is the server's record of a sale, with totals recomputed from its own
// catalog.
type Bill struct {
	BillID      string          `json:"billId"`
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	Items       []BillItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Cash        decimal.Decimal `json:"cash"`
	Change      decimal.Decimal `json:"change"`
}

type DayTotals struct {
	Date        string          `json:"date"`
	BillCount   int             `json:"billCount"`
	TotalSales  decimal.Decimal `json:"totalSales"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
}

type SummaryItem struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	SoldQuantity int             `json:"soldQuantity"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	Profit       decimal.Decimal `json:"profit"`
}

type DaySummary struct {
	Date        string          `json:"date"`
	BillCount   int             `json:"billCount"`
	Items       []SummaryItem   `json:"items"`
	TotalIncome decimal.Decimal `json:"totalIncome"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
	ClosedAt    string          `json:"closedAt"`
}

type MonthlySummary struct {
	Month        string          `json:"month"`
	MonthName    string          `json:"monthName"`
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate"`
	DaysIncluded int             `json:"daysIncluded"`
	Items        []SummaryItem   `json:"items"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalProfit  decimal.Decimal `json:"totalProfit"`
}
