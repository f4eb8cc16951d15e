package dashboard

import (
	"sort"
	"strconv"
	"time"

	"store-pos/internal/billing"
	"store-pos/internal/database"
	"store-pos/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Now is swapped in tests that need a fixed day.
var Now = time.Now

type SalesChartPoint struct {
	Label     string          `json:"label"` // day, week start or month start
	BillCount int             `json:"billCount"`
	Sales     decimal.Decimal `json:"sales"`
	Profit    decimal.Decimal `json:"profit"`
}

type SalesChartTotals struct {
	BillCount int             `json:"billCount"`
	Sales     decimal.Decimal `json:"sales"`
	Profit    decimal.Decimal `json:"profit"`
}

type SalesChartResponse struct {
	Period      string            `json:"period"` // daily | weekly | monthly
	From        string            `json:"from"`
	To          string            `json:"to"`
	Points      []SalesChartPoint `json:"points"`
	GrandTotals SalesChartTotals  `json:"grandTotals"`
}

// bucketStart maps a bill date onto the first day of its bucket.
func bucketStart(period string, day time.Time) time.Time {
	switch period {
	case "weekly":
		// weeks start on Monday
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case "monthly":
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	}
	return day
}

// window returns the first and last day covered by count buckets ending
// today.
func window(period string, count int, now time.Time) (time.Time, time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case "weekly":
		start := bucketStart(period, today).AddDate(0, 0, -7*(count-1))
		return start, today
	case "monthly":
		start := bucketStart(period, today).AddDate(0, -(count - 1), 0)
		return start, today
	}
	return today.AddDate(0, 0, -(count - 1)), today
}

// GET /api/dashboard/sales-chart?period=daily&count=7
func SalesChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period := c.Query("period", "daily")
		count := 0
		switch period {
		case "weekly":
			count = 8
		case "monthly":
			count = 12
		case "daily":
			count = 7
		default:
			return fiber.NewError(fiber.StatusBadRequest, "period must be daily, weekly or monthly")
		}
		if raw := c.Query("count"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > 366 {
				return fiber.NewError(fiber.StatusBadRequest, "count must be between 1 and 366")
			}
			count = n
		}

		start, end := window(period, count, Now())
		from, to := start.Format(billing.DateLayout), end.Format(billing.DateLayout)

		// Dates are stored as YYYY-MM-DD, so string order is date order.
		var bills []models.Bill
		if err := database.DB.
			Select("date", "total_amount", "profit").
			Where("date >= ? AND date <= ?", from, to).
			Find(&bills).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sales could not be aggregated")
		}

		buckets := make(map[string]*SalesChartPoint)
		for _, b := range bills {
			day, err := time.Parse(billing.DateLayout, b.Date)
			if err != nil {
				continue
			}
			label := bucketStart(period, day).Format(billing.DateLayout)
			p, ok := buckets[label]
			if !ok {
				p = &SalesChartPoint{Label: label, Sales: decimal.Zero, Profit: decimal.Zero}
				buckets[label] = p
			}
			p.BillCount++
			p.Sales = p.Sales.Add(b.TotalAmount)
			p.Profit = p.Profit.Add(b.Profit)
		}

		resp := SalesChartResponse{
			Period: period,
			From:   from,
			To:     to,
			Points: make([]SalesChartPoint, 0, len(buckets)),
			GrandTotals: SalesChartTotals{
				Sales:  decimal.Zero,
				Profit: decimal.Zero,
			},
		}
		for _, p := range buckets {
			resp.Points = append(resp.Points, *p)
			resp.GrandTotals.BillCount += p.BillCount
			resp.GrandTotals.Sales = resp.GrandTotals.Sales.Add(p.Sales)
			resp.GrandTotals.Profit = resp.GrandTotals.Profit.Add(p.Profit)
		}
		sort.Slice(resp.Points, func(i, j int) bool { return resp.Points[i].Label < resp.Points[j].Label })

		return c.JSON(resp)
	}
}
