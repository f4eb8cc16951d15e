package summary

import (
	"time"

	"store-pos/internal/billing"

	"github.com/gocarina/gocsv"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// csvRow is one product line of an exported daily summary. The trailing
// TOTAL row carries the day figures with an empty product id.
type csvRow struct {
	ProductID    string `csv:"product_id"`
	Name         string `csv:"name"`
	SoldQuantity int    `csv:"sold_quantity"`
	TotalIncome  string `csv:"total_income"`
	Profit       string `csv:"profit"`
}

func csvRows(s DailySummaryResponse) []*csvRow {
	rows := make([]*csvRow, 0, len(s.Items)+1)
	qty := 0
	for _, it := range s.Items {
		rows = append(rows, &csvRow{
			ProductID:    it.ProductID,
			Name:         it.Name,
			SoldQuantity: it.SoldQuantity,
			TotalIncome:  it.TotalIncome.StringFixed(2),
			Profit:       it.Profit.StringFixed(2),
		})
		qty += it.SoldQuantity
	}
	rows = append(rows, &csvRow{
		Name:         "TOTAL",
		SoldQuantity: qty,
		TotalIncome:  s.TotalIncome.StringFixed(2),
		Profit:       s.TotalProfit.StringFixed(2),
	})
	return rows
}

// GET /api/summary/daily/:date/export
func ExportDailySummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		date := c.Params("date")
		if _, err := time.Parse(billing.DateLayout, date); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Date must be in YYYY-MM-DD format")
		}
		s, err := loadDaily(date)
		if err != nil {
			return err
		}

		out, err := gocsv.MarshalBytes(csvRows(dailyResponse(s)))
		if err != nil {
			zap.L().Error("daily summary export failed", zap.String("date", date), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Summary could not be exported")
		}
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="summary-`+date+`.csv"`)
		return c.Send(out)
	}
}
