package summary

import (
	"errors"
	"sort"
	"time"

	"store-pos/internal/audit"
	"store-pos/internal/billing"
	"store-pos/internal/database"
	"store-pos/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Now is swapped in tests that need a fixed day.
var Now = time.Now

type CurrentDayResponse struct {
	Date        string          `json:"date"`
	BillCount   int             `json:"billCount"`
	TotalSales  decimal.Decimal `json:"totalSales"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
}

type ItemSummary struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	SoldQuantity int             `json:"soldQuantity"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	Profit       decimal.Decimal `json:"profit"`
}

type DailySummaryResponse struct {
	Date        string          `json:"date"`
	BillCount   int             `json:"billCount"`
	Items       []ItemSummary   `json:"items"`
	TotalIncome decimal.Decimal `json:"totalIncome"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
	ClosedAt    string          `json:"closedAt"`
}

func dailyResponse(s models.DailySummary) DailySummaryResponse {
	items := make([]ItemSummary, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, ItemSummary{
			ProductID:    it.ProductID,
			Name:         it.Name,
			SoldQuantity: it.SoldQuantity,
			TotalIncome:  it.TotalIncome,
			Profit:       it.Profit,
		})
	}
	sortItems(items)
	return DailySummaryResponse{
		Date:        s.Date,
		BillCount:   s.BillCount,
		Items:       items,
		TotalIncome: s.TotalIncome,
		TotalProfit: s.TotalProfit,
		ClosedAt:    s.ClosedAt.Format(time.RFC3339),
	}
}

func sortItems(items []ItemSummary) {
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
}

// itemFold accumulates per-product totals.
type itemFold struct {
	byID map[string]*ItemSummary
}

func newItemFold() *itemFold {
	return &itemFold{byID: map[string]*ItemSummary{}}
}

func (f *itemFold) add(productID, name string, qty int, income, profit decimal.Decimal) {
	s, ok := f.byID[productID]
	if !ok {
		s = &ItemSummary{ProductID: productID, Name: name, TotalIncome: decimal.Zero, Profit: decimal.Zero}
		f.byID[productID] = s
	}
	s.SoldQuantity += qty
	s.TotalIncome = s.TotalIncome.Add(income)
	s.Profit = s.Profit.Add(profit)
}

func (f *itemFold) items() []ItemSummary {
	out := make([]ItemSummary, 0, len(f.byID))
	for _, s := range f.byID {
		out = append(out, *s)
	}
	sortItems(out)
	return out
}

func openBills(db *gorm.DB) ([]models.Bill, error) {
	var bills []models.Bill
	err := db.Preload("Items").
		Where("daily_summary_id IS NULL").
		Order("id asc").
		Find(&bills).Error
	return bills, err
}

// GET /api/day/current
// Totals of every bill not yet folded into a daily summary.
func CurrentDayHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		bills, err := openBills(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Current day could not be loaded")
		}

		res := CurrentDayResponse{
			Date:        Now().Format(billing.DateLayout),
			BillCount:   len(bills),
			TotalSales:  decimal.Zero,
			TotalProfit: decimal.Zero,
		}
		for _, b := range bills {
			res.TotalSales = res.TotalSales.Add(b.TotalAmount)
			res.TotalProfit = res.TotalProfit.Add(b.Profit)
		}
		return c.JSON(res)
	}
}

// POST /api/day/end
// Folds open bills into today's daily summary (merging when the day was
// already ended once) and closes them.
func EndDayHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var summary models.DailySummary

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			bills, err := openBills(tx)
			if err != nil {
				return err
			}
			if len(bills) == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "No open sales to close for today")
			}

			date := Now().Format(billing.DateLayout)
			fold := newItemFold()

			err = tx.Preload("Items").First(&summary, "date = ?", date).Error
			switch {
			case err == nil:
				for _, it := range summary.Items {
					fold.add(it.ProductID, it.Name, it.SoldQuantity, it.TotalIncome, it.Profit)
				}
				if err := tx.Where("daily_summary_id = ?", summary.ID).Delete(&models.DailySummaryItem{}).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				summary = models.DailySummary{Date: date, TotalIncome: decimal.Zero, TotalProfit: decimal.Zero}
			default:
				return err
			}

			for _, b := range bills {
				for _, it := range b.Items {
					qty := decimal.NewFromInt(int64(it.Quantity))
					fold.add(it.ProductID, it.Name, it.Quantity, it.Total, it.Price.Sub(it.BuyingPrice).Mul(qty))
				}
				summary.TotalIncome = summary.TotalIncome.Add(b.TotalAmount)
				summary.TotalProfit = summary.TotalProfit.Add(b.Profit)
			}
			summary.BillCount += len(bills)
			summary.ClosedAt = Now()

			summary.Items = nil
			for _, it := range fold.items() {
				summary.Items = append(summary.Items, models.DailySummaryItem{
					ProductID:    it.ProductID,
					Name:         it.Name,
					SoldQuantity: it.SoldQuantity,
					TotalIncome:  it.TotalIncome,
					Profit:       it.Profit,
				})
			}
			if err := tx.Save(&summary).Error; err != nil {
				return err
			}

			ids := make([]uint, 0, len(bills))
			for _, b := range bills {
				ids = append(ids, b.ID)
			}
			if err := tx.Model(&models.Bill{}).Where("id IN ?", ids).
				UpdateColumn("daily_summary_id", summary.ID).Error; err != nil {
				return err
			}

			return audit.WriteLog(tx, audit.LogOptions{
				EntityType:  "daily_summary",
				EntityID:    summary.Date,
				Action:      models.AuditActionEndDay,
				Description: "day ended",
				After:       dailyResponse(summary),
			})
		})
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			zap.L().Error("end of day failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Day could not be ended")
		}

		zap.L().Info("day ended",
			zap.String("date", summary.Date),
			zap.Int("bills", summary.BillCount),
			zap.String("income", summary.TotalIncome.StringFixed(2)))
		return c.JSON(dailyResponse(summary))
	}
}

// GET /api/summary/daily/:date
func DailySummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		date := c.Params("date")
		if _, err := time.Parse(billing.DateLayout, date); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Date must be in YYYY-MM-DD format")
		}

		s, err := loadDaily(date)
		if err != nil {
			return err
		}
		return c.JSON(dailyResponse(s))
	}
}

func loadDaily(date string) (models.DailySummary, error) {
	var s models.DailySummary
	if err := database.DB.Preload("Items").First(&s, "date = ?", date).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s, fiber.NewError(fiber.StatusNotFound, "No summary available for this date")
		}
		return s, fiber.NewError(fiber.StatusInternalServerError, "Summary could not be loaded")
	}
	return s, nil
}

// GET /api/summary/available-dates
func AvailableDatesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var dates []string
		if err := database.DB.Model(&models.DailySummary{}).Order("date desc").Pluck("date", &dates).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dates could not be listed")
		}
		if dates == nil {
			dates = []string{}
		}
		return c.JSON(dates)
	}
}
