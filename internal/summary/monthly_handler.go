package summary

import (
	"errors"
	"time"

	"store-pos/internal/database"
	"store-pos/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const MonthLayout = "2006-01"

type MonthlySummaryResponse struct {
	Month        string          `json:"month"`
	MonthName    string          `json:"monthName"`
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate"`
	DaysIncluded int             `json:"daysIncluded"`
	Items        []ItemSummary   `json:"items"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalProfit  decimal.Decimal `json:"totalProfit"`
}

func monthName(month string) string {
	t, err := time.Parse(MonthLayout, month)
	if err != nil {
		return month
	}
	return t.Format("January 2006")
}

func monthlyResponse(s models.MonthlySummary) MonthlySummaryResponse {
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
	return MonthlySummaryResponse{
		Month:        s.Month,
		MonthName:    monthName(s.Month),
		StartDate:    s.StartDate,
		EndDate:      s.EndDate,
		DaysIncluded: s.DaysIncluded,
		Items:        items,
		TotalIncome:  s.TotalIncome,
		TotalProfit:  s.TotalProfit,
	}
}

func parseMonth(raw string) (string, error) {
	t, err := time.Parse(MonthLayout, raw)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "Month must be in YYYY-MM format")
	}
	return t.Format(MonthLayout), nil
}

// POST /api/summary/monthly/create?month=2026-09
// Rebuilds the month from its daily summaries; defaults to the current month.
func CreateMonthlySummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		month := Now().Format(MonthLayout)
		if raw := c.Query("month"); raw != "" {
			m, err := parseMonth(raw)
			if err != nil {
				return err
			}
			month = m
		}

		var summary models.MonthlySummary
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var days []models.DailySummary
			if err := tx.Preload("Items").
				Where("date LIKE ?", month+"-%").
				Order("date asc").
				Find(&days).Error; err != nil {
				return err
			}
			if len(days) == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "No daily summaries for "+monthName(month))
			}

			fold := newItemFold()
			summary = models.MonthlySummary{
				Month:        month,
				StartDate:    days[0].Date,
				EndDate:      days[len(days)-1].Date,
				DaysIncluded: len(days),
				TotalIncome:  decimal.Zero,
				TotalProfit:  decimal.Zero,
			}
			for _, d := range days {
				for _, it := range d.Items {
					fold.add(it.ProductID, it.Name, it.SoldQuantity, it.TotalIncome, it.Profit)
				}
				summary.TotalIncome = summary.TotalIncome.Add(d.TotalIncome)
				summary.TotalProfit = summary.TotalProfit.Add(d.TotalProfit)
			}
			for _, it := range fold.items() {
				summary.Items = append(summary.Items, models.MonthlySummaryItem{
					ProductID:    it.ProductID,
					Name:         it.Name,
					SoldQuantity: it.SoldQuantity,
					TotalIncome:  it.TotalIncome,
					Profit:       it.Profit,
				})
			}

			var existing models.MonthlySummary
			err := tx.First(&existing, "month = ?", month).Error
			if err == nil {
				if err := tx.Where("monthly_summary_id = ?", existing.ID).Delete(&models.MonthlySummaryItem{}).Error; err != nil {
					return err
				}
				if err := tx.Delete(&existing).Error; err != nil {
					return err
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return tx.Create(&summary).Error
		})
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			zap.L().Error("monthly summary failed", zap.String("month", month), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Monthly summary could not be created")
		}

		return c.Status(fiber.StatusCreated).JSON(monthlyResponse(summary))
	}
}

// GET /api/summary/monthly/:month
func MonthlySummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		month, err := parseMonth(c.Params("month"))
		if err != nil {
			return err
		}

		var s models.MonthlySummary
		if err := database.DB.Preload("Items").First(&s, "month = ?", month).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "No summary available for this month")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Summary could not be loaded")
		}
		return c.JSON(monthlyResponse(s))
	}
}

type MonthlySummaryListItem struct {
	Month        string          `json:"month"`
	MonthName    string          `json:"monthName"`
	DaysIncluded int             `json:"daysIncluded"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalProfit  decimal.Decimal `json:"totalProfit"`
}

// GET /api/summary/monthly
func ListMonthlySummariesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var list []models.MonthlySummary
		if err := database.DB.Order("month desc").Find(&list).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Monthly summaries could not be listed")
		}

		res := make([]MonthlySummaryListItem, 0, len(list))
		for _, s := range list {
			res = append(res, MonthlySummaryListItem{
				Month:        s.Month,
				MonthName:    monthName(s.Month),
				DaysIncluded: s.DaysIncluded,
				TotalIncome:  s.TotalIncome,
				TotalProfit:  s.TotalProfit,
			})
		}
		return c.JSON(res)
	}
}
