package billing

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"store-pos/internal/audit"
	"store-pos/internal/catalog"
	"store-pos/internal/database"
	"store-pos/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Now is swapped in tests that need bills on a fixed day.
var Now = time.Now

type BillItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CreateBillRequest carries no prices: they are read from the catalog inside
// the transaction.
type CreateBillRequest struct {
	Items  []BillItemRequest `json:"items"`
	Cash   decimal.Decimal   `json:"cash"`
	Change decimal.Decimal   `json:"change"`
}

type BillItemResponse struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

type BillResponse struct {
	BillID      string             `json:"billId"`
	Date        string             `json:"date"`
	Time        string             `json:"time"`
	Items       []BillItemResponse `json:"items"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Cash        decimal.Decimal    `json:"cash"`
	Change      decimal.Decimal    `json:"change"`
}

func ToResponse(b models.Bill) BillResponse {
	items := make([]BillItemResponse, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, BillItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Total:     it.Total,
		})
	}
	return BillResponse{
		BillID:      strconv.FormatUint(uint64(b.ID), 10),
		Date:        b.Date,
		Time:        b.Time,
		Items:       items,
		TotalAmount: b.TotalAmount,
		Cash:        b.Cash,
		Change:      b.Change,
	}
}

func toResponses(bills []models.Bill) []BillResponse {
	res := make([]BillResponse, 0, len(bills))
	for _, b := range bills {
		res = append(res, ToResponse(b))
	}
	return res
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position asc")
}

// mergeItems folds repeated ids into the first occurrence and validates ids
// and quantities.
func mergeItems(items []BillItemRequest) ([]BillItemRequest, error) {
	if len(items) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Bill has no items")
	}

	out := make([]BillItemRequest, 0, len(items))
	pos := make(map[string]int, len(items))
	for _, it := range items {
		n, err := catalog.ParseID(it.ProductID)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Invalid product id %q", it.ProductID))
		}
		if it.Quantity <= 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Quantity must be at least 1")
		}
		id := catalog.FormatID(n)
		if i, ok := pos[id]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		pos[id] = len(out)
		out = append(out, BillItemRequest{ProductID: id, Quantity: it.Quantity})
	}
	return out, nil
}

// POST /api/bills
func CreateBillHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBillRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid payload")
		}

		items, err := mergeItems(body.Items)
		if err != nil {
			return err
		}
		if body.Cash.IsNegative() || body.Change.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "Cash and change cannot be negative")
		}

		now := Now()
		bill := models.Bill{
			Date:   now.Format(DateLayout),
			Time:   now.Format(TimeLayout),
			Cash:   body.Cash.Round(2),
			Change: body.Change.Round(2),
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			total := decimal.Zero
			profit := decimal.Zero

			for i, it := range items {
				var p models.Product
				if err := tx.First(&p, "product_id = ?", it.ProductID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Product %s not found", it.ProductID))
					}
					return err
				}

				// conditional decrement: concurrent sales cannot push stock below zero
				res := tx.Model(&models.Product{}).
					Where("product_id = ? AND stock >= ?", it.ProductID, it.Quantity).
					UpdateColumn("stock", gorm.Expr("stock - ?", it.Quantity))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return fiber.NewError(fiber.StatusConflict,
						fmt.Sprintf("Insufficient stock for %s! Available: %d", p.Name, p.Stock))
				}

				qty := decimal.NewFromInt(int64(it.Quantity))
				line := p.SellingPrice.Mul(qty)
				total = total.Add(line)
				profit = profit.Add(p.SellingPrice.Sub(p.BuyingPrice).Mul(qty))

				bill.Items = append(bill.Items, models.BillItem{
					Position:    i,
					ProductID:   p.ProductID,
					Name:        p.Name,
					Quantity:    it.Quantity,
					Price:       p.SellingPrice,
					BuyingPrice: p.BuyingPrice,
					Total:       line,
				})
			}

			bill.TotalAmount = total
			bill.Profit = profit
			return tx.Create(&bill).Error
		})
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			zap.L().Error("bill create failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Bill could not be saved")
		}

		zap.L().Info("bill saved",
			zap.Uint("bill_id", bill.ID),
			zap.String("total", bill.TotalAmount.StringFixed(2)),
			zap.Int("lines", len(bill.Items)))
		return c.Status(fiber.StatusCreated).JSON(ToResponse(bill))
	}
}

// GET /api/bills/today
func TodayBillsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return listByDate(c, Now().Format(DateLayout))
	}
}

// GET /api/bills/date/:date
func BillsByDateHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		date := c.Params("date")
		if _, err := time.Parse(DateLayout, date); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Date must be in YYYY-MM-DD format")
		}
		return listByDate(c, date)
	}
}

func listByDate(c *fiber.Ctx, date string) error {
	var bills []models.Bill
	err := database.DB.Preload("Items", orderedItems).
		Where("date = ?", date).
		Order("id asc").
		Find(&bills).Error
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Bills could not be listed")
	}
	return c.JSON(toResponses(bills))
}

// GET /api/bills/history/past30days
func Past30DaysBillsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		from := Now().AddDate(0, 0, -29).Format(DateLayout)

		var bills []models.Bill
		err := database.DB.Preload("Items", orderedItems).
			Where("date >= ?", from).
			Order("id desc").
			Find(&bills).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Bills could not be listed")
		}
		return c.JSON(toResponses(bills))
	}
}

func findBill(db *gorm.DB, raw string) (models.Bill, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return models.Bill{}, fiber.NewError(fiber.StatusBadRequest, "Invalid bill id")
	}

	var b models.Bill
	if err := db.Preload("Items", orderedItems).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Bill{}, fiber.NewError(fiber.StatusNotFound, "Bill not found")
		}
		return models.Bill{}, fiber.NewError(fiber.StatusInternalServerError, "Bill could not be loaded")
	}
	return b, nil
}

// GET /api/bills/:billId
func GetBillHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := findBill(database.DB, c.Params("billId"))
		if err != nil {
			return err
		}
		return c.JSON(ToResponse(b))
	}
}

// DELETE /api/bills/:billId
// Only bills of the running day can be voided; sold stock goes back.
func DeleteBillHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := findBill(database.DB, c.Params("billId"))
		if err != nil {
			return err
		}
		if !b.Open() {
			return fiber.NewError(fiber.StatusBadRequest, "Bill belongs to a closed day and cannot be deleted")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			for _, it := range b.Items {
				// a product deleted since the sale simply has nothing to restore
				if err := tx.Model(&models.Product{}).
					Where("product_id = ?", it.ProductID).
					UpdateColumn("stock", gorm.Expr("stock + ?", it.Quantity)).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("bill_id = ?", b.ID).Delete(&models.BillItem{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Bill{}, "id = ?", b.ID).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				EntityType:  "bill",
				EntityID:    strconv.FormatUint(uint64(b.ID), 10),
				Action:      models.AuditActionDelete,
				Description: "bill voided, stock restored",
				Before:      ToResponse(b),
			})
		})
		if err != nil {
			zap.L().Error("bill delete failed", zap.Uint("bill_id", b.ID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Bill could not be deleted")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
