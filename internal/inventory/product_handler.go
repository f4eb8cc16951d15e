package inventory

import (
	"errors"
	"sort"
	"strings"

	"store-pos/internal/audit"
	"store-pos/internal/catalog"
	"store-pos/internal/database"
	"store-pos/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProductResponse struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	Stock        int             `json:"stock"`
	BuyingPrice  decimal.Decimal `json:"buyingPrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
}

type CreateProductRequest struct {
	ProductID    string          `json:"productId"` // optional, next free id when empty
	Name         string          `json:"name"`
	Stock        int             `json:"stock"`
	BuyingPrice  decimal.Decimal `json:"buyingPrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
}

type UpdateProductRequest struct {
	Name         *string          `json:"name"`
	Stock        *int             `json:"stock"`
	BuyingPrice  *decimal.Decimal `json:"buyingPrice"`
	SellingPrice *decimal.Decimal `json:"sellingPrice"`
}

func toResponse(p models.Product) ProductResponse {
	return ProductResponse{
		ProductID:    p.ProductID,
		Name:         p.Name,
		Stock:        p.Stock,
		BuyingPrice:  p.BuyingPrice,
		SellingPrice: p.SellingPrice,
	}
}

func toResponses(products []models.Product) []ProductResponse {
	res := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		res = append(res, toResponse(p))
	}
	return res
}

// lookupID accepts "7" as well as "007".
func lookupID(raw string) (string, error) {
	n, err := catalog.ParseID(raw)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "Product id must be between 001 and 999")
	}
	return catalog.FormatID(n), nil
}

// GET /api/products
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var products []models.Product
		if err := database.DB.Order("product_id asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Products could not be listed")
		}
		return c.JSON(toResponses(products))
	}
}

// GET /api/products/:id
func GetProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := lookupID(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}

		var p models.Product
		if err := database.DB.First(&p, "product_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "Product not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Product could not be loaded")
		}
		return c.JSON(toResponse(p))
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// GET /api/products/search?query=milk
// Matches name (case-insensitive) or id substring, in catalog order.
func SearchProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := strings.TrimSpace(c.Query("query"))
		if q == "" {
			return c.JSON([]ProductResponse{})
		}

		pattern := "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
		var products []models.Product
		err := database.DB.
			Where(`LOWER(name) LIKE ? ESCAPE '\' OR product_id LIKE ? ESCAPE '\'`, pattern, pattern).
			Order("product_id asc").
			Find(&products).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Search failed")
		}
		return c.JSON(toResponses(products))
	}
}

// GET /api/products/next-id
func NextProductIDHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := nextProductID(database.DB)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"productId": id})
	}
}

// nextProductID returns max+1, or the lowest gap once the top id is taken.
func nextProductID(db *gorm.DB) (string, error) {
	var ids []string
	if err := db.Model(&models.Product{}).Pluck("product_id", &ids).Error; err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Next product id could not be computed")
	}

	used := make([]int, 0, len(ids))
	for _, raw := range ids {
		if n, err := catalog.ParseID(raw); err == nil {
			used = append(used, n)
		}
	}
	if len(used) == 0 {
		return catalog.FormatID(1), nil
	}
	sort.Ints(used)

	if top := used[len(used)-1]; top < catalog.MaxProductID {
		return catalog.FormatID(top + 1), nil
	}
	want := 1
	for _, n := range used {
		if n > want {
			break
		}
		want = n + 1
	}
	if want > catalog.MaxProductID {
		return "", fiber.NewError(fiber.StatusBadRequest, "Catalog is full, no product id left")
	}
	return catalog.FormatID(want), nil
}

func validatePrices(stock int, buying, selling decimal.Decimal) error {
	if stock < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Stock cannot be negative")
	}
	if buying.IsNegative() || selling.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "Prices cannot be negative")
	}
	return nil
}

// POST /api/products
func CreateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid payload")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Name is required")
		}
		if err := validatePrices(body.Stock, body.BuyingPrice, body.SellingPrice); err != nil {
			return err
		}

		var id string
		if strings.TrimSpace(body.ProductID) == "" {
			next, err := nextProductID(database.DB)
			if err != nil {
				return err
			}
			id = next
		} else {
			parsed, err := lookupID(body.ProductID)
			if err != nil {
				return err
			}
			id = parsed
		}

		var existing models.Product
		if err := database.DB.First(&existing, "product_id = ?", id).Error; err == nil {
			return fiber.NewError(fiber.StatusConflict, "Product id "+id+" is already in use")
		}

		p := models.Product{
			ProductID:    id,
			Name:         body.Name,
			Stock:        body.Stock,
			BuyingPrice:  body.BuyingPrice.Round(2),
			SellingPrice: body.SellingPrice.Round(2),
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				EntityType:  "product",
				EntityID:    p.ProductID,
				Action:      models.AuditActionCreate,
				Description: "product created: " + p.Name,
				After:       toResponse(p),
			})
		})
		if err != nil {
			zap.L().Error("product create failed", zap.String("product_id", id), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Product could not be created")
		}

		return c.Status(fiber.StatusCreated).JSON(toResponse(p))
	}
}

// PUT /api/products/:id
func UpdateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := lookupID(c.Params("id"))
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.First(&p, "product_id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}
		before := toResponse(p)

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid payload")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Name cannot be empty")
			}
			p.Name = name
		}
		if body.Stock != nil {
			p.Stock = *body.Stock
		}
		if body.BuyingPrice != nil {
			p.BuyingPrice = body.BuyingPrice.Round(2)
		}
		if body.SellingPrice != nil {
			p.SellingPrice = body.SellingPrice.Round(2)
		}
		if err := validatePrices(p.Stock, p.BuyingPrice, p.SellingPrice); err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				EntityType:  "product",
				EntityID:    p.ProductID,
				Action:      models.AuditActionUpdate,
				Description: "product updated: " + p.Name,
				Before:      before,
				After:       toResponse(p),
			})
		})
		if err != nil {
			zap.L().Error("product update failed", zap.String("product_id", id), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Product could not be updated")
		}

		return c.JSON(toResponse(p))
	}
}

// DELETE /api/products/:id
func DeleteProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := lookupID(c.Params("id"))
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.First(&p, "product_id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&models.Product{}, "product_id = ?", id).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				EntityType:  "product",
				EntityID:    id,
				Action:      models.AuditActionDelete,
				Description: "product deleted: " + p.Name,
				Before:      toResponse(p),
			})
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Product could not be deleted")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
