package server

import (
	"strings"
	"time"

	"store-pos/internal/audit"
	"store-pos/internal/billing"
	"store-pos/internal/config"
	"store-pos/internal/dashboard"
	"store-pos/internal/inventory"
	"store-pos/internal/summary"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/idempotency"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// New builds the fiber app with every route of the register backend mounted
// under /api.
func New(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:     "store-pos",
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			zap.L().Error("unexpected error", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unexpected server error",
			})
		},
	})

	app.Use(recover.New())

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, X-Idempotency-Key",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	Register(app.Group("/api"))
	return app
}

// Register mounts the API on api. A retried POST /bills carrying the same
// X-Idempotency-Key gets the first answer replayed instead of a second bill.
func Register(api fiber.Router) {
	// Products; fixed paths before :id
	api.Get("/products", inventory.ListProductsHandler())
	api.Get("/products/search", inventory.SearchProductsHandler())
	api.Get("/products/next-id", inventory.NextProductIDHandler())
	api.Get("/products/:id", inventory.GetProductHandler())
	api.Post("/products", inventory.CreateProductHandler())
	api.Put("/products/:id", inventory.UpdateProductHandler())
	api.Delete("/products/:id", inventory.DeleteProductHandler())

	// Bills
	api.Post("/bills", idempotency.New(idempotency.Config{
		Lifetime:  30 * time.Minute,
		KeyHeader: "X-Idempotency-Key",
	}), billing.CreateBillHandler())
	api.Get("/bills/today", billing.TodayBillsHandler())
	api.Get("/bills/date/:date", billing.BillsByDateHandler())
	api.Get("/bills/history/past30days", billing.Past30DaysBillsHandler())
	api.Get("/bills/:billId", billing.GetBillHandler())
	api.Delete("/bills/:billId", billing.DeleteBillHandler())

	// Day
	api.Get("/day/current", summary.CurrentDayHandler())
	api.Post("/day/end", summary.EndDayHandler())

	// Summaries
	api.Get("/summary/daily/:date", summary.DailySummaryHandler())
	api.Get("/summary/daily/:date/export", summary.ExportDailySummaryHandler())
	api.Get("/summary/available-dates", summary.AvailableDatesHandler())
	api.Post("/summary/monthly/create", summary.CreateMonthlySummaryHandler())
	api.Get("/summary/monthly", summary.ListMonthlySummariesHandler())
	api.Get("/summary/monthly/:month", summary.MonthlySummaryHandler())

	api.Get("/dashboard/sales-chart", dashboard.SalesChartHandler())

	api.Get("/audit-logs", audit.ListAuditLogsHandler())
}
