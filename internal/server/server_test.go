package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"store-pos/internal/billing"
	"store-pos/internal/dashboard"
	"store-pos/internal/database"
	"store-pos/internal/models"
	"store-pos/internal/server/servertest"
	"store-pos/internal/summary"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

func errorOf(t *testing.T, b []byte) string {
	return decode[map[string]string](t, b)["error"]
}

func fixedClock(t *testing.T, at time.Time) {
	t.Helper()
	prevBilling, prevSummary, prevDashboard := billing.Now, summary.Now, dashboard.Now
	billing.Now = func() time.Time { return at }
	summary.Now = func() time.Time { return at }
	dashboard.Now = func() time.Time { return at }
	t.Cleanup(func() {
		billing.Now = prevBilling
		summary.Now = prevSummary
		dashboard.Now = prevDashboard
	})
}

func seedShop(t *testing.T) {
	servertest.Seed(t,
		servertest.Product("001", "Anchor Milk Powder", 12, "1100", "1250"),
		servertest.Product("007", "Sugar 1kg", 40, "250", "280.50"),
		servertest.Product("070", "Milk Toffee", 5, "35", "50"),
	)
}

func stockOf(t *testing.T, id string) int {
	var p models.Product
	require.NoError(t, database.DB.First(&p, "product_id = ?", id).Error)
	return p.Stock
}

func TestProductEndpoints(t *testing.T) {
	app := servertest.NewApp(t)
	seedShop(t)

	code, body := do(t, app, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, code)
	list := decode[[]map[string]any](t, body)
	require.Len(t, list, 3)
	assert.Equal(t, "001", list[0]["productId"])
	assert.EqualValues(t, 1250, list[0]["sellingPrice"], "prices are JSON numbers")

	code, body = do(t, app, http.MethodGet, "/api/products/7", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Sugar 1kg", decode[map[string]any](t, body)["name"])

	code, body = do(t, app, http.MethodGet, "/api/products/500", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Product not found", errorOf(t, body))

	code, body = do(t, app, http.MethodGet, "/api/products/search?query=MILK", nil)
	require.Equal(t, http.StatusOK, code)
	found := decode[[]map[string]any](t, body)
	require.Len(t, found, 2)
	assert.Equal(t, "001", found[0]["productId"])
	assert.Equal(t, "070", found[1]["productId"])

	code, body = do(t, app, http.MethodGet, "/api/products/search?query=100%25", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]map[string]any](t, body), "percent sign is matched literally")

	code, body = do(t, app, http.MethodGet, "/api/products/next-id", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "071", decode[map[string]string](t, body)["productId"])
}

func TestCreateUpdateDeleteProduct(t *testing.T) {
	app := servertest.NewApp(t)
	seedShop(t)

	code, body := do(t, app, http.MethodPost, "/api/products", map[string]any{
		"name": "Dhal 500g", "stock": 20, "buyingPrice": 160, "sellingPrice": 185.5,
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	created := decode[map[string]any](t, body)
	assert.Equal(t, "071", created["productId"])

	code, body = do(t, app, http.MethodPost, "/api/products", map[string]any{
		"productId": "7", "name": "Duplicate", "stock": 1, "buyingPrice": 1, "sellingPrice": 2,
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, errorOf(t, body), "007")

	code, _ = do(t, app, http.MethodPost, "/api/products", map[string]any{
		"name": "Broken", "stock": -1, "buyingPrice": 1, "sellingPrice": 2,
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, app, http.MethodPut, "/api/products/071", map[string]any{"stock": 25, "sellingPrice": "190"})
	require.Equal(t, http.StatusOK, code, string(body))
	updated := decode[map[string]any](t, body)
	assert.EqualValues(t, 25, updated["stock"])
	assert.EqualValues(t, 190, updated["sellingPrice"])
	assert.Equal(t, "Dhal 500g", updated["name"])

	code, _ = do(t, app, http.MethodDelete, "/api/products/071", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = do(t, app, http.MethodGet, "/api/products/071", nil)
	assert.Equal(t, http.StatusNotFound, code)

	var logs []models.AuditLog
	require.NoError(t, database.DB.Where("entity_id = ?", "071").Order("id asc").Find(&logs).Error)
	require.Len(t, logs, 3)
	assert.Equal(t, models.AuditActionCreate, logs[0].Action)
	assert.Equal(t, models.AuditActionDelete, logs[2].Action)
}

func TestNextIDFillsGapWhenTopIsTaken(t *testing.T) {
	app := servertest.NewApp(t)
	servertest.Seed(t,
		servertest.Product("001", "A", 1, "1", "1"),
		servertest.Product("002", "B", 1, "1", "1"),
		servertest.Product("999", "Z", 1, "1", "1"),
	)

	code, body := do(t, app, http.MethodGet, "/api/products/next-id", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "003", decode[map[string]string](t, body)["productId"])
}

func TestCreateBillRecomputesPricesAndDecrementsStock(t *testing.T) {
	app := servertest.NewApp(t)
	seedShop(t)

	code, body := do(t, app, http.MethodPost, "/api/bills", map[string]any{
		"items": []map[string]any{
			{"productId": "007", "quantity": 2},
			{"productId": "001", "quantity": 1},
		},
		"cash":   2000,
		"change": 188.5,
	})
	require.Equal(t, http.StatusCreated, code, string(body))

	var bill billing.BillResponse
	require.NoError(t, json.Unmarshal(body, &bill))
	assert.Equal(t, "1", bill.BillID)
	require.Len(t, bill.Items, 2)
	assert.Equal(t, "007", bill.Items[0].ProductID, "line order is kept")
	assert.Equal(t, "561.00", bill.Items[0].Total.StringFixed(2))
	assert.Equal(t, "1811.00", bill.TotalAmount.StringFixed(2))
	assert.Equal(t, "188.50", bill.Change.StringFixed(2))

	assert.Equal(t, 38, stockOf(t, "007"))
	assert.Equal(t, 11, stockOf(t, "001"))

	code, body = do(t, app, http.MethodPost, "/api/bills", map[string]any{
		"items": []map[string]any{{"productId": "070", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "2", decode[billing.BillResponse](t, body).BillID, "bill ids increase")
}

func TestCreateBillRejectsShortfallWithoutPartialDecrement(t *testing.T) {
	app := servertest.NewApp(t)
	seedShop(t)

	code, body := do(t, app, http.MethodPost, "/api/bills", map[string]any{
		"items": []map[string]any{
			{"productId": "007", "quantity": 3},
			{"productId": "070", "quantity": 6},
		},
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, errorOf(t, body), "Insufficient stock for Milk Toffee")
	assert.Equal(t, 40, stockOf(t, "007"), "rolled back")

	code, _ = do(t, app, http.MethodPost, "/api/bills", map[string]any{"items": []map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodPost, "/api/bills", map[string]any{
		"items": []map[string]any{{"productId": "123", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateBillMergesRepeatedProducts(t *testing.T) {
	app := servertest.NewApp(t)
	seedShop(t)

	code, body := do(t, app, http.MethodPost, "/api/bills", map[string]any{
		"items": []map[string]any{
			{"productId": "070", "quantity": 2},
			{"productId": "70", "quantity": 3},
		},
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	bill := decode[billing.BillResponse](t, body)
	require.Len(t, bill.Items, 1)
	assert.Equal(t, 5, bill.Items[0].Quantity)
	assert.Equal(t, 0, stockOf(t, "070"))
}

func TestBillQueriesAndVoid(t *testing.T) {
	app := servertest.NewApp(t)
	fixedClock(t, time.Date(2026, 10, 14, 9, 30, 0, 0, time.Local))
	seedShop(t)

	code, body := do(t, app, http.MethodPost, "/api/bills", map[string]any{
		"items": []map[string]any{{"productId": "001", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, code)
	bill := decode[billing.BillResponse](t, body)
	assert.Equal(t, "2026-10-14", bill.Date)
	assert.Equal(t, "09:30:00", bill.Time)

	code, body = do(t, app, http.MethodGet, "/api/bills/today", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]billing.BillResponse](t, body), 1)

	code, body = do(t, app, http.MethodGet, "/api/bills/date/2026-10-13", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]billing.BillResponse](t, body))

	code, _ = do(t, app, http.MethodGet, "/api/bills/date/14-10-2026", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, app, http.MethodGet, "/api/bills/history/past30days", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]billing.BillResponse](t, body), 1)

	code, body = do(t, app, http.MethodGet, "/api/bills/"+bill.BillID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, bill.TotalAmount.String(), decode[billing.BillResponse](t, body).TotalAmount.String())

	assert.Equal(t, 10, stockOf(t, "001"))
	code, _ = do(t, app, http.MethodDelete, "/api/bills/"+bill.BillID, nil)
	require.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, 12, stockOf(t, "001"), "voiding restores stock")

	code, _ = do(t, app, http.MethodGet, "/api/bills/"+bill.BillID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDayLifecycle(t *testing.T) {
	app := servertest.NewApp(t)
	fixedClock(t, time.Date(2026, 10, 14, 18, 0, 0, 0, time.Local))
	seedShop(t)

	code, body := do(t, app, http.MethodPost, "/api/day/end", nil)
	assert.Equal(t, http.StatusBadRequest, code, "nothing to close")
	assert.Equal(t, "No open sales to close for today", errorOf(t, body))

	for _, items := range [][]map[string]any{
		{{"productId": "001", "quantity": 1}, {"productId": "007", "quantity": 2}},
		{{"productId": "007", "quantity": 1}},
	} {
		code, _ := do(t, app, http.MethodPost, "/api/bills", map[string]any{"items": items})
		require.Equal(t, http.StatusCreated, code)
	}

	code, body = do(t, app, http.MethodGet, "/api/day/current", nil)
	require.Equal(t, http.StatusOK, code)
	current := decode[summary.CurrentDayResponse](t, body)
	// 1250 + 2*280.50 + 280.50
	assert.Equal(t, "2091.50", current.TotalSales.StringFixed(2))
	// 150 + 3*30.50
	assert.Equal(t, "241.50", current.TotalProfit.StringFixed(2))
	assert.Equal(t, 2, current.BillCount)

	code, body = do(t, app, http.MethodPost, "/api/day/end", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	day := decode[summary.DailySummaryResponse](t, body)
	assert.Equal(t, "2026-10-14", day.Date)
	require.Len(t, day.Items, 2)
	assert.Equal(t, "007", day.Items[1].ProductID)
	assert.Equal(t, 3, day.Items[1].SoldQuantity)
	assert.Equal(t, "841.50", day.Items[1].TotalIncome.StringFixed(2))

	code, body = do(t, app, http.MethodGet, "/api/day/current", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[summary.CurrentDayResponse](t, body).TotalSales.IsZero())

	code, _ = do(t, app, http.MethodDelete, "/api/bills/1", nil)
	assert.Equal(t, http.StatusBadRequest, code, "closed bills cannot be voided")

	// a late sale ended the same day merges into the existing summary
	code, _ = do(t, app, http.MethodPost, "/api/bills", map[string]any{
		"items": []map[string]any{{"productId": "070", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, code)
	code, body = do(t, app, http.MethodPost, "/api/day/end", nil)
	require.Equal(t, http.StatusOK, code)
	merged := decode[summary.DailySummaryResponse](t, body)
	assert.Equal(t, 3, merged.BillCount)
	assert.Len(t, merged.Items, 3)
	assert.Equal(t, "2191.50", merged.TotalIncome.StringFixed(2))

	code, body = do(t, app, http.MethodGet, "/api/summary/daily/2026-10-14", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2191.50", decode[summary.DailySummaryResponse](t, body).TotalIncome.StringFixed(2))

	code, _ = do(t, app, http.MethodGet, "/api/summary/daily/2026-10-13", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = do(t, app, http.MethodGet, "/api/summary/available-dates", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"2026-10-14"}, decode[[]string](t, body))
}

func TestExportDailySummaryCSV(t *testing.T) {
	app := servertest.NewApp(t)
	fixedClock(t, time.Date(2026, 10, 14, 18, 0, 0, 0, time.Local))
	seedShop(t)

	code, _ := do(t, app, http.MethodPost, "/api/bills", map[string]any{
		"items": []map[string]any{{"productId": "007", "quantity": 2}, {"productId": "001", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, code)
	code, _ = do(t, app, http.MethodPost, "/api/day/end", nil)
	require.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/api/summary/daily/2026-10-14/export", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "summary-2026-10-14.csv")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "product_id,name,sold_quantity,total_income,profit\n"+
		"001,Anchor Milk Powder,1,1250.00,150.00\n"+
		"007,Sugar 1kg,2,561.00,61.00\n"+
		",TOTAL,3,1811.00,211.00\n", string(raw))

	code, _ = do(t, app, http.MethodGet, "/api/summary/daily/2026-10-13/export", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, app, http.MethodGet, "/api/summary/daily/14-10-2026/export", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMonthlySummary(t *testing.T) {
	app := servertest.NewApp(t)
	seedShop(t)

	for _, day := range []int{3, 14} {
		fixedClock(t, time.Date(2026, 10, day, 12, 0, 0, 0, time.Local))
		code, _ := do(t, app, http.MethodPost, "/api/bills", map[string]any{
			"items": []map[string]any{{"productId": "007", "quantity": 2}},
		})
		require.Equal(t, http.StatusCreated, code)
		code, _ = do(t, app, http.MethodPost, "/api/day/end", nil)
		require.Equal(t, http.StatusOK, code)
	}

	code, _ := do(t, app, http.MethodPost, "/api/summary/monthly/create?month=2026-09", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := do(t, app, http.MethodPost, "/api/summary/monthly/create", nil)
	require.Equal(t, http.StatusCreated, code, string(body))
	month := decode[summary.MonthlySummaryResponse](t, body)
	assert.Equal(t, "2026-10", month.Month)
	assert.Equal(t, "October 2026", month.MonthName)
	assert.Equal(t, "2026-10-03", month.StartDate)
	assert.Equal(t, "2026-10-14", month.EndDate)
	assert.Equal(t, 2, month.DaysIncluded)
	require.Len(t, month.Items, 1)
	assert.Equal(t, 4, month.Items[0].SoldQuantity)
	assert.True(t, decimal.RequireFromString("1122").Equal(month.TotalIncome))

	// creating again rebuilds instead of duplicating
	code, _ = do(t, app, http.MethodPost, "/api/summary/monthly/create?month=2026-10", nil)
	require.Equal(t, http.StatusCreated, code)

	code, body = do(t, app, http.MethodGet, "/api/summary/monthly", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]summary.MonthlySummaryListItem](t, body), 1)

	code, body = do(t, app, http.MethodGet, "/api/summary/monthly/2026-10", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, decode[summary.MonthlySummaryResponse](t, body).DaysIncluded)

	code, _ = do(t, app, http.MethodGet, "/api/summary/monthly/2026-13", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSalesChart(t *testing.T) {
	app := servertest.NewApp(t)
	seedShop(t)

	sell := func(month time.Month, day int, id string, qty int) {
		fixedClock(t, time.Date(2026, month, day, 12, 0, 0, 0, time.Local))
		code, body := do(t, app, http.MethodPost, "/api/bills", map[string]any{
			"items": []map[string]any{{"productId": id, "quantity": qty}},
		})
		require.Equal(t, http.StatusCreated, code, string(body))
	}
	sell(time.September, 30, "070", 1)
	sell(time.October, 5, "007", 2)
	sell(time.October, 13, "001", 1)
	sell(time.October, 14, "007", 1)

	chart := func(query string) dashboard.SalesChartResponse {
		code, body := do(t, app, http.MethodGet, "/api/dashboard/sales-chart"+query, nil)
		require.Equal(t, http.StatusOK, code, string(body))
		return decode[dashboard.SalesChartResponse](t, body)
	}
	labels := func(r dashboard.SalesChartResponse) []string {
		var out []string
		for _, p := range r.Points {
			out = append(out, p.Label)
		}
		return out
	}

	daily := chart("")
	assert.Equal(t, "2026-10-08", daily.From)
	assert.Equal(t, "2026-10-14", daily.To)
	assert.Equal(t, []string{"2026-10-13", "2026-10-14"}, labels(daily))
	assert.Equal(t, "1530.50", daily.GrandTotals.Sales.StringFixed(2))
	assert.Equal(t, 2, daily.GrandTotals.BillCount)

	weekly := chart("?period=weekly&count=2")
	assert.Equal(t, []string{"2026-10-05", "2026-10-12"}, labels(weekly))
	assert.Equal(t, "561.00", weekly.Points[0].Sales.StringFixed(2))
	assert.Equal(t, "180.50", weekly.Points[1].Profit.StringFixed(2))

	monthly := chart("?period=monthly&count=2")
	assert.Equal(t, []string{"2026-09-01", "2026-10-01"}, labels(monthly))
	assert.Equal(t, "2141.50", monthly.GrandTotals.Sales.StringFixed(2))
	assert.Equal(t, 4, monthly.GrandTotals.BillCount)

	code, _ := do(t, app, http.MethodGet, "/api/dashboard/sales-chart?period=hourly", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, app, http.MethodGet, "/api/dashboard/sales-chart?count=0", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAuditLogEndpoint(t *testing.T) {
	app := servertest.NewApp(t)

	code, _ := do(t, app, http.MethodPost, "/api/products", map[string]any{
		"name": "Tea 100g", "stock": 3, "buyingPrice": 300, "sellingPrice": 360,
	})
	require.Equal(t, http.StatusCreated, code)

	code, body := do(t, app, http.MethodGet, "/api/audit-logs?entity_type=product", nil)
	require.Equal(t, http.StatusOK, code)
	logs := decode[[]map[string]any](t, body)
	require.Len(t, logs, 1)
	assert.Equal(t, "001", logs[0]["entity_id"])
}

func TestHealth(t *testing.T) {
	app := servertest.NewApp(t)
	code, body := do(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestCreateBillReplaysIdempotentRetry(t *testing.T) {
	app := servertest.NewApp(t)
	seedShop(t)

	post := func(key string) (int, billing.BillResponse) {
		b, err := json.Marshal(map[string]any{
			"items": []map[string]any{{"productId": "007", "quantity": 2}},
		})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/bills", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Idempotency-Key", key)

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, decode[billing.BillResponse](t, body)
	}

	key := "7f6c1f3e-52a4-4d0e-9a57-1f1f5b90c2aa"
	code, first := post(key)
	require.Equal(t, http.StatusCreated, code)
	code, again := post(key)
	require.Equal(t, http.StatusCreated, code)

	assert.Equal(t, first.BillID, again.BillID)
	assert.Equal(t, 38, stockOf(t, "007"), "stock taken once")

	_, other := post("0d7c36a1-4a57-4ef6-8a7b-3f0c4c8e9d11")
	assert.NotEqual(t, first.BillID, other.BillID)
	assert.Equal(t, 36, stockOf(t, "007"))
}
