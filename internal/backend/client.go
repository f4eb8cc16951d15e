// Package backend is the register's HTTP client for the store backend.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"store-pos/internal/catalog"
	"store-pos/internal/logging"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnavailable wraps transport failures: refused connections, timeouts,
// undecodable bodies.
var ErrUnavailable = errors.New("backend unavailable")

// APIError is a non-2xx answer carrying the backend's user-facing message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Rejected reports whether err is the backend refusing a request, as opposed
// to the backend being unreachable.
func Rejected(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return apiErr, true
	}
	return nil, false
}

type Client struct {
	baseURL string
	timeout time.Duration
	http    *fiber.Client
	logger  *zap.Logger
}

// New returns a client for baseURL such as "http://localhost:5000/api".
// timeout bounds every request; a context deadline that is closer wins.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fiber.Client{
			JSONEncoder: json.Marshal,
			JSONDecoder: json.Unmarshal,
		},
		logger: logging.OrNop(logger),
	}
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func (c *Client) deadline(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d {
			d = left
		}
	}
	if d <= 0 {
		return 0, context.DeadlineExceeded
	}
	return d, nil
}

// IdempotencyHeader carries the key that lets the backend answer a retried
// bill submission with the bill it already created.
const IdempotencyHeader = "X-Idempotency-Key"

// do runs one request and decodes a 2xx body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any, opts ...func(*fiber.Agent)) error {
	timeout, err := c.deadline(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var a *fiber.Agent
	switch method {
	case fiber.MethodGet:
		a = c.http.Get(c.url(path))
	case fiber.MethodPost:
		a = c.http.Post(c.url(path))
	case fiber.MethodPut:
		a = c.http.Put(c.url(path))
	case fiber.MethodDelete:
		a = c.http.Delete(c.url(path))
	default:
		return fmt.Errorf("unsupported method %s", method)
	}
	a.Timeout(timeout)
	if body != nil {
		a.JSON(body)
	}
	for _, opt := range opts {
		opt(a)
	}

	code, raw, errs := a.Bytes()
	if len(errs) > 0 {
		c.logger.Debug("backend request failed",
			zap.String("method", method), zap.String("path", path), zap.Errors("errors", errs))
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, errors.Join(errs...))
	}

	if code < 200 || code > 299 {
		apiErr := &APIError{Status: code, Message: errorMessage(raw)}
		c.logger.Debug("backend rejected request",
			zap.String("method", method), zap.String("path", path),
			zap.Int("status", code), zap.String("message", apiErr.Message))
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, path, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return "request failed"
}

// Products fetches the whole catalog; it satisfies catalog.Source.
func (c *Client) Products(ctx context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	if err := c.do(ctx, fiber.MethodGet, "/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Product looks up one id. A 404 comes back as catalog.ErrProductNotFound.
func (c *Client) Product(ctx context.Context, id string) (catalog.Product, error) {
	var p catalog.Product
	err := c.do(ctx, fiber.MethodGet, "/products/"+url.PathEscape(id), nil, &p)
	if apiErr, ok := Rejected(err); ok && apiErr.Status == fiber.StatusNotFound {
		return catalog.Product{}, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
	}
	if err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]catalog.Product, error) {
	var out []catalog.Product
	q := url.Values{"query": {query}}
	if err := c.do(ctx, fiber.MethodGet, "/products/search?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBill submits a sale. Retrying with the same IdempotencyKey never
// creates a second bill.
func (c *Client) CreateBill(ctx context.Context, req BillRequest) (Bill, error) {
	var b Bill
	withKey := func(a *fiber.Agent) {
		if req.IdempotencyKey != "" {
			a.Set(IdempotencyHeader, req.IdempotencyKey)
		}
	}
	if err := c.do(ctx, fiber.MethodPost, "/bills", req, &b, withKey); err != nil {
		return Bill{}, err
	}
	return b, nil
}

func (c *Client) TodayBills(ctx context.Context) ([]Bill, error) {
	var out []Bill
	if err := c.do(ctx, fiber.MethodGet, "/bills/today", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CurrentDay(ctx context.Context) (DayTotals, error) {
	var t DayTotals
	if err := c.do(ctx, fiber.MethodGet, "/day/current", nil, &t); err != nil {
		return DayTotals{}, err
	}
	return t, nil
}

func (c *Client) EndDay(ctx context.Context) (DaySummary, error) {
	var s DaySummary
	if err := c.do(ctx, fiber.MethodPost, "/day/end", nil, &s); err != nil {
		return DaySummary{}, err
	}
	return s, nil
}

// DailySummary loads the closed summary for date (YYYY-MM-DD).
func (c *Client) DailySummary(ctx context.Context, date string) (DaySummary, error) {
	var s DaySummary
	if err := c.do(ctx, fiber.MethodGet, "/summary/daily/"+url.PathEscape(date), nil, &s); err != nil {
		return DaySummary{}, err
	}
	return s, nil
}

// CreateMonthlySummary rebuilds month (YYYY-MM); empty means the current
// month on the server's clock.
func (c *Client) CreateMonthlySummary(ctx context.Context, month string) (MonthlySummary, error) {
	path := "/summary/monthly/create"
	if month != "" {
		path += "?" + url.Values{"month": {month}}.Encode()
	}
	var s MonthlySummary
	if err := c.do(ctx, fiber.MethodPost, path, nil, &s); err != nil {
		return MonthlySummary{}, err
	}
	return s, nil
}
