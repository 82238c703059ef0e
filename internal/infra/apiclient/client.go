// Package apiclient talks to the finance REST API. It implements
// domain.Ledger and domain.SmartParser over HTTP with bearer-token auth.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/moneytime-app/moneytime/internal/domain"
	"github.com/moneytime-app/moneytime/internal/infra/observability"
)

// Config configures the REST client.
type Config struct {
	BaseURL string           // API root, e.g. http://localhost:8000/api/v1
	Token   string           // Bearer token (JWT)
	Timeout time.Duration    // Per-request timeout (default: 15s)
	Now     func() time.Time // Clock for token expiry checks
}

// DefaultConfig returns the local development settings.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8000/api/v1",
		Timeout: 15 * time.Second,
		Now:     time.Now,
	}
}

// Client is a finance API client. Safe for concurrent use.
type Client struct {
	base   string
	http   *http.Client
	tracer *observability.Tracer
	now    func() time.Time

	mu    sync.RWMutex
	token string
}

var (
	_ domain.Ledger      = (*Client)(nil)
	_ domain.SmartParser = (*Client)(nil)
)

// New creates a client. tracer may be nil.
func New(cfg Config, tracer *observability.Tracer) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		http:   &http.Client{Timeout: cfg.Timeout},
		tracer: tracer,
		now:    cfg.Now,
		token:  cfg.Token,
	}
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token, empty after a 401.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// ─── Errors ─────────────────────────────────────────────────────────────────

// APIError is a non-2xx response. It unwraps to the matching domain error.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("finance api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("finance api: HTTP %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return domain.ErrRejected
	}
	return nil
}

// errorMessage extracts "detail" or "message" from an error body.
// FastAPI validation errors carry detail as a list; it is kept verbatim.
func errorMessage(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	if len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			return s
		}
		return string(payload.Detail)
	}
	return payload.Message
}

// ─── Request Plumbing ───────────────────────────────────────────────────────

// checkToken fails fast on a JWT whose exp has passed. Tokens that are not
// JWTs are sent as-is and left for the server to judge.
func (c *Client) checkToken() (string, error) {
	token := c.Token()
	if token == "" {
		return "", nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return token, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return token, nil
	}
	if !c.now().Before(exp.Time) {
		c.SetToken("")
		log.Printf("[apiclient] token expired at %s", exp.Time.Format(time.RFC3339))
		return "", fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
	}
	return token, nil
}

// do sends one request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body io.Reader, contentType string, out any) (err error) {
	span := c.tracer.StartSpan(ctx, op, map[string]string{"method": method, "path": path})
	defer func() { c.tracer.EndSpan(span, err) }()

	token, err := c.checkToken()
	if err != nil {
		return err
	}

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.SetToken("")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.do(ctx, op, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) sendJSON(ctx context.Context, op, method, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	return c.do(ctx, op, method, path, nil, bytes.NewReader(b), "application/json", out)
}

func (c *Client) delete(ctx context.Context, op, path string) error {
	return c.do(ctx, op, http.MethodDelete, path, nil, nil, "", nil)
}

// upload posts a single file as multipart/form-data under field.
func (c *Client) upload(ctx context.Context, op, path, field, filename string, r io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("%s: read upload: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.do(ctx, op, http.MethodPost, path, nil, &buf, mw.FormDataContentType(), out)
}

func idPath(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

// ─── Transactions ───────────────────────────────────────────────────────────

func (c *Client) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, error) {
	q := url.Values{}
	if f.OnDate != "" {
		q.Set("on_date", f.OnDate)
	}
	if f.CategoryID != 0 {
		q.Set("category_id", strconv.FormatInt(f.CategoryID, 10))
	}
	if f.Skip > 0 {
		q.Set("skip", strconv.Itoa(f.Skip))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	var out []domain.Transaction
	if err := c.getJSON(ctx, "transactions.list", "/transactions/", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	var out domain.Transaction
	if err := c.getJSON(ctx, "transactions.get", idPath("/transactions/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, tc domain.TransactionCreate) (*domain.Transaction, error) {
	var out domain.Transaction
	if err := c.sendJSON(ctx, "transactions.create", http.MethodPost, "/transactions/", tc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, id int64, u domain.TransactionUpdate) (*domain.Transaction, error) {
	var out domain.Transaction
	if err := c.sendJSON(ctx, "transactions.update", http.MethodPut, idPath("/transactions/", id), u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.delete(ctx, "transactions.delete", idPath("/transactions/", id))
}

// DailyBalance fetches the server's balances for a month. The server may
// omit days without activity.
func (c *Client) DailyBalance(ctx context.Context, year, month int) ([]domain.DailyBalance, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("month", strconv.Itoa(month))
	var out []domain.DailyBalance
	if err := c.getJSON(ctx, "transactions.daily_balance", "/transactions/daily-balance", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ─── Preferences ────────────────────────────────────────────────────────────

// GetPreferences returns nil, nil when the server has no thresholds for the
// user (404).
func (c *Client) GetPreferences(ctx context.Context) (*domain.UserPreferences, error) {
	var out domain.UserPreferences
	err := c.getJSON(ctx, "preferences.get", "/user/preferences", nil, &out)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePreferences(ctx context.Context, p domain.UserPreferences) (*domain.UserPreferences, error) {
	var out domain.UserPreferences
	if err := c.sendJSON(ctx, "preferences.update", http.MethodPut, "/user/preferences", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ─── Categories ─────────────────────────────────────────────────────────────

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if err := c.getJSON(ctx, "categories.list", "/categories/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, cc domain.CategoryCreate) (*domain.Category, error) {
	var out domain.Category
	if err := c.sendJSON(ctx, "categories.create", http.MethodPost, "/categories/", cc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.delete(ctx, "categories.delete", idPath("/categories/", id))
}

// ─── Recurring ──────────────────────────────────────────────────────────────

func (c *Client) ListRecurring(ctx context.Context) ([]domain.Recurring, error) {
	var out []domain.Recurring
	if err := c.getJSON(ctx, "recurring.list", "/recurring/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateRecurring(ctx context.Context, r domain.RecurringCreate) (*domain.Recurring, error) {
	var out domain.Recurring
	if err := c.sendJSON(ctx, "recurring.create", http.MethodPost, "/recurring/", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteRecurring(ctx context.Context, id int64) error {
	return c.delete(ctx, "recurring.delete", idPath("/recurring/", id))
}

func (c *Client) MaterializeRecurring(ctx context.Context, upToDate string) (domain.MaterializeResult, error) {
	var out domain.MaterializeResult
	in := map[string]string{"up_to_date": upToDate}
	if err := c.sendJSON(ctx, "recurring.materialize", http.MethodPost, "/recurring/materialize", in, &out); err != nil {
		return domain.MaterializeResult{}, err
	}
	return out, nil
}

// ─── Smart Parse ────────────────────────────────────────────────────────────

func (c *Client) ParseCommand(ctx context.Context, command string) (*domain.SmartParseResult, error) {
	var out domain.SmartParseResult
	in := map[string]string{"command": command}
	if err := c.sendJSON(ctx, "smart_parse.command", http.MethodPost, "/transactions/smart-parse", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ParseImage(ctx context.Context, filename string, r io.Reader) (*domain.SmartParseResult, error) {
	var out domain.SmartParseResult
	if err := c.upload(ctx, "smart_parse.image", "/transactions/smart-parse-image", "image", filename, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ParseAudio(ctx context.Context, filename string, r io.Reader) (*domain.SmartParseResult, error) {
	var out domain.SmartParseResult
	if err := c.upload(ctx, "smart_parse.audio", "/transactions/smart-parse-audio", "audio", filename, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
