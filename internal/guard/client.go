package guard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/observability"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

// Client calls the tenant API with a fixed tenant scope. Every request is
// namespaced under /tenants/{tenantID} and carries the X-Tenant-ID header;
// every response is re-verified before the caller sees it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
	token      string

	mu       sync.RWMutex
	tenantID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a logger for violation reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics attaches metrics for violation counting.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithToken sets the bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient constructs a Client. SetTenant must be called before any
// operation.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTenant fixes the client's tenant scope for its lifetime. The id is
// validated with the same syntax rule the server enforces.
func (c *Client) SetTenant(tenantID string) error {
	if err := tenant.ValidateID(tenantID); err != nil {
		return err
	}
	c.mu.Lock()
	c.tenantID = tenantID
	c.mu.Unlock()
	return nil
}

// Tenant returns the fixed tenant id, or empty when unset.
func (c *Client) Tenant() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tenantID
}

// List fetches the collection.
func (c *Client) List(ctx context.Context, resource string) ([]map[string]any, error) {
	payload, err := c.do(ctx, http.MethodGet, resource, "", nil, "")
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("guard: decode list: %w", err)
	}
	return records, nil
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, resource, id string) (map[string]any, error) {
	payload, err := c.do(ctx, http.MethodGet, resource, id, nil, "")
	if err != nil {
		return nil, err
	}
	return decodeObject(payload)
}

// Create stores a new record.
func (c *Client) Create(ctx context.Context, resource string, data map[string]any) (map[string]any, error) {
	body, err := jsonBody(data)
	if err != nil {
		return nil, err
	}
	payload, err := c.do(ctx, http.MethodPost, resource, "", body, "application/json")
	if err != nil {
		return nil, err
	}
	return decodeObject(payload)
}

// Update merges updates into a record.
func (c *Client) Update(ctx context.Context, resource, id string, updates map[string]any) (map[string]any, error) {
	body, err := jsonBody(updates)
	if err != nil {
		return nil, err
	}
	payload, err := c.do(ctx, http.MethodPut, resource, id, body, "application/json")
	if err != nil {
		return nil, err
	}
	return decodeObject(payload)
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	_, err := c.do(ctx, http.MethodDelete, resource, id, nil, "")
	return err
}

// CreateMany stores a batch of records.
func (c *Client) CreateMany(ctx context.Context, resource string, records []map[string]any) ([]map[string]any, error) {
	body, err := jsonBody(map[string]any{"records": records})
	if err != nil {
		return nil, err
	}
	payload, err := c.do(ctx, http.MethodPost, resource, "batch", body, "application/json")
	if err != nil {
		return nil, err
	}
	var created []map[string]any
	if err := json.Unmarshal(payload, &created); err != nil {
		return nil, fmt.Errorf("guard: decode batch: %w", err)
	}
	return created, nil
}

// BatchUpdate is one entry of an UpdateMany call.
type BatchUpdate struct {
	ID      string         `json:"id"`
	Updates map[string]any `json:"updates"`
}

// UpdateMany applies a batch of updates.
func (c *Client) UpdateMany(ctx context.Context, resource string, entries []BatchUpdate) ([]map[string]any, error) {
	body, err := jsonBody(map[string]any{"records": entries})
	if err != nil {
		return nil, err
	}
	payload, err := c.do(ctx, http.MethodPut, resource, "batch", body, "application/json")
	if err != nil {
		return nil, err
	}
	var updated []map[string]any
	if err := json.Unmarshal(payload, &updated); err != nil {
		return nil, fmt.Errorf("guard: decode batch: %w", err)
	}
	return updated, nil
}

// DeleteMany removes a batch of records.
func (c *Client) DeleteMany(ctx context.Context, resource string, ids []string) error {
	body, err := jsonBody(map[string]any{"ids": ids})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, resource, "batch", body, "application/json")
	return err
}

// Upload sends a file through the tenant-scoped upload route.
func (c *Client) Upload(ctx context.Context, resource, filename string, content io.Reader) (map[string]any, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	payload, err := c.do(ctx, http.MethodPost, resource, "upload", body, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return decodeObject(payload)
}

// do issues one tenant-scoped call. The tenant check happens before any
// network I/O; responses are re-verified before being returned.
func (c *Client) do(ctx context.Context, method, resource, suffix string, body io.Reader, contentType string) ([]byte, error) {
	tenantID := c.Tenant()
	if tenantID == "" {
		return nil, ErrNoTenantContext
	}

	url := fmt.Sprintf("%s/tenants/%s/%s", c.baseURL, tenantID, resource)
	if suffix != "" {
		url += "/" + suffix
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(tenant.HeaderTenantID, tenantID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return nil, c.apiError(resp, url)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := verifyPayload(tenantID, url, payload); err != nil {
		if c.logger != nil {
			c.logger.Error("cross-tenant data detected in response",
				slog.String("url", url), slog.String("tenant", tenantID))
		}
		if c.metrics != nil {
			c.metrics.ObserveIsolationViolation("guard")
		}
		return nil, err
	}
	return payload, nil
}

func (c *Client) apiError(resp *http.Response, url string) error {
	var problem struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&problem)
	if problem.Code == "TENANT_MISMATCH" {
		return &TenantMismatchError{URL: url}
	}
	message := problem.Detail
	if message == "" {
		message = problem.Title
	}
	return &APIError{Status: resp.StatusCode, URL: url, Message: message}
}

func decodeObject(payload []byte) (map[string]any, error) {
	var object map[string]any
	if err := json.Unmarshal(payload, &object); err != nil {
		return nil, fmt.Errorf("guard: decode object: %w", err)
	}
	return object, nil
}

func jsonBody(v any) (io.Reader, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(payload), nil
}
