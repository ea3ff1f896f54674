package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/jwt"
	"courier-driver/internal/general/logger"
)

const maxBodyBytes = 4 << 20

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Config holds configuration for creating a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client // optional; built from Timeout when nil
}

// Client talks to the delivery backend REST API. Every authenticated call that
// comes back 401 fires the unauthorized hook before the error is returned.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)
}

func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: hc,
		logger:     log,
	}, nil
}

// SetTokenSource installs where the bearer token comes from.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnUnauthorized installs the central 401 handler.
func (c *Client) OnUnauthorized(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// ----- Auth -----

// Login is POST /auth/login. It is unauthenticated, so a 401 here means bad
// credentials and does not fire the unauthorized hook.
func (c *Client) Login(ctx context.Context, email, password string) (*contracts.LoginResponse, error) {
	var out contracts.LoginResponse
	req := contracts.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// ----- Deliveries -----

// GetDelivery is GET /tms/delivery/{id}.
func (c *Client) GetDelivery(ctx context.Context, id string) (*delivery.Delivery, error) {
	var out contracts.DeliveryResponse
	if err := c.do(ctx, http.MethodGet, "/tms/delivery/"+url.PathEscape(id), nil, nil, &out, true); err != nil {
		return nil, err
	}
	if out.Delivery == nil {
		return nil, fmt.Errorf("backend: delivery %s missing from response", id)
	}
	return out.Delivery, nil
}

// AcceptDelivery is POST /livreur/accept-delivery/{id}. The backend may answer
// without a body; the returned delivery is nil then.
func (c *Client) AcceptDelivery(ctx context.Context, id string) (*delivery.Delivery, error) {
	var out contracts.DeliveryResponse
	if err := c.do(ctx, http.MethodPost, "/livreur/accept-delivery/"+url.PathEscape(id), nil, struct{}{}, &out, true); err != nil {
		return nil, err
	}
	return out.Delivery, nil
}

// UpdateStatus is PUT /livreur/update-status/{id}; the proof rides in req.
func (c *Client) UpdateStatus(ctx context.Context, id string, req contracts.StatusUpdateRequest) (*delivery.Delivery, error) {
	var out contracts.DeliveryResponse
	if err := c.do(ctx, http.MethodPut, "/livreur/update-status/"+url.PathEscape(id), nil, req, &out, true); err != nil {
		return nil, err
	}
	return out.Delivery, nil
}

// ListMyDeliveries is GET /tms/deliveries/my-deliveries, optionally filtered.
func (c *Client) ListMyDeliveries(ctx context.Context, status delivery.Status) ([]delivery.Delivery, error) {
	var q url.Values
	if status != "" {
		q = url.Values{"status": {status.String()}}
	}
	var out contracts.DeliveryResponse
	if err := c.do(ctx, http.MethodGet, "/tms/deliveries/my-deliveries", q, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Deliveries, nil
}

// ListAvailable is GET /tms/deliveries/available.
func (c *Client) ListAvailable(ctx context.Context) ([]delivery.Delivery, error) {
	var out contracts.DeliveryResponse
	if err := c.do(ctx, http.MethodGet, "/tms/deliveries/available", nil, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Deliveries, nil
}

// GetStats is GET /tms/driver/stats.
func (c *Client) GetStats(ctx context.Context) (*contracts.DriverStats, error) {
	var out contracts.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/tms/driver/stats", nil, nil, &out, true); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// WaybillURL is the printable waybill link; the token travels in the query
// because the link is opened outside this client.
func (c *Client) WaybillURL(id string) (string, error) {
	tok := c.token()
	if tok == "" {
		return "", jwt.ErrEmptyToken
	}
	q := url.Values{"token": {tok}}
	return c.baseURL + "/tms/delivery/" + url.PathEscape(id) + "/waybill?" + q.Encode(), nil
}

// ----- plumbing -----

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, authenticated bool) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return fmt.Errorf("backend: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	if authenticated {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", jwt.BearerHeader(tok))
		}
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn(ctx, "backend_request_failed", "Backend request failed", map[string]any{
			"method": method, "path": path, "error": err.Error(),
		})
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: reading %s %s: %v", ErrTransport, method, path, err)
	}

	c.logger.Debug(ctx, "backend_request", "Backend request completed", map[string]any{
		"method": method, "path": path, "status": resp.StatusCode,
		"duration_ms": time.Since(started).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Method: method, Path: path, Message: errorMessage(raw)}
		if authenticated && resp.StatusCode == http.StatusUnauthorized {
			c.mu.RLock()
			hook := c.onUnauthorized
			c.mu.RUnlock()
			if hook != nil {
				hook(ctx)
			}
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("backend: decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body contracts.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
