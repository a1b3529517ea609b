// Package bybit implements the exchange.Exchange interface against the Bybit
// v5 REST API for the unified spot account.
package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avolkov/triarb/internal/crypto"
	"github.com/avolkov/triarb/internal/domain"
	"github.com/avolkov/triarb/internal/exchange"
)

// Compile-time interface check.
var _ exchange.Exchange = (*Client)(nil)

// rateLimitKey is the shared limiter key: all calls against the exchange
// go through one connection budget.
const rateLimitKey = "bybit"

// Client is the REST client for the Bybit v5 API. All methods are safe for
// concurrent use.
type Client struct {
	baseURL    string
	category   string // "spot"
	recvWindow int64  // milliseconds
	httpClient *http.Client
	auth       *crypto.HMACAuth
	limiter    domain.RateLimiter
	rateLimit  int
	rateWindow time.Duration
}

// ClientConfig holds the connection parameters for the Bybit client.
type ClientConfig struct {
	BaseURL      string
	APIKey       string
	APISecret    string
	RecvWindowMs int64
	// RateLimit is the request budget within RateWindow. Defaults to 10
	// per second.
	RateLimit  int
	RateWindow time.Duration
}

// New creates a Client. limiter may be nil, in which case no throttling is
// applied (useful in tests).
func New(cfg ClientConfig, limiter domain.RateLimiter) *Client {
	recv := cfg.RecvWindowMs
	if recv <= 0 {
		recv = 5000
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		category:   "spot",
		recvWindow: recv,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		auth:       &crypto.HMACAuth{Key: cfg.APIKey, Secret: cfg.APISecret},
		limiter:    limiter,
		rateLimit:  cfg.RateLimit,
		rateWindow: cfg.RateWindow,
	}
}

// apiResponse is the envelope every v5 endpoint returns.
type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// doGet performs a public or signed GET request. query must already be
// encoded; signing covers the raw query string.
func (c *Client) doGet(ctx context.Context, path string, query url.Values, signed bool) (json.RawMessage, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	rawQuery := query.Encode()
	reqURL := c.baseURL + path
	if rawQuery != "" {
		reqURL += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if signed {
		for k, v := range c.auth.Headers(rawQuery, c.recvWindow) {
			req.Header.Set(k, v)
		}
	}

	return c.send(req)
}

// doPost performs a signed POST request with a JSON body.
func (c *Client) doPost(ctx context.Context, path string, body any) (json.RawMessage, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.auth.Headers(string(jsonBody), c.recvWindow) {
		req.Header.Set(k, v)
	}

	return c.send(req)
}

// send executes the request and unwraps the v5 response envelope.
func (c *Client) send(req *http.Request) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	if envelope.RetCode != 0 {
		return nil, fmt.Errorf("api error %d: %s", envelope.RetCode, envelope.RetMsg)
	}

	return envelope.Result, nil
}

// throttle blocks until the shared rate limit admits another request.
func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx, rateLimitKey, c.rateLimit, c.rateWindow); err != nil {
		return fmt.Errorf("bybit: rate limit: %w", err)
	}
	return nil
}
