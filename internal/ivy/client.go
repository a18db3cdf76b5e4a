// Package ivy is a thin client for the Ivy payment provider's checkout
// API. The storefront proxies checkout-session creation so the API key
// never reaches the browser; the order body and the provider response
// pass through unmodified.
package ivy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"haggle-api/internal/model"
	"haggle-api/internal/transport"
)

// checkoutSessionPath is the checkout-session creation endpoint under
// the provider base URL.
const checkoutSessionPath = "/api/service/checkout/session/create"

// maxResponseBytes caps how much of an upstream response we buffer.
const maxResponseBytes = 1 << 20 // 1MB

// Config holds Ivy client configuration.
type Config struct {
	// BaseURL of the Ivy API, e.g. https://api.sand.getivy.de
	BaseURL string
	// APIKey sent as X-Ivy-Api-Key on every request.
	APIKey string
	// HTTPClient overrides the default client, used in tests.
	HTTPClient *http.Client
}

// Client calls the Ivy checkout API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates an Ivy client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ivy base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ivy API key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Chrome TLS fingerprint transport: the provider sits behind a
		// CDN that rate-limits Go's default TLS ClientHello.
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport.NewChromeTransport(30 * time.Second),
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}, nil
}

// CreateCheckoutSession forwards the caller-supplied order description
// and returns the provider's JSON response (including the redirect URL)
// unmodified. Payment is never assumed to have succeeded here; that is
// what the signed webhook is for.
func (c *Client) CreateCheckoutSession(ctx context.Context, order json.RawMessage) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+checkoutSessionPath, bytes.NewReader(order))
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	req.Header.Set("X-Ivy-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewUpstreamError("Ivy", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, model.NewUpstreamError("Ivy", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, model.NewRateLimitError("Ivy")
	case resp.StatusCode >= 400:
		return nil, model.NewUpstreamError("Ivy",
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 256)))
	}

	if !json.Valid(body) {
		return nil, model.NewUpstreamError("Ivy", fmt.Errorf("non-JSON response"))
	}
	return json.RawMessage(body), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
