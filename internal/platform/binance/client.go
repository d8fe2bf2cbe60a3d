// Package binance provides REST and WebSocket clients for Binance spot
// market data.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

// MaxKlinesPerRequest is the largest page size /api/v3/klines accepts.
const MaxKlinesPerRequest = 1000

// Client is the REST client for Binance public market data endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Binance REST client.
//
// baseURL is the API root, e.g. "https://api.binance.com".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetKlines returns up to limit bars for the symbol and interval, covering
// [start, end] in epoch milliseconds. Bars come back in ascending open-time
// order. A limit of 0 requests the maximum page size.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval domain.Interval, start, end int64, limit int) ([]domain.Bar, error) {
	if !interval.Valid() {
		return nil, domain.ErrInvalidInterval
	}
	if limit <= 0 || limit > MaxKlinesPerRequest {
		limit = MaxKlinesPerRequest
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", string(interval))
	params.Set("limit", strconv.Itoa(limit))
	if start > 0 {
		params.Set("startTime", strconv.FormatInt(start, 10))
	}
	if end > 0 {
		params.Set("endTime", strconv.FormatInt(end, 10))
	}

	body, err := c.doRequest(ctx, "/api/v3/klines?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("binance: get klines %s %s: %w", symbol, interval, err)
	}

	var klines []kline
	if err := json.Unmarshal(body, &klines); err != nil {
		return nil, fmt.Errorf("binance: decode klines %s %s: %w", symbol, interval, err)
	}

	bars := make([]domain.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, k.toBar(symbol, interval))
	}
	return bars, nil
}

// Ping checks connectivity to the REST API.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.doRequest(ctx, "/api/v3/ping"); err != nil {
		return fmt.Errorf("binance: ping: %w", err)
	}
	return nil
}

// ServerTime returns the exchange's clock as epoch milliseconds.
func (c *Client) ServerTime(ctx context.Context) (int64, error) {
	body, err := c.doRequest(ctx, "/api/v3/time")
	if err != nil {
		return 0, fmt.Errorf("binance: server time: %w", err)
	}

	var resp struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("binance: decode server time: %w", err)
	}
	return resp.ServerTime, nil
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusTeapot:
		// Binance answers 418 after repeated limit violations.
		return fmt.Errorf("%w: %s (code %d)", domain.ErrRateLimited, apiErr.Message, apiErr.Code)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s (code %d)", domain.ErrNotFound, apiErr.Message, apiErr.Code)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s (code %d)", domain.ErrUnauthorized, apiErr.Message, apiErr.Code)
	default:
		return fmt.Errorf("HTTP %d: %s (code %d)", statusCode, apiErr.Message, apiErr.Code)
	}
}
