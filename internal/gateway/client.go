// Package gateway is the HTTP facade over the payment backend. It is
// stateless and retryless: every call maps transport, status, and body-shape
// failures into the session error taxonomy and never panics past its boundary.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	goeen_log "github.com/eencloud/goeen/log"

	"pos-terminal-session/internal/terminal"
)

// Config is the immutable wiring for the client. The HTTP timeout is a
// deliberately separate, shorter budget than the payment-collection timeout:
// a stalled backend must not eat into the cardholder's countdown.
type Config struct {
	BaseURL      string
	TokenPath    string
	LocationPath string
	IntentPath   string
	HTTPTimeout  time.Duration
}

type Client struct {
	logger *goeen_log.Logger
	http   *http.Client
	cfg    Config
	health *healthMonitor
}

func NewClient(logger *goeen_log.Logger, cfg Config) *Client {
	return &Client{
		logger: logger,
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:    cfg,
		health: newHealthMonitor(5, 30*time.Second),
	}
}

// Health reports the circuit state and blended backend load for diagnostics.
func (c *Client) Health() (string, float64) {
	return c.health.StateName(), c.health.Load()
}

type connectionTokenResponse struct {
	Data struct {
		Secret string `json:"secret"`
	} `json:"data"`
}

type locationResponse struct {
	Data struct {
		LocationID string `json:"location_id"`
	} `json:"data"`
}

type paymentIntentResponse struct {
	Data terminal.PaymentIntent `json:"data"`
}

type createIntentRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// GetConnectionToken posts to the connection-token endpoint. Success requires
// a non-empty secret; everything else maps to CONNECTION_TOKEN_FAILED.
func (c *Client) GetConnectionToken(ctx context.Context) terminal.Result[string] {
	var parsed connectionTokenResponse
	if err := c.do(ctx, http.MethodPost, c.cfg.TokenPath, nil, &parsed); err != nil {
		c.logger.Errorf("Connection token fetch failed: %v", err)
		return terminal.Fail[string](terminal.WrapError(terminal.CodeConnectionTokenFailed, "connection token fetch failed", err))
	}
	if parsed.Data.Secret == "" {
		return terminal.FailCode[string](terminal.CodeConnectionTokenFailed, "connection token response missing secret")
	}
	return terminal.Ok(parsed.Data.Secret)
}

// GetLocationID fetches the configured terminal location.
func (c *Client) GetLocationID(ctx context.Context) terminal.Result[string] {
	var parsed locationResponse
	if err := c.do(ctx, http.MethodGet, c.cfg.LocationPath, nil, &parsed); err != nil {
		c.logger.Errorf("Location fetch failed: %v", err)
		return terminal.Fail[string](terminal.WrapError(terminal.CodeLocationIDFetchFailed, "location fetch failed", err))
	}
	if parsed.Data.LocationID == "" {
		return terminal.FailCode[string](terminal.CodeLocationIDFetchFailed, "location response missing location_id")
	}
	return terminal.Ok(parsed.Data.LocationID)
}

// CreatePaymentIntent converts the major-unit amount to integer minor units
// (round half up) and posts it. The returned intent must carry a client
// secret; the device SDK cannot collect without one.
func (c *Client) CreatePaymentIntent(ctx context.Context, amountMajor float64, currency string) terminal.Result[terminal.PaymentIntent] {
	req := createIntentRequest{
		AmountMinor: MinorUnits(amountMajor),
		Currency:    strings.ToLower(currency),
	}

	var parsed paymentIntentResponse
	if err := c.do(ctx, http.MethodPost, c.cfg.IntentPath, req, &parsed); err != nil {
		c.logger.Errorf("Payment intent creation failed: %v", err)
		return terminal.Fail[terminal.PaymentIntent](terminal.WrapError(terminal.CodePaymentIntentFailed, "payment intent creation failed", err))
	}
	if parsed.Data.ClientSecret == "" {
		return terminal.FailCode[terminal.PaymentIntent](terminal.CodePaymentIntentFailed, "payment intent response missing client secret")
	}
	return terminal.Ok(parsed.Data)
}

// MinorUnits converts a major-unit amount to integer minor units, rounding
// half up. 19.999 becomes 2000, not 1999.
func MinorUnits(amountMajor float64) int64 {
	return int64(math.Round(amountMajor * 100))
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if !c.health.CanProceed() {
		return fmt.Errorf("request %s %s: backend circuit open", method, path)
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.health.RecordFailure()
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 5xx and transport failures trip the circuit; 4xx means the backend is
	// alive and rejecting this particular request.
	if resp.StatusCode >= 500 {
		c.health.RecordFailure()
	} else {
		c.health.RecordSuccess()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("request %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}
