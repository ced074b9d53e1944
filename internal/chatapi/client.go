// Package chatapi is a minimal client for the chat-api.com WhatsApp gateway.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ErrBadResponse is returned when the gateway answers with an empty or
// non-JSON body. Its text matches the sentinel the gateway tooling expects.
var ErrBadResponse = errors.New("error")

// maxResponseBytes caps how much of a gateway response is read.
const maxResponseBytes = 1 << 20

// Config configures a Client.
type Config struct {
	APIURL     string // e.g. https://eu1.chat-api.com/instance12345
	Token      string
	HTTPClient *http.Client // optional; NewHTTPClient(Timeout) when nil
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client POSTs JSON to gateway methods.
type Client struct {
	apiURL string
	token  string
	client *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = NewHTTPClient(cfg.Timeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiURL: cfg.APIURL,
		token:  cfg.Token,
		client: hc,
		logger: logger,
	}
}

// MethodURL returns the full URL for a gateway method, token included.
func (c *Client) MethodURL(method string) string {
	return fmt.Sprintf("%s/%s?token=%s", c.apiURL, method, url.QueryEscape(c.token))
}

// Call serializes params as JSON and POSTs them to the named method. The
// decoded response is returned as-is whatever the HTTP status; an empty or
// undecodable body yields ErrBadResponse. Transport failures are returned
// wrapped.
func (c *Client) Call(ctx context.Context, method string, params any) (any, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.MethodURL(method), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Debug("chat-api response read failed", "method", method, "err", err)
		return nil, ErrBadResponse
	}

	var result any
	if err := json.Unmarshal(respBody, &result); err != nil {
		c.logger.Debug("chat-api response is not JSON",
			"method", method, "status", resp.StatusCode, "body_len", len(respBody))
		return nil, ErrBadResponse
	}

	c.logger.Debug("chat-api call done", "method", method, "status", resp.StatusCode)
	return result, nil
}
