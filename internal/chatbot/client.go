// Package chatbot is the HTTP client for the remote HR chatbot service.
package chatbot

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
	"strings"
	"time"

	"github.com/ashureev/hr-resource-chat/internal/metrics"
)

// ErrQueryFailed is wrapped by every error Ask returns.
var ErrQueryFailed = errors.New("chatbot query failed")

var errMissingResponse = errors.New(`response body has no "response" field`)

// DefaultMaxResponseBytes caps how much of a reply body is read.
const DefaultMaxResponseBytes = 1 << 20 // 1MB

// Asker sends a query to the chatbot and returns its reply text.
type Asker interface {
	Ask(ctx context.Context, query string) (string, error)
}

// Config holds client configuration.
type Config struct {
	BaseURL          string
	Timeout          time.Duration // 0 = no timeout
	MaxResponseBytes int64
	HTTPClient       *http.Client
}

// Client talks to POST <base>/chat.
type Client struct {
	endpoint string
	timeout  time.Duration
	maxBytes int64
	http     *http.Client
	logger   *slog.Logger
}

var _ Asker = (*Client)(nil)

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

// NewClient validates cfg and creates a client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse chatbot url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("chatbot url %q must use http or https", cfg.BaseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("chatbot url %q has no host", cfg.BaseURL)
	}

	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		endpoint: base + "/chat",
		timeout:  cfg.Timeout,
		maxBytes: maxBytes,
		http:     httpClient,
		logger:   logger,
	}, nil
}

// Endpoint returns the full URL queries are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Ask posts {"query": query} and returns the "response" field of the reply.
// Transport errors, non-2xx statuses and malformed bodies all wrap ErrQueryFailed.
func (c *Client) Ask(ctx context.Context, query string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(chatRequest{Query: query})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %w", ErrQueryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", ErrQueryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ChatbotRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ChatbotRequestsTotal.WithLabelValues("network_error").Inc()
		return "", fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close chatbot response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ChatbotRequestsTotal.WithLabelValues("bad_status").Inc()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: unexpected status %d", ErrQueryFailed, resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxBytes)).Decode(&decoded); err != nil {
		metrics.ChatbotRequestsTotal.WithLabelValues("bad_body").Inc()
		return "", fmt.Errorf("%w: decode response: %w", ErrQueryFailed, err)
	}
	if decoded.Response == nil {
		metrics.ChatbotRequestsTotal.WithLabelValues("bad_body").Inc()
		return "", fmt.Errorf("%w: %w", ErrQueryFailed, errMissingResponse)
	}

	metrics.ChatbotRequestsTotal.WithLabelValues("ok").Inc()
	return *decoded.Response, nil
}
