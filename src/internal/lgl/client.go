package lgl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"lglsync/src/internal/config"
	"lglsync/src/internal/metrics"
	"lglsync/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// CredentialSource supplies the API key and base URL for the active
// environment. The settings service implements it.
type CredentialSource interface {
	Resolve(baseKey string) string
}

// Client talks to the Little Green Light REST API: bearer token auth,
// JSON bodies, limit/offset pagination. Every call is paced by a rate
// limiter because LGL enforces roughly 300 requests per 5 minutes.
type Client struct {
	// Configuration
	config config.LGLConfig
	creds  CredentialSource

	// Network
	client  *fasthttp.Client
	limiter *rate.Limiter

	// Application
	logger *log.Logger

	// Statistics
	totalRequests  atomic.Uint64
	failedRequests atomic.Uint64
	totalRetries   atomic.Uint64
	lastRequest    atomic.Value // time.Time
}

// New creates an LGL API client. Credentials are read from creds on
// every request so an environment switch takes effect immediately.
func New(cfg config.LGLConfig, creds CredentialSource, logger *log.Logger) *Client {
	c := &Client{
		config: cfg,
		creds:  creds,
		logger: logger,
		client: &fasthttp.Client{
			MaxConnsPerHost:     10,
			MaxIdleConnDuration: 30 * time.Second,
			ReadTimeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
			WriteTimeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
	c.lastRequest.Store(time.Time{})
	return c
}

// VerifyCredentials makes the cheapest possible authenticated call and
// reports whether the active environment's API key is accepted.
func (c *Client) VerifyCredentials(ctx context.Context) error {
	query := url.Values{}
	query.Set("limit", "1")

	var resp ListResponse
	if err := c.do(ctx, "GET", "/constituents", "constituents.verify", query, nil, &resp); err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}
	return nil
}

// SearchConstituents looks up constituents by email address using the
// search endpoint's eq-style query parameter.
func (c *Client) SearchConstituents(ctx context.Context, email string) ([]Constituent, error) {
	query := url.Values{}
	query.Set("q[]", "eq:email_address="+email)
	query.Set("limit", strconv.Itoa(c.config.PageSize))

	var resp ListResponse
	if err := c.do(ctx, "GET", "/constituents/search", "constituents.search", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("constituent search failed: %w", err)
	}

	var items []Constituent
	if err := decodeItems(resp, &items); err != nil {
		return nil, fmt.Errorf("constituent search failed: %w", err)
	}
	return items, nil
}

// GetConstituent fetches one constituent by ID.
func (c *Client) GetConstituent(ctx context.Context, id int) (*Constituent, error) {
	var out Constituent
	path := fmt.Sprintf("/constituents/%d", id)
	if err := c.do(ctx, "GET", path, "constituents.get", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch constituent %d: %w", id, err)
	}
	return &out, nil
}

// CreateConstituent adds a new constituent record.
func (c *Client) CreateConstituent(ctx context.Context, input ConstituentInput) (*Constituent, error) {
	var out Constituent
	if err := c.do(ctx, "POST", "/constituents", "constituents.create", nil, input, &out); err != nil {
		return nil, fmt.Errorf("failed to create constituent: %w", err)
	}
	return &out, nil
}

// UpdateConstituent patches an existing constituent record.
func (c *Client) UpdateConstituent(ctx context.Context, id int, input ConstituentInput) (*Constituent, error) {
	var out Constituent
	path := fmt.Sprintf("/constituents/%d", id)
	if err := c.do(ctx, "PATCH", path, "constituents.update", nil, input, &out); err != nil {
		return nil, fmt.Errorf("failed to update constituent %d: %w", id, err)
	}
	return &out, nil
}

// CreateGift records a payment against a constituent.
func (c *Client) CreateGift(ctx context.Context, constituentID int, input GiftInput) (*Gift, error) {
	var out Gift
	path := fmt.Sprintf("/constituents/%d/gifts", constituentID)
	if err := c.do(ctx, "POST", path, "gifts.create", nil, input, &out); err != nil {
		return nil, fmt.Errorf("failed to create gift: %w", err)
	}
	return &out, nil
}

// CreateMembership adds a membership row to a constituent.
func (c *Client) CreateMembership(ctx context.Context, constituentID int, input MembershipInput) (*Membership, error) {
	var out Membership
	path := fmt.Sprintf("/constituents/%d/memberships", constituentID)
	if err := c.do(ctx, "POST", path, "memberships.create", nil, input, &out); err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}
	return &out, nil
}

// RegisterEventAttendee records an event attendance for a constituent.
func (c *Client) RegisterEventAttendee(ctx context.Context, eventID int, input AttendanceInput) (*Attendance, error) {
	var out Attendance
	path := fmt.Sprintf("/events/%d/attendances", eventID)
	if err := c.do(ctx, "POST", path, "attendances.create", nil, input, &out); err != nil {
		return nil, fmt.Errorf("failed to register attendee: %w", err)
	}
	return &out, nil
}

// GetStats returns client statistics.
func (c *Client) GetStats() map[string]any {
	last, _ := c.lastRequest.Load().(time.Time)
	return map[string]any{
		"base_url":        c.baseURL(),
		"total_requests":  c.totalRequests.Load(),
		"failed_requests": c.failedRequests.Load(),
		"total_retries":   c.totalRetries.Load(),
		"last_request":    last,
	}
}

func (c *Client) baseURL() string {
	return strings.TrimRight(c.creds.Resolve("api_base_url"), "/")
}

// do executes one API call with pacing, retry and JSON decoding.
// endpoint is the low-cardinality metrics label, never the raw path.
func (c *Client) do(ctx context.Context, method, path, endpoint string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	apiKey := c.creds.Resolve("api_key")
	if apiKey == "" {
		return fmt.Errorf("no API key configured for the active environment")
	}

	uri := c.baseURL() + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	var requestBody []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to serialize request body: %w", err)
		}
		requestBody = data
	}

	c.totalRequests.Add(1)
	c.lastRequest.Store(time.Now())
	timeout := time.Duration(c.config.TimeoutSeconds) * time.Second
	started := time.Now()

	var lastErr error
	retryDelay := time.Duration(c.config.RetryDelayMS) * time.Millisecond

	for attempt := int64(0); attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.totalRetries.Add(1)
			metrics.LGLRetries.Inc()

			select {
			case <-ctx.Done():
				c.failedRequests.Add(1)
				return ctx.Err()
			case <-time.After(retryDelay):
			}

			// Backoff capped at the request timeout; the wrap check
			// guards against overflow on large multipliers.
			newDelay := time.Duration(float64(retryDelay) * c.config.RetryBackoff)
			if newDelay > timeout || newDelay < retryDelay {
				retryDelay = timeout
			} else {
				retryDelay = newDelay
			}
		}

		if err := ctx.Err(); err != nil {
			c.failedRequests.Add(1)
			return err
		}

		// Acquire inside the loop, release immediately after copying
		// out what we need. No defer: released objects must not outlive
		// the iteration.
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()

		req.SetRequestURI(uri)
		req.Header.SetMethod(method)
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "lglsync/"+version.Short())
		if requestBody != nil {
			req.Header.SetContentType("application/json")
			req.SetBody(requestBody)
		}

		err := c.client.DoTimeout(req, resp, timeout)

		statusCode := resp.StatusCode()
		var responseBody []byte
		if len(resp.Body()) > 0 {
			responseBody = make([]byte, len(resp.Body()))
			copy(responseBody, resp.Body())
		}

		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)

		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.logger.Warn("msg", "LGL request failed",
				"component", "lgl",
				"endpoint", endpoint,
				"attempt", attempt+1,
				"max_retries", c.config.MaxRetries,
				"error", err)
			continue
		}

		metrics.LGLRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()

		if statusCode >= 200 && statusCode < 300 {
			metrics.LGLRequestDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
			if out != nil && len(responseBody) > 0 {
				if err := json.Unmarshal(responseBody, out); err != nil {
					c.failedRequests.Add(1)
					return fmt.Errorf("failed to decode response: %w", err)
				}
			}
			return nil
		}

		lastErr = fmt.Errorf("api status %d: %s", statusCode, apiErrorDetail(responseBody))

		// 4xx means the request itself is wrong; retrying cannot help.
		if statusCode >= 400 && statusCode < 500 {
			c.failedRequests.Add(1)
			c.logger.Warn("msg", "LGL rejected request",
				"component", "lgl",
				"endpoint", endpoint,
				"status_code", statusCode)
			return lastErr
		}

		c.logger.Warn("msg", "LGL returned server error",
			"component", "lgl",
			"endpoint", endpoint,
			"attempt", attempt+1,
			"status_code", statusCode)
	}

	c.failedRequests.Add(1)
	c.logger.Error("msg", "LGL request failed after all retries",
		"component", "lgl",
		"endpoint", endpoint,
		"retries", c.config.MaxRetries,
		"last_error", lastErr)
	return lastErr
}

// apiErrorDetail extracts a short human-readable message from an LGL
// error body, falling back to the raw body.
func apiErrorDetail(body []byte) string {
	var payload struct {
		Error       string   `json:"error"`
		Description string   `json:"error_description"`
		Errors      []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Description != "":
			return payload.Description
		case payload.Error != "":
			return payload.Error
		case len(payload.Errors) > 0:
			return strings.Join(payload.Errors, "; ")
		}
	}

	detail := string(body)
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}

// decodeItems unmarshals a list response's raw items.
func decodeItems(resp ListResponse, out any) error {
	if len(resp.Items) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Items, out); err != nil {
		return fmt.Errorf("failed to decode items: %w", err)
	}
	return nil
}
