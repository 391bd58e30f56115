// Package edge invokes serverless edge functions over HTTP. Failures are
// reported in-band: callers always receive a Result whose Success flag and
// Error field describe the outcome, and the error return is reserved for
// context cancellation and payload encoding problems.
package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mission-control/pkg/logger"
	"github.com/capitalize-ai/mission-control/pkg/metrics"
)

// Result is the tagged outcome of an edge function invocation.
type Result struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client calls edge functions at {baseURL}/functions/v1/{name}.
type Client struct {
	baseURL     string
	token       string
	maxAttempts int
	httpClient  *http.Client
	logger      *logger.Logger
}

// NewClient creates an edge function client. maxAttempts bounds the total
// number of HTTP attempts per invocation, including the first.
func NewClient(baseURL, token string, maxAttempts int, log *logger.Logger) *Client {
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	return &Client{
		baseURL:     baseURL,
		token:       token,
		maxAttempts: maxAttempts,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      log,
	}
}

// Invoke calls the named edge function with an action and parameters. Server
// errors (5xx) and rate limiting (429) are retried with exponential backoff;
// all other HTTP statuses are final.
func (c *Client) Invoke(ctx context.Context, function, action string, params map[string]any) (*Result, error) {
	payload := map[string]any{"action": action}
	for k, v := range params {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal edge payload: %w", err)
	}

	url := fmt.Sprintf("%s/functions/v1/%s", c.baseURL, function)

	var result *Result
	attempts := 0
	started := time.Now()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newBackOff(), uint64(c.maxAttempts-1)), ctx)

	err = backoff.Retry(func() error {
		attempts++
		res, retryable, err := c.attempt(ctx, url, body)
		if err != nil {
			if !retryable {
				return backoff.Permanent(err)
			}
			c.logger.Warn("edge function attempt failed",
				zap.String("function", function),
				zap.Int("attempt", attempts),
				zap.Error(err))
			return err
		}
		result = res
		return nil
	}, policy)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordProviderRequest("edge", function, status, time.Since(started).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return result, nil
}

// attempt performs one HTTP round trip. The bool reports whether a failure is
// retryable.
func (c *Client) attempt(ctx context.Context, url string, body []byte) (*Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level failures are retryable.
		return nil, true, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read edge response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("edge function returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("edge function returned %d: %s", resp.StatusCode, truncate(data, 256))
	}

	result := &Result{}
	if err := json.Unmarshal(data, result); err != nil || (!result.Success && result.Error == "") {
		// A 2xx whose body does not report an error counts as success; keep
		// the raw body so callers can inspect it.
		return &Result{Success: true, Data: data}, false, nil
	}
	return result, false, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	return b
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
