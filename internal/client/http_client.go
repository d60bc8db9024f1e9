package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"admira-report/internal/config"
)

type HTTPClient struct {
	client        *http.Client
	retryAttempts int
	backoff       func(attempt int) time.Duration
	logger        *logrus.Logger
}

func NewHTTPClient(cfg *config.Config, logger *logrus.Logger) *HTTPClient {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		retryAttempts: attempts,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
		logger: logger,
	}
}

// PostJSON sends an already-encoded JSON body, retrying network failures
// and 5xx responses. 4xx responses fail immediately.
func (c *HTTPClient) PostJSON(ctx context.Context, url string, body []byte, headers map[string]string) error {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			backoffTime := c.backoff(attempt)
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"backoff": backoffTime,
				"url":     url,
			}).Warn("Retrying request after backoff")

			select {
			case <-ctx.Done():
				return fmt.Errorf("request canceled: %w", ctx.Err())
			case <-time.After(backoffTime):
			}
		}

		// The body reader is consumed per attempt, so the request is rebuilt.
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.logger.WithFields(logrus.Fields{
				"attempt":     attempt + 1,
				"status_code": resp.StatusCode,
				"url":         url,
			}).Info("Request successful")
			return nil
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("client error: %d", resp.StatusCode)
		}

		lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
	}

	return fmt.Errorf("all retry attempts failed, last error: %w", lastErr)
}
