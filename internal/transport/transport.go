// Package transport provides HTTP plumbing shared by the hosted backends.
package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts = 5
	DefaultMaxWait     = 2 * time.Minute
)

// RateLimitedTransport retries requests answered with 429 Too Many Requests once the server's retry-after has
// passed. Responses without a usable retry-after, or that would need a longer wait than maxWait, are returned as is.
type RateLimitedTransport struct {
	base        http.RoundTripper
	maxAttempts int
	maxWait     time.Duration
	log         zerolog.Logger
}

// WithRateLimiting wraps base, or http.DefaultTransport if base is nil
func WithRateLimiting(base http.RoundTripper, logger zerolog.Logger) *RateLimitedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RateLimitedTransport{
		base:        base,
		maxAttempts: DefaultMaxAttempts,
		maxWait:     DefaultMaxWait,
		log:         logger,
	}
}

// NewClient returns an HTTP client using a rate limited default transport
func NewClient(logger zerolog.Logger) *http.Client {
	return &http.Client{Transport: WithRateLimiting(nil, logger)}
}

func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Preserve the original request body for retries
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		err = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to close request body: %w", err)
		}
	}

	for attempt := 1; ; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return resp, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= t.maxAttempts {
			return resp, nil
		}

		wait := parseRetryAfter(resp.Header.Get("retry-after"), time.Now())
		if wait <= 0 || wait > t.maxWait {
			return resp, nil
		}

		err = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to close response body: %w", err)
		}

		t.log.Warn().Str("host", req.URL.Host).Dur("wait", wait).Int("attempt", attempt).Msg("Rate limited, waiting")
		timer := time.NewTimer(wait)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

// parseRetryAfter reads a retry-after header given either in seconds or as an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if retryTime, err := http.ParseTime(value); err == nil {
		return retryTime.Sub(now)
	}
	return 0
}
