// Package transport implements the generic HTTP fetch used by every
// poller: per-host rate limiting, retry-with-backoff, and a hard total
// deadline (spec.md §4.B). Grounded on the pack's
// internal/util/httpclient.go Retry/NewHTTPClient shape, generalized from
// a fixed-attempts loop into the policy spec.md specifies (exponential
// backoff from 1s, doubling, capped at 30s, ±20% jitter, no retry on 4xx
// other than 429).
package transport

import (
	"context"
	"crypto/rand"
	"io"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/logging"
	"github.com/seismic-fusion/quakefusion/internal/metrics"
	"github.com/seismic-fusion/quakefusion/internal/model"
	"github.com/seismic-fusion/quakefusion/internal/ratelimit"
)

// Client performs rate-limited, retried HTTP fetches.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	logger     *logging.Logger
}

// NewHTTPClient builds an *http.Client with the dial/keep-alive/TLS
// handshake tuning the teacher stack uses for outbound transport clients.
func NewHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// New builds a Client with the given shared rate limiter (constructed and
// injected by the entry point — see spec.md §9's resource policy) and
// logger.
func New(limiter ratelimit.Limiter, logger *logging.Logger) *Client {
	return &Client{
		httpClient: NewHTTPClient(0), // per-attempt timeout applied via context below
		limiter:    limiter,
		logger:     logger,
	}
}

// RetryPolicy configures Fetch's backoff. BaseDelay doubles each attempt,
// capped at MaxDelay, with ±20% jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// PerAttemptTimeout bounds a single HTTP round trip.
	PerAttemptTimeout time.Duration
	// TotalDeadline bounds the whole Fetch call, including retries.
	TotalDeadline time.Duration
}

// Fetch performs a GET against url, retrying per policy. On deadline
// expiry it returns a FetchError{Kind: timeout} without further retries
// (spec.md §4.B).
func (c *Client) Fetch(ctx context.Context, sourceTag, url string, policy RetryPolicy) ([]byte, error) {
	waitStart := time.Now()
	err := c.limiter.Wait(ctx, sourceTag)
	metrics.RateLimiterWaitSeconds.WithLabelValues(sourceTag).Observe(time.Since(waitStart).Seconds())
	if err != nil {
		return nil, &model.FetchError{Kind: model.FetchNetwork, Source: sourceTag, Err: err}
	}

	deadline := time.Now().Add(policy.TotalDeadline)
	totalCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var lastErr *model.FetchError
	delay := policy.BaseDelay

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if time.Now().After(deadline) {
			return nil, &model.FetchError{Kind: model.FetchTimeout, Source: sourceTag}
		}

		start := time.Now()
		body, ferr := c.attempt(totalCtx, sourceTag, url, policy.PerAttemptTimeout)
		latency := time.Since(start)

		if ferr == nil {
			c.logger.InfoContext(ctx, "fetch attempt succeeded",
				"source", sourceTag, "attempt", attempt, "latency_ms", latency.Milliseconds())
			return body, nil
		}

		c.logger.WarnContext(ctx, "fetch attempt failed",
			"source", sourceTag, "attempt", attempt, "latency_ms", latency.Milliseconds(),
			"kind", ferr.Kind, "status", ferr.StatusCode)

		lastErr = ferr
		if !ferr.Retryable() || attempt == policy.MaxAttempts {
			break
		}

		sleep := jitter(delay)
		timer := time.NewTimer(sleep)
		select {
		case <-totalCtx.Done():
			timer.Stop()
			return nil, &model.FetchError{Kind: model.FetchTimeout, Source: sourceTag}
		case <-timer.C:
		}

		delay *= 2
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, sourceTag, url string, perAttemptTimeout time.Duration) ([]byte, *model.FetchError) {
	attemptCtx, cancel := context.WithTimeout(ctx, perAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &model.FetchError{Kind: model.FetchNetwork, Source: sourceTag, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if attemptCtx.Err() != nil {
			return nil, &model.FetchError{Kind: model.FetchTimeout, Source: sourceTag, Err: err}
		}
		return nil, &model.FetchError{Kind: model.FetchNetwork, Source: sourceTag, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.FetchError{Kind: model.FetchNetwork, Source: sourceTag, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &model.FetchError{Kind: model.FetchRateLimited, StatusCode: resp.StatusCode, Source: sourceTag}
	case resp.StatusCode >= 500:
		return nil, &model.FetchError{Kind: model.FetchHTTP5xx, StatusCode: resp.StatusCode, Source: sourceTag}
	case resp.StatusCode >= 400:
		return nil, &model.FetchError{Kind: model.FetchHTTP4xx, StatusCode: resp.StatusCode, Source: sourceTag}
	}

	return body, nil
}

// jitter applies ±20% randomized jitter to d.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := float64(d) * 0.2
	n, err := rand.Int(rand.Reader, big.NewInt(int64(spread*2)))
	if err != nil {
		return d
	}
	offset := float64(n.Int64()) - spread
	return time.Duration(math.Max(0, float64(d)+offset))
}
