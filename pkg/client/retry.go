package client

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RetryPolicy selects how a client waits between retries.
type RetryPolicy string

const (
	// PolicyHuman is meant for interactive use: linear backoff with long
	// waits so slow or briefly unavailable servers are ridden out.
	PolicyHuman RetryPolicy = "human"

	// PolicyRobot is meant for automated jobs: short exponential backoff
	// that gives up quickly.
	PolicyRobot RetryPolicy = "robot"
)

// ParseRetryPolicy parses a policy name, ignoring case.
func ParseRetryPolicy(s string) (RetryPolicy, error) {
	p := RetryPolicy(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown retry policy %q (want %q or %q)", s, PolicyHuman, PolicyRobot)
	}
	return p, nil
}

// Valid reports whether p is a known policy.
func (p RetryPolicy) Valid() bool {
	return p == PolicyHuman || p == PolicyRobot
}

// String implements fmt.Stringer.
func (p RetryPolicy) String() string {
	return string(p)
}

// RetryConfig holds the backoff parameters of a policy.
type RetryConfig struct {
	// DefaultRetries is the retry count suggested for the policy. The
	// configured count always wins.
	DefaultRetries int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps every wait, including Retry-After hints.
	MaxBackoff time.Duration

	// Exponential doubles the wait per attempt; otherwise it grows linearly.
	Exponential bool

	// Jitter is the relative randomization applied to each wait (0.1 = ±10%).
	Jitter float64
}

// RetryConfigForPolicy returns the backoff parameters of a policy.
func RetryConfigForPolicy(policy RetryPolicy) RetryConfig {
	switch policy {
	case PolicyRobot:
		return RetryConfig{
			DefaultRetries: 2,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Exponential:    true,
			Jitter:         0.2,
		}
	default:
		return RetryConfig{
			DefaultRetries: 5,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
			Jitter:         0.1,
		}
	}
}

// Wait returns the backoff before retry number attempt (0 for the first
// retry). A Retry-After header on 429 and 503 responses replaces the
// computed wait.
func (c RetryConfig) Wait(attempt int, resp *http.Response) time.Duration {
	if d, ok := retryAfter(resp); ok {
		return min(d, c.MaxBackoff)
	}

	wait := c.InitialBackoff
	if c.Exponential {
		for i := 0; i < attempt && wait < c.MaxBackoff; i++ {
			wait *= 2
		}
	} else {
		wait *= time.Duration(attempt + 1)
	}
	wait = min(wait, c.MaxBackoff)

	if c.Jitter > 0 {
		wait = time.Duration(float64(wait) * (1 - c.Jitter + rand.Float64()*2*c.Jitter))
	}
	return wait
}

// retryAfter parses the Retry-After header (seconds or HTTP date).
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}

	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(time.Until(at), 0), true
	}
	return 0, false
}

// isRetryableStatus reports whether a response status is transient.
// 501 Not Implemented is permanent.
func isRetryableStatus(statusCode int) bool {
	switch {
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return true
	case statusCode >= 500 && statusCode != http.StatusNotImplemented:
		return true
	default:
		return false
	}
}

// attemptState records the retry decisions taken for one request.
type attemptState struct {
	attempts  int
	retryable bool
}

type attemptStateKey struct{}

// checkRetry implements retryablehttp.CheckRetry. Context errors stop the
// loop, connection errors follow retryablehttp's default policy, and
// responses are retried according to isRetryableStatus.
func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	retry, checkErr := shouldRetry(ctx, resp, err)
	if st, ok := ctx.Value(attemptStateKey{}).(*attemptState); ok {
		st.attempts++
		st.retryable = retry
	}
	return retry, checkErr
}

func shouldRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return isRetryableStatus(resp.StatusCode), nil
}

// backoff implements retryablehttp.Backoff.
func (c *Client) backoff(_, _ time.Duration, attempt int, resp *http.Response) time.Duration {
	wait := c.retry.Wait(attempt, resp)
	retryBackoffSeconds.WithLabelValues(string(c.config.Policy)).Observe(wait.Seconds())
	return wait
}

// logAttempt implements retryablehttp.RequestLogHook.
func (c *Client) logAttempt(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 {
		return
	}
	retriesTotal.WithLabelValues(c.config.Version, string(c.config.Policy)).Inc()
	c.logger.Debug().
		Str("method", req.Method).
		Str("url", RedactURL(req.URL.String())).
		Int("attempt", attempt+1).
		Msg("Retrying request")
}
