package shopify

import (
	"net/http"
	"testing"
	"time"
)

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("1.5"); got != 1500*time.Millisecond {
		t.Errorf("parseRetryAfter(1.5) = %v, want 1.5s", got)
	}
	if got := parseRetryAfter("4"); got != 4*time.Second {
		t.Errorf("parseRetryAfter(4) = %v, want 4s", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(empty) = %v, want 0", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("parseRetryAfter(garbage) = %v, want 0", got)
	}

	date := time.Now().Add(3 * time.Second).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(date); got <= 0 || got > 3*time.Second {
		t.Errorf("parseRetryAfter(http date) = %v, want (0, 3s]", got)
	}
}

func TestRetryDelayExponentialWithCap(t *testing.T) {
	if got := retryDelay(0, nil); got != 500*time.Millisecond {
		t.Errorf("retryDelay(0) = %v, want 500ms", got)
	}
	if got := retryDelay(1, nil); got != time.Second {
		t.Errorf("retryDelay(1) = %v, want 1s", got)
	}
	if got := retryDelay(10, nil); got != graphqlRetryMaxDelay {
		t.Errorf("retryDelay(10) = %v, want %v", got, graphqlRetryMaxDelay)
	}
}

func TestRetryDelayHonorsRetryAfter(t *testing.T) {
	limited := &httpStatusError{
		statusCode: http.StatusTooManyRequests,
		status:     "429 Too Many Requests",
		retryAfter: 5 * time.Second,
	}
	if got := retryDelay(0, limited); got != 5*time.Second {
		t.Errorf("retryDelay with Retry-After 5s = %v, want 5s", got)
	}

	// A shorter Retry-After never undercuts the backoff.
	limited.retryAfter = 100 * time.Millisecond
	if got := retryDelay(0, limited); got != 500*time.Millisecond {
		t.Errorf("retryDelay with Retry-After 100ms = %v, want 500ms", got)
	}
}
