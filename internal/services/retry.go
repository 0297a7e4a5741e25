package services

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// RetryPolicy is applied uniformly to every capability call made through a service client.
type RetryPolicy struct {
	MaxAttempts    int           // Total attempts including the first request
	InitialBackoff time.Duration // Wait before the first retry
	MaxBackoff     time.Duration // Upper bound for exponential backoff
}

// DefaultRetryPolicy retries transient failures twice with 500ms..5s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// Apply configures resty's retry hooks on c.
//
// 429 responses are always retried. Transport errors and 5xx responses are retried for idempotent
// methods only; a non-idempotent write is retried after a transport error only when the connection
// was never established, so a write the server may have committed is not sent twice.
func (p RetryPolicy) Apply(c *resty.Client) *resty.Client {
	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}

	return c.
		SetRetryCount(retries).
		SetRetryWaitTime(p.InitialBackoff).
		SetRetryMaxWaitTime(p.MaxBackoff).
		AddRetryCondition(retryable)
}

func retryable(r *resty.Response, err error) bool {
	safe := r == nil || r.Request == nil || idempotent(r.Request.Method)
	if err != nil {
		return safe || unsent(err)
	}
	if r == nil {
		return false
	}

	switch code := r.StatusCode(); {
	case code == http.StatusTooManyRequests:
		return true
	case code >= http.StatusInternalServerError:
		return safe
	default:
		return false
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// unsent reports whether err happened while dialing, before any byte of the request was written.
func unsent(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// newClient builds a resty client for baseURL on top of hc with the retry policy applied.
func newClient(hc *http.Client, baseURL string, policy RetryPolicy) *resty.Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	c := resty.NewWithClient(hc).
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return policy.Apply(c)
}
