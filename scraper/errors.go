package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FetchError wraps a transport failure with its taxonomy label. Fetch
// failures are always recovered locally as an empty listing set for the
// (retailer, query) pair; the label only feeds logs and metrics.
type FetchError struct {
	Label string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Label, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifyError maps a transport error and status code to a FetchError.
func classifyError(err error, statusCode int) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Label: "timeout", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Label: "timeout", Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &FetchError{Label: "connection", Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return &FetchError{Label: "forbidden", Err: wrapped}
		case http.StatusNotFound:
			return &FetchError{Label: "not_found", Err: wrapped}
		case http.StatusTooManyRequests:
			return &FetchError{Label: "rate_limited", Err: wrapped}
		}
	}

	if err == nil {
		return &FetchError{Label: "unknown", Err: fmt.Errorf("unclassified failure")}
	}
	return &FetchError{Label: "other", Err: err}
}
