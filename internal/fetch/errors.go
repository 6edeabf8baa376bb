package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind partitions fetch failures the way the orchestrator reacts to
// them: all three are per-URL and non-fatal, but Blocked ones are worth
// escalating to the renderer before giving up.
type ErrorKind string

const (
	KindNetwork ErrorKind = "network"
	KindTimeout ErrorKind = "timeout"
	KindBlocked ErrorKind = "blocked"
)

// FetchError wraps a failed page retrieval with its classification.
type FetchError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func newFetchError(kind ErrorKind, url string, err error) *FetchError {
	if err == nil {
		err = fmt.Errorf("%s", kind)
	}
	return &FetchError{Kind: kind, URL: url, Err: err}
}

func classify(err error, statusCode int) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	switch statusCode {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return KindBlocked
	}
	return KindNetwork
}

// KindOf returns the classification of err, or "" when err is not a
// FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
