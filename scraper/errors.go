package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind labels why a listing page could not be fetched.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindConnection  ErrorKind = "connection"
	KindForbidden   ErrorKind = "forbidden"
	KindNotFound    ErrorKind = "not_found"
	KindRateLimited ErrorKind = "rate_limited"
	KindOther       ErrorKind = "other"
)

// FetchError is a classified failure for one listing URL.
type FetchError struct {
	Kind   ErrorKind
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: %s (status %d): %v", e.Kind, e.URL, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.URL, e.Status)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindRateLimited, KindOther:
		return true
	default:
		return false
	}
}

// classifyError turns a transport error and/or HTTP status into a FetchError.
// It returns nil when there is nothing to classify.
func classifyError(err error, statusCode int, url string) error {
	if err == nil && statusCode == 0 {
		return nil
	}
	fe := &FetchError{Kind: KindOther, URL: url, Status: statusCode, Err: err}

	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fe.Kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		fe.Kind = KindTimeout
	case errors.As(err, &opErr):
		fe.Kind = KindConnection
	case statusCode == http.StatusForbidden:
		fe.Kind = KindForbidden
	case statusCode == http.StatusNotFound:
		fe.Kind = KindNotFound
	case statusCode == http.StatusTooManyRequests:
		fe.Kind = KindRateLimited
	}
	return fe
}

// ErrorLabel is the error_type label for err. Errors that were never
// classified are classified here, so every engine reports the same kinds.
func ErrorLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	if errors.As(classifyError(err, 0, ""), &fe) {
		return string(fe.Kind)
	}
	return string(KindOther)
}
