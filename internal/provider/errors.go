package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Sentinels classifying a Failure. Every Failure wraps exactly one.
var (
	ErrRateLimited = errors.New("rate limited")
	ErrUnavailable = errors.New("backend unavailable")
	ErrAuth        = errors.New("authentication rejected")
	ErrBadRequest  = errors.New("request rejected")
	ErrNoReply     = errors.New("no reply in response")
	ErrTimeout     = errors.New("timed out")
)

// Failure is the single error type adapters return.
type Failure struct {
	Backend string

	// HTTPStatus is the backend's status code, 0 when the request never
	// got a response.
	HTTPStatus int

	// Detail is the backend's own error message, if any.
	Detail string

	Err error
}

func (f *Failure) Error() string {
	msg := "provider " + f.Backend
	if f.HTTPStatus != 0 {
		msg += fmt.Sprintf(": http %d", f.HTTPStatus)
	}
	msg += ": " + f.Err.Error()
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// StatusLabel renders HTTPStatus for metric labels.
func (f *Failure) StatusLabel() string {
	if f.HTTPStatus == 0 {
		return "none"
	}
	return strconv.Itoa(f.HTTPStatus)
}

// ClassifyStatus maps a non-2xx HTTP status to its sentinel.
func ClassifyStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrTimeout
	case status >= 500:
		return ErrUnavailable
	default:
		return ErrBadRequest
	}
}

// StatusFailure builds the Failure for a non-2xx response.
func StatusFailure(backend string, status int, detail string) *Failure {
	return &Failure{Backend: backend, HTTPStatus: status, Detail: detail, Err: ClassifyStatus(status)}
}

// TransportFailure builds the Failure for a request that got no response.
func TransportFailure(backend string, err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Backend: backend, Err: fmt.Errorf("%w: %w", ErrTimeout, err)}
	}
	return &Failure{Backend: backend, Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
}

// NoReply builds the Failure for a 2xx response without usable text.
func NoReply(backend, detail string) *Failure {
	return &Failure{Backend: backend, Detail: detail, Err: ErrNoReply}
}

// Normalize returns err as a *Failure. Failures pass through unchanged;
// anything else is treated as a transport problem.
func Normalize(backend string, err error) error {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return err
	}
	return TransportFailure(backend, err)
}
