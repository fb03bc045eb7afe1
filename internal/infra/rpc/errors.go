package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorKind classifies RPC failures.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindConnectionRefused ErrorKind = "connection_refused"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindRateLimited       ErrorKind = "rate_limited"
	KindUnavailable       ErrorKind = "unavailable"
)

var (
	ErrTimeout           = errors.New("rpc timeout")
	ErrConnectionRefused = errors.New("rpc connection refused")
	ErrMalformedResponse = errors.New("rpc malformed response")
	ErrUnauthorized      = errors.New("rpc unauthorized")
	ErrRateLimited       = errors.New("rpc rate limited")
	ErrUnavailable       = errors.New("rpc unavailable")
)

var kindSentinels = map[ErrorKind]error{
	KindTimeout:           ErrTimeout,
	KindConnectionRefused: ErrConnectionRefused,
	KindMalformedResponse: ErrMalformedResponse,
	KindUnauthorized:      ErrUnauthorized,
	KindRateLimited:       ErrRateLimited,
	KindUnavailable:       ErrUnavailable,
}

// Error is a classified RPC failure.
type Error struct {
	Kind     ErrorKind
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Endpoint, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an *Error against the sentinel of its kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the kind of a classified error, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind
	}
	return ""
}

func newError(kind ErrorKind, endpoint string, err error) *Error {
	return &Error{Kind: kind, Endpoint: endpoint, Err: err}
}

// classifyTransport maps an http.Client error to an error kind.
func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(err.Error(), "connection refused") {
		return KindConnectionRefused
	}
	return KindUnavailable
}
