package scraper

import (
	"errors"
	"fmt"
)

// Kind classifies why a scrape failed. The set is closed.
type Kind int

const (
	KindClientBuild Kind = iota + 1
	KindTransport
	KindStatus
	KindBodyRead
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrClientBuild = errors.New("client build failed")
	ErrTransport   = errors.New("request failed")
	ErrStatus      = errors.New("http error status")
	ErrBodyRead    = errors.New("body read failed")
)

// String returns the stable identifier used in logs, metrics and bridge payloads.
func (k Kind) String() string {
	switch k {
	case KindClientBuild:
		return "client_build"
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindBodyRead:
		return "body_read"
	default:
		return "unknown"
	}
}

func (k Kind) prefix() string {
	switch k {
	case KindClientBuild:
		return "Failed to build client"
	case KindTransport:
		return "Request failed"
	case KindStatus:
		return "HTTP error"
	case KindBodyRead:
		return "Failed to get bytes"
	default:
		return "Scrape failed"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindClientBuild:
		return ErrClientBuild
	case KindTransport:
		return ErrTransport
	case KindStatus:
		return ErrStatus
	case KindBodyRead:
		return ErrBodyRead
	default:
		return nil
	}
}

// Error is the failure value of a scrape. Error() renders the one-line message
// handed to hosts, e.g. "HTTP error: 404 Not Found".
type Error struct {
	Kind       Kind
	Detail     string
	StatusCode int
	Err        error
}

func newError(kind Kind, err error) *Error {
	detail := "<nil>"
	if err != nil {
		detail = err.Error()
	}
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind.prefix(), e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the scrape kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}
