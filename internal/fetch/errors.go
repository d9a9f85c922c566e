package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies the outcome of a provider call.
type Kind string

const (
	KindConfig      Kind = "config"
	KindValidation  Kind = "validation"
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
	KindServer      Kind = "server"
	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindDecode      Kind = "decode"
	KindClient      Kind = "client"
	KindCircuitOpen Kind = "circuit_open"
)

// Retryable reports whether another attempt may succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServer, KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}

// Error is the classified failure of a provider call.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Source  string // provider name
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Source, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code maps the error to the numeric code shown to callers.
func (e *Error) Code() int {
	switch e.Kind {
	case KindConfig:
		return http.StatusInternalServerError
	case KindValidation:
		return http.StatusBadRequest
	case KindNetwork, KindCircuitOpen:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindDecode:
		return http.StatusBadGateway
	}
	if e.Status != 0 {
		return e.Status
	}
	return http.StatusBadGateway
}

// NewConfigError reports a missing credential or setting for a provider.
func NewConfigError(source, msg string) *Error {
	return &Error{Kind: KindConfig, Source: source, Message: msg}
}

// NewValidationError reports a malformed or empty query.
func NewValidationError(source, msg string) *Error {
	return &Error{Kind: KindValidation, Source: source, Message: msg}
}

// NewDecodeError reports a payload that does not match the provider contract.
func NewDecodeError(source string, err error) *Error {
	return &Error{Kind: KindDecode, Source: source, Message: "unexpected payload shape", Err: err}
}

// AsError extracts a classified error, wrapping anything unclassified as a network failure.
func AsError(source string, err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Kind: KindNetwork, Source: source, Message: err.Error(), Err: err}
}

// classifyStatus maps a non-2xx status to its kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindClient
	}
}
