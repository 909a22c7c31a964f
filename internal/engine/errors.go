// Package engine provides agent orchestration functionality.
// This file contains error classification and handling.

package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind separates failures that reached the provider from those that did not.
type ErrorKind string

const (
	KindTransport    ErrorKind = "transport"     // request never produced an HTTP response
	KindProviderHTTP ErrorKind = "provider_http" // provider answered with status >= 400
)

// EngineError wraps provider failures with classification metadata. Nothing
// is retried; the classification feeds logs and the error event text.
type EngineError struct {
	Err         error
	Kind        ErrorKind
	HTTPStatus  int  // HTTP status code if applicable
	IsRateLimit bool // True if this is a rate limit error
	IsTimeout   bool // True if this is a timeout error
	IsAuth      bool // True if this is an authentication error
	IsQuota     bool // True if this is a quota exhaustion error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("engine error: %s", e.Kind)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// WrapLLMError wraps a provider error with classification metadata. A zero
// httpStatus marks a transport failure.
func WrapLLMError(err error, httpStatus int) error {
	if err == nil {
		return nil
	}

	kind := KindProviderHTTP
	if httpStatus == 0 {
		kind = KindTransport
	}

	msg := strings.ToLower(err.Error())
	return &EngineError{
		Err:         err,
		Kind:        kind,
		HTTPStatus:  httpStatus,
		IsRateLimit: httpStatus == http.StatusTooManyRequests || strings.Contains(msg, "rate limit"),
		IsTimeout: httpStatus == http.StatusGatewayTimeout || httpStatus == http.StatusRequestTimeout ||
			strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"),
		IsAuth:  httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden,
		IsQuota: httpStatus == http.StatusPaymentRequired,
	}
}

// AsEngineError extracts an *EngineError from err's chain.
func AsEngineError(err error) (*EngineError, bool) {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

// ToolValidationError indicates that tool arguments failed JSON schema validation.
type ToolValidationError struct {
	ToolName string
	Errors   []string
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("tool %s validation failed: %s", e.ToolName, strings.Join(e.Errors, "; "))
}
