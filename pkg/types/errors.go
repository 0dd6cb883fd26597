package types

import (
	"errors"
	"fmt"
)

// ApiErrorType enumerates the error kinds surfaced on the API. The numeric
// values are fixed on the wire; 0 is reserved for "no error".
type ApiErrorType int

const (
	ApiErrorNone          ApiErrorType = 0
	ApiErrorParse         ApiErrorType = 1
	ApiErrorConfiguration ApiErrorType = 2
	ApiErrorExternal      ApiErrorType = 3
	ApiErrorInternal      ApiErrorType = 4
)

func (t ApiErrorType) String() string {
	switch t {
	case ApiErrorNone:
		return "none"
	case ApiErrorParse:
		return "parse"
	case ApiErrorConfiguration:
		return "configuration"
	case ApiErrorExternal:
		return "external"
	case ApiErrorInternal:
		return "internal"
	default:
		return fmt.Sprintf("api-error(%d)", int(t))
	}
}

// ApiError is the error shape surfaced to clients and peers.
type ApiError struct {
	Type ApiErrorType `json:"errorType"`
	Msg  string       `json:"msg"`
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Type, e.Msg)
}

// NewParseError flags malformed framing, payloads, or envelopes.
func NewParseError(msg string) *ApiError {
	return &ApiError{Type: ApiErrorParse, Msg: msg}
}

// NewConfigurationError flags missing or invalid local configuration.
func NewConfigurationError(msg string) *ApiError {
	return &ApiError{Type: ApiErrorConfiguration, Msg: msg}
}

// NewExternalError flags failures attributable to a remote peer.
func NewExternalError(msg string) *ApiError {
	return &ApiError{Type: ApiErrorExternal, Msg: msg}
}

// NewInternalError flags invariant violations inside the daemon.
func NewInternalError(msg string) *ApiError {
	return &ApiError{Type: ApiErrorInternal, Msg: msg}
}

// AsApiError maps any error to the ApiError sent back to a requester.
// Unclassified errors default to Internal.
func AsApiError(err error) *ApiError {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewInternalError(err.Error())
}
