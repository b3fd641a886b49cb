package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrNotFound             = errors.New("resource not found")
	ErrConfiguration        = errors.New("configuration error")
	ErrValidation           = errors.New("validation error")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
	ErrUpstreamUnauthorized = errors.New("upstream unauthorized")
	ErrChainCall            = errors.New("chain call failed")
	ErrTransientNodeGap     = errors.New("missing historical state on node")
	ErrContractRevert       = errors.New("contract reverted")
	ErrIdempotencyConflict  = errors.New("idempotency key reused")
)

// Error codes returned to API clients.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeBadRequest           = "BAD_REQUEST"
	CodeConfiguration        = "CONFIGURATION_ERROR"
	CodeValidation           = "VALIDATION_ERROR"
	CodeUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamUnauthorized = "UPSTREAM_UNAUTHORIZED"
	CodeChainCall            = "CHAIN_CALL_FAILED"
	CodeTransientNodeGap     = "TRANSIENT_NODE_GAP"
	CodeContractRevert       = "CONTRACT_REVERT"
	CodeConflict             = "CONFLICT"
	CodeInternalError        = "INTERNAL_ERROR"
)

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
	Err     error  `json:"-"`

	// UpstreamStatus is the status code an HTTP dependency answered with.
	UpstreamStatus int `json:"upstreamStatus,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithHint attaches a remediation hint for the caller.
func (e *AppError) WithHint(hint string) *AppError {
	e.Hint = hint
	return e
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// As returns the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, message, ErrValidation)
}

func Validation(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeValidation, message, ErrValidation)
}

func Configuration(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeConfiguration, message, ErrConfiguration)
}

// MissingConfiguration is a configuration problem on the server side.
func MissingConfiguration(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeConfiguration, message, ErrConfiguration)
}

// Upstream reports a non-2xx or transport failure from an HTTP dependency.
// 401 and 403 map to ErrUpstreamUnauthorized and keep the upstream status.
func Upstream(status int, message string, cause error) *AppError {
	var appErr *AppError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		appErr = NewAppError(status, CodeUpstreamUnauthorized, message, wrap(ErrUpstreamUnauthorized, cause))
	case status < 100 || status > 599:
		return NewAppError(http.StatusBadGateway, CodeUpstreamUnavailable, message, wrap(ErrUpstreamUnavailable, cause))
	default:
		appErr = NewAppError(status, CodeUpstreamUnavailable, message, wrap(ErrUpstreamUnavailable, cause))
	}
	appErr.UpstreamStatus = status
	return appErr
}

func ChainCall(message string, cause error) *AppError {
	return NewAppError(http.StatusBadGateway, CodeChainCall, message, wrap(ErrChainCall, cause))
}

func TransientNodeGap(cause error) *AppError {
	return NewAppError(http.StatusBadGateway, CodeTransientNodeGap, "node is missing historical state", wrap(ErrTransientNodeGap, cause))
}

// Revert carries a decoded revert reason in Message.
func Revert(reason string, cause error) *AppError {
	return NewAppError(http.StatusUnprocessableEntity, CodeContractRevert, reason, wrap(ErrContractRevert, cause))
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeConflict, message, ErrIdempotencyConflict)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}

// wrap keeps both the sentinel and the original cause reachable by errors.Is.
func wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return &chained{sentinel: sentinel, cause: cause}
}

type chained struct {
	sentinel error
	cause    error
}

func (c *chained) Error() string { return c.cause.Error() }

func (c *chained) Unwrap() []error { return []error{c.sentinel, c.cause} }
