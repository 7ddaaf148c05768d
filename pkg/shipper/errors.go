package shipper

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind tags a ShipperError with its place in the error taxonomy.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindRateLimit      ErrorKind = "rate_limit"
	KindValidation     ErrorKind = "validation"
	KindNetwork        ErrorKind = "network"
	KindCarrierAPI     ErrorKind = "carrier_api"
	KindNotImplemented ErrorKind = "not_implemented"
)

// Code returns the stable error code used when none is set explicitly.
func (k ErrorKind) Code() string {
	switch k {
	case KindAuthentication:
		return "AUTHENTICATION_ERROR"
	case KindRateLimit:
		return "RATE_LIMIT"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNetwork:
		return "NETWORK_ERROR"
	case KindCarrierAPI:
		return "CARRIER_API_ERROR"
	case KindNotImplemented:
		return "NOT_IMPLEMENTED"
	default:
		return "UNKNOWN_ERROR"
	}
}

// ShipperError represents an error from a shipping carrier.
//
// Every failure surfaced by a carrier is a ShipperError. All kinds share the
// same structural fields; the kind-specific payload (RetryAfterSeconds,
// IsTimeout, FieldErrors, Operation, ResponseBody) is only set for the kinds
// that carry it.
type ShipperError struct {
	Kind       ErrorKind
	Carrier    string
	Code       string
	Message    string
	StatusCode int // 0 when no HTTP response was received
	Timestamp  time.Time
	Context    map[string]any
	Cause      error

	RetryAfterSeconds *int              // rate_limit
	IsTimeout         bool              // network
	FieldErrors       map[string]string // validation
	Operation         string            // not_implemented
	ResponseBody      string            // carrier_api, raw payload for diagnostics
}

func newError(kind ErrorKind, carrier, message string) *ShipperError {
	return &ShipperError{
		Kind:      kind,
		Carrier:   carrier,
		Code:      kind.Code(),
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// NewShipperError creates a new ShipperError with an explicit code.
// The error is classified as a carrier API error.
func NewShipperError(carrier, code, message string) *ShipperError {
	e := newError(KindCarrierAPI, carrier, message)
	e.Code = code
	return e
}

// NewAuthenticationError reports that the carrier rejected our credentials
// or that a token could not be obtained.
func NewAuthenticationError(carrier, message string) *ShipperError {
	return newError(KindAuthentication, carrier, message)
}

// NewRateLimitError reports that the carrier throttled the request.
// retryAfter is nil when the carrier gave no usable hint.
func NewRateLimitError(carrier, message string, retryAfter *int) *ShipperError {
	e := newError(KindRateLimit, carrier, message)
	e.RetryAfterSeconds = retryAfter
	e.StatusCode = 429
	return e
}

// NewValidationError reports structurally invalid input.
func NewValidationError(carrier string, fieldErrors map[string]string) *ShipperError {
	e := newError(KindValidation, carrier, fmt.Sprintf("%d invalid field(s)", len(fieldErrors)))
	e.FieldErrors = fieldErrors
	return e
}

// NewNetworkError reports that no usable response was received.
func NewNetworkError(carrier, message string, isTimeout bool) *ShipperError {
	e := newError(KindNetwork, carrier, message)
	e.IsTimeout = isTimeout
	return e
}

// NewCarrierAPIError reports a failure answered by the carrier itself.
func NewCarrierAPIError(carrier, message string, statusCode int, responseBody string) *ShipperError {
	e := newError(KindCarrierAPI, carrier, message)
	e.StatusCode = statusCode
	e.ResponseBody = responseBody
	return e
}

// NewNotImplementedError reports a capability the carrier integration lacks.
func NewNotImplementedError(carrier, operation string) *ShipperError {
	e := newError(KindNotImplemented, carrier, operation+" is not implemented")
	e.Operation = operation
	return e
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ShipperError. Two ShipperErrors match on code;
// the taxonomy sentinels match every error of their kind.
func (e *ShipperError) Is(target error) bool {
	if t, ok := target.(*ShipperError); ok {
		return e.Code == t.Code
	}
	if s, ok := kindSentinels[e.Kind]; ok && target == s {
		return true
	}
	return e.Kind == KindCarrierAPI && e.StatusCode >= 500 && e.StatusCode < 600 && target == ErrServiceUnavailable
}

// Retryable reports whether retrying the same call may succeed.
func (e *ShipperError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimit:
		return true
	case KindCarrierAPI:
		return e.StatusCode >= 500 && e.StatusCode < 600
	default:
		return false
	}
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	return e
}

// WithCode overrides the taxonomy's default code.
func (e *ShipperError) WithCode(code string) *ShipperError {
	e.Code = code
	return e
}

// WithContext attaches a diagnostic key/value pair.
func (e *ShipperError) WithContext(key string, value any) *ShipperError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Sentinel errors for common shipping scenarios.
var (
	// ErrServiceUnavailable indicates the carrier service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrAuthenticationFailed indicates carrier authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimitExceeded indicates the carrier rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidRequest indicates the request failed structural validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNetwork indicates no usable response was received from the carrier.
	ErrNetwork = errors.New("network failure")

	// ErrCarrierAPI indicates the carrier answered with a failure.
	ErrCarrierAPI = errors.New("carrier api error")

	// ErrNotImplemented indicates the carrier does not support the operation.
	ErrNotImplemented = errors.New("not implemented")

	// ErrCarrierNotFound indicates the requested carrier is not registered.
	ErrCarrierNotFound = errors.New("carrier not found")
)

var kindSentinels = map[ErrorKind]error{
	KindAuthentication: ErrAuthenticationFailed,
	KindRateLimit:      ErrRateLimitExceeded,
	KindValidation:     ErrInvalidRequest,
	KindNetwork:        ErrNetwork,
	KindCarrierAPI:     ErrCarrierAPI,
	KindNotImplemented: ErrNotImplemented,
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Retryable()
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}

// KindOf returns the taxonomy kind of err, or "" if err is not a ShipperError.
func KindOf(err error) ErrorKind {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Kind
	}
	return ""
}

// IsTimeout reports whether any ShipperError in err's chain is a timed-out
// network failure. Token refresh timeouts surface as authentication errors
// whose cause is the timed-out network error.
func IsTimeout(err error) bool {
	for err != nil {
		if se, ok := err.(*ShipperError); ok && se.Kind == KindNetwork && se.IsTimeout {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
