package kore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TransportError is returned by raw operations for any non-2xx response.
type TransportError struct {
	StatusCode int
	Body       []byte
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := http.StatusText(e.StatusCode)
	if apiErr := e.APIError(); apiErr != nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	if e.Err != nil {
		return fmt.Sprintf("request failed with status %d (%s): %v", e.StatusCode, msg, e.Err)
	}

	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, msg)
}

// Unwrap returns the underlying error, if any.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError decodes the body as a Kore error document, or returns nil.
func (e *TransportError) APIError() *APIError {
	if len(e.Body) == 0 {
		return nil
	}

	var apiErr APIError

	err := json.Unmarshal(e.Body, &apiErr)
	if err != nil {
		return nil
	}

	return &apiErr
}

// APIError is the error document returned by the Kore API.
type APIError struct {
	Code    int    `json:"code"    yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// FieldError is a validation failure on a single field.
type FieldError struct {
	Field   string `json:"field"             yaml:"field"`
	ErrCode string `json:"errCode,omitempty" yaml:"errCode,omitempty"`
	Message string `json:"message"           yaml:"message"`
}

// ValidationError is returned for a 400 response carrying a structured body.
// Body holds the decoded document as received.
type ValidationError struct {
	Code        int                    `json:"code,omitempty" yaml:"code,omitempty"`
	Message     string                 `json:"message"        yaml:"message"`
	FieldErrors []FieldError           `json:"fieldErrors"    yaml:"fieldErrors"`
	Body        map[string]interface{} `json:"-"              yaml:"-"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.FieldErrors) == 0 {
		return "validation failed: " + e.Message
	}

	parts := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}

	return fmt.Sprintf("validation failed: %s (%s)", e.Message, strings.Join(parts, "; "))
}

// ParseValidationError decodes a 400 body. It fails when the body is not a
// JSON object.
func ParseValidationError(body []byte) (*ValidationError, error) {
	var raw map[string]interface{}

	err := json.Unmarshal(body, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal validation body: %w", err)
	}

	if raw == nil {
		return nil, ErrNotStructuredBody
	}

	var validationErr ValidationError

	err = json.Unmarshal(body, &validationErr)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal validation error: %w", err)
	}

	validationErr.Body = raw

	return &validationErr, nil
}

// Common static errors that can be wrapped with context.
var (
	ErrConfigRequired       = errors.New("config is required")
	ErrAPIEndpointRequired  = errors.New("API endpoint is required")
	ErrProxyOriginRequired  = errors.New("proxy origin is required in proxy mode")
	ErrNotStructuredBody    = errors.New("response body is not a JSON object")
	ErrUnsupportedCacheType = errors.New("unsupported cache type")
	ErrNATSConfigRequired   = errors.New("NATS configuration required for NATS cache")
	ErrCacheDisabled        = errors.New("cache disabled")
	ErrKeyNotFound          = errors.New("key not found")
	ErrUnknownOperation     = errors.New("unknown operation")
	ErrMissingPathParam     = errors.New("missing path parameter")
	ErrInvalidCatalogue     = errors.New("invalid API catalogue")
)

// StatusCode returns the transport status carried by err, or 0.
func StatusCode(err error) int {
	transportErr := &TransportError{}
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode
	}

	return 0
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsUnauthorized checks if the error is an unauthorized error.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsForbidden checks if the error is a forbidden error.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// IsValidation checks if the error carries field-level validation errors.
func IsValidation(err error) bool {
	validationErr := &ValidationError{}

	return errors.As(err, &validationErr)
}
