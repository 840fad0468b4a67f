package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrStoreNotAllowed = errors.New("file search store not allowed")
	ErrMalformedBody   = errors.New("malformed request body")
	ErrCanceled        = errors.New("generation canceled")
)

// StatusClientClosedRequest is the non-standard status logged when the caller
// goes away before the upstream call completes.
const StatusClientClosedRequest = 499

// ConfigurationError is raised before any network call is attempted.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + strings.TrimSpace(e.Message)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InvalidPromptError reports a message list that cannot be expressed in the
// wire format. It never reaches the network.
type InvalidPromptError struct {
	Message string
}

func (e *InvalidPromptError) Error() string {
	return "invalid prompt: " + strings.TrimSpace(e.Message)
}

// ProtocolError is a non-2xx response from the generation endpoint.
type ProtocolError struct {
	StatusCode int
	// Body is the response body, or the status text when the body could not be read.
	Body string
}

func (e *ProtocolError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("generation endpoint error (status=%d): %s", e.StatusCode, msg)
}

// Retryable is always false: retry policy belongs to the caller.
func (e *ProtocolError) Retryable() bool { return false }

// InvalidResponseError is a 2xx response whose body could not be decoded or
// failed schema validation.
type InvalidResponseError struct {
	Message string
	Cause   error
}

func (e *InvalidResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid response: %s: %v", e.Message, e.Cause)
	}
	return "invalid response: " + e.Message
}

func (e *InvalidResponseError) Unwrap() error { return e.Cause }

// Canceled wraps a context error so that both ErrCanceled and the original
// context error match with errors.Is.
func Canceled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

// IsCanceled reports whether err is a cancellation rather than a failure.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// HTTPStatus maps an adapter error onto the status code the proxy answers with.
func HTTPStatus(err error) int {
	var (
		cfgErr   *ConfigurationError
		promptEr *InvalidPromptError
		protoErr *ProtocolError
		respErr  *InvalidResponseError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingAPIKey):
		return http.StatusUnauthorized
	case errors.Is(err, ErrStoreNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError
	case errors.As(err, &promptEr):
		return http.StatusBadRequest
	case errors.As(err, &protoErr), errors.As(err, &respErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case IsCanceled(err), errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	default:
		return http.StatusBadGateway
	}
}

type jsonError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	text := http.StatusText(statusCode)
	if statusCode == StatusClientClosedRequest {
		text = "Client Closed Request"
	}
	body := jsonError{
		Error:   text,
		Message: message,
	}
	_ = json.NewEncoder(w).Encode(body)
}
