package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCanceled_MatchesSentinelAndCause(t *testing.T) {
	err := Canceled(context.Canceled)
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("expected errors.Is(err, ErrCanceled)")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected errors.Is(err, context.Canceled)")
	}
	if !IsCanceled(fmt.Errorf("outer: %w", err)) {
		t.Errorf("expected IsCanceled through wrapping")
	}
}

func TestProtocolError_MessageFallsBackToStatusText(t *testing.T) {
	err := &ProtocolError{StatusCode: 429}
	if !strings.Contains(err.Error(), "Too Many Requests") {
		t.Errorf("got %q", err.Error())
	}
	if err.Retryable() {
		t.Errorf("protocol errors are never retryable at this layer")
	}

	err = &ProtocolError{StatusCode: 429, Body: `{"error":"quota"}`}
	if !strings.Contains(err.Error(), "status=429") || !strings.Contains(err.Error(), "quota") {
		t.Errorf("got %q", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"missing key", &ConfigurationError{Message: "no key", Err: ErrMissingAPIKey}, http.StatusUnauthorized},
		{"store not allowed", &ConfigurationError{Message: "nope", Err: ErrStoreNotAllowed}, http.StatusForbidden},
		{"other config", &ConfigurationError{Message: "bad"}, http.StatusInternalServerError},
		{"malformed body", fmt.Errorf("%w: eof", ErrMalformedBody), http.StatusBadRequest},
		{"invalid prompt", &InvalidPromptError{Message: "system late"}, http.StatusBadRequest},
		{"protocol", &ProtocolError{StatusCode: 500}, http.StatusBadGateway},
		{"invalid response", &InvalidResponseError{Message: "schema"}, http.StatusBadGateway},
		{"deadline", Canceled(context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"canceled", Canceled(context.Canceled), StatusClientClosedRequest},
		{"transport", errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusBadRequest, "bad things")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "Bad Request" || body["message"] != "bad things" {
		t.Errorf("unexpected body %v", body)
	}
}
