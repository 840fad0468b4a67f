package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockGemini is an httptest.Server that simulates the generateContent endpoint.
type MockGemini struct {
	Server *httptest.Server

	mu sync.Mutex
	// Status and Body are written for every request. Body defaults to a
	// single-candidate text answer.
	status int
	body   string
	delay  time.Duration

	lastPath    string
	lastHeader  http.Header
	lastBody    []byte
	requestSeen int
}

// NewMockGemini creates and starts a mock endpoint answering with answer.
func NewMockGemini(answer string) *MockGemini {
	m := &MockGemini{status: http.StatusOK, body: TextResponse(answer)}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Close shuts down the mock server.
func (m *MockGemini) Close() {
	m.Server.Close()
}

// URL returns the base URL of the mock server.
func (m *MockGemini) URL() string {
	return m.Server.URL
}

// Respond replaces the canned reply.
func (m *MockGemini) Respond(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status, m.body = status, body
}

// Delay holds every reply for d, or until the client goes away.
func (m *MockGemini) Delay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Requests reports how many generateContent calls reached the server.
func (m *MockGemini) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestSeen
}

// LastRequest returns the path, headers and body of the most recent call.
func (m *MockGemini) LastRequest() (string, http.Header, []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPath, m.lastHeader.Clone(), append([]byte(nil), m.lastBody...)
}

// LastRequestJSON decodes the most recent request body.
func (m *MockGemini) LastRequestJSON() map[string]any {
	_, _, body := m.LastRequest()
	var out map[string]any
	_ = json.Unmarshal(body, &out)
	return out
}

func (m *MockGemini) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":generateContent") {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.lastPath = r.URL.Path
	m.lastHeader = r.Header.Clone()
	m.lastBody = body
	m.requestSeen++
	status, reply, delay := m.status, m.body, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

// TextResponse builds a minimal successful response body with one text part.
func TextResponse(answer string) string {
	resp := map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": answer}},
			},
			"finishReason": "STOP",
			"index":        0,
		}},
		"usageMetadata": map[string]any{
			"promptTokenCount":     4,
			"candidatesTokenCount": 2,
			"totalTokenCount":      6,
		},
		"modelVersion": "gemini-2.5-flash",
		"responseId":   "resp-1",
	}
	b, _ := json.Marshal(resp)
	return string(b)
}
