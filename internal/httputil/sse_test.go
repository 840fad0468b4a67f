package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEvent(&buf, "text-delta", map[string]string{"id": "0", "delta": "a\nb"}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	want := "event: text-delta\ndata: {\"delta\":\"a\\nb\",\"id\":\"0\"}\n\n"
	if got := buf.String(); got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestWriteEvent_Unencodable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEvent(&buf, "x", make(chan int)); err == nil {
		t.Errorf("expected an encode error")
	}
	if buf.Len() != 0 {
		t.Errorf("nothing may be written on error, got %q", buf.String())
	}
}

func TestSetSSEHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSSEHeaders(rec)
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("X-Accel-Buffering"); got != "no" {
		t.Errorf("X-Accel-Buffering = %q", got)
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		want   string
	}{
		{"none", http.Header{}, ""},
		{"goog header", http.Header{"X-Goog-Api-Key": {" k1 "}}, "k1"},
		{"bearer", http.Header{"Authorization": {"Bearer k2"}}, "k2"},
		{"goog wins", http.Header{"X-Goog-Api-Key": {"k1"}, "Authorization": {"Bearer k2"}}, "k1"},
		{"basic ignored", http.Header{"Authorization": {"Basic abc"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.Header = tt.header
			if got := ExtractAPIKey(r); got != tt.want {
				t.Errorf("ExtractAPIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestForwardedHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Add("X-Trace-Id", "t1")
	r.Header.Add("X-Tenant", "a")
	r.Header.Add("X-Tenant", "b")
	r.Header.Set("Cookie", "secret")

	got := ForwardedHeaders(r, []string{"x-trace-id", "X-TENANT", "X-Missing", " "})
	want := http.Header{"X-Trace-Id": {"t1"}, "X-Tenant": {"a", "b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ForwardedHeaders (-want +got):\n%s", diff)
	}
	if ForwardedHeaders(r, nil) != nil {
		t.Errorf("no names means no headers")
	}
}
