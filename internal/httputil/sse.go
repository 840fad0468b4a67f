package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SetSSEHeaders sets the standard headers for a Server-Sent Events response.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteEvent writes one SSE frame: "event: <name>" followed by the JSON
// encoding of v on a single data line.
func WriteEvent(w io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// ExtractAPIKey reads a per-request key override using the following priority:
//
//  1. X-Goog-Api-Key header
//  2. Authorization: Bearer (fallback)
//
// Returns "" when the caller sent none; the server-wide key then applies.
func ExtractAPIKey(r *http.Request) string {
	apiKey := strings.TrimSpace(r.Header.Get("X-Goog-Api-Key"))
	if apiKey == "" {
		auth := r.Header.Get("Authorization")
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			apiKey = strings.TrimSpace(rest)
		}
	}
	return apiKey
}

// ForwardedHeaders copies the named headers from r. Names are matched
// case-insensitively; headers the caller did not send are skipped.
func ForwardedHeaders(r *http.Request, names []string) http.Header {
	out := http.Header{}
	for _, name := range names {
		key := http.CanonicalHeaderKey(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if vals := r.Header.Values(key); len(vals) > 0 {
			out[key] = append([]string(nil), vals...)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
