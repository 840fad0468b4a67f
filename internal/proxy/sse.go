package proxy

import (
	"net/http"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	"github.com/sowankispassah/khasigpt-sub005/internal/httputil"
)

// eventWriter frames stream events as SSE. Flushing is a no-op when the
// underlying writer does not implement http.Flusher.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	sent    int
}

func newEventWriter(w http.ResponseWriter) *eventWriter {
	ew := &eventWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		ew.flusher = f
	}
	return ew
}

func (ew *eventWriter) start() {
	httputil.SetSSEHeaders(ew.w)
	ew.w.WriteHeader(http.StatusOK)
	ew.flush()
}

func (ew *eventWriter) send(ev adapter.StreamEvent) error {
	if err := httputil.WriteEvent(ew.w, string(ev.Type), ev); err != nil {
		return err
	}
	ew.sent++
	ew.flush()
	return nil
}

func (ew *eventWriter) flush() {
	if ew.flusher != nil {
		ew.flusher.Flush()
	}
}
