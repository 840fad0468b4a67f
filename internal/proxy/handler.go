package proxy

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
	"github.com/sowankispassah/khasigpt-sub005/internal/httputil"
)

// Defaults fill in what a request body leaves out.
type Defaults struct {
	Stores         []string
	MetadataFilter string
	// ForwardHeaders names the caller headers passed through upstream.
	ForwardHeaders []string
}

// Handler serves the single-shot and streaming generation endpoints.
type Handler struct {
	gen      adapter.Generator
	defaults Defaults
}

// NewHandler constructs a Handler.
func NewHandler(gen adapter.Generator, defaults Defaults) *Handler {
	return &Handler{gen: gen, defaults: defaults}
}

func (h *Handler) call(r *http.Request) (*adapter.Call, error) {
	req, call, err := decodeGenerateRequest(r.Body)
	if err != nil {
		return nil, err
	}
	if req.StoreNames == nil {
		call.StoreNames = h.defaults.Stores
	}
	if req.MetadataFilter == nil {
		call.MetadataFilter = h.defaults.MetadataFilter
	}
	call.APIKey = httputil.ExtractAPIKey(r)
	call.Headers = httputil.ForwardedHeaders(r, h.defaults.ForwardHeaders)
	return call, nil
}

// Generate serves POST /v1/generate.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	call, err := h.call(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.gen.Generate(r.Context(), call)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Warn("write response", "request_id", requestIDFrom(r.Context()), "error", err)
	}
}

// Stream serves POST /v1/stream as Server-Sent Events, one frame per event.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	call, err := h.call(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := h.gen.Stream(r.Context(), call)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ew := newEventWriter(w)
	ew.start()
	for ev := range events {
		if r.Context().Err() != nil {
			slog.Debug("stream abandoned by client", "request_id", requestIDFrom(r.Context()), "sent", ew.sent)
			return
		}
		if err := ew.send(ev); err != nil {
			slog.Debug("stream write stopped", "request_id", requestIDFrom(r.Context()), "sent", ew.sent, "error", err)
			return
		}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("generation failed", "request_id", requestIDFrom(r.Context()), "status", status, "error", err)
	}
	apierrors.WriteJSONError(w, status, err.Error())
}
