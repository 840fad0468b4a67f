package anthropic

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
	"github.com/sowankispassah/khasigpt-sub005/internal/httputil"
)

// Options fill in what a Messages API body cannot express.
type Options struct {
	Model          string
	Stores         []string
	MetadataFilter string
	ForwardHeaders []string
}

// Handler implements the Anthropic Messages endpoint.
type Handler struct {
	gen  adapter.Generator
	opts Options
}

func NewHandler(gen adapter.Generator, opts Options) *Handler {
	return &Handler{gen: gen, opts: opts}
}

// apiKey also accepts the x-api-key header Anthropic clients send.
func apiKey(r *http.Request) string {
	if key := httputil.ExtractAPIKey(r); key != "" {
		return key
	}
	return strings.TrimSpace(r.Header.Get("X-Api-Key"))
}

// ServeHTTP handles POST /v1/messages.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call, streaming, err := ToCall(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	call.StoreNames = h.opts.Stores
	call.MetadataFilter = h.opts.MetadataFilter
	call.APIKey = apiKey(r)
	call.Headers = httputil.ForwardedHeaders(r, h.opts.ForwardHeaders)

	model := call.Model
	if model == "" {
		model = h.opts.Model
	}

	if streaming {
		h.stream(w, r, call, model)
		return
	}

	res, err := h.gen.Generate(r.Context(), call)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(FromResult(res, model)); err != nil {
		slog.Warn("write messages response", "error", err)
	}
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, call *adapter.Call, model string) {
	events, err := h.gen.Stream(r.Context(), call)
	if err != nil {
		writeError(w, err)
		return
	}

	httputil.SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	t := &translator{id: "msg_" + ulid.Make().String(), model: model}
	for ev := range events {
		if r.Context().Err() != nil {
			return
		}
		for _, out := range t.events(ev) {
			if err := httputil.WriteEvent(w, out.Type, out); err != nil {
				return
			}
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apierrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("messages request failed", "status", status, "error", err)
	}
	apierrors.WriteJSONError(w, status, err.Error())
}
