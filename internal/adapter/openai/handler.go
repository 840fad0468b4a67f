package openai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
	"github.com/sowankispassah/khasigpt-sub005/internal/httputil"
)

// Options fill in what an OpenAI body cannot express.
type Options struct {
	// Model is echoed back when the call names none and the endpoint
	// reports no model version.
	Model          string
	Stores         []string
	MetadataFilter string
	ForwardHeaders []string
}

// Handler implements the OpenAI chat completions endpoint.
type Handler struct {
	gen  adapter.Generator
	opts Options
}

// NewHandler constructs a Handler.
func NewHandler(gen adapter.Generator, opts Options) *Handler {
	return &Handler{gen: gen, opts: opts}
}

// ServeHTTP handles POST /v1/chat/completions.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call, streaming, err := ToCall(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	call.StoreNames = h.opts.Stores
	call.MetadataFilter = h.opts.MetadataFilter
	call.APIKey = httputil.ExtractAPIKey(r)
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
		slog.Warn("write chat completion", "error", err)
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

	c := &chunker{id: "chatcmpl-" + ulid.Make().String(), model: model, created: time.Now().Unix()}
	for ev := range events {
		if r.Context().Err() != nil {
			return
		}
		chunk, ok := c.next(ev)
		if !ok {
			continue
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			slog.Warn("marshal chunk", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	_, _ = fmt.Fprintf(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apierrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("chat completion failed", "status", status, "error", err)
	}
	apierrors.WriteJSONError(w, status, err.Error())
}
