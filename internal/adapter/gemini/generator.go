package gemini

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
)

// Options configures a Generator.
type Options struct {
	// Model is used when a call does not name one.
	Model string
	// APIKey is used when a call does not carry its own.
	APIKey string
	// MediaAckText replaces DefaultMediaAckText when set.
	MediaAckText string
	// AllowedStores are glob patterns every requested store must match.
	// Empty admits any store.
	AllowedStores []string
}

// Generator implements adapter.Generator against the generateContent endpoint.
type Generator struct {
	client     *Client
	opts       Options
	translator Translator
}

var _ adapter.Generator = (*Generator)(nil)

func NewGenerator(client *Client, opts Options) *Generator {
	return &Generator{
		client:     client,
		opts:       opts,
		translator: Translator{MediaAckText: opts.MediaAckText},
	}
}

// BuildRequest translates the call's messages and binds the retrieval tool.
// It performs no I/O.
func (g *Generator) BuildRequest(call *adapter.Call) (*GenerateContentRequest, error) {
	sys, contents, err := g.translator.Translate(call.Messages)
	if err != nil {
		return nil, err
	}
	if contents == nil {
		contents = []Content{}
	}
	req := &GenerateContentRequest{
		SystemInstruction: sys,
		Contents:          contents,
	}
	cfg := &GenerationConfig{
		MaxOutputTokens: call.MaxOutputTokens,
		Temperature:     call.Temperature,
		TopP:            call.TopP,
		TopK:            call.TopK,
		StopSequences:   call.StopSequences,
	}
	if !cfg.empty() {
		req.GenerationConfig = cfg
	}
	BindRetrieval(req, call.StoreNames, call.MetadataFilter)
	return req, nil
}

func (g *Generator) Generate(ctx context.Context, call *adapter.Call) (*adapter.Result, error) {
	apiKey := call.APIKey
	if apiKey == "" {
		apiKey = g.opts.APIKey
	}
	if apiKey == "" {
		return nil, &apierrors.ConfigurationError{
			Message: "no API key configured for the generation endpoint",
			Err:     apierrors.ErrMissingAPIKey,
		}
	}
	model := call.Model
	if model == "" {
		model = g.opts.Model
	}
	if model == "" {
		return nil, &apierrors.ConfigurationError{Message: "no model configured"}
	}
	if err := CheckStores(call.StoreNames, g.opts.AllowedStores); err != nil {
		return nil, err
	}

	req, err := g.BuildRequest(call)
	if err != nil {
		return nil, err
	}

	ex, err := g.client.GenerateContent(ctx, model, apiKey, call.Headers, req)
	if err != nil {
		return nil, err
	}

	resp, err := ParseResponse(ex.Raw)
	if err != nil {
		slog.Warn("generation response rejected", "model", model, "digest", ex.Digest, "error", err)
		return nil, err
	}

	res := Normalize(resp)
	res.Request = adapter.RequestInfo{Body: json.RawMessage(ex.RequestBody), Digest: ex.Digest}
	res.RawResponse = json.RawMessage(ex.Raw)
	return res, nil
}

// Stream runs Generate and replays the result as lifecycle events.
func (g *Generator) Stream(ctx context.Context, call *adapter.Call) (iter.Seq[adapter.StreamEvent], error) {
	res, err := g.Generate(ctx, call)
	if err != nil {
		return nil, err
	}
	return adapter.Events(res), nil
}
