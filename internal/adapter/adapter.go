package adapter

import (
	"context"
	"iter"
	"net/http"
)

// Generator produces answers for a normalized conversation.
type Generator interface {
	// Generate performs one generation call and returns the normalized result.
	Generate(ctx context.Context, call *Call) (*Result, error)

	// Stream performs one generation call and replays the result as an ordered
	// sequence of lifecycle events. Any error is returned before the first event.
	Stream(ctx context.Context, call *Call) (iter.Seq[StreamEvent], error)
}

// Call is everything a single generation request needs.
type Call struct {
	// Model overrides the generator's default model when set.
	Model    string
	Messages []Message

	MaxOutputTokens *int
	Temperature     *float64
	TopP            *float64
	TopK            *int
	StopSequences   []string

	// StoreNames are the retrieval stores the endpoint may consult.
	StoreNames []string
	// MetadataFilter restricts retrieval; ignored when blank.
	MetadataFilter string

	// Headers are forwarded to the endpoint as-is.
	Headers http.Header
	// APIKey overrides the generator's key for this call only.
	APIKey string
}
