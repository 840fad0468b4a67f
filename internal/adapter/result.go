package adapter

import (
	"encoding/json"
	"strings"
)

// BlockKind distinguishes ordinary answer text from reasoning text.
type BlockKind string

const (
	BlockText      BlockKind = "text"
	BlockReasoning BlockKind = "reasoning"
)

// ContentBlock is a run of same-kind output text, in source order.
type ContentBlock struct {
	Kind BlockKind `json:"type"`
	Text string    `json:"text"`
}

// FinishReason is the canonical completion reason.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content-filter"
	FinishError         FinishReason = "error"
	FinishOther         FinishReason = "other"
	FinishUnknown       FinishReason = "unknown"
)

// Usage counters are nil when the endpoint omitted them.
type Usage struct {
	InputTokens       *int `json:"inputTokens,omitempty"`
	OutputTokens      *int `json:"outputTokens,omitempty"`
	TotalTokens       *int `json:"totalTokens,omitempty"`
	ReasoningTokens   *int `json:"reasoningTokens,omitempty"`
	CachedInputTokens *int `json:"cachedInputTokens,omitempty"`
}

// ProviderMetadata is an opaque diagnostics bag keyed by provider name.
// Callers must not branch on its contents.
type ProviderMetadata map[string]map[string]any

type ResponseInfo struct {
	ID           string `json:"id"`
	ModelVersion string `json:"modelVersion,omitempty"`
}

type RequestInfo struct {
	Body   json.RawMessage `json:"body,omitempty"`
	Digest string          `json:"digest"`
}

// Result is the single-shot answer.
type Result struct {
	Content          []ContentBlock   `json:"content"`
	FinishReason     FinishReason     `json:"finishReason"`
	RawFinishReason  string           `json:"rawFinishReason,omitempty"`
	Usage            Usage            `json:"usage"`
	ProviderMetadata ProviderMetadata `json:"providerMetadata,omitempty"`
	Response         ResponseInfo     `json:"response"`
	Request          RequestInfo      `json:"request"`
	// RawResponse echoes the endpoint's response body byte for byte.
	RawResponse json.RawMessage `json:"rawResponse,omitempty"`
}

// Text concatenates all ordinary text blocks.
func (r *Result) Text() string {
	var sb strings.Builder
	for _, b := range r.Content {
		if b.Kind == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
