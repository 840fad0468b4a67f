package gemini

import (
	"bytes"
	"encoding/json"

	"github.com/oklog/ulid/v2"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
)

// ProviderKey namespaces the metadata bag on a Result.
const ProviderKey = "google"

// ParseResponse validates raw against the response schema and decodes it.
func ParseResponse(raw []byte) (*GenerateContentResponse, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &apierrors.InvalidResponseError{Message: "empty response body"}
	}
	if err := validateResponse(raw); err != nil {
		return nil, &apierrors.InvalidResponseError{Message: "response does not match schema", Cause: err}
	}
	var resp GenerateContentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &apierrors.InvalidResponseError{Message: "decode response", Cause: err}
	}
	var usage struct {
		UsageMetadata json.RawMessage `json:"usageMetadata"`
	}
	if err := json.Unmarshal(raw, &usage); err != nil {
		return nil, &apierrors.InvalidResponseError{Message: "decode usage", Cause: err}
	}
	resp.rawUsage = usage.UsageMetadata
	return &resp, nil
}

// metadataRule contributes one key to the provider metadata bag. extract
// returns the block exactly as the endpoint sent it, or nil when absent.
type metadataRule struct {
	name    string
	extract func(resp *GenerateContentResponse, cand *Candidate) json.RawMessage
}

var metadataRules = []metadataRule{
	{"promptFeedback", func(r *GenerateContentResponse, _ *Candidate) json.RawMessage {
		return r.PromptFeedback
	}},
	{"groundingMetadata", func(_ *GenerateContentResponse, c *Candidate) json.RawMessage {
		if c == nil {
			return nil
		}
		return c.GroundingMetadata
	}},
	{"urlContextMetadata", func(_ *GenerateContentResponse, c *Candidate) json.RawMessage {
		if c == nil {
			return nil
		}
		return c.URLContextMetadata
	}},
	{"safetyRatings", func(_ *GenerateContentResponse, c *Candidate) json.RawMessage {
		if c == nil {
			return nil
		}
		return c.SafetyRatings
	}},
	{"usageMetadata", func(r *GenerateContentResponse, _ *Candidate) json.RawMessage {
		return r.rawUsage
	}},
}

// present drops missing and null blocks.
func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// Normalize turns a decoded response into a Result. A response with no
// candidates yields empty content rather than an error.
func Normalize(resp *GenerateContentResponse) *adapter.Result {
	var cand *Candidate
	if len(resp.Candidates) > 0 {
		cand = &resp.Candidates[0]
	}

	res := &adapter.Result{
		Content: []adapter.ContentBlock{},
		Usage:   mapUsage(resp.UsageMetadata),
		Response: adapter.ResponseInfo{
			ID:           resp.ResponseID,
			ModelVersion: resp.ModelVersion,
		},
	}
	if res.Response.ID == "" {
		res.Response.ID = ulid.Make().String()
	}

	if cand != nil {
		res.RawFinishReason = string(cand.FinishReason)
		res.FinishReason = MapFinishReason(cand.FinishReason)
		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				if p.Text == "" {
					continue
				}
				kind := adapter.BlockText
				if p.Thought {
					kind = adapter.BlockReasoning
				}
				res.Content = append(res.Content, adapter.ContentBlock{Kind: kind, Text: p.Text})
			}
		}
	} else {
		res.FinishReason = MapFinishReason("")
	}

	bag := map[string]any{}
	for _, rule := range metadataRules {
		if v := rule.extract(resp, cand); present(v) {
			bag[rule.name] = v
		}
	}
	res.ProviderMetadata = adapter.ProviderMetadata{ProviderKey: bag}
	return res
}

func mapUsage(u *UsageMetadata) adapter.Usage {
	if u == nil {
		return adapter.Usage{}
	}
	return adapter.Usage{
		InputTokens:       u.PromptTokenCount,
		OutputTokens:      u.CandidatesTokenCount,
		TotalTokens:       u.TotalTokenCount,
		ReasoningTokens:   u.ThoughtsTokenCount,
		CachedInputTokens: u.CachedContentTokenCount,
	}
}
