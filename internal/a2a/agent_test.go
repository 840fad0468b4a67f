package a2a

import (
	"context"
	"encoding/json"
	"iter"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/genai"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	"github.com/sowankispassah/khasigpt-sub005/internal/adapter/gemini"
)

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, *adapter.Call) (*adapter.Result, error) {
	return &adapter.Result{}, nil
}

func (stubGenerator) Stream(ctx context.Context, call *adapter.Call) (iter.Seq[adapter.StreamEvent], error) {
	return adapter.Events(&adapter.Result{}), nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(AgentConfig{Generator: stubGenerator{}}); err == nil {
		t.Errorf("expected an error for an empty name")
	}
	if _, err := New(AgentConfig{Name: "a"}); err == nil {
		t.Errorf("expected an error for a nil generator")
	}
	ag, err := New(AgentConfig{Name: "khasigpt", Description: "d", Generator: stubGenerator{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if ag.Name() != "khasigpt" {
		t.Errorf("Name() = %q", ag.Name())
	}
}

func TestAPIKeyContext(t *testing.T) {
	if _, ok := apiKeyFromContext(context.Background()); ok {
		t.Errorf("no key expected")
	}
	if _, ok := apiKeyFromContext(ContextWithAPIKey(context.Background(), "")); ok {
		t.Errorf("an empty key does not count")
	}
	if k, ok := apiKeyFromContext(ContextWithAPIKey(context.Background(), "k")); !ok || k != "k" {
		t.Errorf("got %q %v", k, ok)
	}
}

func TestMessagesFromContent(t *testing.T) {
	if got := messagesFromContent(nil); got != nil {
		t.Errorf("nil content = %+v", got)
	}
	if got := messagesFromContent(&genai.Content{Parts: []*genai.Part{{Text: "  "}, nil}}); got != nil {
		t.Errorf("blank content = %+v", got)
	}

	got := messagesFromContent(&genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: "describe"},
			{Text: "hidden", Thought: true},
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("png")}},
			{FileData: &genai.FileData{MIMEType: "application/pdf", FileURI: "gs://b/f.pdf"}},
		},
	})
	want := []adapter.Message{{Role: adapter.RoleUser, Content: []adapter.Part{
		adapter.TextPart{Text: "describe"},
		adapter.FilePart{MediaType: "image/png", Data: []byte("png")},
		adapter.FilePart{MediaType: "application/pdf", URI: "gs://b/f.pdf"},
	}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
}

func TestFinishReasonRoundTrip(t *testing.T) {
	for _, r := range []adapter.FinishReason{
		adapter.FinishStop, adapter.FinishLength, adapter.FinishContentFilter,
		adapter.FinishError, adapter.FinishOther,
	} {
		if back := gemini.MapFinishReason(finishReasonToGenai(r)); back != r {
			t.Errorf("%q -> %q -> %q", r, finishReasonToGenai(r), back)
		}
	}
	if got := finishReasonToGenai(adapter.FinishUnknown); got != genai.FinishReasonUnspecified {
		t.Errorf("unknown -> %q", got)
	}
}

func TestUsageToGenai(t *testing.T) {
	if usageToGenai(nil) != nil || usageToGenai(&adapter.Usage{}) != nil {
		t.Errorf("empty usage should map to nil")
	}
	in, out, big := 3, 4, math.MaxInt32+10
	got := usageToGenai(&adapter.Usage{InputTokens: &in, OutputTokens: &out, TotalTokens: &big})
	want := &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     3,
		CandidatesTokenCount: 4,
		TotalTokenCount:      math.MaxInt32,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("usage (-want +got):\n%s", diff)
	}
}

func TestGroundingFrom(t *testing.T) {
	raw := json.RawMessage(`{"webSearchQueries":["q"],"groundingChunks":[{"retrievedContext":{"uri":"u","title":"t"}}]}`)
	md := adapter.ProviderMetadata{gemini.ProviderKey: {"groundingMetadata": raw}}
	got := groundingFrom(md)
	if got == nil {
		t.Fatalf("groundingFrom() = nil")
	}
	if diff := cmp.Diff([]string{"q"}, got.WebSearchQueries); diff != "" {
		t.Errorf("web search queries (-want +got):\n%s", diff)
	}
	if len(got.GroundingChunks) != 1 || got.GroundingChunks[0].RetrievedContext == nil || got.GroundingChunks[0].RetrievedContext.URI != "u" {
		t.Errorf("grounding chunks = %+v", got.GroundingChunks)
	}
	bad := adapter.ProviderMetadata{gemini.ProviderKey: {"groundingMetadata": json.RawMessage(`[1]`)}}
	if got := groundingFrom(bad); got != nil {
		t.Errorf("groundingFrom(undecodable) = %v", got)
	}
	if got := groundingFrom(nil); got != nil {
		t.Errorf("groundingFrom(nil) = %v", got)
	}
}
