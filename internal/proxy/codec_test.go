package proxy

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
)

func TestDecodeGenerateRequest(t *testing.T) {
	body := `{
	  "model": "gemini-2.5-pro",
	  "maxOutputTokens": 128,
	  "stopSequences": ["END"],
	  "storeNames": ["fileSearchStores/kb"],
	  "metadataFilter": "lang = \"en\"",
	  "messages": [
	    {"role": "system", "content": "be terse"},
	    {"role": "user", "content": [
	      {"type": "text", "text": "what is this?"},
	      {"type": "file", "mediaType": "image/png", "data": "cG5n"},
	      {"type": "file", "mediaType": "application/pdf", "url": "gs://b/doc.pdf"}
	    ]},
	    {"role": "assistant", "content": [
	      {"type": "reasoning", "text": "look it up"},
	      {"type": "tool-call", "toolCallId": "c1", "toolName": "search", "input": {"q": "png"}}
	    ]},
	    {"role": "tool", "content": [
	      {"type": "tool-result", "toolCallId": "c1", "toolName": "search", "output": {"type": "text", "value": "a picture"}},
	      {"type": "tool-result", "toolCallId": "c2", "toolName": "stats", "output": {"type": "json", "value": {"n": 1}}},
	      {"type": "tool-result", "toolCallId": "c3", "toolName": "shot", "output": {"type": "media", "data": "AQI=", "mediaType": "image/png"}},
	      {"type": "tool-result", "toolCallId": "c4", "toolName": "bad", "output": {"type": "error-text", "value": "boom"}},
	      {"type": "tool-result", "toolCallId": "c5", "toolName": "bad", "output": {"type": "error-json", "value": ["x"]}},
	      {"type": "tool-result", "toolCallId": "c6", "toolName": "rm", "output": {"type": "execution-denied", "reason": "no"}}
	    ]}
	  ]
	}`
	_, call, err := decodeGenerateRequest(strings.NewReader(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	maxTokens := 128
	want := &adapter.Call{
		Model:           "gemini-2.5-pro",
		MaxOutputTokens: &maxTokens,
		StopSequences:   []string{"END"},
		StoreNames:      []string{"fileSearchStores/kb"},
		MetadataFilter:  `lang = "en"`,
		Messages: []adapter.Message{
			adapter.Text(adapter.RoleSystem, "be terse"),
			{Role: adapter.RoleUser, Content: []adapter.Part{
				adapter.TextPart{Text: "what is this?"},
				adapter.FilePart{MediaType: "image/png", Data: []byte("png")},
				adapter.FilePart{MediaType: "application/pdf", URI: "gs://b/doc.pdf"},
			}},
			{Role: adapter.RoleAssistant, Content: []adapter.Part{
				adapter.ReasoningPart{Text: "look it up"},
				adapter.ToolCallPart{ToolCallID: "c1", ToolName: "search", Input: json.RawMessage(`{"q": "png"}`)},
			}},
			{Role: adapter.RoleTool, Content: []adapter.Part{
				adapter.ToolResultPart{ToolCallID: "c1", ToolName: "search", Output: adapter.TextOutput{Text: "a picture"}},
				adapter.ToolResultPart{ToolCallID: "c2", ToolName: "stats", Output: adapter.JSONOutput{Value: map[string]any{"n": float64(1)}}},
				adapter.ToolResultPart{ToolCallID: "c3", ToolName: "shot", Output: adapter.MediaOutput{Data: []byte{1, 2}, MediaType: "image/png"}},
				adapter.ToolResultPart{ToolCallID: "c4", ToolName: "bad", Output: adapter.ErrorTextOutput{Text: "boom"}},
				adapter.ToolResultPart{ToolCallID: "c5", ToolName: "bad", Output: adapter.ErrorJSONOutput{Value: []any{"x"}}},
				adapter.ToolResultPart{ToolCallID: "c6", ToolName: "rm", Output: adapter.DeniedOutput{Reason: "no"}},
			}},
		},
	}
	if diff := cmp.Diff(want, call); diff != "" {
		t.Errorf("call (-want +got):\n%s", diff)
	}
}

func TestDecodeGenerateRequest_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json":            `nope`,
		"no messages":         `{"messages":[]}`,
		"unknown role":        `{"messages":[{"role":"narrator","content":"x"}]}`,
		"content is a number": `{"messages":[{"role":"user","content":3}]}`,
		"unknown part":        `{"messages":[{"role":"user","content":[{"type":"audio"}]}]}`,
		"result w/o output":   `{"messages":[{"role":"tool","content":[{"type":"tool-result","toolName":"x"}]}]}`,
		"unknown output":      `{"messages":[{"role":"tool","content":[{"type":"tool-result","toolName":"x","output":{"type":"video"}}]}]}`,
		"text output not str": `{"messages":[{"role":"tool","content":[{"type":"tool-result","toolName":"x","output":{"type":"text","value":1}}]}]}`,
		"bad base64":          `{"messages":[{"role":"user","content":[{"type":"file","mediaType":"a/b","data":"!!"}]}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := decodeGenerateRequest(strings.NewReader(body))
			if !errors.Is(err, apierrors.ErrMalformedBody) {
				t.Errorf("want ErrMalformedBody, got %v", err)
			}
		})
	}
}
