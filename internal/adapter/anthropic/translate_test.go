package anthropic

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
)

func intp(v int) *int { return &v }

func TestToCall(t *testing.T) {
	body := `{
		"model": "gemini-2.5-flash",
		"max_tokens": 128,
		"system": [{"type": "text", "text": "be brief"}],
		"top_k": 5,
		"messages": [
			{"role": "user", "content": [
				{"type": "text", "text": "describe"},
				{"type": "image", "source": {"type": "base64", "media_type": "image/png", "data": "AQID"}},
				{"type": "document", "source": {"type": "url", "media_type": "application/pdf", "url": "https://example.com/a.pdf"}}
			]},
			{"role": "assistant", "content": [
				{"type": "thinking", "thinking": "need a tool"},
				{"type": "redacted_thinking"},
				{"type": "tool_use", "id": "tu1", "name": "lookup", "input": {"q": "x"}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "tu1", "is_error": true, "content": "boom"},
				{"type": "text", "text": "try again"}
			]}
		]
	}`
	call, streaming, err := ToCall(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ToCall: %v", err)
	}
	if streaming {
		t.Errorf("unexpected stream flag")
	}
	if *call.MaxOutputTokens != 128 || *call.TopK != 5 {
		t.Errorf("max/topK = %d/%d", *call.MaxOutputTokens, *call.TopK)
	}

	want := []adapter.Message{
		adapter.Text(adapter.RoleSystem, "be brief"),
		{Role: adapter.RoleUser, Content: []adapter.Part{
			adapter.TextPart{Text: "describe"},
			adapter.FilePart{MediaType: "image/png", Data: []byte{1, 2, 3}},
			adapter.FilePart{MediaType: "application/pdf", URI: "https://example.com/a.pdf"},
		}},
		{Role: adapter.RoleAssistant, Content: []adapter.Part{
			adapter.ReasoningPart{Text: "need a tool"},
			adapter.ToolCallPart{ToolCallID: "tu1", ToolName: "lookup", Input: json.RawMessage(`{"q": "x"}`)},
		}},
		{Role: adapter.RoleTool, Content: []adapter.Part{
			adapter.ToolResultPart{ToolCallID: "tu1", ToolName: "lookup", Output: adapter.ErrorTextOutput{Text: "boom"}},
		}},
		adapter.Text(adapter.RoleUser, "try again"),
	}
	if diff := cmp.Diff(want, call.Messages); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
}

func TestToCall_ToolResultImage(t *testing.T) {
	body := `{"messages":[
		{"role":"assistant","content":[{"type":"tool_use","id":"s","name":"screenshot","input":{}}]},
		{"role":"user","content":[{"type":"tool_result","tool_use_id":"s","content":[
			{"type":"image","source":{"type":"base64","media_type":"image/jpeg","data":"AAE="}}
		]}]}
	]}`
	call, _, err := ToCall(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ToCall: %v", err)
	}
	want := adapter.Message{Role: adapter.RoleTool, Content: []adapter.Part{
		adapter.ToolResultPart{ToolCallID: "s", ToolName: "screenshot", Output: adapter.MediaOutput{Data: []byte{0, 1}, MediaType: "image/jpeg"}},
	}}
	if diff := cmp.Diff(want, call.Messages[1]); diff != "" {
		t.Errorf("tool message (-want +got):\n%s", diff)
	}
}

func TestToCall_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `[`},
		{"no messages", `{"messages":[]}`},
		{"system role in messages", `{"messages":[{"role":"system","content":"x"}]}`},
		{"orphan tool result", `{"messages":[{"role":"user","content":[{"type":"tool_result","tool_use_id":"x","content":"y"}]}]}`},
		{"thinking from user", `{"messages":[{"role":"user","content":[{"type":"thinking","thinking":"x"}]}]}`},
		{"image without source", `{"messages":[{"role":"user","content":[{"type":"image"}]}]}`},
		{"bad base64", `{"messages":[{"role":"user","content":[{"type":"image","source":{"type":"base64","data":"!!"}}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ToCall(strings.NewReader(tt.body))
			if !errors.Is(err, apierrors.ErrMalformedBody) {
				t.Fatalf("err = %v, want ErrMalformedBody", err)
			}
		})
	}
}

func TestFromResult(t *testing.T) {
	res := &adapter.Result{
		Content: []adapter.ContentBlock{
			{Kind: adapter.BlockReasoning, Text: "hmm"},
			{Kind: adapter.BlockText, Text: "answer"},
		},
		FinishReason: adapter.FinishLength,
		Usage:        adapter.Usage{InputTokens: intp(9), OutputTokens: intp(2)},
		Response:     adapter.ResponseInfo{ID: "r9", ModelVersion: "gemini-2.5-flash-001"},
	}
	want := MessagesResponse{
		ID:   "msg_r9",
		Type: "message",
		Role: "assistant",
		Content: []Content{
			{Type: "thinking", Thinking: "hmm"},
			{Type: "text", Text: "answer"},
		},
		Model:      "gemini-2.5-flash-001",
		StopReason: "max_tokens",
		Usage:      Usage{InputTokens: 9, OutputTokens: 2},
	}
	if diff := cmp.Diff(want, FromResult(res, "configured")); diff != "" {
		t.Errorf("response (-want +got):\n%s", diff)
	}
}

func TestTranslatorEvents(t *testing.T) {
	res := &adapter.Result{
		Content: []adapter.ContentBlock{
			{Kind: adapter.BlockReasoning, Text: "hmm"},
			{Kind: adapter.BlockText, Text: "a"},
			{Kind: adapter.BlockText, Text: "b"},
		},
		FinishReason: adapter.FinishStop,
	}
	tr := &translator{id: "msg_1", model: "m"}
	var got []string
	for ev := range adapter.Events(res) {
		for _, out := range tr.events(ev) {
			label := out.Type
			if out.Index != nil {
				label += ":" + string(rune('0'+*out.Index))
			}
			got = append(got, label)
		}
	}
	want := []string{
		"message_start",
		"content_block_start:0", "content_block_delta:0", "content_block_stop:0",
		"content_block_start:1", "content_block_delta:1", "content_block_delta:1", "content_block_stop:1",
		"message_delta", "message_stop",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}
