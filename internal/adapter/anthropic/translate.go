package anthropic

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
)

const maxBodyBytes = 32 << 20

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apierrors.ErrMalformedBody, fmt.Sprintf(format, args...))
}

// ToCall decodes a Messages API body into a generation call and reports
// whether the caller asked for a stream.
func ToCall(body io.Reader) (*adapter.Call, bool, error) {
	var req MessagesRequest
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(&req); err != nil {
		return nil, false, malformed("decode body: %v", err)
	}
	if len(req.Messages) == 0 {
		return nil, false, malformed("messages must not be empty")
	}

	call := &adapter.Call{
		Model:         req.Model,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
	}
	if req.MaxTokens > 0 {
		call.MaxOutputTokens = &req.MaxTokens
	}

	system, err := blocks(req.System)
	if err != nil {
		return nil, false, fmt.Errorf("system: %w", err)
	}
	if len(system) > 0 {
		var sb strings.Builder
		for _, b := range system {
			if b.Type != "text" {
				return nil, false, malformed("system block type %q", b.Type)
			}
			sb.WriteString(b.Text)
		}
		call.Messages = append(call.Messages, adapter.Text(adapter.RoleSystem, sb.String()))
	}

	toolNames := map[string]string{}
	for i, m := range req.Messages {
		msgs, err := toMessages(m, toolNames)
		if err != nil {
			return nil, false, fmt.Errorf("messages[%d]: %w", i, err)
		}
		call.Messages = append(call.Messages, msgs...)
	}
	return call, req.Stream, nil
}

// blocks reads string-or-array content. A string becomes one text block.
func blocks(raw json.RawMessage) ([]Block, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, malformed("content: %v", err)
		}
		return []Block{{Type: "text", Text: s}}, nil
	}
	var out []Block
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, malformed("content: %v", err)
	}
	return out, nil
}

// toMessages maps one Anthropic message. Tool results inside a user turn are
// split into a preceding tool message.
func toMessages(m Message, toolNames map[string]string) ([]adapter.Message, error) {
	bs, err := blocks(m.Content)
	if err != nil {
		return nil, err
	}

	switch m.Role {
	case "user":
		tool := adapter.Message{Role: adapter.RoleTool}
		user := adapter.Message{Role: adapter.RoleUser}
		for _, b := range bs {
			switch b.Type {
			case "text":
				user.Content = append(user.Content, adapter.TextPart{Text: b.Text})
			case "image", "document":
				file, err := filePart(b.Source)
				if err != nil {
					return nil, err
				}
				user.Content = append(user.Content, file)
			case "tool_result":
				parts, err := toolResult(b, toolNames)
				if err != nil {
					return nil, err
				}
				tool.Content = append(tool.Content, parts...)
			default:
				return nil, malformed("block type %q is not allowed in user messages", b.Type)
			}
		}
		var out []adapter.Message
		if len(tool.Content) > 0 {
			out = append(out, tool)
		}
		if len(user.Content) > 0 {
			out = append(out, user)
		}
		return out, nil

	case "assistant":
		msg := adapter.Message{Role: adapter.RoleAssistant}
		for _, b := range bs {
			switch b.Type {
			case "text":
				msg.Content = append(msg.Content, adapter.TextPart{Text: b.Text})
			case "thinking":
				msg.Content = append(msg.Content, adapter.ReasoningPart{Text: b.Thinking})
			case "redacted_thinking":
				continue
			case "tool_use":
				toolNames[b.ID] = b.Name
				msg.Content = append(msg.Content, adapter.ToolCallPart{ToolCallID: b.ID, ToolName: b.Name, Input: b.Input})
			default:
				return nil, malformed("block type %q is not allowed in assistant messages", b.Type)
			}
		}
		return []adapter.Message{msg}, nil

	default:
		return nil, malformed("unknown role %q", m.Role)
	}
}

// toolResult yields one part for the text of a result and one per image.
func toolResult(b Block, toolNames map[string]string) ([]adapter.Part, error) {
	name, ok := toolNames[b.ToolUseID]
	if !ok {
		return nil, malformed("tool_use_id %q matches no earlier tool_use", b.ToolUseID)
	}
	inner, err := blocks(b.Content)
	if err != nil {
		return nil, err
	}

	var (
		sb    strings.Builder
		media []adapter.Part
	)
	for _, ib := range inner {
		switch ib.Type {
		case "text":
			sb.WriteString(ib.Text)
		case "image":
			file, err := filePart(ib.Source)
			if err != nil {
				return nil, err
			}
			if !file.Inline() {
				return nil, malformed("tool_result images must be base64")
			}
			media = append(media, adapter.ToolResultPart{
				ToolCallID: b.ToolUseID,
				ToolName:   name,
				Output:     adapter.MediaOutput{Data: file.Data, MediaType: file.MediaType},
			})
		default:
			return nil, malformed("block type %q is not allowed in tool_result", ib.Type)
		}
	}

	var out []adapter.Part
	if sb.Len() > 0 || len(media) == 0 {
		var output adapter.ToolOutput = adapter.TextOutput{Text: sb.String()}
		if b.IsError {
			output = adapter.ErrorTextOutput{Text: sb.String()}
		}
		out = append(out, adapter.ToolResultPart{ToolCallID: b.ToolUseID, ToolName: name, Output: output})
	}
	return append(out, media...), nil
}

func filePart(src *Source) (adapter.FilePart, error) {
	if src == nil {
		return adapter.FilePart{}, malformed("block without source")
	}
	switch src.Type {
	case "base64":
		data, err := base64.StdEncoding.DecodeString(src.Data)
		if err != nil {
			return adapter.FilePart{}, malformed("source data: %v", err)
		}
		return adapter.FilePart{MediaType: src.MediaType, Data: data}, nil
	case "url":
		return adapter.FilePart{MediaType: src.MediaType, URI: src.URL}, nil
	default:
		return adapter.FilePart{}, malformed("unknown source type %q", src.Type)
	}
}

func stopReason(r adapter.FinishReason) string {
	switch r {
	case adapter.FinishLength:
		return "max_tokens"
	case adapter.FinishContentFilter:
		return "refusal"
	default:
		return "end_turn"
	}
}

func usage(u *adapter.Usage) Usage {
	var out Usage
	if u == nil {
		return out
	}
	if u.InputTokens != nil {
		out.InputTokens = *u.InputTokens
	}
	if u.OutputTokens != nil {
		out.OutputTokens = *u.OutputTokens
	}
	return out
}

// FromResult encodes a generation result as a MessagesResponse.
func FromResult(res *adapter.Result, model string) MessagesResponse {
	content := make([]Content, 0, len(res.Content))
	for _, b := range res.Content {
		if b.Kind == adapter.BlockReasoning {
			content = append(content, Content{Type: "thinking", Thinking: b.Text})
			continue
		}
		content = append(content, Content{Type: "text", Text: b.Text})
	}
	if res.Response.ModelVersion != "" {
		model = res.Response.ModelVersion
	}
	return MessagesResponse{
		ID:         "msg_" + res.Response.ID,
		Type:       "message",
		Role:       "assistant",
		Content:    content,
		Model:      model,
		StopReason: stopReason(res.FinishReason),
		Usage:      usage(&res.Usage),
	}
}

// translator maps lifecycle events onto Messages API stream events. Block
// indexes count content blocks in the order they open.
type translator struct {
	id    string
	model string
	next  int
	open  int
}

func (t *translator) events(ev adapter.StreamEvent) []StreamEvent {
	idx := func() *int { i := t.open; return &i }
	switch ev.Type {
	case adapter.EventStreamStart:
		return []StreamEvent{{
			Type: "message_start",
			Message: &MessagesResponse{
				ID:      t.id,
				Type:    "message",
				Role:    "assistant",
				Content: []Content{},
				Model:   t.model,
			},
		}}
	case adapter.EventTextStart, adapter.EventReasoningStart:
		t.open = t.next
		t.next++
		block := &Content{Type: "text"}
		if ev.Type == adapter.EventReasoningStart {
			block = &Content{Type: "thinking"}
		}
		return []StreamEvent{{Type: "content_block_start", Index: idx(), ContentBlock: block}}
	case adapter.EventTextDelta:
		return []StreamEvent{{Type: "content_block_delta", Index: idx(), Delta: &Delta{Type: "text_delta", Text: ev.Delta}}}
	case adapter.EventReasoningDelta:
		return []StreamEvent{{Type: "content_block_delta", Index: idx(), Delta: &Delta{Type: "thinking_delta", Thinking: ev.Delta}}}
	case adapter.EventTextEnd, adapter.EventReasoningEnd:
		return []StreamEvent{{Type: "content_block_stop", Index: idx()}}
	case adapter.EventFinish:
		u := usage(ev.Usage)
		return []StreamEvent{
			{Type: "message_delta", Delta: &Delta{StopReason: stopReason(ev.FinishReason)}, Usage: &u},
			{Type: "message_stop"},
		}
	default:
		return nil
	}
}
