package openai

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
)

const maxBodyBytes = 32 << 20

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apierrors.ErrMalformedBody, fmt.Sprintf(format, args...))
}

// ToCall decodes an OpenAI chat completions body into a generation call.
// It reports whether the caller asked for a stream.
func ToCall(body io.Reader) (*adapter.Call, bool, error) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(&req); err != nil {
		return nil, false, malformed("decode body: %v", err)
	}
	if len(req.Messages) == 0 {
		return nil, false, malformed("messages must not be empty")
	}

	call := &adapter.Call{
		Model:           req.Model,
		MaxOutputTokens: req.MaxCompletionTokens,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
	}
	if call.MaxOutputTokens == nil {
		call.MaxOutputTokens = req.MaxTokens
	}
	stop, err := decodeStop(req.Stop)
	if err != nil {
		return nil, false, err
	}
	call.StopSequences = stop

	// Tool results name only the call id; the function name comes from the
	// assistant turn that issued the call.
	toolNames := map[string]string{}
	for i, m := range req.Messages {
		msg, err := toMessage(m, toolNames)
		if err != nil {
			return nil, false, fmt.Errorf("messages[%d]: %w", i, err)
		}
		call.Messages = append(call.Messages, msg)
	}
	return call, req.Stream, nil
}

func decodeStop(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, malformed("stop: %v", err)
		}
		return []string{s}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, malformed("stop: %v", err)
	}
	return list, nil
}

func toMessage(m Message, toolNames map[string]string) (adapter.Message, error) {
	switch m.Role {
	case "system", "developer":
		text, err := textContent(m.Content)
		if err != nil {
			return adapter.Message{}, err
		}
		return adapter.Text(adapter.RoleSystem, text), nil

	case "user":
		parts, err := userParts(m.Content)
		if err != nil {
			return adapter.Message{}, err
		}
		return adapter.Message{Role: adapter.RoleUser, Content: parts}, nil

	case "assistant":
		msg := adapter.Message{Role: adapter.RoleAssistant}
		if m.ReasoningContent != "" {
			msg.Content = append(msg.Content, adapter.ReasoningPart{Text: m.ReasoningContent})
		}
		text, err := textContent(m.Content)
		if err != nil {
			return adapter.Message{}, err
		}
		if text != "" {
			msg.Content = append(msg.Content, adapter.TextPart{Text: text})
		}
		for _, tc := range m.ToolCalls {
			toolNames[tc.ID] = tc.Function.Name
			msg.Content = append(msg.Content, adapter.ToolCallPart{
				ToolCallID: tc.ID,
				ToolName:   tc.Function.Name,
				Input:      json.RawMessage(tc.Function.Arguments),
			})
		}
		return msg, nil

	case "tool":
		text, err := textContent(m.Content)
		if err != nil {
			return adapter.Message{}, err
		}
		name, ok := toolNames[m.ToolCallID]
		if !ok {
			return adapter.Message{}, malformed("tool_call_id %q matches no earlier tool call", m.ToolCallID)
		}
		return adapter.Message{Role: adapter.RoleTool, Content: []adapter.Part{adapter.ToolResultPart{
			ToolCallID: m.ToolCallID,
			ToolName:   name,
			Output:     adapter.TextOutput{Text: text},
		}}}, nil

	default:
		return adapter.Message{}, malformed("unknown role %q", m.Role)
	}
}

// textContent flattens string or text-part content into one string.
func textContent(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", malformed("content: %v", err)
		}
		return s, nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", malformed("content: %v", err)
	}
	var sb strings.Builder
	for _, p := range parts {
		if p.Type != "text" {
			return "", malformed("content part type %q is only allowed in user messages", p.Type)
		}
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func userParts(raw json.RawMessage) ([]adapter.Part, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		text, err := textContent(raw)
		if err != nil {
			return nil, err
		}
		return []adapter.Part{adapter.TextPart{Text: text}}, nil
	}
	var parts []ContentPart
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &parts); err != nil {
			return nil, malformed("content: %v", err)
		}
	}
	var out []adapter.Part
	for _, p := range parts {
		switch p.Type {
		case "text":
			out = append(out, adapter.TextPart{Text: p.Text})
		case "image_url":
			if p.ImageURL == nil || p.ImageURL.URL == "" {
				return nil, malformed("image_url part without url")
			}
			file, err := imagePart(p.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			out = append(out, file)
		default:
			return nil, malformed("unknown content part type %q", p.Type)
		}
	}
	return out, nil
}

// imagePart turns a data: URL into inline bytes and anything else into a
// remote reference.
func imagePart(u string) (adapter.FilePart, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return adapter.FilePart{MediaType: "image/*", URI: u}, nil
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return adapter.FilePart{}, malformed("data URL without payload")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return adapter.FilePart{}, malformed("data URL must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return adapter.FilePart{}, malformed("data URL: %v", err)
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return adapter.FilePart{MediaType: mediaType, Data: data}, nil
}

func finishReason(r adapter.FinishReason) string {
	switch r {
	case adapter.FinishLength:
		return "length"
	case adapter.FinishContentFilter:
		return "content_filter"
	default:
		return "stop"
	}
}

func usage(u *adapter.Usage) *Usage {
	if u == nil || (u.InputTokens == nil && u.OutputTokens == nil && u.TotalTokens == nil) {
		return nil
	}
	deref := func(v *int) int {
		if v == nil {
			return 0
		}
		return *v
	}
	return &Usage{
		PromptTokens:     deref(u.InputTokens),
		CompletionTokens: deref(u.OutputTokens),
		TotalTokens:      deref(u.TotalTokens),
	}
}

// FromResult encodes a generation result as a ChatCompletionResponse.
func FromResult(res *adapter.Result, model string) ChatCompletionResponse {
	var reasoning strings.Builder
	for _, b := range res.Content {
		if b.Kind == adapter.BlockReasoning {
			reasoning.WriteString(b.Text)
		}
	}
	if res.Response.ModelVersion != "" {
		model = res.Response.ModelVersion
	}
	return ChatCompletionResponse{
		ID:      "chatcmpl-" + res.Response.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{{
			Index: 0,
			Message: ResponseMessage{
				Role:             "assistant",
				Content:          res.Text(),
				ReasoningContent: reasoning.String(),
			},
			FinishReason: finishReason(res.FinishReason),
		}},
		Usage: usage(&res.Usage),
	}
}

// chunker builds the stream chunks for one response.
type chunker struct {
	id      string
	model   string
	created int64
	started bool
}

// next maps a lifecycle event to a chunk. Start and end events produce none,
// except that the first chunk carries the assistant role.
func (c *chunker) next(ev adapter.StreamEvent) (StreamChunk, bool) {
	chunk := StreamChunk{
		ID:      c.id,
		Object:  "chat.completion.chunk",
		Created: c.created,
		Model:   c.model,
	}
	choice := StreamChoice{Index: 0}
	switch ev.Type {
	case adapter.EventTextDelta:
		choice.Delta.Content = ev.Delta
	case adapter.EventReasoningDelta:
		choice.Delta.ReasoningContent = ev.Delta
	case adapter.EventFinish:
		reason := finishReason(ev.FinishReason)
		choice.FinishReason = &reason
		chunk.Usage = usage(ev.Usage)
	default:
		return StreamChunk{}, false
	}
	if !c.started {
		choice.Delta.Role = "assistant"
		c.started = true
	}
	chunk.Choices = []StreamChoice{choice}
	return chunk, true
}
