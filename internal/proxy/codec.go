package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
)

const maxBodyBytes = 32 << 20

// generateRequest is the body of POST /v1/generate and /v1/stream.
type generateRequest struct {
	Model           string        `json:"model,omitempty"`
	Messages        []wireMessage `json:"messages"`
	MaxOutputTokens *int          `json:"maxOutputTokens,omitempty"`
	Temperature     *float64      `json:"temperature,omitempty"`
	TopP            *float64      `json:"topP,omitempty"`
	TopK            *int          `json:"topK,omitempty"`
	StopSequences   []string      `json:"stopSequences,omitempty"`
	StoreNames      []string      `json:"storeNames,omitempty"`
	MetadataFilter  *string       `json:"metadataFilter,omitempty"`
}

// wireMessage content is either a plain string or an array of typed parts.
type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type wirePart struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	MediaType  string          `json:"mediaType,omitempty"`
	Data       []byte          `json:"data,omitempty"`
	URL        string          `json:"url,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     *wireOutput     `json:"output,omitempty"`
}

type wireOutput struct {
	Type      string          `json:"type"`
	Value     json.RawMessage `json:"value,omitempty"`
	Data      []byte          `json:"data,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apierrors.ErrMalformedBody, fmt.Sprintf(format, args...))
}

// decodeGenerateRequest reads a request body into a Call. Defaults are not
// applied here.
func decodeGenerateRequest(body io.Reader) (*generateRequest, *adapter.Call, error) {
	var req generateRequest
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return nil, nil, malformed("invalid JSON: %v", err)
	}
	if len(req.Messages) == 0 {
		return nil, nil, malformed("messages must not be empty")
	}

	call := &adapter.Call{
		Model:           req.Model,
		MaxOutputTokens: req.MaxOutputTokens,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		TopK:            req.TopK,
		StopSequences:   req.StopSequences,
		StoreNames:      req.StoreNames,
	}
	if req.MetadataFilter != nil {
		call.MetadataFilter = *req.MetadataFilter
	}
	for i, m := range req.Messages {
		msg, err := decodeMessage(m)
		if err != nil {
			return nil, nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		call.Messages = append(call.Messages, msg)
	}
	return &req, call, nil
}

func decodeMessage(m wireMessage) (adapter.Message, error) {
	role := adapter.Role(m.Role)
	switch role {
	case adapter.RoleSystem, adapter.RoleUser, adapter.RoleAssistant, adapter.RoleTool:
	default:
		return adapter.Message{}, malformed("unknown role %q", m.Role)
	}

	raw := bytes.TrimSpace(m.Content)
	if len(raw) > 0 && raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return adapter.Message{}, malformed("content: %v", err)
		}
		return adapter.Text(role, text), nil
	}

	var parts []wirePart
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parts); err != nil {
			return adapter.Message{}, malformed("content: %v", err)
		}
	}
	msg := adapter.Message{Role: role}
	for j, p := range parts {
		part, err := decodePart(p)
		if err != nil {
			return adapter.Message{}, fmt.Errorf("content[%d]: %w", j, err)
		}
		msg.Content = append(msg.Content, part)
	}
	return msg, nil
}

func decodePart(p wirePart) (adapter.Part, error) {
	switch p.Type {
	case "text":
		return adapter.TextPart{Text: p.Text}, nil
	case "reasoning":
		return adapter.ReasoningPart{Text: p.Text}, nil
	case "file":
		return adapter.FilePart{MediaType: p.MediaType, Data: p.Data, URI: p.URL}, nil
	case "tool-call":
		return adapter.ToolCallPart{ToolCallID: p.ToolCallID, ToolName: p.ToolName, Input: p.Input}, nil
	case "tool-result":
		if p.Output == nil {
			return nil, malformed("tool-result %q has no output", p.ToolName)
		}
		out, err := decodeOutput(*p.Output)
		if err != nil {
			return nil, err
		}
		return adapter.ToolResultPart{ToolCallID: p.ToolCallID, ToolName: p.ToolName, Output: out}, nil
	default:
		return nil, malformed("unknown part type %q", p.Type)
	}
}

func decodeOutput(o wireOutput) (adapter.ToolOutput, error) {
	text := func() (string, error) {
		var s string
		if len(o.Value) == 0 {
			return "", nil
		}
		if err := json.Unmarshal(o.Value, &s); err != nil {
			return "", malformed("%s output value must be a string", o.Type)
		}
		return s, nil
	}
	value := func() (any, error) {
		var v any
		if len(o.Value) == 0 {
			return nil, nil
		}
		if err := json.Unmarshal(o.Value, &v); err != nil {
			return nil, malformed("%s output value: %v", o.Type, err)
		}
		return v, nil
	}

	switch o.Type {
	case "text":
		s, err := text()
		return adapter.TextOutput{Text: s}, err
	case "error-text":
		s, err := text()
		return adapter.ErrorTextOutput{Text: s}, err
	case "json":
		v, err := value()
		return adapter.JSONOutput{Value: v}, err
	case "error-json":
		v, err := value()
		return adapter.ErrorJSONOutput{Value: v}, err
	case "media":
		return adapter.MediaOutput{Data: o.Data, MediaType: o.MediaType}, nil
	case "execution-denied":
		return adapter.DeniedOutput{Reason: o.Reason}, nil
	default:
		return nil, malformed("unknown output type %q", o.Type)
	}
}
