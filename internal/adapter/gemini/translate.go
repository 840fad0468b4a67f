package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
)

// DefaultMediaAckText follows a tool-returned media part; the wire format has
// no tool-result media type of its own.
const DefaultMediaAckText = "Tool executed successfully and returned this image as a response"

const (
	deniedText    = "Tool execution was denied."
	toolErrorText = "Tool execution failed."
)

// Translator converts normalized messages into wire contents.
type Translator struct {
	// MediaAckText replaces DefaultMediaAckText when set.
	MediaAckText string
}

func (t Translator) mediaAck() string {
	if s := strings.TrimSpace(t.MediaAckText); s != "" {
		return s
	}
	return DefaultMediaAckText
}

func invalidPrompt(format string, args ...any) error {
	return &apierrors.InvalidPromptError{Message: fmt.Sprintf(format, args...)}
}

// Translate returns the system instruction (nil when there are no system
// messages) and the contents array. System messages are only accepted as a
// leading run.
func (t Translator) Translate(msgs []adapter.Message) (*SystemInstruction, []Content, error) {
	var (
		sysParts    []Part
		contents    []Content
		seenNonSys  bool
		appendParts = func(role string, parts []Part) {
			if len(parts) == 0 {
				return
			}
			contents = append(contents, Content{Role: role, Parts: parts})
		}
	)

	for i, m := range msgs {
		switch m.Role {
		case adapter.RoleSystem:
			if seenNonSys {
				return nil, nil, invalidPrompt("system message at position %d: system messages are only supported at the beginning of the conversation", i)
			}
			text, err := systemText(m)
			if err != nil {
				return nil, nil, err
			}
			if text != "" {
				sysParts = append(sysParts, Part{Text: text})
			}
		case adapter.RoleUser:
			seenNonSys = true
			parts, err := t.userParts(m.Content)
			if err != nil {
				return nil, nil, err
			}
			appendParts(genai.RoleUser, parts)
		case adapter.RoleAssistant:
			seenNonSys = true
			parts, err := t.assistantParts(m.Content)
			if err != nil {
				return nil, nil, err
			}
			appendParts(genai.RoleModel, parts)
		case adapter.RoleTool:
			seenNonSys = true
			parts, err := t.toolParts(m.Content)
			if err != nil {
				return nil, nil, err
			}
			appendParts(genai.RoleUser, parts)
		default:
			return nil, nil, invalidPrompt("unsupported role %q at position %d", m.Role, i)
		}
	}

	var sys *SystemInstruction
	if len(sysParts) > 0 {
		sys = &SystemInstruction{Parts: sysParts}
	}
	return sys, contents, nil
}

func systemText(m adapter.Message) (string, error) {
	var sb strings.Builder
	for _, p := range m.Content {
		tp, ok := p.(adapter.TextPart)
		if !ok {
			return "", invalidPrompt("system messages may only contain text, got %T", p)
		}
		sb.WriteString(tp.Text)
	}
	return sb.String(), nil
}

func (t Translator) userParts(in []adapter.Part) ([]Part, error) {
	var out []Part
	for _, p := range in {
		switch p := p.(type) {
		case adapter.TextPart:
			if p.Text != "" {
				out = append(out, Part{Text: p.Text})
			}
		case adapter.FilePart:
			part, err := filePart(p, true)
			if err != nil {
				return nil, err
			}
			out = append(out, part)
		case adapter.ReasoningPart, adapter.ToolCallPart, adapter.ToolResultPart:
			return nil, invalidPrompt("user messages cannot contain %T", p)
		default:
			return nil, invalidPrompt("unsupported content part %T", p)
		}
	}
	return out, nil
}

func (t Translator) assistantParts(in []adapter.Part) ([]Part, error) {
	var out []Part
	for _, p := range in {
		switch p := p.(type) {
		case adapter.TextPart:
			if p.Text != "" {
				out = append(out, Part{Text: p.Text})
			}
		case adapter.ReasoningPart:
			if p.Text != "" {
				out = append(out, Part{Text: p.Text, Thought: true})
			}
		case adapter.FilePart:
			if !p.Inline() && p.Data == nil {
				return nil, invalidPrompt("assistant file URLs are not supported")
			}
			part, err := filePart(p, false)
			if err != nil {
				return nil, err
			}
			out = append(out, part)
		case adapter.ToolCallPart:
			args, err := callArgs(p)
			if err != nil {
				return nil, err
			}
			out = append(out, Part{FunctionCall: &FunctionCall{Name: p.ToolName, Args: args}})
		case adapter.ToolResultPart:
			return nil, invalidPrompt("assistant messages cannot contain tool results")
		default:
			return nil, invalidPrompt("unsupported content part %T", p)
		}
	}
	return out, nil
}

func (t Translator) toolParts(in []adapter.Part) ([]Part, error) {
	var out []Part
	for _, p := range in {
		tr, ok := p.(adapter.ToolResultPart)
		if !ok {
			return nil, invalidPrompt("tool messages may only contain tool results, got %T", p)
		}
		parts, err := t.toolResult(tr)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}
	return out, nil
}

func (t Translator) toolResult(tr adapter.ToolResultPart) ([]Part, error) {
	respond := func(content any) []Part {
		return []Part{{FunctionResponse: &FunctionResponse{
			Name:     tr.ToolName,
			Response: FunctionResponseBody{Name: tr.ToolName, Content: content},
		}}}
	}

	switch out := tr.Output.(type) {
	case adapter.TextOutput:
		return respond(out.Text), nil
	case adapter.JSONOutput:
		return respond(out.Value), nil
	case adapter.MediaOutput:
		if len(out.Data) == 0 {
			return nil, invalidPrompt("tool %q returned media without data", tr.ToolName)
		}
		return []Part{
			{InlineData: &Blob{MimeType: out.MediaType, Data: out.Data}},
			{Text: t.mediaAck()},
		}, nil
	case adapter.ErrorTextOutput:
		return textOr(out.Text, toolErrorText), nil
	case adapter.ErrorJSONOutput:
		b, err := json.Marshal(out.Value)
		if err != nil {
			return nil, invalidPrompt("tool %q error value: %v", tr.ToolName, err)
		}
		return textOr(string(b), toolErrorText), nil
	case adapter.DeniedOutput:
		return textOr(out.Reason, deniedText), nil
	case nil:
		return nil, invalidPrompt("tool %q result has no output", tr.ToolName)
	default:
		b, err := json.Marshal(out)
		if err != nil {
			return nil, invalidPrompt("tool %q output %T: %v", tr.ToolName, out, err)
		}
		return textOr(string(b), toolErrorText), nil
	}
}

// textOr always yields one part so that a tool turn is never dropped; the
// endpoint rejects empty text parts.
func textOr(s, fallback string) []Part {
	if strings.TrimSpace(s) == "" {
		s = fallback
	}
	return []Part{{Text: s}}
}

func filePart(p adapter.FilePart, allowRemote bool) (Part, error) {
	mt := strings.TrimSpace(p.MediaType)
	if mt == "" {
		return Part{}, invalidPrompt("file part is missing a media type")
	}
	if p.Inline() {
		return Part{InlineData: &Blob{MimeType: mt, Data: p.Data}}, nil
	}
	if p.Data != nil && strings.TrimSpace(p.URI) == "" {
		return Part{}, invalidPrompt("file part has empty inline data")
	}
	uri := strings.TrimSpace(p.URI)
	if uri == "" {
		return Part{}, invalidPrompt("file part has neither data nor a URI")
	}
	if !allowRemote {
		return Part{}, invalidPrompt("assistant file URLs are not supported")
	}
	return Part{FileData: &FileData{MimeType: mt, FileURI: uri}}, nil
}

func callArgs(p adapter.ToolCallPart) (json.RawMessage, error) {
	raw := bytes.TrimSpace(p.Input)
	if len(raw) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(raw) {
		return nil, invalidPrompt("tool call %q has invalid JSON arguments", p.ToolName)
	}
	return json.RawMessage(raw), nil
}
