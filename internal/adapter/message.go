package adapter

import "encoding/json"

// Role is the caller's four-role vocabulary.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of the normalized conversation.
type Message struct {
	Role    Role
	Content []Part
}

// Part is one of TextPart, ReasoningPart, FilePart, ToolCallPart or
// ToolResultPart. The set is closed.
type Part interface {
	isPart()
}

type TextPart struct {
	Text string
}

type ReasoningPart struct {
	Text string
}

// FilePart is either inline bytes (Data) or a remote reference (URI).
// Data wins when both are set. Inline data must be non-empty: a zero-byte
// file cannot be sent and is rejected during translation.
type FilePart struct {
	MediaType string
	Data      []byte
	URI       string
}

// Inline reports whether the file carries its own bytes. A non-nil but empty
// Data is not inline.
func (p FilePart) Inline() bool { return len(p.Data) > 0 }

type ToolCallPart struct {
	ToolCallID string
	ToolName   string
	// Input is the JSON object of call arguments.
	Input json.RawMessage
}

type ToolResultPart struct {
	ToolCallID string
	ToolName   string
	Output     ToolOutput
}

func (TextPart) isPart()       {}
func (ReasoningPart) isPart()  {}
func (FilePart) isPart()       {}
func (ToolCallPart) isPart()   {}
func (ToolResultPart) isPart() {}

// ToolOutput is one of TextOutput, MediaOutput, JSONOutput, ErrorTextOutput,
// ErrorJSONOutput or DeniedOutput.
type ToolOutput interface {
	isToolOutput()
}

type TextOutput struct {
	Text string
}

type MediaOutput struct {
	Data      []byte
	MediaType string
}

// JSONOutput is a structured tool result.
type JSONOutput struct {
	Value any
}

type ErrorTextOutput struct {
	Text string
}

type ErrorJSONOutput struct {
	Value any
}

// DeniedOutput records that the tool was never executed.
type DeniedOutput struct {
	Reason string
}

func (TextOutput) isToolOutput()      {}
func (MediaOutput) isToolOutput()     {}
func (JSONOutput) isToolOutput()      {}
func (ErrorTextOutput) isToolOutput() {}
func (ErrorJSONOutput) isToolOutput() {}
func (DeniedOutput) isToolOutput()    {}

// Text is a convenience constructor for a single-text message.
func Text(role Role, text string) Message {
	return Message{Role: role, Content: []Part{TextPart{Text: text}}}
}
