package gemini

import (
	"encoding/json"

	"google.golang.org/genai"
)

// GenerateContentRequest mirrors the generateContent request body.
type GenerateContentRequest struct {
	SystemInstruction *SystemInstruction `json:"systemInstruction,omitempty"`
	Contents          []Content          `json:"contents"`
	GenerationConfig  *GenerationConfig  `json:"generationConfig,omitempty"`
	Tools             []Tool             `json:"tools,omitempty"`
}

// SystemInstruction carries the system prompt, one part per system message.
type SystemInstruction struct {
	Parts []Part `json:"parts"`
}

// Content is a single turn in the conversation.
type Content struct {
	Role  string `json:"role"` // "user" | "model"
	Parts []Part `json:"parts"`
}

// Part is a union on the wire: exactly one of the payload fields is set.
// Thought marks Text as reasoning.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FileData         *FileData         `json:"fileData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// Blob is inline media; Data is base64 encoded by encoding/json.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type FileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type FunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type FunctionResponse struct {
	Name     string               `json:"name"`
	Response FunctionResponseBody `json:"response"`
}

type FunctionResponseBody struct {
	Name    string `json:"name"`
	Content any    `json:"content"`
}

// GenerationConfig holds sampling parameters; nil fields are omitted.
type GenerationConfig struct {
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

func (c *GenerationConfig) empty() bool {
	return c.MaxOutputTokens == nil && c.Temperature == nil && c.TopP == nil &&
		c.TopK == nil && len(c.StopSequences) == 0
}

// Tool is a server-side tool declaration.
type Tool struct {
	Retrieval *Retrieval `json:"retrieval,omitempty"`
}

// Retrieval points the endpoint at one or more retrieval stores.
type Retrieval struct {
	StoreNames     []string `json:"storeNames"`
	MetadataFilter string   `json:"metadataFilter,omitempty"`
}

// GenerateContentResponse is the non-streaming response body. Metadata
// blocks stay as the bytes the endpoint sent; only the usage counters are
// decoded.
type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates,omitempty"`
	PromptFeedback json.RawMessage `json:"promptFeedback,omitempty"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
	ModelVersion   string          `json:"modelVersion,omitempty"`
	ResponseID     string          `json:"responseId,omitempty"`

	// rawUsage is the usageMetadata block as sent, including the fields
	// UsageMetadata does not model.
	rawUsage json.RawMessage
}

// Candidate is one response candidate. Only the first is consumed.
type Candidate struct {
	Content            *Content           `json:"content,omitempty"`
	FinishReason       genai.FinishReason `json:"finishReason,omitempty"`
	GroundingMetadata  json.RawMessage    `json:"groundingMetadata,omitempty"`
	URLContextMetadata json.RawMessage    `json:"urlContextMetadata,omitempty"`
	SafetyRatings      json.RawMessage    `json:"safetyRatings,omitempty"`
	Index              int                `json:"index,omitempty"`
}

// UsageMetadata keeps counters as pointers so that absent differs from zero.
type UsageMetadata struct {
	PromptTokenCount        *int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount    *int `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount         *int `json:"totalTokenCount,omitempty"`
	ThoughtsTokenCount      *int `json:"thoughtsTokenCount,omitempty"`
	CachedContentTokenCount *int `json:"cachedContentTokenCount,omitempty"`
}
