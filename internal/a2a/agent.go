package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	"github.com/sowankispassah/khasigpt-sub005/internal/adapter/gemini"
)

// apiKeyContextKey is the context key used to propagate the caller's API key
// from the HTTP layer into the agent's Run function.
type apiKeyContextKey struct{}

// ContextWithAPIKey returns a new context carrying the given API key.
// Call this in an HTTP middleware before the request reaches the A2A handler.
func ContextWithAPIKey(ctx context.Context, apiKey string) context.Context {
	return context.WithValue(ctx, apiKeyContextKey{}, apiKey)
}

// apiKeyFromContext retrieves the API key injected by the HTTP middleware.
// Returns ("", false) when no key was injected.
func apiKeyFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(apiKeyContextKey{}).(string)
	return v, ok && v != ""
}

// AgentConfig holds the configuration for the generation-backed A2A agent.
type AgentConfig struct {
	// Name is the agent name exposed via A2A AgentCard.
	Name string
	// Description is exposed via A2A AgentCard.
	Description string
	// Generator answers each invocation.
	Generator adapter.Generator
	// Stores and MetadataFilter scope retrieval for every invocation.
	Stores         []string
	MetadataFilter string
}

// New returns an agent.Agent whose Run logic streams a generation result and
// converts the lifecycle events into session.Events that the ADK runner
// understands.
func New(cfg AgentConfig) (agent.Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("a2a agent: Name must not be empty")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("a2a agent: Generator must not be nil")
	}

	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		Run:         runFunc(cfg),
	})
}

// runFunc returns the Run closure that drives one agent invocation.
func runFunc(cfg AgentConfig) func(agent.InvocationContext) iter.Seq2[*session.Event, error] {
	return func(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
		return func(yield func(*session.Event, error) bool) {
			newEvent := func(resp model.LLMResponse) *session.Event {
				ev := session.NewEvent(ctx.InvocationID())
				ev.Author = cfg.Name
				ev.Branch = ctx.Branch()
				ev.LLMResponse = resp
				return ev
			}

			msgs := messagesFromContent(ctx.UserContent())
			if len(msgs) == 0 {
				yield(newEvent(model.LLMResponse{
					Content:      textContent("(empty input)"),
					TurnComplete: true,
				}), nil)
				return
			}

			call := &adapter.Call{
				Messages:       msgs,
				StoreNames:     cfg.Stores,
				MetadataFilter: cfg.MetadataFilter,
			}
			// Prefer the per-request key injected by the HTTP middleware; the
			// generator falls back to its configured key.
			if apiKey, ok := apiKeyFromContext(ctx); ok {
				call.APIKey = apiKey
			}

			events, err := cfg.Generator.Stream(ctx, call)
			if err != nil {
				yield(nil, fmt.Errorf("generation failed: %w", err))
				return
			}

			final := &genai.Content{Role: genai.RoleModel}
			for ev := range events {
				switch ev.Type {
				case adapter.EventTextDelta, adapter.EventReasoningDelta:
					part := &genai.Part{Text: ev.Delta, Thought: ev.Type == adapter.EventReasoningDelta}
					final.Parts = append(final.Parts, part)

					// Emit a partial event so streaming A2A clients see blocks as they arrive.
					partial := newEvent(model.LLMResponse{
						Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{part}},
						Partial: true,
					})
					if !yield(partial, nil) {
						return
					}
				case adapter.EventFinish:
					// The final (non-partial) event closes the invocation.
					yield(newEvent(model.LLMResponse{
						Content:           final,
						TurnComplete:      true,
						FinishReason:      finishReasonToGenai(ev.FinishReason),
						UsageMetadata:     usageToGenai(ev.Usage),
						GroundingMetadata: groundingFrom(ev.ProviderMetadata),
					}), nil)
					return
				}
			}
		}
	}
}

// messagesFromContent maps the caller's genai.Content into a single user
// message. Thought parts and parts the adapter cannot carry are dropped.
func messagesFromContent(content *genai.Content) []adapter.Message {
	if content == nil {
		return nil
	}
	var parts []adapter.Part
	for _, p := range content.Parts {
		switch {
		case p == nil || p.Thought:
			continue
		case p.InlineData != nil && len(p.InlineData.Data) > 0:
			parts = append(parts, adapter.FilePart{MediaType: p.InlineData.MIMEType, Data: p.InlineData.Data})
		case p.FileData != nil && p.FileData.FileURI != "":
			parts = append(parts, adapter.FilePart{MediaType: p.FileData.MIMEType, URI: p.FileData.FileURI})
		case strings.TrimSpace(p.Text) != "":
			parts = append(parts, adapter.TextPart{Text: p.Text})
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return []adapter.Message{{Role: adapter.RoleUser, Content: parts}}
}

func finishReasonToGenai(r adapter.FinishReason) genai.FinishReason {
	switch r {
	case adapter.FinishStop:
		return genai.FinishReasonStop
	case adapter.FinishLength:
		return genai.FinishReasonMaxTokens
	case adapter.FinishContentFilter:
		return genai.FinishReasonSafety
	case adapter.FinishError:
		return genai.FinishReasonMalformedFunctionCall
	case adapter.FinishOther:
		return genai.FinishReasonOther
	default:
		return genai.FinishReasonUnspecified
	}
}

func usageToGenai(u *adapter.Usage) *genai.GenerateContentResponseUsageMetadata {
	if u == nil || (u.InputTokens == nil && u.OutputTokens == nil && u.TotalTokens == nil &&
		u.ReasoningTokens == nil && u.CachedInputTokens == nil) {
		return nil
	}
	return &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:        count32(u.InputTokens),
		CandidatesTokenCount:    count32(u.OutputTokens),
		TotalTokenCount:         count32(u.TotalTokens),
		ThoughtsTokenCount:      count32(u.ReasoningTokens),
		CachedContentTokenCount: count32(u.CachedInputTokens),
	}
}

func count32(v *int) int32 {
	switch {
	case v == nil:
		return 0
	case *v > math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(*v)
	}
}

// groundingFrom decodes the raw grounding block into the ADK's type. A block
// that does not decode is left off the event.
func groundingFrom(md adapter.ProviderMetadata) *genai.GroundingMetadata {
	raw, ok := md[gemini.ProviderKey]["groundingMetadata"].(json.RawMessage)
	if !ok {
		return nil
	}
	var gm genai.GroundingMetadata
	if err := json.Unmarshal(raw, &gm); err != nil {
		slog.Debug("grounding metadata not decodable", "error", err)
		return nil
	}
	return &gm
}

// textContent is a small helper that wraps a string into a *genai.Content.
func textContent(text string) *genai.Content {
	return &genai.Content{
		Role:  genai.RoleModel,
		Parts: []*genai.Part{{Text: text}},
	}
}
