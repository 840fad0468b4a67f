package adapter

// EventType tags a StreamEvent.
type EventType string

const (
	EventStreamStart    EventType = "stream-start"
	EventTextStart      EventType = "text-start"
	EventTextDelta      EventType = "text-delta"
	EventTextEnd        EventType = "text-end"
	EventReasoningStart EventType = "reasoning-start"
	EventReasoningDelta EventType = "reasoning-delta"
	EventReasoningEnd   EventType = "reasoning-end"
	EventFinish         EventType = "finish"
)

// StreamEvent is one step of the block lifecycle protocol. ID is set on
// start/delta/end events; Delta on delta events; the finish fields on the
// finish event only.
type StreamEvent struct {
	Type  EventType `json:"type"`
	ID    string    `json:"id,omitempty"`
	Delta string    `json:"delta,omitempty"`

	FinishReason     FinishReason     `json:"finishReason,omitempty"`
	Usage            *Usage           `json:"usage,omitempty"`
	ProviderMetadata ProviderMetadata `json:"providerMetadata,omitempty"`
}

// Kind returns the block kind an id-carrying event belongs to.
func (e StreamEvent) Kind() (BlockKind, bool) {
	switch e.Type {
	case EventTextStart, EventTextDelta, EventTextEnd:
		return BlockText, true
	case EventReasoningStart, EventReasoningDelta, EventReasoningEnd:
		return BlockReasoning, true
	default:
		return "", false
	}
}
