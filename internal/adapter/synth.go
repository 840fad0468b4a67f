package adapter

import (
	"iter"
	"slices"
	"strconv"
)

type synthState int

const (
	stateIdle synthState = iota
	stateInText
	stateInReasoning
)

func stateFor(kind BlockKind) synthState {
	if kind == BlockReasoning {
		return stateInReasoning
	}
	return stateInText
}

// synthesizer replays materialized content blocks as lifecycle events.
// Block ids come from a monotonic counter and are never reused.
type synthesizer struct {
	state  synthState
	openID string
	nextID int
	events []StreamEvent
}

func (s *synthesizer) open(state synthState) {
	s.state = state
	s.openID = strconv.Itoa(s.nextID)
	s.nextID++
	typ := EventTextStart
	if state == stateInReasoning {
		typ = EventReasoningStart
	}
	s.events = append(s.events, StreamEvent{Type: typ, ID: s.openID})
}

func (s *synthesizer) close() {
	switch s.state {
	case stateInText:
		s.events = append(s.events, StreamEvent{Type: EventTextEnd, ID: s.openID})
	case stateInReasoning:
		s.events = append(s.events, StreamEvent{Type: EventReasoningEnd, ID: s.openID})
	case stateIdle:
		return
	}
	s.state = stateIdle
	s.openID = ""
}

func (s *synthesizer) block(b ContentBlock) {
	want := stateFor(b.Kind)
	if s.state != want {
		s.close()
		s.open(want)
	}
	typ := EventTextDelta
	if want == stateInReasoning {
		typ = EventReasoningDelta
	}
	s.events = append(s.events, StreamEvent{Type: typ, ID: s.openID, Delta: b.Text})
}

// Synthesize computes the full event sequence for a result: stream-start,
// start/delta/end per block run, then finish. The output depends only on
// the result.
func Synthesize(res *Result) []StreamEvent {
	s := &synthesizer{events: make([]StreamEvent, 0, 2*len(res.Content)+4)}
	s.events = append(s.events, StreamEvent{Type: EventStreamStart})
	for _, b := range res.Content {
		s.block(b)
	}
	s.close()

	usage := res.Usage
	s.events = append(s.events, StreamEvent{
		Type:             EventFinish,
		FinishReason:     res.FinishReason,
		Usage:            &usage,
		ProviderMetadata: res.ProviderMetadata,
	})
	return s.events
}

// Events returns the synthesized sequence as a pull-based iterator. Stopping
// early leaves nothing behind.
func Events(res *Result) iter.Seq[StreamEvent] {
	return slices.Values(Synthesize(res))
}

// Collect rebuilds content blocks from a stream: one block per delta, tagged
// with the kind of the block it belongs to.
func Collect(events iter.Seq[StreamEvent]) []ContentBlock {
	var blocks []ContentBlock
	for ev := range events {
		if ev.Type != EventTextDelta && ev.Type != EventReasoningDelta {
			continue
		}
		kind, _ := ev.Kind()
		blocks = append(blocks, ContentBlock{Kind: kind, Text: ev.Delta})
	}
	return blocks
}
