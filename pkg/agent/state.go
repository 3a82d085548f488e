package agent

import (
	"time"

	"github.com/driftlabs/helmsman/pkg/provider"
)

// Keys the built-in actions share.
const (
	stateTimeline = "timeline"
	stateMentions = "mentions"
	stateLastPost = "last_post_time"
)

// State is the agent's process-lifetime working memory. It is owned by the
// loop goroutine: mention records cross goroutines only through the listener
// channel and are folded in at the start of each iteration, so no lock is
// needed here.
type State struct {
	values    map[string]any
	processed map[string]bool
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		values:    make(map[string]any),
		processed: make(map[string]bool),
	}
}

// Set stores a value.
func (s *State) Set(key string, value any) {
	s.values[key] = value
}

// Get returns a stored value.
func (s *State) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Delete removes a key.
func (s *State) Delete(key string) {
	delete(s.values, key)
}

// Time returns a stored timestamp, or the zero time when absent.
func (s *State) Time(key string) time.Time {
	if t, ok := s.values[key].(time.Time); ok {
		return t
	}
	return time.Time{}
}

// Messages returns the stored message queue under key.
func (s *State) Messages(key string) []provider.InboundMessage {
	if msgs, ok := s.values[key].([]provider.InboundMessage); ok {
		return msgs
	}
	return nil
}

// PushMessages appends messages to the queue under key.
func (s *State) PushMessages(key string, msgs ...provider.InboundMessage) {
	if len(msgs) == 0 {
		return
	}
	s.values[key] = append(s.Messages(key), msgs...)
}

// PopMessage removes and returns the head of the queue under key.
func (s *State) PopMessage(key string) (provider.InboundMessage, bool) {
	msgs := s.Messages(key)
	if len(msgs) == 0 {
		return provider.InboundMessage{}, false
	}
	head := msgs[0]
	rest := msgs[1:]
	if len(rest) == 0 {
		delete(s.values, key)
	} else {
		s.values[key] = rest
	}
	return head, true
}

// MarkProcessed records that a message has been handled.
func (s *State) MarkProcessed(id string) {
	s.processed[id] = true
}

// Processed reports whether a message was already handled.
func (s *State) Processed(id string) bool {
	return s.processed[id]
}
