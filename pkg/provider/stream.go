package provider

import (
	"context"
	"time"
)

// InboundMessage is one message pushed or fetched from a messaging
// provider, flattened to the fields the agent loop consumes.
type InboundMessage struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MentionSource is implemented by providers that can push mentions of the
// agent as they arrive. The returned channel is closed when ctx is
// cancelled; transport drops are reconnected by the provider, not
// surfaced as a close.
type MentionSource interface {
	StreamMentions(ctx context.Context) (<-chan InboundMessage, error)
}
