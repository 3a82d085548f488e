package discord

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/driftlabs/helmsman/pkg/errors"
	"github.com/driftlabs/helmsman/pkg/provider"
)

const testChannel = "chan-1"

type stubSession struct {
	botID     string
	messages  []*discordgo.Message
	sent      []string
	replies   map[string]string
	reactions map[string]string
	lastLimit int
}

func (s *stubSession) User(userID string, _ ...discordgo.RequestOption) (*discordgo.User, error) {
	return &discordgo.User{ID: s.botID, Username: "helmsman"}, nil
}

func (s *stubSession) ChannelMessages(channelID string, limit int, _, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	s.lastLimit = limit
	return s.messages, nil
}

func (s *stubSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.sent = append(s.sent, content)
	return &discordgo.Message{ID: "new-1", ChannelID: channelID, Content: content}, nil
}

func (s *stubSession) ChannelMessageSendReply(channelID, content string, ref *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if s.replies == nil {
		s.replies = make(map[string]string)
	}
	s.replies[ref.MessageID] = content
	return &discordgo.Message{ID: "reply-1", ChannelID: channelID, Content: content}, nil
}

func (s *stubSession) MessageReactionAdd(channelID, messageID, emojiID string, _ ...discordgo.RequestOption) error {
	if s.reactions == nil {
		s.reactions = make(map[string]string)
	}
	s.reactions[messageID] = emojiID
	return nil
}

func newTestProvider(t *testing.T, stub *stubSession) *Provider {
	t.Helper()
	t.Setenv(EnvToken, "test-token")
	p, err := New(map[string]any{"name": Name, "channel_id": testChannel}, provider.Env{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	dp := p.(*Provider)
	dp.newSession = func(string) (restClient, error) { return stub, nil }
	return dp
}

func TestRequiresChannelID(t *testing.T) {
	_, err := New(map[string]any{"name": Name}, provider.Env{})
	if !errors.HasCode(err, errors.CodeConfiguration) {
		t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
	}
}

func TestReadChannel(t *testing.T) {
	stub := &stubSession{
		botID: "bot-1",
		messages: []*discordgo.Message{
			{ID: "m1", ChannelID: testChannel, Content: "first", Author: &discordgo.User{ID: "u1", Username: "alice"}},
			{ID: "m2", ChannelID: testChannel, Content: "second", Author: &discordgo.User{ID: "u2", Username: "bob"}},
		},
	}
	p := newTestProvider(t, stub)

	result, err := p.Perform(context.Background(), "read-channel", map[string]any{"count": 2})
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}
	msgs := result.([]provider.InboundMessage)
	if len(msgs) != 2 || msgs[0].Author != "alice" {
		t.Errorf("unexpected messages: %+v", msgs)
	}
	if stub.lastLimit != 2 {
		t.Errorf("expected limit 2, got %d", stub.lastLimit)
	}
}

func TestReadChannelDefaultCount(t *testing.T) {
	stub := &stubSession{botID: "bot-1"}
	p := newTestProvider(t, stub)

	if _, err := p.Perform(context.Background(), "read-channel", nil); err != nil {
		t.Fatalf("Perform failed: %v", err)
	}
	if stub.lastLimit != defaultReadCount {
		t.Errorf("expected default read count %d, got %d", defaultReadCount, stub.lastLimit)
	}
}

func TestSendAndReply(t *testing.T) {
	stub := &stubSession{botID: "bot-1"}
	p := newTestProvider(t, stub)

	if _, err := p.Perform(context.Background(), "send-message", map[string]any{"content": "hello"}); err != nil {
		t.Fatalf("send-message failed: %v", err)
	}
	if len(stub.sent) != 1 || stub.sent[0] != "hello" {
		t.Errorf("unexpected sent messages: %v", stub.sent)
	}

	if _, err := p.Perform(context.Background(), "reply-to-message", map[string]any{
		"message_id": "m1",
		"content":    "pong",
	}); err != nil {
		t.Fatalf("reply-to-message failed: %v", err)
	}
	if stub.replies["m1"] != "pong" {
		t.Errorf("unexpected replies: %v", stub.replies)
	}
}

func TestReactToMessage(t *testing.T) {
	stub := &stubSession{botID: "bot-1"}
	p := newTestProvider(t, stub)

	if _, err := p.Perform(context.Background(), "react-to-message", map[string]any{
		"message_id": "m1",
		"emoji":      "👍",
	}); err != nil {
		t.Fatalf("react-to-message failed: %v", err)
	}
	if stub.reactions["m1"] != "👍" {
		t.Errorf("unexpected reactions: %v", stub.reactions)
	}
}

func TestGetMentionsFiltersBotMentions(t *testing.T) {
	stub := &stubSession{
		botID: "bot-1",
		messages: []*discordgo.Message{
			{ID: "m1", Content: "hey bot", Author: &discordgo.User{ID: "u1"}, Mentions: []*discordgo.User{{ID: "bot-1"}}},
			{ID: "m2", Content: "unrelated", Author: &discordgo.User{ID: "u2"}},
			{ID: "m3", Content: "other ping", Author: &discordgo.User{ID: "u3"}, Mentions: []*discordgo.User{{ID: "someone-else"}}},
		},
	}
	p := newTestProvider(t, stub)

	result, err := p.Perform(context.Background(), "get-mentions", nil)
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}
	mentions := result.([]provider.InboundMessage)
	if len(mentions) != 1 || mentions[0].ID != "m1" {
		t.Errorf("unexpected mentions: %+v", mentions)
	}
}

func TestIsConfiguredWithoutToken(t *testing.T) {
	t.Setenv(EnvToken, "")
	p, err := New(map[string]any{"name": Name, "channel_id": testChannel}, provider.Env{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.IsConfigured(context.Background(), false) {
		t.Error("expected unconfigured without token")
	}
}

func TestMissingRequiredContent(t *testing.T) {
	p := newTestProvider(t, &stubSession{botID: "bot-1"})

	_, err := p.Perform(context.Background(), "send-message", nil)
	if !errors.HasCode(err, errors.CodeInvalidParameters) {
		t.Errorf("expected INVALID_PARAMETERS, got %v", err)
	}
}

func TestMentionStreamDeliverAfterShutdown(t *testing.T) {
	stream := newMentionStream()
	stream.deliver(provider.InboundMessage{ID: "m1"})
	stream.shutdown()

	// Gateway handlers dispatched before shutdown may still be running;
	// their late deliveries must be dropped, not sent on a closed channel.
	stream.deliver(provider.InboundMessage{ID: "m2"})

	msg, ok := <-stream.out
	if !ok || msg.ID != "m1" {
		t.Fatalf("expected buffered m1, got %+v ok=%v", msg, ok)
	}
	if _, ok := <-stream.out; ok {
		t.Error("expected channel closed after shutdown")
	}
}

func TestMentionStreamConcurrentShutdown(t *testing.T) {
	stream := newMentionStream()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stream.deliver(provider.InboundMessage{ID: "m"})
			}
		}()
	}
	stream.shutdown()
	stream.shutdown() // idempotent
	wg.Wait()

	for range stream.out {
	}
}
