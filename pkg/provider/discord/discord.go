// Package discord exposes a single Discord channel as a capability
// provider: reading recent history, posting, replying, reacting, and
// streaming mentions to the agent loop.
package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/driftlabs/helmsman/pkg/errors"
	"github.com/driftlabs/helmsman/pkg/provider"
	"github.com/driftlabs/helmsman/pkg/secrets"
)

const (
	// Name is the provider's registry name.
	Name = "discord"

	// EnvToken is the environment variable holding the bot token.
	EnvToken = "DISCORD_TOKEN"

	defaultReadCount    = 50
	defaultPostInterval = 900
	mentionBuffer       = 64
)

// restClient is the slice of discordgo.Session the REST operations use.
// Tests swap it for a stub.
type restClient interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
}

// Provider adapts one Discord channel.
type Provider struct {
	env       provider.Env
	channelID string
	readCount int

	// PostInterval is the minimum pacing between autonomous posts, in
	// seconds. The agent reads it; the provider itself does not gate.
	postInterval int

	ops        *provider.OperationSet
	newSession func(token string) (restClient, error)

	mu     sync.Mutex
	botID  string
	cached restClient
}

// New constructs the provider from its config block.
func New(cfg map[string]any, env provider.Env) (provider.Provider, error) {
	channelID, err := provider.RequiredString(cfg, "channel_id")
	if err != nil {
		return nil, err
	}
	readCount, err := provider.OptionalInt(cfg, "message_read_count", defaultReadCount)
	if err != nil {
		return nil, err
	}
	postInterval, err := provider.OptionalInt(cfg, "post_interval", defaultPostInterval)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		env:          env,
		channelID:    channelID,
		readCount:    readCount,
		postInterval: postInterval,
	}
	p.newSession = func(token string) (restClient, error) {
		return discordgo.New("Bot " + token)
	}

	p.ops, err = provider.NewOperationSet(
		provider.Operation{
			Name:        "read-channel",
			Description: "Read recent messages from the bound channel",
			Params: []provider.Param{
				{Name: "count", Required: false, Kind: provider.KindInt, Description: "Number of messages to read"},
			},
			Handler: p.readChannel,
		},
		provider.Operation{
			Name:        "send-message",
			Description: "Post a message to the bound channel",
			Params: []provider.Param{
				{Name: "content", Required: true, Kind: provider.KindString, Description: "Message text to post"},
			},
			Handler: p.sendMessage,
		},
		provider.Operation{
			Name:        "reply-to-message",
			Description: "Reply to a message in the bound channel",
			Params: []provider.Param{
				{Name: "message_id", Required: true, Kind: provider.KindString, Description: "Message to reply to"},
				{Name: "content", Required: true, Kind: provider.KindString, Description: "Reply text"},
			},
			Handler: p.replyToMessage,
		},
		provider.Operation{
			Name:        "react-to-message",
			Description: "Add an emoji reaction to a message",
			Params: []provider.Param{
				{Name: "message_id", Required: true, Kind: provider.KindString, Description: "Message to react to"},
				{Name: "emoji", Required: true, Kind: provider.KindString, Description: "Emoji to add"},
			},
			Handler: p.reactToMessage,
		},
		provider.Operation{
			Name:        "get-mentions",
			Description: "Fetch recent messages that mention the bot",
			Params: []provider.Param{
				{Name: "count", Required: false, Kind: provider.KindInt, Description: "Number of messages to scan"},
			},
			Handler: p.getMentions,
		},
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) Name() string      { return Name }
func (p *Provider) LLMProvider() bool { return false }

// PostInterval returns the configured pacing between autonomous posts,
// in seconds.
func (p *Provider) PostInterval() int { return p.postInterval }

// ChannelID returns the channel this provider is bound to.
func (p *Provider) ChannelID() string { return p.channelID }

func (p *Provider) Configure(ctx context.Context) (bool, error) {
	return provider.ConfigureSecret(ctx, p.env, Name, EnvToken, "Discord bot token")
}

func (p *Provider) IsConfigured(ctx context.Context, verbose bool) bool {
	if _, ok := secrets.Lookup(ctx, p.env.Secrets, Name, EnvToken); !ok {
		return false
	}
	if verbose {
		session, err := p.session(ctx)
		if err != nil {
			return false
		}
		if _, err := session.User("@me"); err != nil {
			return false
		}
	}
	return true
}

func (p *Provider) Operations() []provider.Operation {
	return p.ops.List()
}

func (p *Provider) Perform(ctx context.Context, operation string, params map[string]any) (any, error) {
	return p.ops.Perform(ctx, operation, params)
}

func (p *Provider) session(ctx context.Context) (restClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil {
		return p.cached, nil
	}
	token, ok := secrets.Lookup(ctx, p.env.Secrets, Name, EnvToken)
	if !ok {
		return nil, errors.Newf(errors.CodeNotConfigured, "%s is not set", EnvToken).WithRecoverable(true)
	}
	session, err := p.newSession(token)
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "failed to create discord session", err)
	}
	p.cached = session
	return session, nil
}

func (p *Provider) self(ctx context.Context) (string, error) {
	p.mu.Lock()
	cached := p.botID
	p.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	session, err := p.session(ctx)
	if err != nil {
		return "", err
	}
	user, err := session.User("@me")
	if err != nil {
		return "", errors.New(errors.CodeProvider, "failed to resolve bot identity", err).WithRecoverable(true)
	}
	p.mu.Lock()
	p.botID = user.ID
	p.mu.Unlock()
	return user.ID, nil
}

func (p *Provider) readChannel(ctx context.Context, params map[string]any) (any, error) {
	session, err := p.session(ctx)
	if err != nil {
		return nil, err
	}
	count := p.readCount
	if c, ok := params["count"].(int); ok && c > 0 {
		count = c
	}
	messages, err := session.ChannelMessages(p.channelID, count, "", "", "")
	if err != nil {
		return nil, errors.New(errors.CodeProvider, "failed to read channel", err).WithRecoverable(true)
	}
	return flatten(messages), nil
}

func (p *Provider) sendMessage(ctx context.Context, params map[string]any) (any, error) {
	session, err := p.session(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := session.ChannelMessageSend(p.channelID, params["content"].(string))
	if err != nil {
		return nil, errors.New(errors.CodeProvider, "failed to send message", err).WithRecoverable(true)
	}
	return flattenOne(msg), nil
}

func (p *Provider) replyToMessage(ctx context.Context, params map[string]any) (any, error) {
	session, err := p.session(ctx)
	if err != nil {
		return nil, err
	}
	ref := &discordgo.MessageReference{
		MessageID: params["message_id"].(string),
		ChannelID: p.channelID,
	}
	msg, err := session.ChannelMessageSendReply(p.channelID, params["content"].(string), ref)
	if err != nil {
		return nil, errors.New(errors.CodeProvider, "failed to reply", err).WithRecoverable(true)
	}
	return flattenOne(msg), nil
}

func (p *Provider) reactToMessage(ctx context.Context, params map[string]any) (any, error) {
	session, err := p.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := session.MessageReactionAdd(p.channelID, params["message_id"].(string), params["emoji"].(string)); err != nil {
		return nil, errors.New(errors.CodeProvider, "failed to react", err).WithRecoverable(true)
	}
	return true, nil
}

func (p *Provider) getMentions(ctx context.Context, params map[string]any) (any, error) {
	session, err := p.session(ctx)
	if err != nil {
		return nil, err
	}
	botID, err := p.self(ctx)
	if err != nil {
		return nil, err
	}
	count := p.readCount
	if c, ok := params["count"].(int); ok && c > 0 {
		count = c
	}
	messages, err := session.ChannelMessages(p.channelID, count, "", "", "")
	if err != nil {
		return nil, errors.New(errors.CodeProvider, "failed to read channel", err).WithRecoverable(true)
	}
	var mentions []provider.InboundMessage
	for _, m := range messages {
		if mentionsUser(m, botID) {
			mentions = append(mentions, flattenOne(m))
		}
	}
	return mentions, nil
}

// StreamMentions opens a gateway session and pushes mentions of the bot
// in the bound channel until ctx is cancelled. The gateway connection is
// separate from the REST session so REST operations keep working if the
// stream drops.
func (p *Provider) StreamMentions(ctx context.Context) (<-chan provider.InboundMessage, error) {
	token, ok := secrets.Lookup(ctx, p.env.Secrets, Name, EnvToken)
	if !ok {
		return nil, errors.Newf(errors.CodeNotConfigured, "%s is not set", EnvToken).WithRecoverable(true)
	}
	gateway, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "failed to create discord session", err)
	}
	gateway.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	stream := newMentionStream()
	remove := gateway.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.ChannelID != p.channelID || m.Author.ID == s.State.User.ID {
			return
		}
		if !mentionsUser(m.Message, s.State.User.ID) {
			return
		}
		stream.deliver(flattenOne(m.Message))
	})

	if err := gateway.Open(); err != nil {
		remove()
		return nil, errors.New(errors.CodeProvider, "failed to open discord gateway", err).WithRecoverable(true)
	}
	go func() {
		<-ctx.Done()
		remove()
		gateway.Close()
		stream.shutdown()
	}()
	return stream.out, nil
}

// mentionStream owns the channel handed to the agent. Gateway handlers run
// on goroutines discordgo spawns per event, so delivery and shutdown
// synchronize on a mutex: after shutdown, late deliveries from in-flight
// handlers are dropped instead of sent on the closed channel.
type mentionStream struct {
	mu     sync.Mutex
	closed bool
	out    chan provider.InboundMessage
}

func newMentionStream() *mentionStream {
	return &mentionStream{out: make(chan provider.InboundMessage, mentionBuffer)}
}

func (s *mentionStream) deliver(msg provider.InboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- msg:
	default:
		// Slow consumer; drop rather than stall the gateway handler.
	}
}

func (s *mentionStream) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

func mentionsUser(m *discordgo.Message, userID string) bool {
	for _, u := range m.Mentions {
		if u.ID == userID {
			return true
		}
	}
	return false
}

func flatten(messages []*discordgo.Message) []provider.InboundMessage {
	out := make([]provider.InboundMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, flattenOne(m))
	}
	return out
}

func flattenOne(m *discordgo.Message) provider.InboundMessage {
	msg := provider.InboundMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.Author = m.Author.Username
	}
	return msg
}

var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.MentionSource = (*Provider)(nil)
)
