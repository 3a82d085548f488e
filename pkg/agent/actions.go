package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/driftlabs/helmsman/pkg/errors"
)

// ActionFunc is one schedulable behavior. The boolean reports whether the
// action did useful work; pacing skips and empty queues are not failures.
type ActionFunc func(ctx context.Context, a *Agent) (bool, error)

const reactionEmoji = "👍"

func builtinActions() map[string]ActionFunc {
	return map[string]ActionFunc{
		"post-message":        actionPostMessage,
		"reply-to-message":    actionReplyToMessage,
		"react-to-message":    actionReactToMessage,
		"respond-to-mentions": actionRespondToMentions,
	}
}

// actionPostMessage generates a persona post and sends it to the bound
// channel, honoring the provider's post interval via last_post_time.
func actionPostMessage(ctx context.Context, a *Agent) (bool, error) {
	name, ok := a.messagingProvider(ctx)
	if !ok {
		return false, errors.New(errors.CodeNotConfigured, "no messaging provider registered", nil).
			WithRecoverable(true)
	}

	last := a.state.Time(stateLastPost)
	if !last.IsZero() && a.now().Sub(last) < a.postInterval(name) {
		a.log.Debug("post interval not elapsed, skipping post")
		return true, nil
	}

	text, err := a.PromptLLM(ctx, "Generate a short post for your audience. Stay in character and do not use hashtags.")
	if err != nil {
		return false, err
	}
	if _, err := a.registry.Dispatch(ctx, name, "send-message", []any{text}); err != nil {
		return false, err
	}
	a.state.Set(stateLastPost, a.now())
	a.log.Info("posted message", slog.String("provider", name))
	return true, nil
}

// actionReplyToMessage pops the timeline head and replies to it.
func actionReplyToMessage(ctx context.Context, a *Agent) (bool, error) {
	name, ok := a.messagingProvider(ctx)
	if !ok {
		return false, errors.New(errors.CodeNotConfigured, "no messaging provider registered", nil).
			WithRecoverable(true)
	}
	msg, ok := a.state.PopMessage(stateTimeline)
	if !ok {
		a.log.Debug("timeline empty, nothing to reply to")
		return true, nil
	}

	reply, err := a.PromptLLM(ctx, fmt.Sprintf(
		"Write a brief reply to this message from %s: %q", msg.Author, msg.Content))
	if err != nil {
		return false, err
	}
	if _, err := a.registry.Dispatch(ctx, name, "reply-to-message", []any{msg.ID, reply}); err != nil {
		return false, err
	}
	a.log.Info("replied to message", slog.String("message_id", msg.ID))
	return true, nil
}

// actionReactToMessage pops the timeline head and reacts to it.
func actionReactToMessage(ctx context.Context, a *Agent) (bool, error) {
	name, ok := a.messagingProvider(ctx)
	if !ok {
		return false, errors.New(errors.CodeNotConfigured, "no messaging provider registered", nil).
			WithRecoverable(true)
	}
	msg, ok := a.state.PopMessage(stateTimeline)
	if !ok {
		a.log.Debug("timeline empty, nothing to react to")
		return true, nil
	}

	if _, err := a.registry.Dispatch(ctx, name, "react-to-message", []any{msg.ID, reactionEmoji}); err != nil {
		return false, err
	}
	a.log.Info("reacted to message", slog.String("message_id", msg.ID))
	return true, nil
}

// actionRespondToMentions replies to every queued mention not yet handled.
// Mentions arrive through the listener channel and are drained into state
// at the start of each iteration.
func actionRespondToMentions(ctx context.Context, a *Agent) (bool, error) {
	name, ok := a.messagingProvider(ctx)
	if !ok {
		return false, errors.New(errors.CodeNotConfigured, "no messaging provider registered", nil).
			WithRecoverable(true)
	}

	responded := 0
	for {
		msg, ok := a.state.PopMessage(stateMentions)
		if !ok {
			break
		}
		if a.state.Processed(msg.ID) {
			continue
		}
		reply, err := a.PromptLLM(ctx, fmt.Sprintf(
			"%s mentioned you and said: %q. Write a brief, helpful reply.", msg.Author, msg.Content))
		if err != nil {
			return false, err
		}
		if _, err := a.registry.Dispatch(ctx, name, "reply-to-message", []any{msg.ID, reply}); err != nil {
			return false, err
		}
		a.state.MarkProcessed(msg.ID)
		responded++
	}
	if responded > 0 {
		a.log.Info("responded to mentions", slog.Int("count", responded))
	}
	return true, nil
}
