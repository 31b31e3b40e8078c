// Package thread resolves a reaction trigger into the clean conversation text
// handed to generation.
package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/quill/internal/slack"
)

// ErrEmptyThread means no processable messages remain after filtering. The
// caller should tell the user there was nothing to process instead of
// invoking generation.
var ErrEmptyThread = errors.New("no processable messages in thread")

// Announcement fragments quill itself posts back into threads. Messages
// containing them are filtered out so they never pollute generation input.
const (
	NoticeCreated = "Notion page created"
	NoticeFailed  = "Notion page creation failed"
)

// SlackAPI is the slice of the Slack client the resolver needs.
type SlackAPI interface {
	FetchMessageAt(ctx context.Context, channel, ts string) (*slack.Message, error)
	FetchReplies(ctx context.Context, channel, rootTS string) ([]slack.Message, error)
	BotUserID(ctx context.Context) (string, error)
}

type Resolver struct {
	slack  SlackAPI
	logger *slog.Logger
}

func NewResolver(api SlackAPI, logger *slog.Logger) *Resolver {
	return &Resolver{slack: api, logger: logger}
}

// Thread is a resolved, filtered conversation.
type Thread struct {
	ChannelID string
	RootTS    string
	Messages  []slack.Message
}

// Text renders the thread as "<@author>: text" lines in thread order.
func (t *Thread) Text() string {
	lines := make([]string, 0, len(t.Messages))
	for _, m := range t.Messages {
		lines = append(lines, fmt.Sprintf("<@%s>: %s", m.User, m.Text))
	}
	return strings.Join(lines, "\n")
}

// Resolve finds the thread root for the trigger message, fetches every reply
// and drops bot messages and quill's own announcements.
func (r *Resolver) Resolve(ctx context.Context, channelID, triggerTS string) (*Thread, error) {
	trigger, err := r.slack.FetchMessageAt(ctx, channelID, triggerTS)
	if err != nil {
		return nil, fmt.Errorf("fetch trigger message: %w", err)
	}

	rootTS := triggerTS
	if trigger.ThreadTS != "" {
		rootTS = trigger.ThreadTS
	}

	messages, err := r.slack.FetchReplies(ctx, channelID, rootTS)
	if err != nil {
		return nil, fmt.Errorf("fetch replies: %w", err)
	}

	botID, err := r.slack.BotUserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve bot identity: %w", err)
	}

	var kept []slack.Message
	for _, m := range messages {
		if m.User == botID || m.BotID != "" {
			continue
		}
		if isAnnouncement(m.Text) {
			continue
		}
		kept = append(kept, m)
	}

	r.logger.Debug("thread resolved",
		"channel", channelID,
		"root_ts", rootTS,
		"messages", len(messages),
		"kept", len(kept),
	)

	if len(kept) == 0 {
		return nil, ErrEmptyThread
	}

	return &Thread{ChannelID: channelID, RootTS: rootTS, Messages: kept}, nil
}

func isAnnouncement(text string) bool {
	return strings.Contains(text, NoticeCreated) || strings.Contains(text, NoticeFailed)
}
