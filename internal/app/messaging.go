package app

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"huddle/internal/auth"
	"huddle/internal/domain"
	"huddle/internal/store"
	apperrors "huddle/pkg/errors"
)

// Messaging validates membership, persists messages with their
// mentions, touches channel activity and fans the result out.
type Messaging struct {
	store        store.Store
	notifier     Pusher
	defaultLimit int
	maxLimit     int
}

func NewMessaging(st store.Store, notifier Pusher, defaultLimit, maxLimit int) *Messaging {
	return &Messaging{store: st, notifier: notifier, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

var mentionRe = regexp.MustCompile(`@(\w+)`)

// ExtractMentions pulls the @nickname tokens out of a message text.
func ExtractMentions(text string) []string {
	matches := mentionRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if m[1] != "" {
			out = append(out, m[1])
		}
	}
	return out
}

func (e *Messaging) Send(ctx context.Context, p *auth.Principal, channelID int64, text string) error {
	if text == "" {
		return apperrors.ErrEmptyMessage
	}

	// The membership check and activity touch run under the channel
	// lock; the insert and fan-out happen after it.
	err := e.store.InChannelTx(ctx, channelID, func(tx store.ChannelTx) error {
		if _, err := tx.Member(ctx, p.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.ErrSenderNotMember
			}
			return err
		}
		return tx.Touch(ctx)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.ErrChannelNotFound
		}
		return err
	}

	// Mentions resolve against all users, not just channel members;
	// unmatched tokens are dropped silently.
	tokens := ExtractMentions(text)
	mentioned, err := e.store.UsersByNicknames(ctx, tokens)
	if err != nil {
		return err
	}
	mentionedIDs := make([]int64, 0, len(mentioned))
	mentionedNicks := make([]string, 0, len(mentioned))
	for _, u := range mentioned {
		mentionedIDs = append(mentionedIDs, u.ID)
		mentionedNicks = append(mentionedNicks, u.Nickname)
	}

	msg := &domain.Message{ChannelID: channelID, UserID: p.ID, Text: text}
	if err := e.store.CreateMessage(ctx, msg, mentionedIDs); err != nil {
		return err
	}

	detail, err := e.store.ChannelDetail(ctx, channelID)
	if err != nil {
		return err
	}
	payload := MessagePayload{
		ID:        msg.ID,
		ChatID:    detail.Channel.Name,
		SenderID:  p.Nickname,
		Text:      text,
		CreatedAt: msg.CreatedAt.UnixMilli(),
		Mentioned: mentionedNicks,
		System:    false,
	}
	e.notifier.Broadcast(memberIDs(detail), EventMessageNew, payload)
	return nil
}

func (e *Messaging) History(ctx context.Context, p *auth.Principal, channelID, beforeID int64, limit int) ([]MessagePayload, error) {
	detail, err := e.store.ChannelDetail(ctx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrChannelNotFound
		}
		return nil, err
	}
	member := false
	for _, m := range detail.Members {
		if m.User.ID == p.ID {
			member = true
			break
		}
	}
	if !member {
		return nil, apperrors.ErrSenderNotMember
	}

	if limit <= 0 {
		limit = e.defaultLimit
	}
	// Client-controlled limit gets clamped server-side.
	if limit > e.maxLimit {
		limit = e.maxLimit
	}

	messages, err := e.store.MessagesBefore(ctx, channelID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	// Newest-first from the store, chronological for the caller.
	out := make([]MessagePayload, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		sender := m.SenderNickname
		if sender == "" {
			sender = "unknown"
		}
		mentioned := m.Mentioned
		if mentioned == nil {
			mentioned = []string{}
		}
		out = append(out, MessagePayload{
			ID:        m.Message.ID,
			ChatID:    detail.Channel.Name,
			SenderID:  sender,
			Text:      m.Message.Text,
			CreatedAt: m.Message.CreatedAt.UnixMilli(),
			Mentioned: mentioned,
			System:    false,
		})
	}
	return out, nil
}

// SystemMessage broadcasts a synthetic, non-persisted announcement to
// the channel's current members.
func (e *Messaging) SystemMessage(ctx context.Context, channelID int64, text string) {
	detail, err := e.store.ChannelDetail(ctx, channelID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Str("module", "app.messaging").Int64("channel_id", channelID).Msg("system message detail")
		}
		return
	}
	now := time.Now()
	payload := MessagePayload{
		ID:        now.UnixMilli(),
		ChatID:    detail.Channel.Name,
		SenderID:  "system",
		Text:      text,
		CreatedAt: now.UnixMilli(),
		Mentioned: []string{},
		System:    true,
	}
	e.notifier.Broadcast(memberIDs(detail), EventMessageNew, payload)
}
