package app

import (
	"context"

	"huddle/internal/auth"
	"huddle/internal/domain"
	"huddle/internal/store"
	apperrors "huddle/pkg/errors"
)

// Presence handles the pass-through notifications: status changes,
// typing indicators and draft previews. No durable state beyond the
// user's status flags.
type Presence struct {
	store    store.Store
	notifier Pusher
}

func NewPresence(st store.Store, notifier Pusher) *Presence {
	return &Presence{store: st, notifier: notifier}
}

type StatusChanged struct {
	NickName string            `json:"nickName"`
	Status   domain.UserStatus `json:"status"`
}

type TypingPayload struct {
	ChannelID int64  `json:"channelId"`
	NickName  string `json:"nickName"`
}

type DraftPayload struct {
	ChannelID int64  `json:"channelId"`
	NickName  string `json:"nickName"`
	Text      string `json:"text"`
}

// UpdateStatus persists the change and announces it to every connected
// user.
func (e *Presence) UpdateStatus(ctx context.Context, p *auth.Principal, status domain.UserStatus, notifyOnlyMentions *bool) error {
	if status != "" && !domain.ValidStatus(status) {
		return apperrors.InvalidArg("unknown status")
	}
	if err := e.store.UpdateUserPresence(ctx, p.ID, status, notifyOnlyMentions); err != nil {
		return err
	}
	if status != "" {
		e.notifier.ToAll(EventStatusChanged, StatusChanged{NickName: p.Nickname, Status: status})
	}
	return nil
}

// Typing relays the indicator to the channel's members. Unknown
// channels are ignored: a stale indicator is not worth an error.
func (e *Presence) Typing(ctx context.Context, p *auth.Principal, channelID int64) {
	detail, err := e.store.ChannelDetail(ctx, channelID)
	if err != nil {
		return
	}
	e.notifier.Broadcast(memberIDs(detail), EventTyping, TypingPayload{ChannelID: channelID, NickName: p.Nickname})
}

// Draft relays a live preview of what the user is composing.
func (e *Presence) Draft(ctx context.Context, p *auth.Principal, channelID int64, text string) {
	detail, err := e.store.ChannelDetail(ctx, channelID)
	if err != nil {
		return
	}
	e.notifier.Broadcast(memberIDs(detail), EventDraftUpdate, DraftPayload{ChannelID: channelID, NickName: p.Nickname, Text: text})
}
