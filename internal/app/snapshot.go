package app

import (
	"huddle/internal/domain"
	"huddle/internal/store"
)

// ChannelSnapshot is the wire view of a channel: nicknames, not ids,
// and millisecond timestamps.
type ChannelSnapshot struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	Type           domain.ChannelType `json:"type"`
	Admin          string             `json:"admin"`
	Members        []string           `json:"members"`
	Banned         []string           `json:"banned"`
	CreatedAt      int64              `json:"createdAt"`
	LastActivityAt int64              `json:"lastActivityAt"`
}

// InvitedSnapshot decorates a snapshot for the highlighted
// channel:invited push.
type InvitedSnapshot struct {
	ChannelSnapshot
	InviteHighlighted bool  `json:"inviteHighlighted"`
	InviteReceivedAt  int64 `json:"inviteReceivedAt"`
}

// ChannelRemoved is the payload of channel:removed.
type ChannelRemoved struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// MessagePayload is the wire view of a message, system ones included.
type MessagePayload struct {
	ID        int64    `json:"id"`
	ChatID    string   `json:"chatId"`
	SenderID  string   `json:"senderId"`
	Text      string   `json:"text"`
	CreatedAt int64    `json:"createdAt"`
	Mentioned []string `json:"mentioned"`
	System    bool     `json:"system"`
}

func Snapshot(d *store.ChannelDetail) ChannelSnapshot {
	members := make([]string, 0, len(d.Members))
	for _, m := range d.Members {
		members = append(members, m.User.Nickname)
	}
	banned := make([]string, 0, len(d.Banned))
	for _, u := range d.Banned {
		banned = append(banned, u.Nickname)
	}
	return ChannelSnapshot{
		ID:             d.Channel.ID,
		Title:          d.Channel.Name,
		Type:           d.Channel.Type,
		Admin:          d.Owner.Nickname,
		Members:        members,
		Banned:         banned,
		CreatedAt:      d.Channel.CreatedAt.UnixMilli(),
		LastActivityAt: d.Channel.UpdatedAt.UnixMilli(),
	}
}

func memberIDs(d *store.ChannelDetail) []int64 {
	ids := make([]int64, 0, len(d.Members))
	for _, m := range d.Members {
		ids = append(ids, m.User.ID)
	}
	return ids
}
