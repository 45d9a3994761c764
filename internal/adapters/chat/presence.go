package chat

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"huddle/internal/auth"
	"huddle/internal/domain"
)

// Presence commands are fire-and-forget: no ack, bad payloads are
// dropped.

func (ctl *ChatWSController) handleStatusUpdate(ctx context.Context, p *auth.Principal, data []byte) {
	var payload struct {
		envelope
		Status             string `json:"status"`
		NotifyOnlyMentions *bool  `json:"notifyOnlyMentions"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("bad status payload")
		return
	}
	err := ctl.Presence.UpdateStatus(ctx, p, domain.UserStatus(payload.Status), payload.NotifyOnlyMentions)
	if err != nil {
		log.Warn().Err(err).Str("module", "chat").Str("nickname", p.Nickname).Msg("status update")
	}
}

func (ctl *ChatWSController) handleTyping(ctx context.Context, p *auth.Principal, data []byte) {
	var payload struct {
		envelope
		ChannelID int64 `json:"channelId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	ctl.Presence.Typing(ctx, p, payload.ChannelID)
}

func (ctl *ChatWSController) handleDraftUpdate(ctx context.Context, p *auth.Principal, data []byte) {
	var payload struct {
		envelope
		ChannelID int64  `json:"channelId"`
		Text      string `json:"text"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	ctl.Presence.Draft(ctx, p, payload.ChannelID, payload.Text)
}
