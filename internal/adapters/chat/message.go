package chat

import (
	"context"
	"encoding/json"

	"huddle/internal/auth"
	apperrors "huddle/pkg/errors"
)

func (ctl *ChatWSController) handleMessageSend(ctx context.Context, p *auth.Principal, c *WsChatConn, seq int64, data []byte) {
	var payload struct {
		envelope
		ChannelID int64  `json:"channelId"`
		Text      string `json:"text"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		ctl.ackErr(c, seq, apperrors.InvalidArg("bad payload"))
		return
	}

	if err := ctl.Messaging.Send(ctx, p, payload.ChannelID, payload.Text); err != nil {
		ctl.ackErr(c, seq, err)
		return
	}
	// The broadcast is the effect; the ack carries no body.
	ctl.ackOK(c, seq, nil)
}

func (ctl *ChatWSController) handleMessagesHistory(ctx context.Context, p *auth.Principal, c *WsChatConn, seq int64, data []byte) {
	var payload struct {
		envelope
		ChannelID int64 `json:"channelId"`
		BeforeID  int64 `json:"beforeId"`
		Limit     int   `json:"limit"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		ctl.ackErr(c, seq, apperrors.InvalidArg("bad payload"))
		return
	}

	messages, err := ctl.Messaging.History(ctx, p, payload.ChannelID, payload.BeforeID, payload.Limit)
	if err != nil {
		ctl.ackErr(c, seq, err)
		return
	}
	ctl.ackOK(c, seq, messages)
}
