package chat

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"huddle/internal/app"
	"huddle/internal/auth"
	apperrors "huddle/pkg/errors"
)

func (ctl *ChatWSController) handleChannelList(ctx context.Context, p *auth.Principal, c *WsChatConn, seq int64) {
	ctl.Reaper.Sweep(ctx)
	channels, err := ctl.Moderation.List(ctx, p)
	if err != nil {
		ctl.ackErr(c, seq, err)
		return
	}
	ctl.ackOK(c, seq, channels)
}

type joinAck struct {
	app.ChannelSnapshot
	Notice string `json:"notice,omitempty"`
}

func (ctl *ChatWSController) handleChannelJoin(ctx context.Context, p *auth.Principal, c *WsChatConn, seq int64, data []byte) {
	var payload struct {
		envelope
		Name      string `json:"name"`
		IsPrivate bool   `json:"isPrivate"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		ctl.ackErr(c, seq, apperrors.InvalidArg("bad payload"))
		return
	}

	res, err := ctl.Moderation.Join(ctx, p, payload.Name, payload.IsPrivate)
	if err != nil {
		ctl.ackErr(c, seq, err)
		return
	}
	ack := joinAck{ChannelSnapshot: res.Snapshot}
	if res.AlreadyMember {
		// Repeat join is a notice, not an error.
		ack.Notice = "Already a member"
	}
	ctl.ackOK(c, seq, ack)
}

func (ctl *ChatWSController) handleChannelLeave(ctx context.Context, p *auth.Principal, c *WsChatConn, seq int64, data []byte) {
	var payload struct {
		envelope
		ChannelID int64 `json:"channelId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		ctl.ackErr(c, seq, apperrors.InvalidArg("bad payload"))
		return
	}

	removed, err := ctl.Moderation.Leave(ctx, p, payload.ChannelID)
	if err != nil {
		ctl.ackErr(c, seq, err)
		return
	}
	if removed {
		ctl.ackOK(c, seq, map[string]bool{"removed": true})
		return
	}
	ctl.ackOK(c, seq, map[string]bool{"left": true})
}

func (ctl *ChatWSController) handleChannelInvite(ctx context.Context, p *auth.Principal, c *WsChatConn, seq int64, data []byte) {
	var payload struct {
		envelope
		ChannelID int64  `json:"channelId"`
		NickName  string `json:"nickName"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		ctl.ackErr(c, seq, apperrors.InvalidArg("bad payload"))
		return
	}

	log.Info().Str("module", "chat").Str("by", p.Nickname).Str("target", payload.NickName).Msg("invite")
	snap, err := ctl.Moderation.Invite(ctx, p, payload.ChannelID, payload.NickName)
	if err != nil {
		ctl.ackErr(c, seq, err)
		return
	}
	ctl.ackOK(c, seq, snap)
}

func (ctl *ChatWSController) handleChannelRevoke(ctx context.Context, p *auth.Principal, c *WsChatConn, seq int64, data []byte) {
	var payload struct {
		envelope
		ChannelID int64  `json:"channelId"`
		NickName  string `json:"nickName"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		ctl.ackErr(c, seq, apperrors.InvalidArg("bad payload"))
		return
	}

	snap, err := ctl.Moderation.Revoke(ctx, p, payload.ChannelID, payload.NickName)
	if err != nil {
		ctl.ackErr(c, seq, err)
		return
	}
	ctl.ackOK(c, seq, snap)
}

func (ctl *ChatWSController) handleChannelKick(ctx context.Context, p *auth.Principal, c *WsChatConn, seq int64, data []byte) {
	var payload struct {
		envelope
		ChannelID int64  `json:"channelId"`
		NickName  string `json:"nickName"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		ctl.ackErr(c, seq, apperrors.InvalidArg("bad payload"))
		return
	}

	res, err := ctl.Moderation.Kick(ctx, p, payload.ChannelID, payload.NickName)
	if err != nil {
		ctl.ackErr(c, seq, err)
		return
	}
	if res.Banned {
		ctl.ackOK(c, seq, map[string]any{"banned": true})
		return
	}
	ctl.ackOK(c, seq, map[string]any{"vote": res.Votes})
}
