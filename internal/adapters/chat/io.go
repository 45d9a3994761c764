package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"huddle/internal/app"
	"huddle/internal/auth"
	apperrors "huddle/pkg/errors"
)

// envelope is the common prefix of every client command.
type envelope struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`
}

type pushFrame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type ackError struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

type ackFrame struct {
	Type  string    `json:"type"`
	Seq   int64     `json:"seq"`
	OK    bool      `json:"ok"`
	Data  any       `json:"data,omitempty"`
	Error *ackError `json:"error,omitempty"`
}

type sessionPayload struct {
	Profile  profilePayload        `json:"profile"`
	Channels []app.ChannelSnapshot `json:"channels"`
}

type profilePayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	NickName  string `json:"nickName"`
	Email     string `json:"email"`
}

func (ctl *ChatWSController) writePump(ctx context.Context, c *WsChatConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "chat").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "chat").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "chat").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "chat").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *ChatWSController) readPump(ctx context.Context, p *auth.Principal, c *WsChatConn) {
	defer func() {
		log.Info().Str("module", "chat").Str("nickname", p.Nickname).Msg("readPump closing")
		ctl.Registry.Remove(p.ID, c)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "chat").Str("nickname", p.Nickname).Msg("readPump read error")
				return
			}
			ctl.handleCommand(ctx, p, c, data)
		}
	}
}

func (ctl *ChatWSController) handleCommand(ctx context.Context, p *auth.Principal, c *WsChatConn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("bad json")
		return
	}

	switch env.Type {
	case "channel:list":
		ctl.handleChannelList(ctx, p, c, env.Seq)
	case "channel:join":
		ctl.handleChannelJoin(ctx, p, c, env.Seq, data)
	case "channel:leave":
		ctl.handleChannelLeave(ctx, p, c, env.Seq, data)
	case "channel:invite":
		ctl.handleChannelInvite(ctx, p, c, env.Seq, data)
	case "channel:revoke":
		ctl.handleChannelRevoke(ctx, p, c, env.Seq, data)
	case "channel:kick":
		ctl.handleChannelKick(ctx, p, c, env.Seq, data)
	case "message:send":
		ctl.handleMessageSend(ctx, p, c, env.Seq, data)
	case "messages:history":
		ctl.handleMessagesHistory(ctx, p, c, env.Seq, data)
	case "status:update":
		ctl.handleStatusUpdate(ctx, p, data)
	case "typing":
		ctl.handleTyping(ctx, p, data)
	case "draft:update":
		ctl.handleDraftUpdate(ctx, p, data)
	case "ping":
		ctl.sendJSON(c, pushFrame{Type: "pong"})
	default:
		log.Warn().Str("module", "chat").Str("type", env.Type).Msg("unknown command")
	}
}

func (ctl *ChatWSController) sendJSON(c *WsChatConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *ChatWSController) ackOK(c *WsChatConn, seq int64, data any) {
	ctl.sendJSON(c, ackFrame{Type: "ack", Seq: seq, OK: true, Data: data})
}

// ackErr returns the failure to the invoking connection only; other
// members' broadcasts are unaffected.
func (ctl *ChatWSController) ackErr(c *WsChatConn, seq int64, err error) {
	ctl.sendJSON(c, ackFrame{Type: "ack", Seq: seq, OK: false, Error: &ackError{
		Code:    apperrors.CodeOf(err),
		Message: apperrors.MessageOf(err),
	}})
}
