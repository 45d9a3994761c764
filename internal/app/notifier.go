package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Push event names on the wire.
const (
	EventSession        = "session"
	EventChannelUpdated = "channel:updated"
	EventChannelRemoved = "channel:removed"
	EventChannelInvited = "channel:invited"
	EventMessageNew     = "message:new"
	EventTyping         = "typing"
	EventDraftUpdate    = "draft:update"
	EventStatusChanged  = "status:changed"
)

// Pusher is what the engines need from the fan-out layer. Split out so
// tests can record events instead of writing sockets.
type Pusher interface {
	Broadcast(userIDs []int64, event string, payload any)
	ToUser(userID int64, event string, payload any)
	ToAll(event string, payload any)
}

// Notifier delivers events to every live connection of the listed
// users. Delivery is best-effort: no retry, no queue, and a dead or
// slow connection never blocks the rest of the recipients.
type Notifier struct {
	reg *Registry
}

func NewNotifier(reg *Registry) *Notifier {
	return &Notifier{reg: reg}
}

type pushEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (n *Notifier) Broadcast(userIDs []int64, event string, payload any) {
	frame, err := json.Marshal(pushEnvelope{Type: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("module", "app.notifier").Str("event", event).Msg("marshal push")
		return
	}
	for _, id := range userIDs {
		n.deliver(id, event, frame)
	}
}

func (n *Notifier) ToUser(userID int64, event string, payload any) {
	n.Broadcast([]int64{userID}, event, payload)
}

func (n *Notifier) ToAll(event string, payload any) {
	n.Broadcast(n.reg.UserIDs(), event, payload)
}

func (n *Notifier) deliver(userID int64, event string, frame []byte) {
	for _, c := range n.reg.ConnsOf(userID) {
		if err := c.TrySend(frame); err != nil {
			// Swallowed per connection: a saturated tab must not cost
			// anyone else their event.
			log.Warn().Err(err).Str("module", "app.notifier").Int64("user_id", userID).Str("event", event).Msg("drop push")
		}
	}
}
