package app

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"huddle/internal/auth"
	"huddle/internal/domain"
	"huddle/internal/store/memstore"
)

// recorderPusher captures fan-out instead of writing sockets.
type recorderPusher struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	UserID  int64
	Event   string
	Payload any
}

func (r *recorderPusher) Broadcast(userIDs []int64, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range userIDs {
		r.events = append(r.events, recordedEvent{UserID: id, Event: event, Payload: payload})
	}
}

func (r *recorderPusher) ToUser(userID int64, event string, payload any) {
	r.Broadcast([]int64{userID}, event, payload)
}

func (r *recorderPusher) ToAll(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{UserID: -1, Event: event, Payload: payload})
}

func (r *recorderPusher) eventsFor(userID int64, event string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.UserID == userID && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorderPusher) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	store      *memstore.Mem
	pusher     *recorderPusher
	messaging  *Messaging
	moderation *Moderation
	presence   *Presence
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	pusher := &recorderPusher{}
	messaging := NewMessaging(st, pusher, 20, 200)
	moderation := NewModeration(st, pusher, messaging, 3)
	return &fixture{
		store:      st,
		pusher:     pusher,
		messaging:  messaging,
		moderation: moderation,
		presence:   NewPresence(st, pusher),
	}
}

func (f *fixture) user(t *testing.T, nickname string) *auth.Principal {
	t.Helper()
	u := &domain.User{
		Nickname:     nickname,
		FirstName:    nickname,
		LastName:     "Test",
		Email:        fmt.Sprintf("%s@example.com", nickname),
		PasswordHash: "x",
		Status:       domain.StatusOnline,
	}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return &auth.Principal{ID: u.ID, Nickname: u.Nickname, Status: u.Status}
}
