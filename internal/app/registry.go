package app

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Conn is one live client connection. Owned by the transport adapter;
// the adapter must Close() it.
type Conn interface {
	// TrySend enqueues a frame without blocking; a full buffer is the
	// caller's signal to drop or disconnect.
	TrySend(data []byte) error
	Close()
}

// Registry maps authenticated user ids to their live connections. A
// user with two browser tabs has two entries in the same set. Created
// at process start and injected wherever fan-out happens; never a
// package global.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]map[Conn]struct{})}
}

func (r *Registry) Add(userID int64, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[userID] = set
	}
	set[c] = struct{}{}
	log.Info().Str("module", "app.registry").Int64("user_id", userID).Int("conns", len(set)).Msg("connection added")
}

// Remove drops exactly one connection; the user stays registered while
// other connections remain.
func (r *Registry) Remove(userID int64, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
	log.Info().Str("module", "app.registry").Int64("user_id", userID).Msg("connection removed")
}

// ConnsOf snapshots the user's connections so delivery never iterates
// under the lock.
func (r *Registry) ConnsOf(userID int64) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.conns[userID]
	if !ok {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// UserIDs lists every user with at least one live connection.
func (r *Registry) UserIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}
