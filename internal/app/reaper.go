package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"huddle/internal/store"
)

// Reaper removes channels inactive beyond the retention window,
// cascading every dependent row and notifying the evicted members.
// It runs opportunistically — on each new connection and on channel
// list queries — not on a timer.
type Reaper struct {
	store     store.Store
	notifier  Pusher
	retention time.Duration
}

func NewReaper(st store.Store, notifier Pusher, retention time.Duration) *Reaper {
	return &Reaper{store: st, notifier: notifier, retention: retention}
}

// Sweep deletes every stale channel. Failures on one channel are
// logged and do not stop the sweep.
func (r *Reaper) Sweep(ctx context.Context) {
	stale, err := r.store.StaleChannels(ctx, time.Now().Add(-r.retention))
	if err != nil {
		log.Error().Err(err).Str("module", "app.reaper").Msg("list stale channels")
		return
	}
	for _, ch := range stale {
		var (
			notifyIDs []int64
			deleted   bool
		)
		err := r.store.InChannelTx(ctx, ch.ID, func(tx store.ChannelTx) error {
			// Re-check under the lock: a join may have touched the
			// channel since the stale listing.
			if tx.Channel().UpdatedAt.After(time.Now().Add(-r.retention)) {
				return nil
			}
			ids, err := tx.MemberIDs(ctx)
			if err != nil {
				return err
			}
			notifyIDs = ids
			deleted = true
			return tx.DeleteChannel(ctx)
		})
		if err != nil {
			if err != store.ErrNotFound {
				log.Error().Err(err).Str("module", "app.reaper").Str("channel", ch.Name).Msg("reap channel")
			}
			continue
		}
		if deleted {
			r.notifier.Broadcast(notifyIDs, EventChannelRemoved, ChannelRemoved{ID: ch.ID, Title: ch.Name})
			log.Info().Str("module", "app.reaper").Str("channel", ch.Name).Int("members", len(notifyIDs)).Msg("reaped stale channel")
		}
	}
}
