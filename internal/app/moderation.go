package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"huddle/internal/auth"
	"huddle/internal/domain"
	"huddle/internal/store"
	apperrors "huddle/pkg/errors"
)

// Moderation enforces every membership and authorization rule:
// create/join/leave/invite/revoke/kick, bans, and the vote-kick
// quorum. All check-then-act sequences run inside one channel-locked
// transaction, so concurrent operations on the same channel serialize.
type Moderation struct {
	store     store.Store
	notifier  Pusher
	messaging *Messaging
	quorum    int
}

func NewModeration(st store.Store, notifier Pusher, messaging *Messaging, quorum int) *Moderation {
	return &Moderation{store: st, notifier: notifier, messaging: messaging, quorum: quorum}
}

// JoinResult distinguishes a fresh join from the idempotent repeat,
// which is a notice, not an error — clients rely on that to avoid
// error toasts.
type JoinResult struct {
	Snapshot      ChannelSnapshot
	AlreadyMember bool
}

// KickResult is either a completed ban or a vote tally.
type KickResult struct {
	Banned bool
	Votes  int
}

func (e *Moderation) Create(ctx context.Context, p *auth.Principal, name string, chType domain.ChannelType, description string) (*ChannelSnapshot, error) {
	if name == "" {
		return nil, apperrors.ErrChannelNameMissing
	}
	if chType != domain.ChannelPrivate {
		chType = domain.ChannelPublic
	}
	ch := &domain.Channel{Name: name, Type: chType, Description: description, OwnerID: p.ID}
	owner := &domain.ChannelMember{UserID: p.ID, Role: domain.RoleAdmin}
	if err := e.store.CreateChannel(ctx, ch, owner); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.ErrChannelNameTaken
		}
		return nil, err
	}
	log.Info().Str("module", "app.moderation").Str("channel", name).Int64("owner_id", p.ID).Msg("channel created")

	snap, err := e.snapshot(ctx, ch.ID)
	if err != nil {
		return nil, err
	}
	e.notifier.ToUser(p.ID, EventChannelUpdated, snap)
	return snap, nil
}

// Join adds the principal to the named channel, creating it when
// absent (the creator becomes owner/admin; isPrivate only applies to
// that path).
func (e *Moderation) Join(ctx context.Context, p *auth.Principal, name string, isPrivate bool) (*JoinResult, error) {
	if name == "" {
		return nil, apperrors.ErrChannelNameMissing
	}

	ch, err := e.store.ChannelByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		chType := domain.ChannelPublic
		if isPrivate {
			chType = domain.ChannelPrivate
		}
		snap, err := e.Create(ctx, p, name, chType, "")
		if err == nil {
			return &JoinResult{Snapshot: *snap}, nil
		}
		if !errors.Is(err, apperrors.ErrChannelNameTaken) {
			return nil, err
		}
		// Lost the auto-create race; join the channel that won.
		if ch, err = e.store.ChannelByName(ctx, name); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	already := false
	err = e.store.InChannelTx(ctx, ch.ID, func(tx store.ChannelTx) error {
		if _, err := tx.Ban(ctx, p.ID); err == nil {
			return apperrors.ErrBanned
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if _, err := tx.Member(ctx, p.ID); err == nil {
			already = true
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if tx.Channel().IsPrivate() {
			return apperrors.ErrPrivateJoin
		}
		if err := tx.AddMember(ctx, p.ID, domain.RoleMember); err != nil {
			return err
		}
		return tx.Touch(ctx)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrChannelNotFound
		}
		return nil, err
	}

	snap, err := e.snapshot(ctx, ch.ID)
	if err != nil {
		return nil, err
	}
	if already {
		return &JoinResult{Snapshot: *snap, AlreadyMember: true}, nil
	}

	e.broadcastUpdated(ctx, ch.ID)
	e.messaging.SystemMessage(ctx, ch.ID, fmt.Sprintf("%s joined #%s", p.Nickname, ch.Name))
	return &JoinResult{Snapshot: *snap}, nil
}

// Leave removes the principal's membership. An owner leaving closes
// the channel: every dependent row goes with it.
func (e *Moderation) Leave(ctx context.Context, p *auth.Principal, channelID int64) (removed bool, err error) {
	var (
		name       string
		notifyIDs  []int64
		wasRemoved bool
	)
	err = e.store.InChannelTx(ctx, channelID, func(tx store.ChannelTx) error {
		ch := tx.Channel()
		name = ch.Name
		if _, err := tx.Member(ctx, p.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.ErrNotMember
			}
			return err
		}
		if ch.IsAdmin(p.ID) {
			ids, err := tx.MemberIDs(ctx)
			if err != nil {
				return err
			}
			notifyIDs = ids
			wasRemoved = true
			return tx.DeleteChannel(ctx)
		}
		if err := tx.RemoveMember(ctx, p.ID); err != nil {
			return err
		}
		// A departed member starts with a clean slate on rejoin.
		if err := tx.ClearKickVotes(ctx, p.ID); err != nil {
			return err
		}
		return tx.Touch(ctx)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, apperrors.ErrChannelNotFound
		}
		return false, err
	}

	if wasRemoved {
		e.notifier.Broadcast(notifyIDs, EventChannelRemoved, ChannelRemoved{ID: channelID, Title: name})
		log.Info().Str("module", "app.moderation").Str("channel", name).Msg("channel closed by owner")
		return true, nil
	}
	e.broadcastUpdated(ctx, channelID)
	e.messaging.SystemMessage(ctx, channelID, fmt.Sprintf("%s left #%s", p.Nickname, name))
	return false, nil
}

// Invite adds the target to the channel. An admin inviting a banned
// user implicitly lifts the ban; anyone else is rejected.
func (e *Moderation) Invite(ctx context.Context, p *auth.Principal, channelID int64, targetNickname string) (*ChannelSnapshot, error) {
	target, err := e.store.UserByNickname(ctx, targetNickname)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}

	var name string
	err = e.store.InChannelTx(ctx, channelID, func(tx store.ChannelTx) error {
		ch := tx.Channel()
		name = ch.Name
		if _, err := tx.Member(ctx, p.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.ErrSenderNotMember
			}
			return err
		}
		if ch.IsPrivate() && !ch.IsAdmin(p.ID) {
			return apperrors.ErrInviteNotAdmin
		}
		if _, err := tx.Ban(ctx, target.ID); err == nil {
			if !ch.IsAdmin(p.ID) {
				return apperrors.ErrTargetBanned(targetNickname)
			}
			if err := tx.RemoveBan(ctx, target.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if _, err := tx.Member(ctx, target.ID); err == nil {
			return apperrors.ErrAlreadyMember
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := tx.AddMember(ctx, target.ID, domain.RoleMember); err != nil {
			return err
		}
		return tx.Touch(ctx)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrChannelNotFound
		}
		return nil, err
	}

	detail, err := e.store.ChannelDetail(ctx, channelID)
	if err != nil {
		return nil, err
	}
	snap := Snapshot(detail)
	e.notifier.Broadcast(memberIDs(detail), EventChannelUpdated, snap)
	e.notifier.ToUser(target.ID, EventChannelInvited, InvitedSnapshot{
		ChannelSnapshot:   snap,
		InviteHighlighted: true,
		InviteReceivedAt:  time.Now().UnixMilli(),
	})
	e.messaging.SystemMessage(ctx, channelID, fmt.Sprintf("%s was invited to #%s", targetNickname, name))
	return &snap, nil
}

// Revoke is the owner-only permanent exclusion for private channels:
// membership out, ban in.
func (e *Moderation) Revoke(ctx context.Context, p *auth.Principal, channelID int64, targetNickname string) (*ChannelSnapshot, error) {
	target, err := e.store.UserByNickname(ctx, targetNickname)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}

	var name string
	err = e.store.InChannelTx(ctx, channelID, func(tx store.ChannelTx) error {
		ch := tx.Channel()
		name = ch.Name
		if !ch.IsPrivate() || !ch.IsAdmin(p.ID) {
			return apperrors.ErrRevokeNotAdmin
		}
		if _, err := tx.Member(ctx, target.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.ErrTargetNotMember
			}
			return err
		}
		if err := tx.RemoveMember(ctx, target.ID); err != nil {
			return err
		}
		if err := tx.ClearKickVotes(ctx, target.ID); err != nil {
			return err
		}
		if err := tx.AddBan(ctx, target.ID, p.ID); err != nil && !errors.Is(err, store.ErrDuplicate) {
			return err
		}
		return tx.Touch(ctx)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrChannelNotFound
		}
		return nil, err
	}

	detail, err := e.store.ChannelDetail(ctx, channelID)
	if err != nil {
		return nil, err
	}
	snap := Snapshot(detail)
	e.notifier.Broadcast(memberIDs(detail), EventChannelUpdated, snap)
	e.messaging.SystemMessage(ctx, channelID, fmt.Sprintf("%s was revoked from #%s", targetNickname, name))
	return &snap, nil
}

// Kick is the quorum algorithm. Owners ban immediately; everyone else
// casts one vote per target, and the ban lands when distinct voters
// reach the quorum.
func (e *Moderation) Kick(ctx context.Context, p *auth.Principal, channelID int64, targetNickname string) (*KickResult, error) {
	target, err := e.store.UserByNickname(ctx, targetNickname)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}

	var (
		banned  bool
		votes   int
		name    string
		byAdmin bool
		private bool
	)
	err = e.store.InChannelTx(ctx, channelID, func(tx store.ChannelTx) error {
		ch := tx.Channel()
		name = ch.Name
		private = ch.IsPrivate()
		if _, err := tx.Member(ctx, p.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.ErrSenderNotMember
			}
			return err
		}
		if target.ID == p.ID {
			return apperrors.ErrKickSelf
		}
		if _, err := tx.Member(ctx, target.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.ErrTargetNotMember
			}
			return err
		}

		byAdmin = ch.IsAdmin(p.ID)
		if private && !byAdmin {
			return apperrors.ErrKickNotAdmin
		}
		if byAdmin {
			banned = true
			return e.banTarget(ctx, tx, target.ID, p.ID)
		}

		// Non-admin in a public channel: one vote per voter per target,
		// tallied inside the same locked scope that applies the ban.
		if err := tx.AddKickVote(ctx, p.ID, target.ID); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperrors.ErrDuplicateVote
			}
			return err
		}
		count, err := tx.CountKickVotes(ctx, target.ID)
		if err != nil {
			return err
		}
		votes = count
		if count >= e.quorum {
			banned = true
			return e.banTarget(ctx, tx, target.ID, p.ID)
		}
		return tx.Touch(ctx)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrChannelNotFound
		}
		return nil, err
	}

	if banned {
		e.notifier.ToUser(target.ID, EventChannelRemoved, ChannelRemoved{ID: channelID, Title: name})
		switch {
		case private:
			e.messaging.SystemMessage(ctx, channelID, fmt.Sprintf("%s was permanently banned", targetNickname))
		case byAdmin:
			e.messaging.SystemMessage(ctx, channelID, fmt.Sprintf("%s was permanently banned by admin", targetNickname))
		default:
			e.messaging.SystemMessage(ctx, channelID, fmt.Sprintf("%s was banned after %d votes", targetNickname, e.quorum))
		}
		e.broadcastUpdated(ctx, channelID)
		return &KickResult{Banned: true}, nil
	}

	e.messaging.SystemMessage(ctx, channelID,
		fmt.Sprintf("%s voted to kick %s (%d/%d)", p.Nickname, targetNickname, votes, e.quorum))
	return &KickResult{Votes: votes}, nil
}

// List returns snapshots of every channel the principal belongs to.
func (e *Moderation) List(ctx context.Context, p *auth.Principal) ([]ChannelSnapshot, error) {
	details, err := e.store.ChannelsForUser(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := make([]ChannelSnapshot, 0, len(details))
	for i := range details {
		out = append(out, Snapshot(&details[i]))
	}
	return out, nil
}

// banTarget applies the membership->ban transition: the removed
// membership consumes any outstanding votes against the target.
func (e *Moderation) banTarget(ctx context.Context, tx store.ChannelTx, targetID, byUserID int64) error {
	if err := tx.RemoveMember(ctx, targetID); err != nil {
		return err
	}
	if err := tx.ClearKickVotes(ctx, targetID); err != nil {
		return err
	}
	if err := tx.AddBan(ctx, targetID, byUserID); err != nil && !errors.Is(err, store.ErrDuplicate) {
		return err
	}
	return tx.Touch(ctx)
}

func (e *Moderation) snapshot(ctx context.Context, channelID int64) (*ChannelSnapshot, error) {
	detail, err := e.store.ChannelDetail(ctx, channelID)
	if err != nil {
		return nil, err
	}
	snap := Snapshot(detail)
	return &snap, nil
}

func (e *Moderation) broadcastUpdated(ctx context.Context, channelID int64) {
	detail, err := e.store.ChannelDetail(ctx, channelID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Str("module", "app.moderation").Int64("channel_id", channelID).Msg("broadcast snapshot")
		}
		return
	}
	e.notifier.Broadcast(memberIDs(detail), EventChannelUpdated, Snapshot(detail))
}
