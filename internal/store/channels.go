package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"huddle/internal/domain"
)

func (s *Postgres) ChannelByID(ctx context.Context, id int64) (*domain.Channel, error) {
	ch := new(domain.Channel)
	err := s.db.NewSelect().Model(ch).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "store.ChannelByID.Scan")
	}
	return ch, nil
}

func (s *Postgres) ChannelByName(ctx context.Context, name string) (*domain.Channel, error) {
	ch := new(domain.Channel)
	err := s.db.NewSelect().Model(ch).Where("name = ?", name).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "store.ChannelByName.Scan")
	}
	return ch, nil
}

func (s *Postgres) CreateChannel(ctx context.Context, ch *domain.Channel, owner *domain.ChannelMember) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(ch).Returning("*").Exec(ctx); err != nil {
			return err
		}
		owner.ChannelID = ch.ID
		if _, err := tx.NewInsert().Model(owner).Returning("*").Exec(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "store.CreateChannel.Tx")
	}
	return nil
}

func (s *Postgres) ChannelDetail(ctx context.Context, id int64) (*ChannelDetail, error) {
	ch, err := s.ChannelByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.channelDetail(ctx, s.db, ch)
}

func (s *Postgres) ChannelsForUser(ctx context.Context, userID int64) ([]ChannelDetail, error) {
	var memberships []domain.ChannelMember
	err := s.db.NewSelect().Model(&memberships).Where("user_id = ?", userID).Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "store.ChannelsForUser.Members")
	}
	out := make([]ChannelDetail, 0, len(memberships))
	for _, m := range memberships {
		ch, err := s.ChannelByID(ctx, m.ChannelID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		detail, err := s.channelDetail(ctx, s.db, ch)
		if err != nil {
			return nil, err
		}
		out = append(out, *detail)
	}
	return out, nil
}

func (s *Postgres) channelDetail(ctx context.Context, db bun.IDB, ch *domain.Channel) (*ChannelDetail, error) {
	detail := &ChannelDetail{Channel: *ch}

	owner := new(domain.User)
	if err := db.NewSelect().Model(owner).Where("id = ?", ch.OwnerID).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "store.channelDetail.Owner")
	}
	detail.Owner = *owner

	var members []domain.ChannelMember
	err := db.NewSelect().Model(&members).Where("channel_id = ?", ch.ID).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "store.channelDetail.Members")
	}
	for _, m := range members {
		u := new(domain.User)
		if err := db.NewSelect().Model(u).Where("id = ?", m.UserID).Scan(ctx); err != nil {
			return nil, errors.Wrap(err, "store.channelDetail.MemberUser")
		}
		detail.Members = append(detail.Members, MemberUser{User: *u, Role: m.Role})
	}

	var bans []domain.ChannelBan
	err = db.NewSelect().Model(&bans).Where("channel_id = ?", ch.ID).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "store.channelDetail.Bans")
	}
	for _, b := range bans {
		u := new(domain.User)
		if err := db.NewSelect().Model(u).Where("id = ?", b.UserID).Scan(ctx); err != nil {
			return nil, errors.Wrap(err, "store.channelDetail.BannedUser")
		}
		detail.Banned = append(detail.Banned, *u)
	}
	return detail, nil
}

func (s *Postgres) StaleChannels(ctx context.Context, olderThan time.Time) ([]domain.Channel, error) {
	var channels []domain.Channel
	err := s.db.NewSelect().Model(&channels).Where("updated_at < ?", olderThan).Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "store.StaleChannels.Scan")
	}
	return channels, nil
}

// InChannelTx locks the channel row FOR UPDATE so concurrent
// moderation of the same channel serializes; cross-channel operations
// proceed in parallel.
func (s *Postgres) InChannelTx(ctx context.Context, channelID int64, fn func(tx ChannelTx) error) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ch := new(domain.Channel)
		err := tx.NewSelect().Model(ch).Where("id = ?", channelID).For("UPDATE").Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return errors.Wrap(err, "store.InChannelTx.Lock")
		}
		return fn(&pgChannelTx{tx: tx, ch: ch})
	})
	return err
}

type pgChannelTx struct {
	tx bun.Tx
	ch *domain.Channel
}

func (t *pgChannelTx) Channel() *domain.Channel { return t.ch }

func (t *pgChannelTx) Member(ctx context.Context, userID int64) (*domain.ChannelMember, error) {
	m := new(domain.ChannelMember)
	err := t.tx.NewSelect().Model(m).
		Where("channel_id = ? AND user_id = ?", t.ch.ID, userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "store.ChannelTx.Member")
	}
	return m, nil
}

func (t *pgChannelTx) MemberIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := t.tx.NewSelect().Model((*domain.ChannelMember)(nil)).
		Column("user_id").
		Where("channel_id = ?", t.ch.ID).
		Order("id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, errors.Wrap(err, "store.ChannelTx.MemberIDs")
	}
	return ids, nil
}

func (t *pgChannelTx) AddMember(ctx context.Context, userID int64, role domain.MemberRole) error {
	m := &domain.ChannelMember{ChannelID: t.ch.ID, UserID: userID, Role: role}
	if _, err := t.tx.NewInsert().Model(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "store.ChannelTx.AddMember")
	}
	return nil
}

func (t *pgChannelTx) RemoveMember(ctx context.Context, userID int64) error {
	_, err := t.tx.NewDelete().Model((*domain.ChannelMember)(nil)).
		Where("channel_id = ? AND user_id = ?", t.ch.ID, userID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "store.ChannelTx.RemoveMember")
	}
	return nil
}

func (t *pgChannelTx) Ban(ctx context.Context, userID int64) (*domain.ChannelBan, error) {
	b := new(domain.ChannelBan)
	err := t.tx.NewSelect().Model(b).
		Where("channel_id = ? AND user_id = ?", t.ch.ID, userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "store.ChannelTx.Ban")
	}
	return b, nil
}

func (t *pgChannelTx) AddBan(ctx context.Context, userID, bannedByUserID int64) error {
	b := &domain.ChannelBan{ChannelID: t.ch.ID, UserID: userID, BannedByUserID: bannedByUserID}
	if _, err := t.tx.NewInsert().Model(b).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "store.ChannelTx.AddBan")
	}
	return nil
}

func (t *pgChannelTx) RemoveBan(ctx context.Context, userID int64) error {
	_, err := t.tx.NewDelete().Model((*domain.ChannelBan)(nil)).
		Where("channel_id = ? AND user_id = ?", t.ch.ID, userID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "store.ChannelTx.RemoveBan")
	}
	return nil
}

func (t *pgChannelTx) AddKickVote(ctx context.Context, voterUserID, targetUserID int64) error {
	v := &domain.ChannelKickVote{ChannelID: t.ch.ID, VoterUserID: voterUserID, TargetUserID: targetUserID}
	if _, err := t.tx.NewInsert().Model(v).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "store.ChannelTx.AddKickVote")
	}
	return nil
}

func (t *pgChannelTx) CountKickVotes(ctx context.Context, targetUserID int64) (int, error) {
	count, err := t.tx.NewSelect().Model((*domain.ChannelKickVote)(nil)).
		Where("channel_id = ? AND target_user_id = ?", t.ch.ID, targetUserID).
		Count(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "store.ChannelTx.CountKickVotes")
	}
	return count, nil
}

func (t *pgChannelTx) ClearKickVotes(ctx context.Context, targetUserID int64) error {
	_, err := t.tx.NewDelete().Model((*domain.ChannelKickVote)(nil)).
		Where("channel_id = ? AND target_user_id = ?", t.ch.ID, targetUserID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "store.ChannelTx.ClearKickVotes")
	}
	return nil
}

func (t *pgChannelTx) Touch(ctx context.Context) error {
	_, err := t.tx.NewUpdate().Model((*domain.Channel)(nil)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", t.ch.ID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "store.ChannelTx.Touch")
	}
	return nil
}

func (t *pgChannelTx) DeleteChannel(ctx context.Context) error {
	id := t.ch.ID
	if _, err := t.tx.NewDelete().Model((*domain.ChannelMember)(nil)).Where("channel_id = ?", id).Exec(ctx); err != nil {
		return errors.Wrap(err, "store.ChannelTx.DeleteChannel.Members")
	}
	if _, err := t.tx.NewDelete().Model((*domain.ChannelKickVote)(nil)).Where("channel_id = ?", id).Exec(ctx); err != nil {
		return errors.Wrap(err, "store.ChannelTx.DeleteChannel.Votes")
	}
	if _, err := t.tx.NewDelete().Model((*domain.ChannelBan)(nil)).Where("channel_id = ?", id).Exec(ctx); err != nil {
		return errors.Wrap(err, "store.ChannelTx.DeleteChannel.Bans")
	}
	if _, err := t.tx.NewDelete().Model((*domain.MessageMention)(nil)).
		Where("message_id IN (SELECT id FROM messages WHERE channel_id = ?)", id).
		Exec(ctx); err != nil {
		return errors.Wrap(err, "store.ChannelTx.DeleteChannel.Mentions")
	}
	if _, err := t.tx.NewDelete().Model((*domain.Message)(nil)).Where("channel_id = ?", id).Exec(ctx); err != nil {
		return errors.Wrap(err, "store.ChannelTx.DeleteChannel.Messages")
	}
	if _, err := t.tx.NewDelete().Model((*domain.Channel)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return errors.Wrap(err, "store.ChannelTx.DeleteChannel.Channel")
	}
	return nil
}
