package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"huddle/internal/domain"
)

func (s *Postgres) CreateMessage(ctx context.Context, m *domain.Message, mentionedUserIDs []int64) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(m).Returning("*").Exec(ctx); err != nil {
			return err
		}
		for _, uid := range mentionedUserIDs {
			mention := &domain.MessageMention{MessageID: m.ID, MentionedUserID: uid}
			if _, err := tx.NewInsert().Model(mention).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "store.CreateMessage.Tx")
	}
	return nil
}

func (s *Postgres) MessagesBefore(ctx context.Context, channelID, beforeID int64, limit int) ([]MessageDetail, error) {
	var messages []domain.Message
	q := s.db.NewSelect().Model(&messages).
		Where("channel_id = ?", channelID).
		Order("id DESC").
		Limit(limit)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "store.MessagesBefore.Scan")
	}

	out := make([]MessageDetail, 0, len(messages))
	for _, m := range messages {
		detail := MessageDetail{Message: m}

		sender := new(domain.User)
		err := s.db.NewSelect().Model(sender).Where("id = ?", m.UserID).Scan(ctx)
		if err == nil {
			detail.SenderNickname = sender.Nickname
		} else if !errors.Is(err, ErrNotFound) && !isNoRows(err) {
			return nil, errors.Wrap(err, "store.MessagesBefore.Sender")
		}

		var mentions []domain.MessageMention
		err = s.db.NewSelect().Model(&mentions).Where("message_id = ?", m.ID).Scan(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "store.MessagesBefore.Mentions")
		}
		for _, mn := range mentions {
			u := new(domain.User)
			if err := s.db.NewSelect().Model(u).Where("id = ?", mn.MentionedUserID).Scan(ctx); err != nil {
				if isNoRows(err) {
					continue
				}
				return nil, errors.Wrap(err, "store.MessagesBefore.MentionedUser")
			}
			detail.Mentioned = append(detail.Mentioned, u.Nickname)
		}
		out = append(out, detail)
	}
	return out, nil
}
