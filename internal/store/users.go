package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"huddle/internal/domain"
)

func (s *Postgres) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.NewInsert().Model(u).Returning("*").Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "store.CreateUser.Insert")
	}
	return nil
}

func (s *Postgres) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	u := new(domain.User)
	err := s.db.NewSelect().Model(u).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "store.UserByID.Scan")
	}
	return u, nil
}

func (s *Postgres) UserByNickname(ctx context.Context, nickname string) (*domain.User, error) {
	u := new(domain.User)
	err := s.db.NewSelect().Model(u).Where("nickname = ?", nickname).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "store.UserByNickname.Scan")
	}
	return u, nil
}

func (s *Postgres) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u := new(domain.User)
	err := s.db.NewSelect().Model(u).Where("email = ?", email).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "store.UserByEmail.Scan")
	}
	return u, nil
}

func (s *Postgres) UsersByNicknames(ctx context.Context, nicknames []string) ([]domain.User, error) {
	if len(nicknames) == 0 {
		return nil, nil
	}
	var users []domain.User
	err := s.db.NewSelect().Model(&users).Where("nickname IN (?)", bun.In(nicknames)).Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "store.UsersByNicknames.Scan")
	}
	return users, nil
}

func (s *Postgres) UpdateUserPresence(ctx context.Context, id int64, status domain.UserStatus, notifyOnlyMentions *bool) error {
	q := s.db.NewUpdate().Model((*domain.User)(nil)).Where("id = ?", id)
	if status != "" {
		q = q.Set("status = ?", status)
	}
	if notifyOnlyMentions != nil {
		q = q.Set("notify_only_mentions = ?", *notifyOnlyMentions)
	}
	if status == "" && notifyOnlyMentions == nil {
		return nil
	}
	if _, err := q.Exec(ctx); err != nil {
		return errors.Wrap(err, "store.UpdateUserPresence.Update")
	}
	return nil
}

func (s *Postgres) CreateToken(ctx context.Context, t *domain.AccessToken) error {
	if _, err := s.db.NewInsert().Model(t).Returning("*").Exec(ctx); err != nil {
		return errors.Wrap(err, "store.CreateToken.Insert")
	}
	return nil
}

func (s *Postgres) TokenByHash(ctx context.Context, hash string) (*domain.AccessToken, error) {
	t := new(domain.AccessToken)
	err := s.db.NewSelect().Model(t).Where("hash = ?", hash).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "store.TokenByHash.Scan")
	}
	return t, nil
}
