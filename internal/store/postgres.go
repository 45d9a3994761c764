package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"huddle/internal/domain"
)

// Postgres implements Store on top of bun.
type Postgres struct {
	db *bun.DB
}

var _ Store = (*Postgres)(nil)

func Open(dsn string) *Postgres {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &Postgres{db: db}
}

func (s *Postgres) Close() error { return s.db.Close() }

// InitSchema creates all tables if missing. Fine for a single-process
// deployment; swap for real migrations when the schema starts moving.
func (s *Postgres) InitSchema(ctx context.Context) error {
	models := []any{
		(*domain.User)(nil),
		(*domain.AccessToken)(nil),
		(*domain.Channel)(nil),
		(*domain.ChannelMember)(nil),
		(*domain.ChannelBan)(nil),
		(*domain.ChannelKickVote)(nil),
		(*domain.Message)(nil),
		(*domain.MessageMention)(nil),
	}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, "store.InitSchema.CreateTable")
		}
	}
	log.Info().Str("module", "store").Msg("schema ready")
	return nil
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// isUniqueViolation reports whether err is a Postgres 23505.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}
