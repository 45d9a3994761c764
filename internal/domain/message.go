package domain

import (
	"time"

	"github.com/uptrace/bun"
)

type Message struct {
	bun.BaseModel `bun:"table:messages"`

	ID        int64  `bun:",pk,autoincrement"`
	ChannelID int64  `bun:",notnull"`
	UserID    int64  `bun:",notnull"`
	Text      string `bun:",notnull"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

type MessageMention struct {
	bun.BaseModel `bun:"table:message_mentions"`

	ID              int64 `bun:",pk,autoincrement"`
	MessageID       int64 `bun:",notnull,unique:uq_message_mention"`
	MentionedUserID int64 `bun:",notnull,unique:uq_message_mention"`
}
