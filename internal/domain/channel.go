package domain

import (
	"time"

	"github.com/uptrace/bun"
)

type ChannelType string

const (
	ChannelPublic  ChannelType = "public"
	ChannelPrivate ChannelType = "private"
)

type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

type Channel struct {
	bun.BaseModel `bun:"table:channels"`

	ID          int64       `bun:",pk,autoincrement"`
	Name        string      `bun:",notnull,unique"`
	Type        ChannelType `bun:",notnull"`
	Description string      `bun:",nullzero"`
	OwnerID     int64       `bun:",notnull"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	// UpdatedAt is the activity timestamp: touched on every membership
	// mutation and message, and drives staleness reaping.
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (c *Channel) IsPrivate() bool { return c.Type == ChannelPrivate }

// IsAdmin is the single ownership predicate; every moderation rule
// that cares about the admin role goes through it.
func (c *Channel) IsAdmin(userID int64) bool { return c.OwnerID == userID }

type ChannelMember struct {
	bun.BaseModel `bun:"table:channel_members"`

	ID        int64      `bun:",pk,autoincrement"`
	ChannelID int64      `bun:",notnull,unique:uq_channel_member"`
	UserID    int64      `bun:",notnull,unique:uq_channel_member"`
	Role      MemberRole `bun:",notnull,default:'member'"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

type ChannelBan struct {
	bun.BaseModel `bun:"table:channel_bans"`

	ID             int64 `bun:",pk,autoincrement"`
	ChannelID      int64 `bun:",notnull,unique:uq_channel_ban"`
	UserID         int64 `bun:",notnull,unique:uq_channel_ban"`
	BannedByUserID int64 `bun:",notnull"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

type ChannelKickVote struct {
	bun.BaseModel `bun:"table:channel_kick_votes"`

	ID           int64 `bun:",pk,autoincrement"`
	ChannelID    int64 `bun:",notnull,unique:uq_kick_vote"`
	VoterUserID  int64 `bun:",notnull,unique:uq_kick_vote"`
	TargetUserID int64 `bun:",notnull,unique:uq_kick_vote"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}
