// Package store defines the durable-store contract the engines run
// against, plus the Postgres (bun) implementation. The memstore
// subpackage provides the same contract in memory for tests and dev.
package store

import (
	"context"
	"errors"
	"time"

	"huddle/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate row")
)

// MemberUser pairs a member row with its user for snapshot building.
type MemberUser struct {
	User domain.User
	Role domain.MemberRole
}

// ChannelDetail is everything a channel snapshot needs in one read.
type ChannelDetail struct {
	Channel domain.Channel
	Owner   domain.User
	Members []MemberUser
	Banned  []domain.User
}

// MessageDetail is a message with sender and mention nicknames resolved.
type MessageDetail struct {
	Message        domain.Message
	SenderNickname string
	Mentioned      []string
}

type Users interface {
	CreateUser(ctx context.Context, u *domain.User) error
	UserByID(ctx context.Context, id int64) (*domain.User, error)
	UserByNickname(ctx context.Context, nickname string) (*domain.User, error)
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	// UsersByNicknames resolves the given nicknames; unknown ones are
	// silently absent from the result.
	UsersByNicknames(ctx context.Context, nicknames []string) ([]domain.User, error)
	UpdateUserPresence(ctx context.Context, id int64, status domain.UserStatus, notifyOnlyMentions *bool) error
}

type Tokens interface {
	CreateToken(ctx context.Context, t *domain.AccessToken) error
	TokenByHash(ctx context.Context, hash string) (*domain.AccessToken, error)
}

type Channels interface {
	ChannelByID(ctx context.Context, id int64) (*domain.Channel, error)
	ChannelByName(ctx context.Context, name string) (*domain.Channel, error)
	ChannelDetail(ctx context.Context, id int64) (*ChannelDetail, error)
	// ChannelsForUser returns details of every channel the user is a
	// member of.
	ChannelsForUser(ctx context.Context, userID int64) ([]ChannelDetail, error)
	// CreateChannel inserts the channel and its owner membership as one
	// atomic write. Fails ErrDuplicate when the name is taken.
	CreateChannel(ctx context.Context, ch *domain.Channel, owner *domain.ChannelMember) error
	// StaleChannels lists channels whose activity timestamp is older
	// than the threshold.
	StaleChannels(ctx context.Context, olderThan time.Time) ([]domain.Channel, error)
	// InChannelTx runs fn inside a transaction holding an exclusive
	// lock on the channel row, serializing concurrent moderation of the
	// same channel. Fails ErrNotFound when the channel is gone — a
	// reaper sweep may race an operation on a stale channel.
	InChannelTx(ctx context.Context, channelID int64, fn func(tx ChannelTx) error) error
}

// ChannelTx is the per-channel mutation scope. All check-then-act
// sequences of the moderation engine happen through one ChannelTx.
type ChannelTx interface {
	// Channel returns the locked row. Mutations through the tx do not
	// update the copy.
	Channel() *domain.Channel

	Member(ctx context.Context, userID int64) (*domain.ChannelMember, error)
	MemberIDs(ctx context.Context) ([]int64, error)
	AddMember(ctx context.Context, userID int64, role domain.MemberRole) error
	RemoveMember(ctx context.Context, userID int64) error

	Ban(ctx context.Context, userID int64) (*domain.ChannelBan, error)
	AddBan(ctx context.Context, userID, bannedByUserID int64) error
	RemoveBan(ctx context.Context, userID int64) error

	// AddKickVote fails ErrDuplicate when this voter already voted for
	// this target in this channel.
	AddKickVote(ctx context.Context, voterUserID, targetUserID int64) error
	CountKickVotes(ctx context.Context, targetUserID int64) (int, error)
	ClearKickVotes(ctx context.Context, targetUserID int64) error

	// Touch bumps the channel activity timestamp.
	Touch(ctx context.Context) error
	// DeleteChannel cascades members, bans, votes, messages and the
	// channel row itself.
	DeleteChannel(ctx context.Context) error
}

type Messages interface {
	// CreateMessage persists the message and one mention row per id.
	CreateMessage(ctx context.Context, m *domain.Message, mentionedUserIDs []int64) error
	// MessagesBefore returns up to limit messages with id < beforeID
	// (all when beforeID is zero), newest first.
	MessagesBefore(ctx context.Context, channelID, beforeID int64, limit int) ([]MessageDetail, error)
}

type Store interface {
	Users
	Tokens
	Channels
	Messages
}
