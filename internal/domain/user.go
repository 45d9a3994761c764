// Package domain contains the persisted entities. No behavior here
// beyond tiny helpers; the engines in internal/app own the rules.
package domain

import (
	"time"

	"github.com/uptrace/bun"
)

type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusDND     UserStatus = "dnd"
	StatusOffline UserStatus = "offline"
)

func ValidStatus(s UserStatus) bool {
	switch s {
	case StatusOnline, StatusDND, StatusOffline:
		return true
	}
	return false
}

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID       int64  `bun:",pk,autoincrement"`
	Nickname string `bun:",notnull,unique"`

	FirstName string `bun:",notnull"`
	LastName  string `bun:",notnull"`

	Email        string `bun:",notnull,unique"`
	PasswordHash string `bun:"password,notnull"`

	Status             UserStatus `bun:",notnull,default:'online'"`
	NotifyOnlyMentions bool       `bun:",notnull,default:false"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// AccessToken is an opaque bearer credential. Only the SHA-256 of the
// issued token is stored.
type AccessToken struct {
	bun.BaseModel `bun:"table:access_tokens"`

	ID        int64     `bun:",pk,autoincrement"`
	UserID    int64     `bun:",notnull"`
	Hash      string    `bun:",notnull,unique"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}
