// Package auth implements the identity provider: registration, login
// and bearer-token verification. The chat engines only ever see a
// Principal resolved here.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"huddle/internal/domain"
	"huddle/internal/store"
	apperrors "huddle/pkg/errors"
)

// Principal is the authenticated identity attached to a connection.
type Principal struct {
	ID       int64
	Nickname string
	Status   domain.UserStatus
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

var nicknameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

type RegisterCommand struct {
	Nickname  string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*domain.User, error) {
	if !nicknameRe.MatchString(cmd.Nickname) {
		return nil, apperrors.InvalidArg("nickname must be 3-32 chars, letters, numbers and underscores only")
	}
	if cmd.Email == "" {
		return nil, apperrors.InvalidArg("email is required")
	}
	if len(cmd.Password) < 8 {
		return nil, apperrors.InvalidArg("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "registration failed", err)
	}

	u := &domain.User{
		Nickname:     cmd.Nickname,
		FirstName:    cmd.FirstName,
		LastName:     cmd.LastName,
		Email:        cmd.Email,
		PasswordHash: string(hash),
		Status:       domain.StatusOnline,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if err == store.ErrDuplicate {
			return nil, apperrors.AlreadyExists("nickname or email is already taken")
		}
		log.Error().Err(err).Str("module", "auth").Msg("create user")
		return nil, apperrors.Internal("registration failed")
	}
	log.Info().Str("module", "auth").Str("nickname", u.Nickname).Msg("registered")
	return u, nil
}

// Login verifies credentials and issues an opaque bearer token. The
// plain token goes back to the caller; only its SHA-256 is stored.
func (s *Service) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return "", nil, apperrors.Unauthorized("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, apperrors.Unauthorized("invalid credentials")
	}

	token := uuid.NewString()
	rec := &domain.AccessToken{UserID: u.ID, Hash: hashToken(token)}
	if err := s.store.CreateToken(ctx, rec); err != nil {
		log.Error().Err(err).Str("module", "auth").Msg("create token")
		return "", nil, apperrors.Internal("login failed")
	}
	return token, u, nil
}

// Verify resolves a bearer token to its principal.
func (s *Service) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}
	rec, err := s.store.TokenByHash(ctx, hashToken(token))
	if err != nil {
		return nil, apperrors.ErrUnauthorized
	}
	u, err := s.store.UserByID(ctx, rec.UserID)
	if err != nil {
		return nil, apperrors.ErrUnauthorized
	}
	return &Principal{ID: u.ID, Nickname: u.Nickname, Status: u.Status}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
