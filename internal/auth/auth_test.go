package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/store/memstore"
	apperrors "huddle/pkg/errors"
)

func validCommand() RegisterCommand {
	return RegisterCommand{
		Nickname:  "alice",
		FirstName: "Alice",
		LastName:  "Ames",
		Email:     "alice@example.com",
		Password:  "hunter2hunter2",
	}
}

func TestRegister(t *testing.T) {
	svc := NewService(memstore.New())
	ctx := context.Background()

	u, err := svc.Register(ctx, validCommand())
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "alice", u.Nickname)
	// Never store the plain password.
	assert.NotEqual(t, "hunter2hunter2", u.PasswordHash)

	t.Run("duplicate nickname", func(t *testing.T) {
		cmd := validCommand()
		cmd.Email = "other@example.com"
		_, err := svc.Register(ctx, cmd)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeAlreadyExists, apperrors.CodeOf(err))
	})

	t.Run("duplicate email", func(t *testing.T) {
		cmd := validCommand()
		cmd.Nickname = "alice2"
		_, err := svc.Register(ctx, cmd)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeAlreadyExists, apperrors.CodeOf(err))
	})
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(memstore.New())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*RegisterCommand)
	}{
		{"nickname too short", func(c *RegisterCommand) { c.Nickname = "ab" }},
		{"nickname with spaces", func(c *RegisterCommand) { c.Nickname = "a b c" }},
		{"missing email", func(c *RegisterCommand) { c.Email = "" }},
		{"short password", func(c *RegisterCommand) { c.Password = "short" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cmd := validCommand()
			c.mutate(&cmd)
			_, err := svc.Register(ctx, cmd)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
		})
	}
}

func TestLoginAndVerify(t *testing.T) {
	svc := NewService(memstore.New())
	ctx := context.Background()

	_, err := svc.Register(ctx, validCommand())
	require.NoError(t, err)

	token, u, err := svc.Login(ctx, "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice", u.Nickname)

	p, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.ID)
	assert.Equal(t, "alice", p.Nickname)

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "alice@example.com", "not-the-password")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeUnauthenticated, apperrors.CodeOf(err))
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "ghost@example.com", "hunter2hunter2")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeUnauthenticated, apperrors.CodeOf(err))
	})

	t.Run("bad token", func(t *testing.T) {
		_, err := svc.Verify(ctx, "not-a-token")
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := svc.Verify(ctx, "")
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})
}
