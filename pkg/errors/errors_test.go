package errors

import (
	stderrors "errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodePermissionDenied, CodeOf(ErrBanned))
	assert.Equal(t, CodeNotFound, CodeOf(ErrChannelNotFound))
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("disk on fire")))

	// Codes survive pkg/errors wrapping from the storage layer.
	wrapped := pkgerrors.Wrap(ErrChannelNotFound, "repo.ChannelByID")
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "You are banned from this channel", MessageOf(ErrBanned))
	// Plain error text never reaches clients.
	assert.Equal(t, "internal error", MessageOf(stderrors.New("pq: connection refused")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(CodeInternal, "registration failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "registration failed")
}
