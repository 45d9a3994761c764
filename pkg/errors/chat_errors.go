package errors

var (
	// Domain errors — used by the moderation and messaging engines.
	// Messages match what clients display in toasts, so keep them stable.
	ErrUnauthorized       = Unauthorized("Unauthorized")
	ErrUserNotFound       = InvalidArg("User not found")
	ErrChannelNotFound    = NotFound("Channel not found")
	ErrChannelNameTaken   = AlreadyExists("Channel already exists")
	ErrChannelNameMissing = InvalidArg("Channel name is required")
	ErrNotMember          = InvalidArg("Not a member")
	ErrSenderNotMember    = Forbidden("You are not a member of this channel")
	ErrTargetNotMember    = InvalidArg("User is not in this channel")
	ErrAlreadyMember      = AlreadyExists("Already a member")
	ErrBanned             = Forbidden("You are banned from this channel")
	ErrPrivateJoin        = Forbidden("Cannot join a private channel without invite")
	ErrInviteNotAdmin     = Forbidden("Only admin can invite in private channels")
	ErrRevokeNotAdmin     = Forbidden("Only admin can revoke members in private channels")
	ErrKickNotAdmin       = Forbidden("Only admin can kick in private channels")
	ErrKickSelf           = InvalidArg("Cannot kick yourself")
	ErrDuplicateVote      = AlreadyExists("You already voted to kick this user")
	ErrEmptyMessage       = InvalidArg("Message is empty")
)

func ErrTargetBanned(nickname string) error {
	return Forbidden(nickname + " is banned from this channel")
}
