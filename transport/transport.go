package transport

import (
	"context"
)

type ChatID int64
type UserID int64
type MessageID int64

// MessageRef identifies a single message within a chat, as needed for
// deletion.
type MessageRef struct {
	Chat ChatID
	ID   MessageID
}

// Identity is the transport-side identity of a user (or of the bot itself).
type Identity struct {
	UserID    UserID
	Username  string
	FirstName string
	IsBot     bool
}

// Permissions the transport grants a member within a chat. Only the
// capabilities the engine acts on are carried.
type Permissions struct {
	CanDeleteMessages  bool
	CanRestrictMembers bool
}

// Button is a single inline keyboard button. Exactly one of URL or
// CallbackData should be set.
type Button struct {
	Text         string
	URL          string
	CallbackData string
}

// Keyboard is rows of inline buttons.
type Keyboard [][]Button

type SendOpts struct {
	Keyboard       Keyboard
	ReplyTo        MessageID
	DisablePreview bool
}

// Transport is the capability surface the engine consumes from the chat
// service. Implementations must be safe for concurrent use; every method
// performs network I/O and respects the context deadline.
type Transport interface {
	SendMessage(ctx context.Context, chat ChatID, text string, opts *SendOpts) (MessageRef, error)
	DeleteMessage(ctx context.Context, ref MessageRef) error
	BanUser(ctx context.Context, chat ChatID, user UserID) error
	GetMemberPermissions(ctx context.Context, chat ChatID, user UserID) (Permissions, error)
	GetSelfIdentity(ctx context.Context) (Identity, error)
	AnswerButtonPress(ctx context.Context, pressID string) error
}
