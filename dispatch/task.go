package dispatch

import (
	"time"

	"github.com/palatki-dv/warden/transport"
)

// TaskKind enumerates the closed set of deferred outbound side effects. Tasks
// are plain values (not closures) so the queue and its tests never depend on
// captured context.
type TaskKind int

const (
	TaskSendMessage TaskKind = iota
	TaskDeleteMessage
	TaskBanUser
	TaskNotifyAdmin
)

func (k TaskKind) String() string {
	switch k {
	case TaskSendMessage:
		return "send_message"
	case TaskDeleteMessage:
		return "delete_message"
	case TaskBanUser:
		return "ban_user"
	case TaskNotifyAdmin:
		return "notify_admin"
	default:
		return "unknown"
	}
}

// Task is one queued outbound operation. Field usage by kind:
//
//   - TaskSendMessage: Chat, Text, Keyboard, ReplyTo; DeleteAfter optionally
//     schedules deletion of the sent message.
//   - TaskDeleteMessage: Ref.
//   - TaskBanUser: Chat, User.
//   - TaskNotifyAdmin: User (the admin), Text.
type Task struct {
	Kind TaskKind

	Chat     transport.ChatID
	User     transport.UserID
	Text     string
	Keyboard transport.Keyboard
	ReplyTo  transport.MessageID
	Ref      transport.MessageRef

	DeleteAfter time.Duration
}
