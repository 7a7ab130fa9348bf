package transport

import "time"

// Event is the closed set of inbound events the engine processes. Exactly one
// of the pointer fields is non-nil.
type Event struct {
	Message     *Message
	MemberJoin  *MemberJoin
	ButtonPress *ButtonPress
}

// Message is an inbound chat message.
type Message struct {
	Ref        MessageRef
	From       Identity
	Text       string
	ReceivedAt time.Time
}

// MemberJoin is a membership-change event announcing new chat members.
type MemberJoin struct {
	Chat    ChatID
	Members []Identity
}

// ButtonPress is an inline keyboard callback.
type ButtonPress struct {
	PressID string
	From    Identity
	Data    string
	Message MessageRef
}
