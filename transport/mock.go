package transport

import (
	"context"
	"sync"
)

// MockTransport is a fully in-memory Transport for tests. It records every
// outbound call and allows scripted failures per method name.
type MockTransport struct {
	mu sync.Mutex

	Self        Identity
	Permissions Permissions

	sent      []SentMessage
	deleted   []MessageRef
	banned    []UserID
	answered  []string
	nextRef   MessageID
	failures  map[string]error
	failCount map[string]int
}

// SentMessage records a SendMessage call.
type SentMessage struct {
	Ref  MessageRef
	Chat ChatID
	Text string
	Opts SendOpts
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		Self:        Identity{UserID: 1, Username: "warden_bot", IsBot: true},
		Permissions: Permissions{CanDeleteMessages: true, CanRestrictMembers: true},
		failures:    make(map[string]error),
		failCount:   make(map[string]int),
	}
}

// FailWith makes the named method ("SendMessage", "BanUser", ...) return err
// for the next n calls. n < 0 means fail forever.
func (m *MockTransport) FailWith(method string, err error, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = err
	m.failCount[method] = n
}

func (m *MockTransport) checkFailure(method string) error {
	err, ok := m.failures[method]
	if !ok {
		return nil
	}
	n := m.failCount[method]
	if n == 0 {
		delete(m.failures, method)
		return nil
	}
	if n > 0 {
		m.failCount[method] = n - 1
	}
	return err
}

func (m *MockTransport) SendMessage(ctx context.Context, chat ChatID, text string, opts *SendOpts) (MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure("SendMessage"); err != nil {
		return MessageRef{}, err
	}
	m.nextRef++
	ref := MessageRef{Chat: chat, ID: m.nextRef}
	var o SendOpts
	if opts != nil {
		o = *opts
	}
	m.sent = append(m.sent, SentMessage{Ref: ref, Chat: chat, Text: text, Opts: o})
	return ref, nil
}

func (m *MockTransport) DeleteMessage(ctx context.Context, ref MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure("DeleteMessage"); err != nil {
		return err
	}
	m.deleted = append(m.deleted, ref)
	return nil
}

func (m *MockTransport) BanUser(ctx context.Context, chat ChatID, user UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure("BanUser"); err != nil {
		return err
	}
	m.banned = append(m.banned, user)
	return nil
}

func (m *MockTransport) GetMemberPermissions(ctx context.Context, chat ChatID, user UserID) (Permissions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure("GetMemberPermissions"); err != nil {
		return Permissions{}, err
	}
	return m.Permissions, nil
}

func (m *MockTransport) GetSelfIdentity(ctx context.Context) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure("GetSelfIdentity"); err != nil {
		return Identity{}, err
	}
	return m.Self, nil
}

func (m *MockTransport) AnswerButtonPress(ctx context.Context, pressID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure("AnswerButtonPress"); err != nil {
		return err
	}
	m.answered = append(m.answered, pressID)
	return nil
}

// Sent returns a copy of all recorded sends.
func (m *MockTransport) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Deleted returns a copy of all recorded deletions.
func (m *MockTransport) Deleted() []MessageRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MessageRef, len(m.deleted))
	copy(out, m.deleted)
	return out
}

// Banned returns a copy of all recorded bans.
func (m *MockTransport) Banned() []UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]UserID, len(m.banned))
	copy(out, m.banned)
	return out
}

// Answered returns a copy of all recorded button-press answers.
func (m *MockTransport) Answered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.answered))
	copy(out, m.answered)
	return out
}

var _ Transport = (*MockTransport)(nil)
