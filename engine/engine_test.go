package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/palatki-dv/warden/transport"
)

var noon = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func startWorker(t *testing.T, eng *Engine) *transport.MockTransport {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.queue.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return eng.tx.(*transport.MockTransport)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func groupMsg(eng *Engine, user int64, text string, at time.Time, id int64) *transport.Event {
	return &transport.Event{Message: &transport.Message{
		Ref:        transport.MessageRef{Chat: eng.cfg.GroupChat, ID: transport.MessageID(id)},
		From:       transport.Identity{UserID: transport.UserID(user), FirstName: "Vasya"},
		Text:       text,
		ReceivedAt: at,
	}}
}

func directMsg(user int64, text string, at time.Time, id int64) *transport.Event {
	return &transport.Event{Message: &transport.Message{
		Ref:        transport.MessageRef{Chat: transport.ChatID(user), ID: transport.MessageID(id)},
		From:       transport.Identity{UserID: transport.UserID(user), FirstName: "Vasya"},
		Text:       text,
		ReceivedAt: at,
	}}
}

func sentContaining(mock *transport.MockTransport, substr string) int {
	n := 0
	for _, s := range mock.Sent() {
		if strings.Contains(s.Text, substr) {
			n++
		}
	}
	return n
}

func TestThreeStrikeBan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	mock := startWorker(t, eng)

	eng.ProcessEvent(ctx, groupMsg(eng, 7, "ты полный идиот", noon, 1))
	waitFor(t, func() bool { return sentContaining(mock, "warning 1/3") == 1 })
	waitFor(t, func() bool { return len(mock.Deleted()) == 1 })
	assert.Empty(mock.Banned())

	eng.ProcessEvent(ctx, groupMsg(eng, 7, "сука такая", noon.Add(time.Minute), 2))
	waitFor(t, func() bool { return sentContaining(mock, "warning 2/3") == 1 })
	assert.Empty(mock.Banned())

	eng.ProcessEvent(ctx, groupMsg(eng, 7, "опять идиот", noon.Add(2*time.Minute), 3))
	waitFor(t, func() bool { return len(mock.Banned()) == 1 })
	assert.Equal(transport.UserID(7), mock.Banned()[0])
	waitFor(t, func() bool { return sentContaining(mock, "has been removed") == 1 })
	waitFor(t, func() bool { return len(mock.Deleted()) == 3 })
}

func TestViolationDecayResets(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	mock := startWorker(t, eng)

	eng.ProcessEvent(ctx, groupMsg(eng, 8, "ты полный идиот", noon, 1))
	waitFor(t, func() bool { return sentContaining(mock, "warning 1/3") == 1 })

	// a violation after the decay window starts a fresh count, not strike two
	eng.ProcessEvent(ctx, groupMsg(eng, 8, "снова идиот", noon.Add(25*time.Hour), 2))
	waitFor(t, func() bool { return sentContaining(mock, "warning 1/3") == 2 })
	assert.Zero(sentContaining(mock, "warning 2/3"))
	assert.Empty(mock.Banned())
}

func TestModerationSkips(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	mock := startWorker(t, eng)

	// admins are never moderated
	eng.ProcessEvent(ctx, groupMsg(eng, 42, "ты полный идиот", noon, 1))

	// messages below the rune floor skip the matcher
	eng.cfg.MinMessageLen = 10
	eng.ProcessEvent(ctx, groupMsg(eng, 9, "ты идиот", noon, 2))

	// clean daytime message
	eng.cfg.MinMessageLen = 4
	eng.ProcessEvent(ctx, groupMsg(eng, 9, "добрый день всем", noon, 3))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(mock.Sent())
	assert.Empty(mock.Deleted())
	assert.Empty(mock.Banned())
}

func TestQuietHoursAutoReply(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	mock := startWorker(t, eng)

	night := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	eng.ProcessEvent(ctx, groupMsg(eng, 7, "кто-нибудь тут есть", night, 1))
	waitFor(t, func() bool { return sentContaining(mock, "asleep") == 1 })
	waitFor(t, func() bool { return sentContaining(mock, "Night message from Vasya") == 1 })

	// at most one auto-reply per user per window
	eng.ProcessEvent(ctx, groupMsg(eng, 7, "ау", night.Add(time.Minute), 2))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(1, sentContaining(mock, "asleep"))

	// the window wraps past midnight
	smallHours := time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC)
	eng.ProcessEvent(ctx, groupMsg(eng, 11, "доброй ночи", smallHours, 3))
	waitFor(t, func() bool { return sentContaining(mock, "asleep") == 2 })

	// owner notice went to the owner chat
	for _, s := range mock.Sent() {
		if strings.Contains(s.Text, "Night message") {
			assert.Equal(eng.cfg.OwnerChat, s.Chat)
		}
	}
}

func TestWelcomeFlow(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	mock := startWorker(t, eng)

	eng.ProcessEvent(ctx, &transport.Event{MemberJoin: &transport.MemberJoin{
		Chat: eng.cfg.GroupChat,
		Members: []transport.Identity{
			{UserID: 55, FirstName: "Petya"},
			eng.cfg.Self,
		},
	}})

	// one welcome, none for the bot itself
	waitFor(t, func() bool { return sentContaining(mock, "Welcome, Petya!") == 1 })
	assert.Equal(1, len(mock.Sent()))
	welcome := mock.Sent()[0]
	assert.NotEmpty(welcome.Opts.Keyboard)

	// the welcome is scheduled for deletion after the timeout
	waitFor(t, func() bool { return len(mock.Deleted()) == 1 })
	assert.Equal(welcome.Ref, mock.Deleted()[0])

	// a "read" press deletes its welcome immediately
	ref := transport.MessageRef{Chat: eng.cfg.GroupChat, ID: 77}
	eng.ProcessEvent(ctx, &transport.Event{ButtonPress: &transport.ButtonPress{
		PressID: "press-1",
		From:    transport.Identity{UserID: 55},
		Data:    "welcome_read",
		Message: ref,
	}})
	waitFor(t, func() bool { return len(mock.Deleted()) == 2 })
	assert.Equal(ref, mock.Deleted()[1])
	assert.Equal([]string{"press-1"}, mock.Answered())
}

func TestCommands(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	mock := startWorker(t, eng)

	eng.ProcessEvent(ctx, groupMsg(eng, 7, "/rules", noon, 1))
	waitFor(t, func() bool { return sentContaining(mock, "Be kind.") == 1 })

	// back-to-back command is throttled
	eng.ProcessEvent(ctx, groupMsg(eng, 7, "/rules", noon.Add(time.Second), 2))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(1, sentContaining(mock, "Be kind."))

	// stats is admin-only
	eng.ProcessEvent(ctx, groupMsg(eng, 7, "/stats", noon, 3))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(sentContaining(mock, "No violations recorded."))
	eng.ProcessEvent(ctx, groupMsg(eng, 42, "/stats", noon, 4))
	waitFor(t, func() bool { return sentContaining(mock, "No violations recorded.") == 1 })

	// a bot-mention suffix is stripped
	eng.ProcessEvent(ctx, groupMsg(eng, 8, "/help@warden_bot", noon, 5))
	waitFor(t, func() bool { return sentContaining(mock, "Commands:") == 1 })
}

func TestActivationFlow(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	mock := startWorker(t, eng)

	// /start in the group is ignored
	eng.ProcessEvent(ctx, groupMsg(eng, 7, "/start", noon, 1))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(mock.Sent())

	eng.ProcessEvent(ctx, directMsg(7, "/start", noon, 2))
	waitFor(t, func() bool { return sentContaining(mock, "Send the access code.") == 1 })

	eng.ProcessEvent(ctx, directMsg(7, "wrong-code", noon.Add(time.Second), 3))
	waitFor(t, func() bool { return sentContaining(mock, "Wrong code, 2 attempts left.") == 1 })

	eng.ProcessEvent(ctx, directMsg(7, "opensesame", noon.Add(2*time.Second), 4))
	waitFor(t, func() bool { return sentContaining(mock, "Activated.") == 1 })

	// replies land in the user's direct chat
	for _, s := range mock.Sent() {
		assert.Equal(transport.ChatID(7), s.Chat)
	}

	// the code prompt is over; plain direct messages are ignored again
	eng.ProcessEvent(ctx, directMsg(7, "opensesame", noon.Add(3*time.Second), 5))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(1, sentContaining(mock, "Activated."))
}

func TestNotifyAdmins(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	mock := startWorker(t, eng)

	eng.NotifyAdmins(ctx, "something broke")
	waitFor(t, func() bool { return sentContaining(mock, "something broke") == 1 })
	assert.Equal(transport.ChatID(42), mock.Sent()[0].Chat)
}

func TestQuietWindowBounds(t *testing.T) {
	assert := assert.New(t)

	// 22 → 6 wraps midnight
	assert.True(inQuietHours(23, 22, 6))
	assert.True(inQuietHours(0, 22, 6))
	assert.True(inQuietHours(5, 22, 6))
	assert.False(inQuietHours(6, 22, 6))
	assert.False(inQuietHours(12, 22, 6))

	// non-wrapping window
	assert.True(inQuietHours(2, 1, 5))
	assert.False(inQuietHours(5, 1, 5))

	// equal bounds disable the window
	assert.False(inQuietHours(3, 3, 3))

	at := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	assert.Equal(6*time.Hour+30*time.Minute, untilHour(at, 6))
	assert.Equal(24*time.Hour, untilHour(at.Truncate(time.Hour), 23))
}
