package engine

import (
	"log/slog"
	"time"

	"github.com/palatki-dv/warden/activation"
	"github.com/palatki-dv/warden/dispatch"
	"github.com/palatki-dv/warden/keyword"
	"github.com/palatki-dv/warden/ledger"
	"github.com/palatki-dv/warden/ratelimit"
	"github.com/palatki-dv/warden/transport"
)

// EngineTestFixture returns a fully in-memory engine with a mock transport
// and fast timings. Intentionally exported, for use in other packages.
func EngineTestFixture() *Engine {
	mock := transport.NewMockTransport()
	lg := ledger.New(ledger.NewMemStore(), 24*time.Hour, 3, slog.Default())
	matcher := keyword.NewMatcher([]string{"сука", "блять", "идиот", "scam"})
	limiter := ratelimit.New(DefaultCooldowns(8*time.Hour), 5*time.Second)
	queue := dispatch.NewQueue(mock, slog.Default(), dispatch.Options{MaxTries: 2})
	gate := activation.NewGate("opensesame", 3,
		[]int64{42},
		activation.NewMemAttemptStore(),
		activation.NewMemActivatedStore(),
		slog.Default())

	cfg := Config{
		GroupChat:      -100,
		OwnerChat:      900,
		AdminIDs:       []transport.UserID{42},
		Self:           mock.Self,
		ChannelURL:     "https://example.com/channel",
		Location:       time.UTC,
		QuietStartHour: 22,
		QuietEndHour:   6,
		WelcomeTimeout: 25 * time.Millisecond,
		MinMessageLen:  4,
	}
	texts := Texts{
		Welcome:   "Welcome, %s!",
		Rules:     "Be kind.",
		Help:      "Commands: /rules /help",
		AutoReply: "We are asleep, back in the morning.",
		Warn:      "⚠️ %s, warning %d/%d.",
		BanNotice: "%s has been removed.",
		OwnerNote: "Night message from %s: %s",

		ActivationPrompt:    "Send the access code.",
		ActivationOK:        "Activated.",
		ActivationWrong:     "Wrong code, %d attempts left.",
		ActivationInvalid:   "That does not look like a code.",
		ActivationExhausted: "No attempts left.",
		ActivationCancelled: "Cancelled.",
		ActivationIdle:      "Nothing to do.",
		ActivationActive:    "Already activated.",

		StatsEmpty:      "No violations recorded.",
		SubscribeButton: "Subscribe",
		ReadButton:      "Got it",
	}
	return New(cfg, texts, mock, lg, matcher, limiter, queue, gate, nil, slog.Default())
}
