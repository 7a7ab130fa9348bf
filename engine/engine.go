// Package engine ties the moderation components together: it consumes inbound
// transport events, runs the matcher and violation ledger over group messages,
// greets new members, auto-replies during quiet hours, and routes chat
// commands. All outbound side effects go through the dispatch queue; the
// engine itself never blocks on the transport.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/palatki-dv/warden/activation"
	"github.com/palatki-dv/warden/dispatch"
	"github.com/palatki-dv/warden/keyword"
	"github.com/palatki-dv/warden/ledger"
	"github.com/palatki-dv/warden/ratelimit"
	"github.com/palatki-dv/warden/supervisor"
	"github.com/palatki-dv/warden/transport"
)

// rate-limiter command keys used by engine-internal flows
const (
	cmdQuietReply = "quietreply"
	cmdStart      = "start"
)

// DefaultCooldowns returns the per-command rate-limit table. quietWindow
// bounds auto-replies to one per user per quiet window.
func DefaultCooldowns(quietWindow time.Duration) map[string]time.Duration {
	return map[string]time.Duration{
		"rules":       5 * time.Second,
		"help":        5 * time.Second,
		"stats":       30 * time.Second,
		cmdStart:      10 * time.Second,
		cmdQuietReply: quietWindow,
	}
}

// Texts holds the fixed user-facing strings. Fields marked as templates are
// fmt format strings; see the call sites for their arguments.
type Texts struct {
	Welcome   string // template: member display name
	Rules     string
	Help      string
	AutoReply string
	Warn      string // template: display name, violation count, max violations
	BanNotice string // template: display name
	OwnerNote string // template: display name, message text

	ActivationPrompt    string
	ActivationOK        string
	ActivationWrong     string // template: remaining attempts
	ActivationInvalid   string
	ActivationExhausted string
	ActivationCancelled string
	ActivationIdle      string
	ActivationActive    string

	StatsEmpty      string
	SubscribeButton string
	ReadButton      string
}

type Config struct {
	// GroupChat is the single moderated group.
	GroupChat transport.ChatID
	// OwnerChat receives quiet-hours forwards.
	OwnerChat transport.ChatID
	// AdminIDs are exempt from moderation and may run admin commands.
	AdminIDs []transport.UserID
	// Self is the bot's own identity, resolved at startup.
	Self transport.Identity

	ChannelURL string

	// Quiet hours are evaluated in Location; the window may cross midnight.
	// QuietStartHour == QuietEndHour disables the window.
	Location       *time.Location
	QuietStartHour int
	QuietEndHour   int

	// WelcomeTimeout schedules deletion of welcome messages; zero keeps them.
	WelcomeTimeout time.Duration
	// MinMessageLen is the rune floor below which moderation is skipped.
	MinMessageLen int
	// PermCacheTTL bounds staleness of the cached bot permissions.
	PermCacheTTL time.Duration
}

func (c *Config) setDefaults() {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.MinMessageLen <= 0 {
		c.MinMessageLen = 4
	}
	if c.PermCacheTTL <= 0 {
		c.PermCacheTTL = 5 * time.Minute
	}
}

type Engine struct {
	cfg    Config
	texts  Texts
	logger *slog.Logger

	tx         transport.Transport
	ledger     *ledger.Ledger
	matcher    *keyword.Matcher
	limiter    *ratelimit.Limiter
	queue      *dispatch.Queue
	gate       *activation.Gate
	thresholds *supervisor.Thresholds

	admins    map[transport.UserID]bool
	permCache *lru.LRU[transport.ChatID, transport.Permissions]
}

func New(cfg Config, texts Texts, tx transport.Transport, lg *ledger.Ledger, matcher *keyword.Matcher, limiter *ratelimit.Limiter, queue *dispatch.Queue, gate *activation.Gate, thresholds *supervisor.Thresholds, logger *slog.Logger) *Engine {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	admins := make(map[transport.UserID]bool, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = true
	}
	return &Engine{
		cfg:        cfg,
		texts:      texts,
		logger:     logger.With("system", "engine"),
		tx:         tx,
		ledger:     lg,
		matcher:    matcher,
		limiter:    limiter,
		queue:      queue,
		gate:       gate,
		thresholds: thresholds,
		admins:     admins,
		permCache:  lru.NewLRU[transport.ChatID, transport.Permissions](4, nil, cfg.PermCacheTTL),
	}
}

// ProcessEvent dispatches one inbound event to its handler. A panic in a
// handler is recovered and counted; one poisoned event must never take down
// the poll loop.
func (e *Engine) ProcessEvent(ctx context.Context, ev *transport.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine panic recovered", "panic", r)
			eventErrors.Inc()
			e.NotifyAdmins(ctx, fmt.Sprintf("⚠️ Event processing error: %v", r))
		}
	}()
	switch {
	case ev.Message != nil:
		eventsProcessed.WithLabelValues("message").Inc()
		e.handleMessage(ctx, ev.Message)
	case ev.MemberJoin != nil:
		eventsProcessed.WithLabelValues("member_join").Inc()
		e.handleMemberJoin(ev.MemberJoin)
	case ev.ButtonPress != nil:
		eventsProcessed.WithLabelValues("button_press").Inc()
		e.handleButtonPress(ctx, ev.ButtonPress)
	}
}

func (e *Engine) handleMessage(ctx context.Context, msg *transport.Message) {
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		e.handleCommand(ctx, msg, text)
		return
	}
	if msg.Ref.Chat != e.cfg.GroupChat {
		// direct chat: the only non-command input we act on is a pending
		// activation code
		if e.gate.Awaiting(int64(msg.From.UserID)) {
			e.handleActivationCode(ctx, msg, text)
		}
		return
	}
	if msg.From.IsBot || e.isAdmin(msg.From.UserID) {
		return
	}
	if e.moderate(ctx, msg) {
		return
	}
	e.maybeQuietReply(msg)
}

// moderate runs the matcher over a group message and applies the escalation
// policy. Returns true when the message was flagged.
func (e *Engine) moderate(ctx context.Context, msg *transport.Message) bool {
	if utf8.RuneCountInString(msg.Text) < e.cfg.MinMessageLen {
		return false
	}
	term, ok := e.matcher.MatchFirst(msg.Text)
	if !ok {
		return false
	}
	count, remaining := e.ledger.RecordViolation(int64(msg.From.UserID), msg.ReceivedAt)
	perms := e.botPermissions(ctx)
	name := displayName(msg.From)

	e.logger.Info("message flagged",
		"user", msg.From.UserID,
		"term", term,
		"count", count,
		"remaining", remaining)

	if perms.CanDeleteMessages {
		e.enqueue(dispatch.Task{Kind: dispatch.TaskDeleteMessage, Ref: msg.Ref})
	}
	if remaining <= 0 && perms.CanRestrictMembers {
		violationsFlagged.WithLabelValues("ban").Inc()
		e.enqueue(dispatch.Task{Kind: dispatch.TaskBanUser, Chat: msg.Ref.Chat, User: msg.From.UserID})
		e.enqueue(dispatch.Task{
			Kind: dispatch.TaskSendMessage,
			Chat: msg.Ref.Chat,
			Text: fmt.Sprintf(e.texts.BanNotice, name),
		})
		return true
	}
	violationsFlagged.WithLabelValues("warn").Inc()
	e.enqueue(dispatch.Task{
		Kind: dispatch.TaskSendMessage,
		Chat: msg.Ref.Chat,
		Text: fmt.Sprintf(e.texts.Warn, name, count, e.ledger.MaxViolations()),
	})
	return true
}

// maybeQuietReply answers group chatter during the quiet window with a
// templated notice, forwards it to the owner, and schedules the notice for
// deletion at the window's end. At most one reply per user per window,
// enforced through the shared rate limiter. Skipped entirely when resource
// thresholds are exceeded.
func (e *Engine) maybeQuietReply(msg *transport.Message) {
	now := msg.ReceivedAt.In(e.cfg.Location)
	if !inQuietHours(now.Hour(), e.cfg.QuietStartHour, e.cfg.QuietEndHour) {
		return
	}
	if e.thresholds != nil && !e.thresholds.Allow() {
		quietRepliesSkipped.Inc()
		return
	}
	if !e.limiter.Allow(int64(msg.From.UserID), cmdQuietReply, now) {
		return
	}
	quietRepliesSent.Inc()
	e.enqueue(dispatch.Task{
		Kind:        dispatch.TaskSendMessage,
		Chat:        msg.Ref.Chat,
		Text:        e.texts.AutoReply,
		Keyboard:    e.subscribeKeyboard(),
		ReplyTo:     msg.Ref.ID,
		DeleteAfter: untilHour(now, e.cfg.QuietEndHour),
	})
	if e.cfg.OwnerChat != 0 {
		e.enqueue(dispatch.Task{
			Kind: dispatch.TaskSendMessage,
			Chat: e.cfg.OwnerChat,
			Text: fmt.Sprintf(e.texts.OwnerNote, displayName(msg.From), msg.Text),
		})
	}
}

func (e *Engine) handleMemberJoin(ev *transport.MemberJoin) {
	for _, m := range ev.Members {
		if m.IsBot || m.UserID == e.cfg.Self.UserID {
			continue
		}
		welcomesSent.Inc()
		kb := e.subscribeKeyboard()
		kb = append(kb, []transport.Button{{Text: e.texts.ReadButton, CallbackData: "welcome_read"}})
		e.enqueue(dispatch.Task{
			Kind:        dispatch.TaskSendMessage,
			Chat:        ev.Chat,
			Text:        fmt.Sprintf(e.texts.Welcome, displayName(m)),
			Keyboard:    kb,
			DeleteAfter: e.cfg.WelcomeTimeout,
		})
	}
}

func (e *Engine) handleButtonPress(ctx context.Context, bp *transport.ButtonPress) {
	// ack first so the client stops its spinner even if the follow-up fails
	if err := e.tx.AnswerButtonPress(ctx, bp.PressID); err != nil {
		e.logger.Warn("failed to answer button press", "err", err)
	}
	if bp.Data == "welcome_read" {
		e.enqueue(dispatch.Task{Kind: dispatch.TaskDeleteMessage, Ref: bp.Message})
	}
}

// NotifyAdmins sends text to every configured admin as a direct message.
// Best-effort: delivery rides the dispatch queue.
func (e *Engine) NotifyAdmins(ctx context.Context, text string) {
	for _, id := range e.cfg.AdminIDs {
		e.enqueue(dispatch.Task{Kind: dispatch.TaskNotifyAdmin, User: id, Text: text})
	}
}

func (e *Engine) isAdmin(id transport.UserID) bool {
	return e.admins[id]
}

func (e *Engine) enqueue(t dispatch.Task) {
	if err := e.queue.Enqueue(t); err != nil {
		e.logger.Warn("enqueue failed", "kind", t.Kind, "err", err)
	}
}

// botPermissions returns the bot's cached permissions in the group. A failed
// lookup yields zero permissions: enforcement requires a positive read.
func (e *Engine) botPermissions(ctx context.Context) transport.Permissions {
	if perms, ok := e.permCache.Get(e.cfg.GroupChat); ok {
		return perms
	}
	perms, err := e.tx.GetMemberPermissions(ctx, e.cfg.GroupChat, e.cfg.Self.UserID)
	if err != nil {
		e.logger.Warn("failed to read bot permissions", "err", err)
		return transport.Permissions{}
	}
	e.permCache.Add(e.cfg.GroupChat, perms)
	return perms
}

func (e *Engine) subscribeKeyboard() transport.Keyboard {
	if e.cfg.ChannelURL == "" {
		return nil
	}
	return transport.Keyboard{{{Text: e.texts.SubscribeButton, URL: e.cfg.ChannelURL}}}
}

func displayName(id transport.Identity) string {
	if id.FirstName != "" {
		return id.FirstName
	}
	if id.Username != "" {
		return "@" + id.Username
	}
	return fmt.Sprintf("user %d", id.UserID)
}

// inQuietHours reports whether hour h falls inside [start, end), handling
// windows that cross midnight. start == end means no window.
func inQuietHours(h, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

// untilHour returns the duration from now to the next occurrence of the given
// wall-clock hour in now's location.
func untilHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
