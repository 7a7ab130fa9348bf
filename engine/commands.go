package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/palatki-dv/warden/activation"
	"github.com/palatki-dv/warden/dispatch"
	"github.com/palatki-dv/warden/transport"
)

func (e *Engine) handleCommand(ctx context.Context, msg *transport.Message, text string) {
	cmd, args := splitCommand(text)
	user := msg.From.UserID
	now := msg.ReceivedAt

	switch cmd {
	case "rules", "help":
		if !e.limiter.Allow(int64(user), cmd, now) {
			commandsThrottled.Inc()
			return
		}
		commandsHandled.WithLabelValues(cmd).Inc()
		body := e.texts.Rules
		if cmd == "help" {
			body = e.texts.Help
		}
		e.enqueue(dispatch.Task{
			Kind:     dispatch.TaskSendMessage,
			Chat:     msg.Ref.Chat,
			Text:     body,
			Keyboard: e.subscribeKeyboard(),
			ReplyTo:  msg.Ref.ID,
		})

	case "stats":
		if !e.isAdmin(user) {
			return
		}
		if !e.limiter.Allow(int64(user), cmd, now) {
			commandsThrottled.Inc()
			return
		}
		commandsHandled.WithLabelValues(cmd).Inc()
		e.enqueue(dispatch.Task{
			Kind: dispatch.TaskSendMessage,
			Chat: msg.Ref.Chat,
			Text: e.renderStats(),
		})

	case "start":
		if msg.Ref.Chat == e.cfg.GroupChat {
			// activation is a direct-chat flow
			return
		}
		if !e.limiter.Allow(int64(user), cmdStart, now) {
			commandsThrottled.Inc()
			return
		}
		commandsHandled.WithLabelValues(cmd).Inc()
		res, err := e.gate.Start(ctx, int64(user))
		if err != nil {
			e.logger.Error("activation start failed", "user", user, "err", err)
			return
		}
		e.replyActivation(msg, res)

	case "cancel":
		if msg.Ref.Chat == e.cfg.GroupChat {
			return
		}
		commandsHandled.WithLabelValues(cmd).Inc()
		res, err := e.gate.Cancel(ctx, int64(user))
		if err != nil {
			e.logger.Error("activation cancel failed", "user", user, "err", err)
			return
		}
		e.replyActivation(msg, res)

	case "reset":
		if !e.isAdmin(user) {
			return
		}
		target, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
		if err != nil {
			return
		}
		commandsHandled.WithLabelValues(cmd).Inc()
		if err := e.gate.ResetAttempts(ctx, target); err != nil {
			e.logger.Error("attempt reset failed", "target", target, "err", err)
			return
		}
		e.enqueue(dispatch.Task{
			Kind: dispatch.TaskSendMessage,
			Chat: msg.Ref.Chat,
			Text: fmt.Sprintf("Attempts reset for user %d.", target),
		})
	}
}

func (e *Engine) handleActivationCode(ctx context.Context, msg *transport.Message, code string) {
	res, err := e.gate.Submit(ctx, int64(msg.From.UserID), code)
	if err != nil {
		e.logger.Error("activation submit failed", "user", msg.From.UserID, "err", err)
		return
	}
	e.replyActivation(msg, res)
}

func (e *Engine) replyActivation(msg *transport.Message, res activation.Result) {
	var text string
	switch res.Outcome {
	case activation.OutcomePromptCode:
		text = e.texts.ActivationPrompt
	case activation.OutcomeActivated:
		text = e.texts.ActivationOK
	case activation.OutcomeWrongCode:
		text = fmt.Sprintf(e.texts.ActivationWrong, res.Remaining)
	case activation.OutcomeInvalidCode:
		text = e.texts.ActivationInvalid
	case activation.OutcomeExhausted:
		text = e.texts.ActivationExhausted
	case activation.OutcomeCancelled:
		text = e.texts.ActivationCancelled
	case activation.OutcomeNotAwaiting:
		text = e.texts.ActivationIdle
	case activation.OutcomeAlreadyActive:
		text = e.texts.ActivationActive
	default:
		return
	}
	e.enqueue(dispatch.Task{
		Kind: dispatch.TaskSendMessage,
		Chat: msg.Ref.Chat,
		Text: text,
	})
}

func (e *Engine) renderStats() string {
	recs := e.ledger.Dump()
	if len(recs) == 0 {
		return e.texts.StatsEmpty
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Count != recs[j].Count {
			return recs[i].Count > recs[j].Count
		}
		return recs[i].UserID < recs[j].UserID
	})
	var b strings.Builder
	fmt.Fprintf(&b, "Violations (%d users):\n", len(recs))
	for _, r := range recs {
		last := "never"
		if r.LastViolationAt != nil {
			last = r.LastViolationAt.UTC().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "• user %d: %d, last %s\n", r.UserID, r.Count, last)
	}
	return b.String()
}

// splitCommand strips the leading slash and a trailing @botname mention, and
// returns the command with the remainder of the line.
func splitCommand(text string) (cmd, args string) {
	cmd = strings.TrimPrefix(text, "/")
	if i := strings.IndexAny(cmd, " \t"); i >= 0 {
		cmd, args = cmd[:i], strings.TrimSpace(cmd[i+1:])
	}
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), args
}
