package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/palatki-dv/warden/transport"
)

const (
	longPollSeconds = 30
	updatesBatch    = 100
)

// Handler consumes one inbound event. Called sequentially from the poll loop.
type Handler func(ctx context.Context, ev *transport.Event)

// Poller drives getUpdates long-polling and converts Bot API updates into
// transport events.
type Poller struct {
	client  *Client
	handler Handler
	logger  *slog.Logger
	offset  int64
}

func NewPoller(client *Client, handler Handler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:  client,
		handler: handler,
		logger:  logger.With("system", "telegram"),
	}
}

// Run polls until the context is cancelled. Poll failures back off and retry;
// the loop itself never returns an error other than the context's.
func (p *Poller) Run(ctx context.Context) error {
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, err := p.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			pollFailures.Inc()
			failures++
			d := pollBackoff(failures)
			p.logger.Warn("getUpdates failed, backing off", "err", err, "backoff", d)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
			continue
		}
		failures = 0
		for _, u := range updates {
			updatesReceived.Inc()
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			if ev := eventFor(&u); ev != nil {
				p.handler(ctx, ev)
			}
		}
	}
}

func (p *Poller) poll(ctx context.Context) ([]apiUpdate, error) {
	var updates []apiUpdate
	err := p.client.call(ctx, "getUpdates", map[string]any{
		"offset":          p.offset,
		"limit":           updatesBatch,
		"timeout":         longPollSeconds,
		"allowed_updates": []string{"message", "callback_query"},
	}, &updates)
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// eventFor maps one update onto the engine's event set; unsupported update
// types yield nil.
func eventFor(u *apiUpdate) *transport.Event {
	switch {
	case u.Message != nil:
		msg := u.Message
		if len(msg.NewChatMembers) > 0 {
			members := make([]transport.Identity, len(msg.NewChatMembers))
			for i, m := range msg.NewChatMembers {
				members[i] = identityFor(m)
			}
			return &transport.Event{MemberJoin: &transport.MemberJoin{
				Chat:    transport.ChatID(msg.Chat.ID),
				Members: members,
			}}
		}
		if msg.From == nil {
			return nil
		}
		return &transport.Event{Message: &transport.Message{
			Ref: transport.MessageRef{
				Chat: transport.ChatID(msg.Chat.ID),
				ID:   transport.MessageID(msg.MessageID),
			},
			From:       identityFor(*msg.From),
			Text:       msg.Text,
			ReceivedAt: time.Unix(msg.Date, 0),
		}}
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		bp := &transport.ButtonPress{
			PressID: cq.ID,
			From:    identityFor(cq.From),
			Data:    cq.Data,
		}
		if cq.Message != nil {
			bp.Message = transport.MessageRef{
				Chat: transport.ChatID(cq.Message.Chat.ID),
				ID:   transport.MessageID(cq.Message.MessageID),
			}
		}
		return &transport.Event{ButtonPress: bp}
	}
	return nil
}

func pollBackoff(failures int) time.Duration {
	if failures > 5 {
		return 30 * time.Second
	}
	return time.Duration(failures) * time.Second
}
