// Package telegram is a thin Bot API client implementing the transport
// interface. It performs no retries of its own: failures are classified into
// the transport error taxonomy and retry policy stays with the callers (the
// dispatch worker and the supervisor).
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/palatki-dv/warden/transport"
)

const defaultAPIBase = "https://api.telegram.org"

type Client struct {
	httpClient *http.Client
	apiBase    string
	token      string
	logger     *slog.Logger
}

var _ transport.Transport = (*Client)(nil)

type ClientOption func(*Client)

// WithAPIBase overrides the Bot API endpoint (tests, local relays).
func WithAPIBase(base string) ClientOption {
	return func(c *Client) { c.apiBase = base }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(token string, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 35 * time.Second},
		apiBase:    defaultAPIBase,
		token:      token,
		logger:     logger.With("system", "telegram"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call POSTs a Bot API method with a JSON body and decodes result into out
// (which may be nil). Non-ok responses are mapped onto the transport error
// taxonomy.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transport.NewTransientError(fmt.Sprintf("%s: %s", method, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return transport.NewTransientError(fmt.Sprintf("%s: reading response: %s", method, err))
	}
	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return transport.NewTransientError(fmt.Sprintf("%s: malformed response (status %d)", method, resp.StatusCode))
	}
	if !ar.OK {
		return c.apiError(method, resp.StatusCode, &ar)
	}
	if out != nil {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) apiError(method string, status int, ar *apiResponse) error {
	code := ar.ErrorCode
	if code == 0 {
		code = status
	}
	msg := fmt.Sprintf("%s: %s", method, ar.Description)
	switch {
	case code == http.StatusTooManyRequests || code >= 500:
		if ar.Parameters != nil && ar.Parameters.RetryAfter > 0 {
			c.logger.Warn("rate limited by Bot API", "method", method, "retry_after", ar.Parameters.RetryAfter)
		}
		return &transport.Error{Kind: transport.KindTransient, StatusCode: code, Msg: msg}
	case code == http.StatusForbidden:
		return &transport.Error{Kind: transport.KindForbidden, StatusCode: code, Msg: msg}
	default:
		return &transport.Error{Kind: transport.KindBadRequest, StatusCode: code, Msg: msg}
	}
}

func (c *Client) SendMessage(ctx context.Context, chat transport.ChatID, text string, opts *transport.SendOpts) (transport.MessageRef, error) {
	params := map[string]any{
		"chat_id": int64(chat),
		"text":    text,
	}
	if opts != nil {
		if opts.ReplyTo != 0 {
			params["reply_to_message_id"] = int64(opts.ReplyTo)
		}
		if opts.DisablePreview {
			params["disable_web_page_preview"] = true
		}
		if len(opts.Keyboard) > 0 {
			params["reply_markup"] = markupFor(opts.Keyboard)
		}
	}
	var msg apiMessage
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return transport.MessageRef{}, err
	}
	return transport.MessageRef{
		Chat: transport.ChatID(msg.Chat.ID),
		ID:   transport.MessageID(msg.MessageID),
	}, nil
}

func (c *Client) DeleteMessage(ctx context.Context, ref transport.MessageRef) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    int64(ref.Chat),
		"message_id": int64(ref.ID),
	}, nil)
}

func (c *Client) BanUser(ctx context.Context, chat transport.ChatID, user transport.UserID) error {
	return c.call(ctx, "banChatMember", map[string]any{
		"chat_id": int64(chat),
		"user_id": int64(user),
	}, nil)
}

func (c *Client) GetMemberPermissions(ctx context.Context, chat transport.ChatID, user transport.UserID) (transport.Permissions, error) {
	var member apiChatMember
	err := c.call(ctx, "getChatMember", map[string]any{
		"chat_id": int64(chat),
		"user_id": int64(user),
	}, &member)
	if err != nil {
		return transport.Permissions{}, err
	}
	// the chat creator has every permission implicitly
	if member.Status == "creator" {
		return transport.Permissions{CanDeleteMessages: true, CanRestrictMembers: true}, nil
	}
	return transport.Permissions{
		CanDeleteMessages:  member.CanDeleteMessages,
		CanRestrictMembers: member.CanRestrictMembers,
	}, nil
}

func (c *Client) GetSelfIdentity(ctx context.Context) (transport.Identity, error) {
	var me apiUser
	if err := c.call(ctx, "getMe", map[string]any{}, &me); err != nil {
		return transport.Identity{}, err
	}
	return identityFor(me), nil
}

func (c *Client) AnswerButtonPress(ctx context.Context, pressID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": pressID,
	}, nil)
}

func markupFor(kb transport.Keyboard) inlineKeyboardMarkup {
	rows := make([][]inlineKeyboardButton, len(kb))
	for i, row := range kb {
		rows[i] = make([]inlineKeyboardButton, len(row))
		for j, b := range row {
			rows[i][j] = inlineKeyboardButton{Text: b.Text, URL: b.URL, CallbackData: b.CallbackData}
		}
	}
	return inlineKeyboardMarkup{InlineKeyboard: rows}
}

func identityFor(u apiUser) transport.Identity {
	return transport.Identity{
		UserID:    transport.UserID(u.ID),
		Username:  u.Username,
		FirstName: u.FirstName,
		IsBot:     u.IsBot,
	}
}
