package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/palatki-dv/warden/transport"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("TESTTOKEN", nil, WithAPIBase(srv.URL))
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestSendMessage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var gotPath string
	var gotParams map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotParams)
		respond(w, 200, map[string]any{
			"ok": true,
			"result": map[string]any{
				"message_id": 321,
				"chat":       map[string]any{"id": -100},
			},
		})
	})

	kb := transport.Keyboard{{{Text: "Subscribe", URL: "https://example.com"}}}
	ref, err := c.SendMessage(ctx, -100, "hello", &transport.SendOpts{Keyboard: kb, ReplyTo: 7})
	assert.NoError(err)
	assert.Equal(transport.MessageRef{Chat: -100, ID: 321}, ref)

	assert.Equal("/botTESTTOKEN/sendMessage", gotPath)
	assert.Equal("hello", gotParams["text"])
	assert.Equal(float64(-100), gotParams["chat_id"])
	assert.Equal(float64(7), gotParams["reply_to_message_id"])
	markup := gotParams["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	assert.Len(rows, 1)
}

func TestErrorTaxonomy(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"rate limited", 429, transport.IsTransient},
		{"server error", 502, transport.IsTransient},
		{"bad request", 400, transport.IsBadRequest},
		{"forbidden", 403, transport.IsForbidden},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(w, tc.status, map[string]any{
				"ok":          false,
				"error_code":  tc.status,
				"description": tc.name,
			})
		})
		err := c.DeleteMessage(ctx, transport.MessageRef{Chat: -100, ID: 1})
		assert.Error(err, tc.name)
		assert.True(tc.check(err), tc.name)
	}
}

func TestConnectionFailureIsTransient(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(nil)
	srv.Close()
	c := NewClient("TESTTOKEN", nil, WithAPIBase(srv.URL))

	err := c.BanUser(context.Background(), -100, 7)
	assert.Error(err)
	assert.True(transport.IsTransient(err))
}

func TestGetMemberPermissions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var mu sync.Mutex
	member := map[string]any{"status": "administrator", "can_delete_messages": true}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		m := member
		mu.Unlock()
		respond(w, 200, map[string]any{"ok": true, "result": m})
	})

	perms, err := c.GetMemberPermissions(ctx, -100, 1)
	assert.NoError(err)
	assert.True(perms.CanDeleteMessages)
	assert.False(perms.CanRestrictMembers)

	// the creator holds every permission even though the API omits the flags
	mu.Lock()
	member = map[string]any{"status": "creator"}
	mu.Unlock()
	perms, err = c.GetMemberPermissions(ctx, -100, 1)
	assert.NoError(err)
	assert.True(perms.CanDeleteMessages)
	assert.True(perms.CanRestrictMembers)
}

func TestGetSelfIdentity(t *testing.T) {
	assert := assert.New(t)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, 200, map[string]any{"ok": true, "result": map[string]any{
			"id":         42,
			"is_bot":     true,
			"first_name": "Warden",
			"username":   "warden_bot",
		}})
	})

	id, err := c.GetSelfIdentity(context.Background())
	assert.NoError(err)
	assert.Equal(transport.Identity{UserID: 42, Username: "warden_bot", FirstName: "Warden", IsBot: true}, id)
}

func TestEventConversion(t *testing.T) {
	assert := assert.New(t)

	// plain message
	ev := eventFor(&apiUpdate{Message: &apiMessage{
		MessageID: 5,
		From:      &apiUser{ID: 7, FirstName: "Vasya"},
		Chat:      apiChat{ID: -100},
		Date:      1700000000,
		Text:      "hi",
	}})
	assert.NotNil(ev.Message)
	assert.Equal("hi", ev.Message.Text)
	assert.Equal(transport.MessageRef{Chat: -100, ID: 5}, ev.Message.Ref)
	assert.Equal(int64(1700000000), ev.Message.ReceivedAt.Unix())

	// joins take precedence over the carrier message
	ev = eventFor(&apiUpdate{Message: &apiMessage{
		MessageID:      6,
		Chat:           apiChat{ID: -100},
		NewChatMembers: []apiUser{{ID: 8, FirstName: "Petya"}},
	}})
	assert.NotNil(ev.MemberJoin)
	assert.Len(ev.MemberJoin.Members, 1)
	assert.Equal(transport.UserID(8), ev.MemberJoin.Members[0].UserID)

	// callback query
	ev = eventFor(&apiUpdate{CallbackQuery: &apiCallbackQuery{
		ID:      "cb1",
		From:    apiUser{ID: 7},
		Data:    "welcome_read",
		Message: &apiMessage{MessageID: 9, Chat: apiChat{ID: -100}},
	}})
	assert.NotNil(ev.ButtonPress)
	assert.Equal("cb1", ev.ButtonPress.PressID)
	assert.Equal(transport.MessageRef{Chat: -100, ID: 9}, ev.ButtonPress.Message)

	// unsupported updates are dropped
	assert.Nil(eventFor(&apiUpdate{}))
}

func TestPollerAdvancesOffset(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var offsets []float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params map[string]any
		_ = json.NewDecoder(r.Body).Decode(&params)
		mu.Lock()
		offsets = append(offsets, params["offset"].(float64))
		batch := len(offsets)
		mu.Unlock()
		if batch == 1 {
			respond(w, 200, map[string]any{"ok": true, "result": []any{
				map[string]any{"update_id": 10, "message": map[string]any{
					"message_id": 1, "chat": map[string]any{"id": -100},
					"from": map[string]any{"id": 7}, "text": "hi", "date": 1700000000,
				}},
			}})
			return
		}
		// stop the loop after the second (empty) batch
		cancel()
		respond(w, 200, map[string]any{"ok": true, "result": []any{}})
	}))
	t.Cleanup(srv.Close)

	c := NewClient("TESTTOKEN", nil, WithAPIBase(srv.URL))

	var handled int
	p := NewPoller(c, func(ctx context.Context, ev *transport.Event) {
		handled++
	}, nil)
	_ = p.Run(ctx)

	assert.Equal(1, handled)
	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(len(offsets), 2)
	assert.Equal(float64(0), offsets[0])
	assert.Equal(float64(11), offsets[1])
}
