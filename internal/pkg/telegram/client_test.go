package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
)

type fakeAPI struct {
	mu       sync.Mutex
	calls    []string
	bodies   map[string][]map[string]any
	replies  map[string][]string
	fallback string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		bodies:   make(map[string][]map[string]any),
		replies:  make(map[string][]string),
		fallback: `{"ok":true,"result":true}`,
	}
}

// reply queues raw JSON responses for method; the last one repeats.
func (f *fakeAPI) reply(method string, bodies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[method] = append(f.replies[method], bodies...)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.bodies[method] = append(f.bodies[method], body)
	out := f.fallback
	if q := f.replies[method]; len(q) > 0 {
		out = q[0]
		if len(q) > 1 {
			f.replies[method] = q[1:]
		}
	}
	f.mu.Unlock()

	var status struct {
		ErrorCode int `json:"error_code"`
	}
	_ = json.Unmarshal([]byte(out), &status)
	if status.ErrorCode != 0 {
		w.WriteHeader(status.ErrorCode)
	}
	_, _ = w.Write([]byte(out))
}

func (f *fakeAPI) lastBody(method string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bodies[method]
	if len(b) == 0 {
		return nil
	}
	return b[len(b)-1]
}

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	api := newFakeAPI()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "123:abc", time.Second, zap.NewNop()), api
}

func TestSendMessage(t *testing.T) {
	c, api := newTestClient(t)
	api.reply("sendMessage", `{"ok":true,"result":{"message_id":77,"chat":{"id":-5,"type":"supergroup"}}}`)

	msg, err := c.SendMessage(context.Background(), OutgoingMessage{
		ChatID: -5,
		Text:   "hi",
		ReplyMarkup: &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
			{{Text: "Close", CallbackData: "nav:close"}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 77, msg.MessageID)
	assert.Equal(t, int64(-5), msg.Chat.ID)

	body := api.lastBody("sendMessage")
	assert.Equal(t, "hi", body["text"])
	assert.Equal(t, float64(-5), body["chat_id"])
	assert.NotNil(t, body["reply_markup"])
}

func TestAPIErrorClassification(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	api.reply("deleteMessage", `{"ok":false,"error_code":400,"description":"Bad Request: message to delete not found"}`)
	assert.ErrorIs(t, c.DeleteMessage(ctx, 1, 2), apperr.ErrNotFound)

	api.reply("leaveChat", `{"ok":false,"error_code":403,"description":"Forbidden: bot was kicked"}`)
	assert.ErrorIs(t, c.LeaveChat(ctx, 1), apperr.ErrPermissionDenied)

	api.reply("getUpdates", `{"ok":false,"error_code":409,"description":"Conflict: terminated by other getUpdates request"}`)
	_, err := c.GetUpdates(ctx, 0, 0)
	assert.ErrorIs(t, err, apperr.ErrDuplicateInstance)
	assert.True(t, apperr.IsFatal(err))

	api.reply("getMe", `{"ok":false,"error_code":502,"description":"Bad Gateway"}`)
	_, err = c.GetMe(ctx)
	assert.ErrorIs(t, err, apperr.ErrTransport)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "getMe", apiErr.Method)
}

func TestTransportErrorHidesToken(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "123:secret", time.Second, zap.NewNop())
	err := c.Notify(context.Background(), 1, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.NotContains(t, err.Error(), "secret")
}

func TestAnswerCallbackQueryAlert(t *testing.T) {
	c, api := newTestClient(t)
	require.NoError(t, c.AnswerCallbackQuery(context.Background(), "q1", "not yours", true))
	body := api.lastBody("answerCallbackQuery")
	assert.Equal(t, "q1", body["callback_query_id"])
	assert.Equal(t, true, body["show_alert"])
}

func TestObserver(t *testing.T) {
	c, _ := newTestClient(t)
	var seen []string
	c.SetObserver(func(method string, err error) { seen = append(seen, method) })
	require.NoError(t, c.LeaveChat(context.Background(), 1))
	assert.Equal(t, []string{"leaveChat"}, seen)
}

func TestPollerDispatchesInOrderAndStopsOnConflict(t *testing.T) {
	c, api := newTestClient(t)
	api.reply("getUpdates",
		`{"ok":true,"result":[{"update_id":10,"message":{"message_id":1,"chat":{"id":-1,"type":"group"},"text":"a"}},{"update_id":11,"callback_query":{"id":"q","from":{"id":5,"is_bot":false,"first_name":"x"},"data":"nav:close"}}]}`,
		`{"ok":false,"error_code":409,"description":"Conflict"}`,
	)

	var got []string
	p := NewPoller(c, func(_ context.Context, u Update) {
		got = append(got, u.Kind())
		if u.UpdateID == 10 {
			panic("handler bug")
		}
	}, 0, zap.NewNop())

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, apperr.ErrDuplicateInstance)
	assert.Equal(t, []string{"message", "callback"}, got)

	body := api.lastBody("getUpdates")
	assert.Equal(t, float64(12), body["offset"], "offset advances past handled updates")
}

func TestPollerStopsOnCancel(t *testing.T) {
	c, api := newTestClient(t)
	api.reply("getUpdates", `{"ok":false,"error_code":500,"description":"oops"}`)

	p := NewPoller(c, func(context.Context, Update) {}, 0, zap.NewNop())
	p.backoff = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, p.Run(ctx))
}

func TestUpdateKind(t *testing.T) {
	assert.Equal(t, "membership", Update{Message: &Message{NewChatMembers: []User{{ID: 1}}}}.Kind())
	assert.Equal(t, "my_chat_member", Update{MyChatMember: &ChatMemberUpdated{}}.Kind())
	assert.Equal(t, "other", Update{}.Kind())
	assert.True(t, Chat{Type: "supergroup"}.IsGroup())
	assert.False(t, Chat{Type: "private"}.IsGroup())
}
