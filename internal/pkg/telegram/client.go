// Package telegram is a minimal Bot API client: long polling plus the few
// outbound calls the bot makes.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
)

type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	log        *zap.Logger

	// observe, when set, is called after every API call.
	observe func(method string, err error)
}

// NewClient creates a client for endpoint (normally https://api.telegram.org).
// pollTimeout is the long-poll wait; the HTTP timeout is derived from it.
func NewClient(endpoint, token string, pollTimeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: pollTimeout + 15*time.Second},
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      token,
		log:        log,
	}
}

// SetObserver installs a hook called after every API call.
func (c *Client) SetObserver(fn func(method string, err error)) {
	c.observe = fn
}

func (c *Client) call(ctx context.Context, method string, params, result any) (err error) {
	defer func() {
		if c.observe != nil {
			c.observe(method, err)
		}
	}()

	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.endpoint, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the token; never surface it.
		return fmt.Errorf("telegram %s: %w", method, apperr.ErrTransport)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s: failed to read response: %w", method, apperr.ErrTransport)
	}

	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return &APIError{Method: method, Code: resp.StatusCode, Description: "unparsable response"}
	}
	if !r.Ok {
		code := r.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Method: method, Code: code, Description: r.Description}
	}
	if result != nil {
		if err := json.Unmarshal(r.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]Update, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query", "my_chat_member"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) SendMessage(ctx context.Context, msg OutgoingMessage) (*Message, error) {
	var sent Message
	if err := c.call(ctx, "sendMessage", msg, &sent); err != nil {
		return nil, err
	}
	return &sent, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.call(ctx, "deleteMessage", map[string]any{"chat_id": chatID, "message_id": messageID}, nil)
}

func (c *Client) LeaveChat(ctx context.Context, chatID int64) error {
	return c.call(ctx, "leaveChat", map[string]any{"chat_id": chatID}, nil)
}

// AnswerCallbackQuery acknowledges a button press. A non-empty text with
// alert set is shown as a modal notice.
func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID, text string, alert bool) error {
	params := map[string]any{"callback_query_id": queryID}
	if text != "" {
		params["text"] = text
		params["show_alert"] = alert
	}
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// Notify sends plain text to chatID.
func (c *Client) Notify(ctx context.Context, chatID int64, text string) error {
	_, err := c.SendMessage(ctx, OutgoingMessage{ChatID: chatID, Text: text})
	return err
}
