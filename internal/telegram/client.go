// Package telegram adapts the Telegram Bot API to the dispatcher: long polling
// getUpdates, the bot's own identity, and outgoing messages.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/tidwall/gjson"

	"github.com/neoclaw-ai/teledispatch/internal/config"
	"github.com/neoclaw-ai/teledispatch/internal/updates"
)

const (
	defaultServerURL = "https://api.telegram.org"
	maxResponseSize  = 32 << 20
)

// ErrAPI matches every error the Bot API reported with ok=false.
var ErrAPI = errors.New("telegram api error")

// APIError is a failed Bot API call.
type APIError struct {
	Method      string
	Code        int
	Description string
	// RetryAfter is set when the API asked the client to back off.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// Unwrap lets errors.Is(err, ErrAPI) match.
func (e *APIError) Unwrap() error {
	return ErrAPI
}

type sendMessageFunc func(context.Context, *bot.SendMessageParams) (*models.Message, error)

// Client talks to the Bot API. It implements updates.Fetcher and the
// dispatcher's Bot interface.
type Client struct {
	token      string
	serverURL  string
	httpClient *http.Client

	getMe       func(context.Context) (*models.User, error)
	sendMessage sendMessageFunc
}

// New creates a client from the telegram config section.
func New(cfg config.TelegramConfig) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	serverURL := strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= cfg.PollTimeout {
		timeout = cfg.PollTimeout + 10*time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	b, err := bot.New(token,
		bot.WithSkipGetMe(),
		bot.WithServerURL(serverURL),
		bot.WithHTTPClient(cfg.PollTimeout, httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Client{
		token:       token,
		serverURL:   serverURL,
		httpClient:  httpClient,
		getMe:       b.GetMe,
		sendMessage: b.SendMessage,
	}, nil
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (*models.User, error) {
	me, err := c.getMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch telegram bot profile: %w", err)
	}
	return me, nil
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	if _, err := c.sendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// SendHTML sends a message rendered with Telegram's HTML parse mode.
func (c *Client) SendHTML(ctx context.Context, chatID int64, html string) error {
	if _, err := c.sendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      html,
		ParseMode: models.ParseModeHTML,
	}); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// Fetch calls getUpdates. Each element of the result array is decoded on its
// own, so an element this client cannot parse comes back as a KindError update
// instead of failing the whole batch.
func (c *Client) Fetch(ctx context.Context, params updates.FetchParams) ([]updates.Update, error) {
	req := getUpdatesRequest{
		Offset:  params.Offset,
		Limit:   params.Limit,
		Timeout: int(params.Timeout / time.Second),
	}
	if params.AllowedKinds != nil {
		req.AllowedUpdates = make([]string, 0, len(params.AllowedKinds))
		for _, kind := range params.AllowedKinds {
			req.AllowedUpdates = append(req.AllowedUpdates, string(kind))
		}
	}

	body, err := c.call(ctx, "getUpdates", req)
	if err != nil {
		return nil, err
	}

	result := gjson.GetBytes(body, "result")
	if !result.IsArray() {
		return nil, errors.New("telegram getUpdates: result is not an array")
	}
	elems := result.Array()
	batch := make([]updates.Update, 0, len(elems))
	for _, elem := range elems {
		batch = append(batch, updates.Decode([]byte(elem.Raw)))
	}
	return batch, nil
}

func (c *Client) call(ctx context.Context, method string, params any) ([]byte, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, redact(err, c.token))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("telegram %s: unexpected response (status %d)", method, resp.StatusCode)
	}

	fields := gjson.GetManyBytes(body, "ok", "error_code", "description", "parameters.retry_after")
	if !fields[0].Bool() {
		code := int(fields[1].Int())
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &APIError{
			Method:      method,
			Code:        code,
			Description: fields[2].String(),
			RetryAfter:  time.Duration(fields[3].Int()) * time.Second,
		}
	}
	return body, nil
}

func (c *Client) methodURL(method string) string {
	return c.serverURL + "/bot" + c.token + "/" + method
}

// redact keeps the bot token out of transport errors, which embed the URL.
func redact(err error, token string) error {
	msg := err.Error()
	if token == "" || !strings.Contains(msg, token) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, token, "<token>"))
}

// RetryDelay is how long to wait before polling again after err: the API's
// retry_after when it sent one, otherwise fallback.
func RetryDelay(err error, fallback time.Duration) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	return fallback
}
