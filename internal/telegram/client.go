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
)

const (
	defaultBaseURL = "https://api.telegram.org"
	defaultTimeout = 35 * time.Second
)

// Client is a minimal Bot API client covering the methods the bot uses.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client. An empty baseURL targets the public Bot
// API; a nil httpClient gets a default with a timeout wide enough for
// long polling.
func NewClient(token, baseURL string, httpClient *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		token:      strings.TrimSpace(token),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// APIError is a non-ok response from the Bot API.
type APIError struct {
	Method      string // Bot API method that failed.
	Code        int    // error_code from the response.
	Description string // description from the response.
	RetryAfter  int    // Seconds to wait when flood-limited, zero otherwise.
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s: %d %s", e.Method, e.Code, e.Description)
}

type responseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

type apiResponse struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	Description string              `json:"description,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Parameters  *responseParameters `json:"parameters,omitempty"`
}

// call POSTs a JSON payload to a Bot API method and decodes the result
// into out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return fmt.Errorf("telegram: marshal %s: %w", method, errMarshal)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if errReq != nil {
		return fmt.Errorf("telegram: build %s request: %w", method, errReq)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return fmt.Errorf("telegram: %s: %w", method, errDo)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return fmt.Errorf("telegram: read %s response: %w", method, errRead)
	}

	var decoded apiResponse
	if errUnmarshal := json.Unmarshal(raw, &decoded); errUnmarshal != nil {
		return fmt.Errorf("telegram: parse %s response: %w", method, errUnmarshal)
	}
	if !decoded.OK {
		apiErr := &APIError{
			Method:      method,
			Code:        decoded.ErrorCode,
			Description: decoded.Description,
		}
		if decoded.Parameters != nil {
			apiErr.RetryAfter = decoded.Parameters.RetryAfter
		}
		return apiErr
	}
	if out != nil && len(decoded.Result) > 0 {
		if errResult := json.Unmarshal(decoded.Result, out); errResult != nil {
			return fmt.Errorf("telegram: parse %s result: %w", method, errResult)
		}
	}
	return nil
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if errCall := c.call(ctx, "getMe", struct{}{}, &me); errCall != nil {
		return nil, errCall
	}
	return &me, nil
}

// SendMessageRequest is the payload for SendMessage.
type SendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           any    `json:"reply_markup,omitempty"`
}

// SendMessage sends a text message.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	var msg Message
	if errCall := c.call(ctx, "sendMessage", req, &msg); errCall != nil {
		return nil, errCall
	}
	return &msg, nil
}

// EditMessageTextRequest is the payload for EditMessageText.
type EditMessageTextRequest struct {
	ChatID                int64  `json:"chat_id"`
	MessageID             int64  `json:"message_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           any    `json:"reply_markup,omitempty"`
}

// EditMessageText rewrites an existing bot message in place, used for
// inline-keyboard navigation.
func (c *Client) EditMessageText(ctx context.Context, req EditMessageTextRequest) error {
	return c.call(ctx, "editMessageText", req, nil)
}

// AnswerCallbackQuery acknowledges a button press, optionally with a
// short toast text.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	payload := struct {
		CallbackQueryID string `json:"callback_query_id"`
		Text            string `json:"text,omitempty"`
	}{CallbackQueryID: callbackQueryID, Text: text}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// SetWebhookRequest is the payload for SetWebhook.
type SetWebhookRequest struct {
	URL                string   `json:"url"`
	SecretToken        string   `json:"secret_token,omitempty"`
	AllowedUpdates     []string `json:"allowed_updates,omitempty"`
	DropPendingUpdates bool     `json:"drop_pending_updates,omitempty"`
}

// SetWebhook registers the webhook endpoint.
func (c *Client) SetWebhook(ctx context.Context, req SetWebhookRequest) error {
	return c.call(ctx, "setWebhook", req, nil)
}

// DeleteWebhook removes the webhook, usually before switching to polling.
func (c *Client) DeleteWebhook(ctx context.Context, dropPendingUpdates bool) error {
	payload := struct {
		DropPendingUpdates bool `json:"drop_pending_updates,omitempty"`
	}{DropPendingUpdates: dropPendingUpdates}
	return c.call(ctx, "deleteWebhook", payload, nil)
}

// GetUpdates long-polls for new updates starting after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int, allowedUpdates []string) ([]Update, error) {
	payload := struct {
		Offset         int64    `json:"offset,omitempty"`
		Timeout        int      `json:"timeout,omitempty"`
		AllowedUpdates []string `json:"allowed_updates,omitempty"`
	}{Offset: offset, Timeout: timeoutSec, AllowedUpdates: allowedUpdates}

	var updates []Update
	if errCall := c.call(ctx, "getUpdates", payload, &updates); errCall != nil {
		return nil, errCall
	}
	return updates, nil
}
