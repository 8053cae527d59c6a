package ai

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
)

const systemPrompt = "Ты — помощник компании Vektor Web. Отвечай коротко и по делу. " +
	"Если вопрос про выбор пакета — предлагай открыть «Пакеты»."

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("ai: no api key configured")

// Options configures the OpenRouter client.
type Options struct {
	APIKey      string
	Model       string
	BaseURL     string // API root, e.g. https://openrouter.ai/api/v1.
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client answers free-form user questions through the OpenRouter
// chat completions API.
type Client struct {
	opts       Options
	httpClient *http.Client
}

// NewClient constructs a Client. A nil httpClient gets a default bound
// by the configured timeout.
func NewClient(opts Options, httpClient *http.Client) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	return &Client{opts: opts, httpClient: httpClient}
}

// Enabled reports whether the client has credentials to work with.
func (c *Client) Enabled() bool {
	return c != nil && strings.TrimSpace(c.opts.APIKey) != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// Reply asks the model for an answer to one user message.
func (c *Client) Reply(ctx context.Context, userText string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	payload := chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return "", fmt.Errorf("ai: marshal request: %w", errMarshal)
	}

	url := c.opts.BaseURL + "/chat/completions"
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if errReq != nil {
		return "", fmt.Errorf("ai: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("HTTP-Referer", "https://vektor-web.ru")
	req.Header.Set("X-Title", "Vektor Web Bot")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return "", fmt.Errorf("ai: request: %w", errDo)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return "", fmt.Errorf("ai: read response: %w", errRead)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ai: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded chatResponse
	if errUnmarshal := json.Unmarshal(raw, &decoded); errUnmarshal != nil {
		return "", fmt.Errorf("ai: parse response: %w", errUnmarshal)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("ai: api error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("ai: empty choices")
	}
	answer := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("ai: empty answer")
	}
	return answer, nil
}
