package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hammamikhairi/maitri/internal/domain"
	"github.com/hammamikhairi/maitri/internal/logger"
)

// ── Wire types ───────────────────────────────────────────────────

// Chat-completions role names.
const (
	chatRoleSystem    = "system"
	chatRoleUser      = "user"
	chatRoleAssistant = "assistant"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Model       string        `json:"model,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ── Client ───────────────────────────────────────────────────────

// OpenAIOption configures the OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithChatModel sets the model field. Azure deployments leave it empty.
func WithChatModel(model string) OpenAIOption {
	return func(c *OpenAIClient) { c.model = model }
}

// WithChatWindow sets how many prior messages are sent as context.
func WithChatWindow(n int) OpenAIOption {
	return func(c *OpenAIClient) { c.window = n }
}

// WithChatTemperature overrides the sampling temperature.
func WithChatTemperature(t float64) OpenAIOption {
	return func(c *OpenAIClient) { c.temperature = &t }
}

// WithChatSystemPrompt sets the leading system message. Empty omits it.
func WithChatSystemPrompt(p string) OpenAIOption {
	return func(c *OpenAIClient) { c.systemPrompt = p }
}

// WithChatHTTPTimeout sets the HTTP client timeout.
func WithChatHTTPTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) { c.http.Timeout = d }
}

// Compile-time interface check.
var _ domain.CompletionClient = (*OpenAIClient)(nil)

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint,
// including Azure OpenAI deployments.
type OpenAIClient struct {
	endpoint     string
	apiKey       string
	model        string
	window       int
	temperature  *float64
	topP         float64
	maxTokens    int
	systemPrompt string
	http         *http.Client
	log          *logger.Logger
}

// NewOpenAIClient creates a chat-completions client.
//   - endpoint: full URL to the chat/completions resource
//     (e.g. "https://<resource>.openai.azure.com/openai/deployments/<dep>/chat/completions?api-version=2024-02-01")
//   - apiKey: the subscription / API key
//
// Missing values are reported per call as a ConfigError.
func NewOpenAIClient(endpoint, apiKey string, log *logger.Logger, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		endpoint:  endpoint,
		apiKey:    apiKey,
		window:    DefaultWindow,
		topP:      0.95,
		maxTokens: 800,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Complete sends the trailing window of history plus the utterance and
// returns the assistant's reply.
func (c *OpenAIClient) Complete(ctx context.Context, history []domain.Message, utterance string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", &domain.ConfigError{Msg: MissingCredential}
	}
	if u, err := url.Parse(c.endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return "", &domain.ConfigError{Msg: fmt.Sprintf("Invalid completion endpoint %q.", c.endpoint)}
	}

	body := chatRequest{
		Messages:    toChatMessages(c.systemPrompt, BuildTurns(history, utterance, c.window)),
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
		Model:       c.model,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("openai: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Azure reads api-key; OpenAI proper reads the bearer token.
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Debug("openai: POST %s (%d messages, %d bytes)", c.endpoint, len(body.Messages), len(jsonData))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &domain.ServiceError{StatusCode: resp.StatusCode, Msg: extractErrorMessage(resp, raw)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("openai: unmarshal response: %w", err)
	}

	var reply string
	if len(result.Choices) > 0 {
		reply = strings.TrimSpace(result.Choices[0].Message.Content)
	}
	if reply == "" {
		c.log.Warn("openai: response carried no choices, using fallback")
		return FallbackReply, nil
	}

	c.log.Debug("openai: reply (%d chars): %s", len(reply), logger.Clip(reply, 120))
	return reply, nil
}

func toChatMessages(system string, turns []Turn) []chatMessage {
	out := make([]chatMessage, 0, len(turns)+1)
	if system != "" {
		out = append(out, chatMessage{Role: chatRoleSystem, Content: system})
	}
	for _, t := range turns {
		role := chatRoleUser
		if t.Role == RoleModel {
			role = chatRoleAssistant
		}
		out = append(out, chatMessage{Role: role, Content: t.Content})
	}
	return out
}
