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

// DefaultBaseURL is the Generative Language REST API root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// maxErrorBody bounds how much of a failed response is kept for the
// error message.
const maxErrorBody = 4 << 10

// ── Wire types ───────────────────────────────────────────────────

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

// generateRequest is the body sent to models/{model}:generateContent.
type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ── Client ───────────────────────────────────────────────────────

// GeminiOption configures the GeminiClient.
type GeminiOption func(*GeminiClient)

// WithModel overrides the default model name.
func WithModel(model string) GeminiOption {
	return func(c *GeminiClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at a different API root (tests, proxies).
func WithBaseURL(base string) GeminiOption {
	return func(c *GeminiClient) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithWindow sets how many prior messages are sent as context.
func WithWindow(n int) GeminiOption {
	return func(c *GeminiClient) { c.window = n }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) GeminiOption {
	return func(c *GeminiClient) { c.temperature = &t }
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) GeminiOption {
	return func(c *GeminiClient) { c.maxTokens = n }
}

// WithSystemPrompt sets the system instruction. Empty disables it.
func WithSystemPrompt(p string) GeminiOption {
	return func(c *GeminiClient) { c.systemPrompt = p }
}

// WithHTTPTimeout sets the HTTP client timeout.
func WithHTTPTimeout(d time.Duration) GeminiOption {
	return func(c *GeminiClient) { c.http.Timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) GeminiOption {
	return func(c *GeminiClient) { c.http = h }
}

// Compile-time interface check.
var _ domain.CompletionClient = (*GeminiClient)(nil)

// GeminiClient talks to the Gemini generateContent REST endpoint. It is
// stateless: every call is one POST, awaited to completion.
type GeminiClient struct {
	apiKey       string
	baseURL      string
	model        string
	window       int
	temperature  *float64
	maxTokens    int
	systemPrompt string
	http         *http.Client
	log          *logger.Logger
}

// NewGeminiClient creates a Gemini client. An empty apiKey is accepted
// here and reported as a ConfigError on the first Complete call.
func NewGeminiClient(apiKey string, log *logger.Logger, opts ...GeminiOption) *GeminiClient {
	c := &GeminiClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		window:  DefaultWindow,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// Complete sends the trailing window of history plus the utterance and
// returns the generated reply.
func (c *GeminiClient) Complete(ctx context.Context, history []domain.Message, utterance string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", &domain.ConfigError{Msg: MissingCredential}
	}
	endpoint, err := c.endpoint()
	if err != nil {
		return "", err
	}

	body := generateRequest{Contents: toContents(BuildTurns(history, utterance, c.window))}
	if c.systemPrompt != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: c.systemPrompt}}}
	}
	if c.temperature != nil || c.maxTokens > 0 {
		body.GenerationConfig = &generationConfig{Temperature: c.temperature, MaxOutputTokens: c.maxTokens}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	c.log.Debug("gemini: POST %s (%d turns, %d bytes)", endpoint, len(body.Contents), len(jsonData))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &domain.ServiceError{StatusCode: resp.StatusCode, Msg: extractErrorMessage(resp, raw)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("gemini: unmarshal response: %w", err)
	}

	reply := firstCandidateText(result)
	if reply == "" {
		c.log.Warn("gemini: response carried no candidate text, using fallback")
		return FallbackReply, nil
	}

	c.log.Debug("gemini: reply (%d chars): %s", len(reply), logger.Clip(reply, 120))
	return reply, nil
}

func (c *GeminiClient) endpoint() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", &domain.ConfigError{Msg: fmt.Sprintf("Invalid completion endpoint %q.", c.baseURL)}
	}
	if c.model == "" {
		return "", &domain.ConfigError{Msg: "Missing model name."}
	}
	return fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model)), nil
}

func toContents(turns []Turn) []content {
	out := make([]content, len(turns))
	for i, t := range turns {
		out[i] = content{Role: t.Role, Parts: []part{{Text: t.Content}}}
	}
	return out
}

// firstCandidateText joins the text parts of the first candidate.
func firstCandidateText(r generateResponse) string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

// extractErrorMessage prefers the structured error message, then the
// raw body, then the status text.
func extractErrorMessage(resp *http.Response, raw []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return http.StatusText(resp.StatusCode)
}
