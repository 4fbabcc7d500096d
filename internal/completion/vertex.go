package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hammamikhairi/maitri/internal/domain"
	"github.com/hammamikhairi/maitri/internal/logger"
)

// VertexConfig holds the settings for the Vertex AI backend.
type VertexConfig struct {
	Project      string
	Location     string
	Model        string
	Window       int
	Temperature  *float64
	MaxTokens    int
	SystemPrompt string
}

// Compile-time interface check.
var _ domain.CompletionClient = (*VertexClient)(nil)

// VertexClient generates replies through the Vertex AI Gemini SDK. The
// SDK client is created lazily so that a missing project or location is
// reported per call as a ConfigError instead of failing startup.
type VertexClient struct {
	cfg    VertexConfig
	client *genai.Client
	log    *logger.Logger
}

// NewVertexClient creates a Vertex AI backend.
func NewVertexClient(cfg VertexConfig, log *logger.Logger) *VertexClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &VertexClient{cfg: cfg, log: log}
}

func (v *VertexClient) ensureClient(ctx context.Context) (*genai.Client, error) {
	if v.client != nil {
		return v.client, nil
	}
	if v.cfg.Project == "" || v.cfg.Location == "" {
		return nil, &domain.ConfigError{Msg: MissingCredential}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  v.cfg.Project,
		Location: v.cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, &domain.ConfigError{Msg: fmt.Sprintf("Vertex AI client: %v", err)}
	}
	v.client = client
	return client, nil
}

// Complete sends the trailing window plus the utterance to Vertex AI.
// Calls are serialized by the session controller, so the lazy client
// needs no lock.
func (v *VertexClient) Complete(ctx context.Context, history []domain.Message, utterance string) (string, error) {
	client, err := v.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	turns := BuildTurns(history, utterance, v.cfg.Window)
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if v.cfg.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(v.cfg.SystemPrompt, genai.RoleUser)
	}
	if v.cfg.Temperature != nil {
		temp := float32(*v.cfg.Temperature)
		cfg.Temperature = &temp
	}
	if v.cfg.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(v.cfg.MaxTokens)
	}

	v.log.Debug("vertex: generate %s (%d turns)", v.cfg.Model, len(contents))

	res, err := client.Models.GenerateContent(ctx, v.cfg.Model, contents, cfg)
	if err != nil {
		return "", mapVertexError(err)
	}

	reply := strings.TrimSpace(res.Text())
	if reply == "" {
		v.log.Warn("vertex: response carried no candidate text, using fallback")
		return FallbackReply, nil
	}
	return reply, nil
}

// mapVertexError converts SDK API errors to ServiceError.
func mapVertexError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.ServiceError{StatusCode: apiErr.Code, Msg: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &domain.ServiceError{StatusCode: apiErrPtr.Code, Msg: apiErrPtr.Message}
	}
	return fmt.Errorf("vertex: generate content: %w", err)
}
