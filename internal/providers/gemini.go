package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
)

// GeminiClient is the alternate script provider.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient connects to the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(trimmed))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// GenerateScript expands a logline into numbered scenes.
func (c *GeminiClient) GenerateScript(ctx context.Context, req ScriptRequest) ([]models.ScriptScene, error) {
	if c == nil || c.client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeProviderUnavailable, "gemini client not configured")
	}
	if strings.TrimSpace(req.Logline) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logline is required")
	}

	model := c.client.GenerativeModel(c.model)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(buildScriptPrompt(req)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "gemini generate content")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedResponse, "gemini returned no candidates")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedResponse, "gemini returned a non-text part")
	}

	return parseScriptScenes([]byte(text))
}
