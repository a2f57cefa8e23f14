package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIScriptModel    = "gpt-4o"
	openAIImageModel     = "dall-e-3"
	openAISpeechModel    = "tts-1-hd"

	providerBodyReadLimit int64 = 4096
)

// openAIVoiceMap translates catalog voice ids to the engine's voice names.
var openAIVoiceMap = map[string]string{
	"sweet-female-a": "nova",
	"warm-female-b":  "shimmer",
	"storyteller":    "fable",
	"deep-male-a":    "onyx",
	"neutral-male":   "echo",
	"energetic-male": "alloy",
}

// OpenAIClient drives script, character image, and TTS generation.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// OpenAIOption configures optional client behavior.
type OpenAIOption func(*OpenAIClient)

// WithOpenAIHTTPClient overrides the default HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithOpenAIBaseURL overrides the configured API base URL.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIClient) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewOpenAIClient builds the client. An empty API key is allowed; calls
// that cannot degrade will fail with a provider-unavailable error.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	client := &OpenAIClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    openAIDefaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Configured reports whether a credential is present.
func (c *OpenAIClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

// GenerateScript expands a logline into numbered scenes via JSON-mode chat.
func (c *OpenAIClient) GenerateScript(ctx context.Context, req ScriptRequest) ([]models.ScriptScene, error) {
	if !c.Configured() {
		return nil, pkgerrors.New(pkgerrors.CodeProviderUnavailable, "openai credential not configured")
	}
	if strings.TrimSpace(req.Logline) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logline is required")
	}

	payload := map[string]any{
		"model": openAIScriptModel,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a JSON generator. Output only valid JSON. Ensure character consistency in descriptions."},
			{"role": "user", "content": buildScriptPrompt(req)},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, "/chat/completions", payload, &apiResp); err != nil {
		return nil, err
	}
	if len(apiResp.Choices) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedResponse, "chat completion returned no choices")
	}

	return parseScriptScenes([]byte(apiResp.Choices[0].Message.Content))
}

// GenerateCharacterImages produces portrait URLs. Without a credential it
// degrades to placeholder images so the authoring flow keeps working.
func (c *OpenAIClient) GenerateCharacterImages(ctx context.Context, req ImageRequest) ([]string, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "character description is required")
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}

	if !c.Configured() {
		urls := make([]string, 0, count)
		for i := 0; i < count; i++ {
			urls = append(urls, fmt.Sprintf("https://picsum.photos/1024/1024?random=%d", rand.Int63()))
		}
		return urls, nil
	}

	prompt := fmt.Sprintf(
		"Full body cinematic character portrait, highly detailed, professional lighting, neutral background for consistency. Character details: %s",
		req.Description,
	)

	urls := make([]string, 0, count)
	for i := 0; i < count; i++ {
		payload := map[string]any{
			"model":           openAIImageModel,
			"prompt":          prompt,
			"n":               1,
			"size":            "1024x1024",
			"response_format": "url",
		}
		var apiResp struct {
			Data []struct {
				URL string `json:"url"`
			} `json:"data"`
		}
		if err := c.postJSON(ctx, "/images/generations", payload, &apiResp); err != nil {
			return nil, err
		}
		if len(apiResp.Data) == 0 || apiResp.Data[0].URL == "" {
			return nil, pkgerrors.New(pkgerrors.CodeMalformedResponse, "image generation returned no url")
		}
		urls = append(urls, apiResp.Data[0].URL)
	}
	return urls, nil
}

// SynthesizeSpeech renders dialogue as MP3 audio.
func (c *OpenAIClient) SynthesizeSpeech(ctx context.Context, req SpeechRequest) (*SpeechResult, error) {
	if !c.Configured() {
		return nil, pkgerrors.New(pkgerrors.CodeProviderUnavailable, "openai credential not configured")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "text is required")
	}

	voice, ok := openAIVoiceMap[req.VoiceID]
	if !ok {
		voice = "nova"
	}

	payload := map[string]any{
		"model":           openAISpeechModel,
		"voice":           voice,
		"input":           req.Text,
		"response_format": "mp3",
		"speed":           1.0,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal speech request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build speech request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "execute speech request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, readProviderError(resp, "speech request failed")
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedResponse, err, "read speech response")
	}

	return &SpeechResult{
		Audio:           audio,
		ResolvedVoice:   voice,
		DurationSeconds: estimateDuration(req.Text),
	}, nil
}

func (c *OpenAIClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal provider request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build provider request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "execute provider request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return readProviderError(resp, "provider request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeMalformedResponse, err, "decode provider response")
	}
	return nil
}

func readProviderError(resp *http.Response, message string) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, providerBodyReadLimit))
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	if resp.StatusCode >= http.StatusInternalServerError {
		return pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, cause, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeGenerationFailed, cause, message)
}
