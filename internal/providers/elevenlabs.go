package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
)

const (
	elevenLabsDefaultBaseURL = "https://api.elevenlabs.io/v1"
	elevenLabsSpeechModel    = "eleven_multilingual_v2"
)

// elevenLabsVoiceMap translates catalog voice ids to the vendor's preset
// voices. Cloned voice ids pass through untouched.
var elevenLabsVoiceMap = map[string]string{
	"ultra-female": "21m00Tcm4TlvDq8ikWAM", // Rachel
	"deep-male":    "VR6AewLTigWG4xSOukaG", // Arnold
	"storyteller":  "pNInz6obpgDQGcFmaJgB", // Adam
}

// ElevenLabsClient drives premium TTS and voice cloning.
type ElevenLabsClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// ElevenLabsOption configures optional client behavior.
type ElevenLabsOption func(*ElevenLabsClient)

// WithElevenLabsHTTPClient overrides the default HTTP client.
func WithElevenLabsHTTPClient(client *http.Client) ElevenLabsOption {
	return func(c *ElevenLabsClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithElevenLabsBaseURL overrides the configured API base URL.
func WithElevenLabsBaseURL(baseURL string) ElevenLabsOption {
	return func(c *ElevenLabsClient) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewElevenLabsClient builds the client. An empty API key is allowed and
// surfaces as provider-unavailable on use, so callers can fall back.
func NewElevenLabsClient(apiKey string, opts ...ElevenLabsOption) *ElevenLabsClient {
	client := &ElevenLabsClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    elevenLabsDefaultBaseURL,
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
func (c *ElevenLabsClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

// SynthesizeSpeech renders dialogue with a preset or cloned voice.
func (c *ElevenLabsClient) SynthesizeSpeech(ctx context.Context, req SpeechRequest) (*SpeechResult, error) {
	if !c.Configured() {
		return nil, pkgerrors.New(pkgerrors.CodeProviderUnavailable, "elevenlabs credential not configured")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "text is required")
	}

	voiceID, ok := elevenLabsVoiceMap[req.VoiceID]
	if !ok {
		voiceID = req.VoiceID
	}
	if voiceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voice id is required")
	}

	payload := map[string]any{
		"text":     req.Text,
		"model_id": elevenLabsSpeechModel,
		"voice_settings": map[string]any{
			"stability":         0.5,
			"similarity_boost":  0.75,
			"style":             0.0,
			"use_speaker_boost": true,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal speech request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text-to-speech/"+voiceID, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build speech request")
	}
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

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
		ResolvedVoice:   voiceID,
		DurationSeconds: estimateDuration(req.Text),
	}, nil
}

// CloneVoice uploads a sample and returns the provider voice id.
func (c *ElevenLabsClient) CloneVoice(ctx context.Context, req CloneRequest) (string, error) {
	if !c.Configured() {
		return "", pkgerrors.New(pkgerrors.CodeProviderUnavailable, "elevenlabs credential not configured")
	}
	if strings.TrimSpace(req.Name) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "voice name is required")
	}
	if len(req.AudioSample) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "audio sample is required")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("name", req.Name); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write clone form field")
	}
	part, err := form.CreateFormFile("files", "sample.mp3")
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create clone form file")
	}
	if _, err := part.Write(req.AudioSample); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write clone sample")
	}
	if err := form.Close(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize clone form")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voices/add", &body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build clone request")
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "execute clone request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", readProviderError(resp, "voice clone failed")
	}

	var apiResp struct {
		VoiceID string `json:"voice_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeMalformedResponse, err, "decode clone response")
	}
	if apiResp.VoiceID == "" {
		return "", pkgerrors.New(pkgerrors.CodeMalformedResponse, "clone response missing voice id")
	}
	return apiResp.VoiceID, nil
}
