package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
)

const (
	klingDefaultBaseURL = "https://api.klingai.com/v1"
	klingModel          = "kling-v1"
	klingNegativePrompt = "low quality, blurry, distorted faces"
	klingCfgScale       = 0.5
	klingClipSeconds    = 5

	// Served when no credential is configured so the authoring flow
	// stays demoable end to end.
	mockClipURL = "https://sample-videos.com/video123/mp4/720/big_buck_bunny_720p_1mb.mp4"
)

// KlingClient creates and polls text/image-to-video tasks.
type KlingClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// KlingOption configures optional client behavior.
type KlingOption func(*KlingClient)

// WithKlingHTTPClient overrides the default HTTP client.
func WithKlingHTTPClient(client *http.Client) KlingOption {
	return func(c *KlingClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithKlingBaseURL overrides the configured API base URL.
func WithKlingBaseURL(baseURL string) KlingOption {
	return func(c *KlingClient) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewKlingClient builds the client. With no API key, clip tasks complete
// immediately with a mock placeholder URL.
func NewKlingClient(apiKey string, opts ...KlingOption) *KlingClient {
	client := &KlingClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    klingDefaultBaseURL,
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
func (c *KlingClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

// CreateClipTask submits a clip generation task. Text-to-video by
// default; image-to-video when a reference image is supplied.
func (c *KlingClient) CreateClipTask(ctx context.Context, req ClipRequest) (*ClipTask, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prompt is required")
	}

	if !c.Configured() {
		return &ClipTask{Status: ClipStatusMocked, VideoURL: mockClipURL}, nil
	}

	endpoint := c.baseURL + "/videos/text2video"
	payload := map[string]any{
		"model":           klingModel,
		"prompt":          req.Prompt,
		"negative_prompt": klingNegativePrompt,
		"cfg_scale":       klingCfgScale,
		"duration":        klingClipSeconds,
	}
	if req.ReferenceImageURL != "" {
		endpoint = c.baseURL + "/videos/image2video"
		payload["image"] = req.ReferenceImageURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal clip request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build clip request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "execute clip request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, readProviderError(resp, "clip task creation failed")
	}

	var apiResp struct {
		Data struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedResponse, err, "decode clip response")
	}
	if apiResp.Data.TaskID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedResponse, "clip response missing task id")
	}

	return &ClipTask{TaskID: apiResp.Data.TaskID, Status: ClipStatusProcessing}, nil
}

// CheckClipTask fetches the current state of an asynchronous clip task.
func (c *KlingClient) CheckClipTask(ctx context.Context, taskID string) (*ClipTask, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id is required")
	}
	if !c.Configured() {
		return nil, pkgerrors.New(pkgerrors.CodeProviderUnavailable, "kling credential not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/tasks/"+taskID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build task status request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "execute task status request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, readProviderError(resp, "task status check failed")
	}

	var apiResp struct {
		Data struct {
			Status  string `json:"status"`
			Message string `json:"message"`
			Video   struct {
				URL string `json:"url"`
			} `json:"video"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedResponse, err, "decode task status response")
	}

	task := &ClipTask{TaskID: taskID, Message: apiResp.Data.Message}
	switch apiResp.Data.Status {
	case "completed":
		task.Status = ClipStatusCompleted
		task.VideoURL = apiResp.Data.Video.URL
	case "failed":
		task.Status = ClipStatusFailed
	default:
		task.Status = ClipStatusProcessing
	}
	return task, nil
}
