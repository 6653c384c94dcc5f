package generation_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AitomaLab/ugc-engine/poll"
)

// VeoBackend talks to the dedicated Veo endpoint, which uses a flat
// request payload and a successFlag-based poll response instead of the
// jobs API's state strings.
type VeoBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewVeoBackend(baseURL, apiKey string, logger *slog.Logger) *VeoBackend {
	return &VeoBackend{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// successFlag values in Veo poll responses.
const (
	veoGenerating = 0
	veoSucceeded  = 1
	veoFailed     = 2
	veoGenFailed  = 3
)

func (b *VeoBackend) Submit(ctx context.Context, task Task) (string, error) {
	payload := map[string]interface{}{
		"prompt":       task.Prompt,
		"model":        task.Model,
		"aspect_ratio": task.AspectRatio,
	}
	if task.ReferenceImageURL != "" {
		payload["imageUrls"] = []string{task.ReferenceImageURL}
		payload["generationType"] = "FIRST_AND_LAST_FRAMES_2_VIDEO"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/api/v1/veo/generate", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	data, err := doKieRequest(b.httpClient, req)
	if err != nil {
		return "", err
	}

	var result struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(data, &result); err != nil || result.TaskID == "" {
		return "", fmt.Errorf("task id missing from create response")
	}

	b.logger.Info("Veo task submitted",
		slog.String("model", task.Model),
		slog.String("task_id", result.TaskID))
	return result.TaskID, nil
}

func (b *VeoBackend) Poll(ctx context.Context, taskID string) (poll.Result, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", b.baseURL+"/api/v1/veo/record-info?taskId="+taskID, nil)
	if err != nil {
		return poll.Result{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	data, err := doKieRequest(b.httpClient, req)
	if err != nil {
		return poll.Result{}, err
	}

	var record struct {
		SuccessFlag       int             `json:"successFlag"`
		FailMsg           string          `json:"failMsg"`
		StatusDescription string          `json:"statusDescription"`
		Response          json.RawMessage `json:"response"`
		ResultUrls        json.RawMessage `json:"resultUrls"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return poll.Result{}, fmt.Errorf("error decoding poll response: %w", err)
	}

	switch record.SuccessFlag {
	case veoSucceeded:
		url := veoResultURL(record.Response, record.ResultUrls)
		if url == "" {
			// Flagged success with no URL yet; treat as pending and
			// let the next poll pick it up.
			return poll.Result{Status: poll.Pending}, nil
		}
		return poll.Result{Status: poll.Succeeded, ArtifactURL: url}, nil
	case veoFailed, veoGenFailed:
		reason := record.FailMsg
		if reason == "" {
			reason = record.StatusDescription
		}
		if reason == "" {
			reason = "unknown generation error"
		}
		return poll.Result{Status: poll.Failed, Reason: reason}, nil
	default:
		b.logger.Debug("Generation task not finished",
			slog.String("task_id", taskID),
			slog.Int("success_flag", record.SuccessFlag))
		return poll.Result{Status: poll.Pending}, nil
	}
}

// veoResultURL digs the artifact URL out of the response object, which
// arrives either as an object or as a JSON-encoded string, with
// resultUrls sometimes duplicated at the top level.
func veoResultURL(response, topLevel json.RawMessage) string {
	urls := decodeResultUrls(response)
	if len(urls) == 0 {
		urls = decodeResultUrls(topLevel)
	}
	if len(urls) > 0 {
		return urls[0]
	}
	return ""
}

func decodeResultUrls(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	// Unwrap one level of string encoding if present.
	var inner string
	if json.Unmarshal(raw, &inner) == nil {
		raw = json.RawMessage(inner)
	}

	var urls []string
	if json.Unmarshal(raw, &urls) == nil {
		return urls
	}

	var obj struct {
		ResultUrls []string `json:"resultUrls"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.ResultUrls
	}
	return nil
}
