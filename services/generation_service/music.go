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

// MusicBackend generates background music through the Suno endpoint.
type MusicBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewMusicBackend(baseURL, apiKey string, logger *slog.Logger) *MusicBackend {
	return &MusicBackend{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

const maxMusicPromptLen = 500

// MusicPrompt builds the generation prompt from the request theme.
func MusicPrompt(theme string) string {
	if theme == "" {
		return "upbeat, trendy, short-form social media background music, energetic and positive vibe, modern pop instrumental"
	}
	return fmt.Sprintf("upbeat trendy background music for a short social media video about %s, energetic positive modern pop instrumental", theme)
}

func (b *MusicBackend) Submit(ctx context.Context, task Task) (string, error) {
	prompt := task.Prompt
	if len(prompt) > maxMusicPromptLen {
		prompt = prompt[:maxMusicPromptLen]
	}

	payload := map[string]interface{}{
		"prompt":       prompt,
		"customMode":   false,
		"instrumental": true,
		"model":        "V4",
		"callBackUrl":  "https://example.com/callback",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/api/v1/generate", bytes.NewBuffer(body))
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

	b.logger.Info("Music task submitted", slog.String("task_id", result.TaskID))
	return result.TaskID, nil
}

func (b *MusicBackend) Poll(ctx context.Context, taskID string) (poll.Result, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", b.baseURL+"/api/v1/generate/record-info?taskId="+taskID, nil)
	if err != nil {
		return poll.Result{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	data, err := doKieRequest(b.httpClient, req)
	if err != nil {
		return poll.Result{}, err
	}

	var record struct {
		Status   string `json:"status"`
		Response struct {
			SunoData []struct {
				AudioURL string `json:"audioUrl"`
			} `json:"sunoData"`
		} `json:"response"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return poll.Result{}, fmt.Errorf("error decoding poll response: %w", err)
	}

	switch record.Status {
	case "SUCCESS", "FIRST_SUCCESS":
		if len(record.Response.SunoData) == 0 || record.Response.SunoData[0].AudioURL == "" {
			return poll.Result{}, fmt.Errorf("success status with no audio URL")
		}
		return poll.Result{Status: poll.Succeeded, ArtifactURL: record.Response.SunoData[0].AudioURL}, nil
	case "CREATE_TASK_FAILED", "GENERATE_AUDIO_FAILED":
		return poll.Result{Status: poll.Failed, Reason: record.Status}, nil
	default:
		b.logger.Debug("Music task not finished",
			slog.String("task_id", taskID),
			slog.String("status", record.Status))
		return poll.Result{Status: poll.Pending}, nil
	}
}
