package generation_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AitomaLab/ugc-engine/poll"
)

// KieJobsBackend talks to the unified Kie.ai jobs API used by the
// Seedance, Kling, InfiniteTalk and Nano Banana model families. All of
// them share createTask/recordInfo endpoints; only the input payload
// differs per family.
type KieJobsBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewKieJobsBackend(baseURL, apiKey string, logger *slog.Logger) *KieJobsBackend {
	return &KieJobsBackend{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// submitResponse is the common Kie.ai envelope.
type kieEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (b *KieJobsBackend) Submit(ctx context.Context, task Task) (string, error) {
	payload, err := b.buildPayload(task)
	if err != nil {
		return "", err
	}

	data, err := b.postJSON(ctx, b.baseURL+"/api/v1/jobs/createTask", payload)
	if err != nil {
		return "", err
	}

	var result struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(data, &result); err != nil || result.TaskID == "" {
		return "", fmt.Errorf("task id missing from create response")
	}

	b.logger.Info("Generation task submitted",
		slog.String("model", task.Model),
		slog.String("task_id", result.TaskID))
	return result.TaskID, nil
}

func (b *KieJobsBackend) buildPayload(task Task) (map[string]interface{}, error) {
	switch task.Kind {
	case TaskVideo:
		if strings.Contains(task.Model, "kling") {
			// Kling is silent and only accepts durations of 5 or 10.
			duration := "5"
			if task.DurationSeconds > 5 {
				duration = "10"
			}
			input := map[string]interface{}{
				"prompt":   task.Prompt,
				"sound":    false,
				"duration": duration,
			}
			if task.ReferenceImageURL != "" {
				input["image_urls"] = []string{task.ReferenceImageURL}
			} else {
				input["image_urls"] = []string{}
			}
			return map[string]interface{}{
				"model": task.Model,
				"input": input,
			}, nil
		}

		input := map[string]interface{}{
			"prompt":         task.Prompt,
			"aspect_ratio":   task.AspectRatio,
			"resolution":     task.Resolution,
			"duration":       strconv.Itoa(task.DurationSeconds),
			"generate_audio": true,
			"fixed_lens":     false,
		}
		if task.ReferenceImageURL != "" {
			input["input_urls"] = []string{task.ReferenceImageURL}
		} else {
			input["input_urls"] = []string{}
		}
		return map[string]interface{}{
			"model":       task.Model,
			"input":       input,
			"callBackUrl": "https://example.com/callback",
		}, nil

	case TaskLipSync:
		if task.ReferenceImageURL == "" {
			return nil, fmt.Errorf("lip-sync task requires a reference image URL")
		}
		if task.AudioURL == "" {
			return nil, fmt.Errorf("lip-sync task requires a staged audio URL")
		}
		prompt := task.Prompt
		if prompt == "" {
			prompt = "Lip-syncing video"
		}
		return map[string]interface{}{
			"model": task.Model,
			"input": map[string]interface{}{
				"image_url":  task.ReferenceImageURL,
				"audio_url":  task.AudioURL,
				"prompt":     prompt,
				"resolution": task.Resolution,
			},
			"callBackUrl": "https://example.com/callback",
		}, nil

	case TaskImage:
		if task.ProductImageURL == "" {
			return nil, fmt.Errorf("image composition task requires a product image URL")
		}
		return map[string]interface{}{
			"model": task.Model,
			"input": map[string]interface{}{
				"prompt":              task.Prompt,
				"product_image_url":   task.ProductImageURL,
				"reference_image_url": task.ReferenceImageURL,
				"num_inference_steps": 30,
				"guidance_scale":      7.5,
				"width":               768,
				"height":              1344,
				"seed":                task.Seed,
			},
			"callBackUrl": "https://example.com/callback",
		}, nil

	default:
		return nil, fmt.Errorf("jobs backend cannot handle task kind %d", task.Kind)
	}
}

// Poll reads the task record. Seedance/Kling/InfiniteTalk report
// state success/fail/waiting/processing; anything unrecognized is
// treated as pending.
func (b *KieJobsBackend) Poll(ctx context.Context, taskID string) (poll.Result, error) {
	data, err := b.getJSON(ctx, b.baseURL+"/api/v1/jobs/recordInfo?taskId="+taskID)
	if err != nil {
		return poll.Result{}, err
	}

	var record struct {
		State      string          `json:"state"`
		FailMsg    string          `json:"failMsg"`
		ResultJSON json.RawMessage `json:"resultJson"`
		Response   json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return poll.Result{}, fmt.Errorf("error decoding poll response: %w", err)
	}

	switch strings.ToLower(record.State) {
	case "success":
		url := extractArtifactURL(record.Response, record.ResultJSON)
		if url == "" {
			return poll.Result{}, fmt.Errorf("success state with no artifact URL")
		}
		return poll.Result{Status: poll.Succeeded, ArtifactURL: url}, nil
	case "fail":
		reason := record.FailMsg
		if reason == "" {
			reason = "unknown generation error"
		}
		return poll.Result{Status: poll.Failed, Reason: reason}, nil
	default:
		b.logger.Debug("Generation task not finished",
			slog.String("task_id", taskID),
			slog.String("state", record.State))
		return poll.Result{Status: poll.Pending}, nil
	}
}

func (b *KieJobsBackend) postJSON(ctx context.Context, url string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	return doKieRequest(b.httpClient, req)
}

func (b *KieJobsBackend) getJSON(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	return doKieRequest(b.httpClient, req)
}

// doKieRequest executes a request against the Kie.ai API and unwraps the
// {code, msg, data} envelope, treating any non-200 code as an error.
func doKieRequest(client *http.Client, req *http.Request) (json.RawMessage, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (HTTP %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var envelope kieEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	if envelope.Code != 200 {
		return nil, fmt.Errorf("API error: %s", envelope.Msg)
	}
	return envelope.Data, nil
}

// extractArtifactURL pulls the artifact URL from whichever field this
// model family populated: response.resultUrls, response.videoUrl, or the
// JSON-encoded resultJson string.
func extractArtifactURL(response, resultJSON json.RawMessage) string {
	var resp struct {
		ResultUrls []string `json:"resultUrls"`
		VideoURL   string   `json:"videoUrl"`
	}
	if len(response) > 0 && json.Unmarshal(response, &resp) == nil {
		if len(resp.ResultUrls) > 0 {
			return resp.ResultUrls[0]
		}
		if resp.VideoURL != "" {
			return resp.VideoURL
		}
	}

	if len(resultJSON) == 0 {
		return ""
	}
	// resultJson arrives as a JSON string containing JSON.
	var inner string
	raw := resultJSON
	if json.Unmarshal(resultJSON, &inner) == nil {
		raw = json.RawMessage(inner)
	}
	var result struct {
		ResultUrls []string `json:"resultUrls"`
		VideoURL   string   `json:"videoUrl"`
		Images     []string `json:"images"`
	}
	if json.Unmarshal(raw, &result) != nil {
		return ""
	}
	if len(result.ResultUrls) > 0 {
		return result.ResultUrls[0]
	}
	if result.VideoURL != "" {
		return result.VideoURL
	}
	if len(result.Images) > 0 {
		return result.Images[0]
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
