// Package speech_service synthesizes voiceover audio from script text.
package speech_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Service is the narrow contract the orchestrator consumes: text plus a
// voice in, a local audio file out.
type Service interface {
	Synthesize(ctx context.Context, text, voiceID, outputPath string) error
}

// HTTPError carries the ElevenLabs error response so callers can branch
// on the quota case.
type HTTPError struct {
	StatusCode int
	Message    string
	ErrorType  string
	RawBody    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("ElevenLabs API error (HTTP %d): %s (Type: %s)", e.StatusCode, e.Message, e.ErrorType)
}

// IsQuota reports whether the failure is a payment or rate/quota limit,
// the one case with a documented fallback-voice retry.
func (e *HTTPError) IsQuota() bool {
	return e.StatusCode == http.StatusPaymentRequired || e.StatusCode == http.StatusTooManyRequests
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type ElevenLabsService struct {
	apiURL     string
	apiKey     string
	modelID    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewElevenLabsService(apiURL, apiKey, modelID string, logger *slog.Logger) *ElevenLabsService {
	return &ElevenLabsService{
		apiURL:     apiURL,
		apiKey:     apiKey,
		modelID:    modelID,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

// Synthesize generates speech for text with the given voice and writes
// the MP3 to outputPath.
func (s *ElevenLabsService) Synthesize(ctx context.Context, text, voiceID, outputPath string) error {
	if s.apiKey == "" {
		return fmt.Errorf("ElevenLabs API key is not configured")
	}

	s.logger.Info("Generating voiceover",
		slog.String("voice_id", voiceID),
		slog.Int("text_length", len(text)))

	requestBody, err := json.Marshal(map[string]interface{}{
		"text":     text,
		"model_id": s.modelID,
		"voice_settings": voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return fmt.Errorf("error marshaling request body: %w", err)
	}

	fullURL := fmt.Sprintf("%s/%s", s.apiURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", fullURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return s.handleErrorResponse(resp)
	}

	return s.writeAudio(resp.Body, outputPath)
}

func (s *ElevenLabsService) writeAudio(body io.Reader, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, body)
	if err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("failed to write audio data: %w", err)
	}

	s.logger.Info("Voiceover saved",
		slog.String("path", outputPath),
		slog.Int64("bytes", written))
	return nil
}

func (s *ElevenLabsService) handleErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    "Failed to read error response",
			ErrorType:  "unknown",
		}
	}

	var errorResp struct {
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Detail.Message == "" {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			ErrorType:  "unknown",
			RawBody:    string(body),
		}
	}

	return &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    errorResp.Detail.Message,
		ErrorType:  errorResp.Detail.Status,
		RawBody:    string(body),
	}
}
