package storage_service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Fetcher downloads a remote artifact to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, outputPath string) error
}

// HTTPFetcher streams generation artifacts (videos, images, music) from
// their result URLs to local scratch storage.
type HTTPFetcher struct {
	httpClient *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed (HTTP %d) for %s", resp.StatusCode, url)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("failed to write download: %w", err)
	}
	return nil
}
