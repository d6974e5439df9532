// internal/api/client.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/reacture/engine/pkg/core"
)

// Endpoint paths on the dataset collector.
const (
	HealthPath = "/api/health"
	UploadPath = "/api/dataset/upload"
)

// Client handles communication with a dataset collector.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client. A zero timeout means 30 seconds.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Healthcheck checks if the collector is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// UploadResponse is the collector's reply to an upload.
type UploadResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Files     int    `json:"files"`
	Error     string `json:"error,omitempty"`
}

// Upload sends every regular file of an exported dataset directory, together
// with its metadata, as one multipart request.
func (c *Client) Upload(ctx context.Context, dir string, meta core.UploadMetadata) (*UploadResponse, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("dataset directory %s is empty", dir)
	}

	// Create multipart form
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// Write form fields and files in goroutine
	errCh := make(chan error, 1)
	go func() {
		err := writeForm(writer, c.apiKey, meta, files)
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
		errCh <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UploadPath, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	// the collector may answer before reading everything
	pr.Close()
	writeErr := <-errCh

	var out UploadResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return nil, fmt.Errorf("upload returned status %d: %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	if writeErr != nil {
		return nil, writeErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", decodeErr)
	}
	return &out, nil
}

func writeForm(w *multipart.Writer, secret string, meta core.UploadMetadata, files []string) error {
	fields := [][2]string{
		{"secret", secret},
		{"session_id", meta.SessionID},
		{"player_id", meta.PlayerID},
		{"environment", meta.Environment},
		{"duration_s", strconv.FormatFloat(meta.DurationS, 'f', -1, 64)},
		{"final_score", strconv.Itoa(meta.FinalScore)},
		{"victims_saved", strconv.Itoa(meta.VictimsSaved)},
		{"victims_total", strconv.Itoa(meta.VictimsTotal)},
		{"tag", meta.Tag},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	for _, path := range files {
		if err := copyPart(w, path); err != nil {
			return err
		}
	}
	return nil
}

func copyPart(w *multipart.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	part, err := w.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return nil
}
