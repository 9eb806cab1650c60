// Package imagestore talks to the external image CDN. Uploads for one
// listing are all-or-nothing: if any file fails, everything already
// uploaded in the batch is deleted before the error is returned.
package imagestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flip-earn/internal/metrics"
)

// File is one inbound image to store.
type File struct {
	Name string
	Data []byte
}

// Uploaded describes a stored file. FileID is kept only long enough to
// roll a failed batch back; listings persist URLs.
type Uploaded struct {
	URL    string `json:"url"`
	FileID string `json:"fileId"`
}

// Uploader is the collaborator surface the market service depends on.
type Uploader interface {
	UploadAll(ctx context.Context, files []File) ([]Uploaded, error)
}

// Client provides typed access to the image CDN upload API.
type Client struct {
	logger  *slog.Logger
	baseURL string
	apiKey  string
	folder  string
	http    *http.Client
	metrics *metrics.Metrics
}

// Config holds image store client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Folder  string
	Timeout time.Duration
}

// New creates a new image store client.
func New(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	folder := cfg.Folder
	if folder == "" {
		folder = "/flip-earn"
	}
	return &Client{
		logger:  logger.With("component", "imagestore"),
		baseURL: base,
		apiKey:  cfg.APIKey,
		folder:  folder,
		http:    &http.Client{Timeout: timeout},
		metrics: metricRegistry,
	}
}

// Upload stores a single file and returns its public URL and file id.
func (c *Client) Upload(ctx context.Context, file File) (*Uploaded, error) {
	start := time.Now()
	uploaded, err := c.upload(ctx, file)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.ImageUploads.WithLabelValues(status).Inc()
		c.metrics.ImageUploadLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
	return uploaded, err
}

func (c *Client) upload(ctx context.Context, file File) (*Uploaded, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	fileName := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), file.Name)
	if err := writer.WriteField("fileName", fileName); err != nil {
		return nil, fmt.Errorf("write file name: %w", err)
	}
	if err := writer.WriteField("folder", c.folder); err != nil {
		return nil, fmt.Errorf("write folder: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/files/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", file.Name, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upload %s: status %d: %s", file.Name, resp.StatusCode, truncate(payload, 200))
	}

	var uploaded Uploaded
	if err := json.Unmarshal(payload, &uploaded); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if uploaded.URL == "" {
		return nil, fmt.Errorf("upload %s: response missing url", file.Name)
	}
	return &uploaded, nil
}

// Delete removes a stored file, used when rolling back a failed batch.
func (c *Client) Delete(ctx context.Context, fileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/files/"+url.PathEscape(fileID), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || (resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound) {
		return fmt.Errorf("delete file %s: status %d", fileID, resp.StatusCode)
	}
	return nil
}

// UploadAll stores every file or none of them. On any failure the files
// already uploaded are deleted best-effort before the error is returned.
func (c *Client) UploadAll(ctx context.Context, files []File) ([]Uploaded, error) {
	uploaded := make([]Uploaded, 0, len(files))
	for _, file := range files {
		res, err := c.Upload(ctx, file)
		if err != nil {
			c.rollback(ctx, uploaded)
			return nil, err
		}
		uploaded = append(uploaded, *res)
	}
	return uploaded, nil
}

func (c *Client) rollback(ctx context.Context, uploaded []Uploaded) {
	for _, u := range uploaded {
		if u.FileID == "" {
			continue
		}
		if err := c.Delete(ctx, u.FileID); err != nil {
			c.logger.Warn("rollback delete failed", "file_id", u.FileID, "error", err)
		}
	}
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
