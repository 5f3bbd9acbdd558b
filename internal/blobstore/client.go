package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Config holds blob store connection configuration.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxBlobBytes   int64
}

// Client uploads opaque payloads to the content-addressed blob store. The
// store derives the content identifier from the payload itself, so repeated
// uploads of the same bytes are harmless duplicates. It implements
// escrow.BlobStore.
type Client struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a blob store client.
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("blobstore base URL is required")
	}
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

type uploadResponse struct {
	ContentID string `json:"content_id"`
	Size      int64  `json:"size"`
}

// Upload stores the payload and returns its content identifier.
func (c *Client) Upload(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("refusing to upload empty payload")
	}
	if c.config.MaxBlobBytes > 0 && int64(len(data)) > c.config.MaxBlobBytes {
		return "", fmt.Errorf("payload of %d bytes exceeds limit of %d", len(data), c.config.MaxBlobBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.config.BaseURL+"/v1/blobs", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("blobstore request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("blobstore returned status %d", resp.StatusCode)
	}

	var result uploadResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.ContentID == "" {
		return "", errors.New("blobstore returned empty content id")
	}

	c.logger.Debug("Blob uploaded",
		slog.String("content_id", result.ContentID),
		slog.Int("bytes", len(data)),
	)

	return result.ContentID, nil
}
