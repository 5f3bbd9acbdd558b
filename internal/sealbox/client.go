package sealbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/escrow-be/internal/escrow"
)

var (
	// ErrAudienceResolution is returned when the service cannot resolve one
	// of the audience identities to key material.
	ErrAudienceResolution = errors.New("audience resolution failed")

	// ErrKeyDerivation is returned when the service fails to derive the
	// encryption key for an access list.
	ErrKeyDerivation = errors.New("key derivation failed")
)

// Config holds encryption service connection configuration.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// Client talks to the external encryption and access-control service. It
// implements escrow.Sealer.
type Client struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates an encryption service client.
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("sealbox base URL is required")
	}
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

type createListRequest struct {
	Audience []string `json:"audience"`
}

type createListResponse struct {
	ListID       string `json:"list_id"`
	CapabilityID string `json:"capability_id"`
}

// CreateAccessList creates a fresh access list scoped to the given audience
// and returns the list plus its managing capability.
func (c *Client) CreateAccessList(ctx context.Context, audience []escrow.Identity) (escrow.AccessGrant, error) {
	members := make([]string, len(audience))
	for i, id := range audience {
		members[i] = string(id)
	}

	var resp createListResponse
	if err := c.post(ctx, "/v1/access-lists", createListRequest{Audience: members}, &resp); err != nil {
		return escrow.AccessGrant{}, err
	}
	if resp.ListID == "" || resp.CapabilityID == "" {
		return escrow.AccessGrant{}, errors.New("sealbox returned incomplete access grant")
	}

	c.logger.Debug("Access list created",
		slog.String("list_id", resp.ListID),
		slog.Int("audience_size", len(members)),
	)

	return escrow.AccessGrant{ListID: resp.ListID, CapabilityID: resp.CapabilityID}, nil
}

type encryptRequest struct {
	ListID string `json:"list_id"`
	Data   string `json:"data"` // base64
}

type encryptResponse struct {
	Ciphertext string `json:"ciphertext"` // base64
	Nonce      string `json:"nonce"`
}

// Encrypt encrypts data under the access list's key material, returning the
// ciphertext and the single-use nonce bound to the operation.
func (c *Client) Encrypt(ctx context.Context, data []byte, listID string) (escrow.Sealed, error) {
	req := encryptRequest{
		ListID: listID,
		Data:   base64.StdEncoding.EncodeToString(data),
	}

	var resp encryptResponse
	if err := c.post(ctx, "/v1/encrypt", req, &resp); err != nil {
		return escrow.Sealed{}, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(resp.Ciphertext)
	if err != nil {
		return escrow.Sealed{}, fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(ciphertext) == 0 || resp.Nonce == "" {
		return escrow.Sealed{}, errors.New("sealbox returned incomplete sealed payload")
	}

	return escrow.Sealed{Ciphertext: ciphertext, Nonce: resp.Nonce}, nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sealbox request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var svcErr errorResponse
		if err := json.Unmarshal(raw, &svcErr); err == nil {
			switch svcErr.Code {
			case "audience_resolution":
				return fmt.Errorf("%w: %s", ErrAudienceResolution, svcErr.Message)
			case "key_derivation":
				return fmt.Errorf("%w: %s", ErrKeyDerivation, svcErr.Message)
			}
			if svcErr.Code != "" {
				return fmt.Errorf("sealbox error %s: %s", svcErr.Code, svcErr.Message)
			}
		}
		return fmt.Errorf("sealbox returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
