package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cuongbtq/escrow-be/internal/escrow"
)

// ErrProfileNotFound is returned by FetchProfile when the identity has no
// registered profile handle on the ledger.
var ErrProfileNotFound = errors.New("profile not found")

// Config holds ledger gateway connection configuration.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Client talks to the ledger gateway: it submits transactions through the
// gateway's signer, polls for durable inclusion, and reads job and profile
// snapshots. It implements escrow.Executor.
type Client struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a ledger gateway client.
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	if _, err := url.Parse(config.BaseURL); err != nil || config.BaseURL == "" {
		return nil, fmt.Errorf("invalid ledger base URL %q", config.BaseURL)
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

type submitRequest struct {
	Kind      string            `json:"kind"`
	Sender    string            `json:"sender"`
	JobID     string            `json:"job_id"`
	Milestone int               `json:"milestone"`
	Fields    map[string]string `json:"fields"`
}

type submitResponse struct {
	Digest string `json:"digest"`
}

type statusResponse struct {
	Digest string `json:"digest"`
	Status string `json:"status"` // pending, confirmed, failed
	Error  string `json:"error,omitempty"`
	Events []struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	} `json:"events,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Execute submits the payload through the gateway signer and blocks until the
// ledger reports durable inclusion. Rejection before a digest is assigned
// yields *escrow.RejectedError; a digest that never confirms within the
// bounded wait yields *escrow.AmbiguousError.
func (c *Client) Execute(ctx context.Context, payload escrow.TransactionPayload) (*escrow.TransactionResult, error) {
	digest, err := c.submit(ctx, payload)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Transaction submitted, awaiting confirmation",
		slog.String("kind", string(payload.Kind)),
		slog.String("digest", digest),
	)

	return c.awaitConfirmation(ctx, digest)
}

func (c *Client) submit(ctx context.Context, payload escrow.TransactionPayload) (string, error) {
	body := submitRequest{
		Kind:      string(payload.Kind),
		Sender:    string(payload.Sender),
		JobID:     payload.JobID,
		Milestone: payload.Milestone,
		Fields:    payload.Fields,
	}

	var resp submitResponse
	status, err := c.doJSON(ctx, http.MethodPost, "/v1/transactions", body, &resp)
	if err != nil {
		// Transport failure before the gateway acknowledged the submission.
		var rejected *escrow.RejectedError
		if errors.As(err, &rejected) {
			return "", err
		}
		return "", &escrow.RejectedError{Code: "submit_failed", Err: err}
	}
	if status != http.StatusOK || resp.Digest == "" {
		return "", &escrow.RejectedError{Code: "submit_failed", Err: fmt.Errorf("unexpected submit status %d", status)}
	}
	return resp.Digest, nil
}

func (c *Client) awaitConfirmation(ctx context.Context, digest string) (*escrow.TransactionResult, error) {
	confirmTimeout := c.config.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 30 * time.Second
	}
	interval := c.config.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	deadline := time.Now().Add(confirmTimeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		status, err := c.transactionStatus(ctx, digest)
		if err != nil {
			// Keep polling through transient read failures until the deadline.
			lastErr = err
		} else {
			switch status.Status {
			case "confirmed":
				result := &escrow.TransactionResult{
					Digest:    digest,
					Confirmed: true,
					Status:    status.Status,
				}
				for _, ev := range status.Events {
					result.Events = append(result.Events, escrow.TransactionEvent{Type: ev.Type, Data: ev.Data})
				}
				return result, nil
			case "failed":
				return nil, &escrow.RejectedError{
					Code: "execution_failed",
					Err:  fmt.Errorf("ledger reported failure: %s", status.Error),
				}
			}
			lastErr = nil
		}

		if time.Now().After(deadline) {
			if lastErr == nil {
				lastErr = fmt.Errorf("confirmation not reached within %s", confirmTimeout)
			}
			return nil, &escrow.AmbiguousError{Digest: digest, Err: lastErr}
		}

		select {
		case <-ctx.Done():
			return nil, &escrow.AmbiguousError{Digest: digest, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (c *Client) transactionStatus(ctx context.Context, digest string) (*statusResponse, error) {
	var resp statusResponse
	status, err := c.doJSON(ctx, http.MethodGet, "/v1/transactions/"+url.PathEscape(digest), nil, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching transaction %s", status, digest)
	}
	return &resp, nil
}

type jobResponse struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Budget            int64  `json:"budget"`
	Deadline          int64  `json:"deadline_unix"`
	Client            string `json:"client"`
	Worker            string `json:"worker,omitempty"`
	State             string `json:"state"`
	PendingCompletion bool   `json:"pending_completion"`
	DescriptionRef    string `json:"description_ref,omitempty"`
	Milestones        []struct {
		Ordinal   int    `json:"ordinal"`
		Status    string `json:"status"`
		ContentID string `json:"content_id,omitempty"`
	} `json:"milestones"`
}

// FetchJob reads the current job snapshot from the ledger.
func (c *Client) FetchJob(ctx context.Context, jobID string) (*escrow.Job, error) {
	var resp jobResponse
	status, err := c.doJSON(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch job %s: %w", jobID, err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching job %s", status, jobID)
	}

	job := &escrow.Job{
		ID:                resp.ID,
		Title:             resp.Title,
		Budget:            resp.Budget,
		Deadline:          time.Unix(resp.Deadline, 0).UTC(),
		Client:            escrow.Identity(resp.Client),
		Worker:            escrow.Identity(resp.Worker),
		State:             escrow.JobState(resp.State),
		PendingCompletion: resp.PendingCompletion,
		DescriptionRef:    resp.DescriptionRef,
	}
	for _, m := range resp.Milestones {
		milestone := escrow.Milestone{
			Ordinal: m.Ordinal,
			Status:  escrow.MilestoneStatus(m.Status),
		}
		if m.ContentID != "" {
			milestone.Submission = &escrow.DeliverableSubmission{ContentID: m.ContentID}
		}
		job.Milestones = append(job.Milestones, milestone)
	}
	return job, nil
}

type profileResponse struct {
	Owner  string `json:"owner"`
	Handle string `json:"handle"`
}

// FetchProfile reads a worker's registered profile handle. Absence is
// reported via ErrProfileNotFound.
func (c *Client) FetchProfile(ctx context.Context, identity escrow.Identity) (*escrow.Profile, error) {
	var resp profileResponse
	status, err := c.doJSON(ctx, http.MethodGet, "/v1/profiles/"+url.PathEscape(string(identity)), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", identity, err)
	}
	switch status {
	case http.StatusOK:
		return &escrow.Profile{Owner: escrow.Identity(resp.Owner), Handle: resp.Handle}, nil
	case http.StatusNotFound:
		return nil, ErrProfileNotFound
	default:
		return nil, fmt.Errorf("unexpected status %d fetching profile %s", status, identity)
	}
}

// doJSON performs one request against the gateway. Gateway-level rejections
// (4xx with a structured body) are surfaced as *escrow.RejectedError for
// POSTs; the HTTP status is returned for the caller to interpret otherwise.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ledger gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if method == http.MethodPost && resp.StatusCode >= 400 && resp.StatusCode < 500 {
		var gatewayErr errorResponse
		if err := json.Unmarshal(raw, &gatewayErr); err == nil && gatewayErr.Code != "" {
			return resp.StatusCode, &escrow.RejectedError{
				Code: gatewayErr.Code,
				Err:  errors.New(gatewayErr.Message),
			}
		}
		return resp.StatusCode, &escrow.RejectedError{
			Code: "rejected",
			Err:  fmt.Errorf("gateway returned status %d", resp.StatusCode),
		}
	}

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
