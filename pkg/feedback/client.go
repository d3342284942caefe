// Package feedback submits content feedback events to the suggestion service.
package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"thoreinstein.com/quill/pkg/activity"
	"thoreinstein.com/quill/pkg/auth"
	quillerrors "thoreinstein.com/quill/pkg/errors"
)

// FeedbackPath is the feedback endpoint relative to the service base URL.
const FeedbackPath = "/api/v0/ai/feedback/"

// maxErrorBody caps how much of an error response is kept for messages.
const maxErrorBody = 512

// Request is the JSON body of a feedback submission.
type Request struct {
	AnsibleContent activity.Payload `json:"ansibleContent"`
}

// Submitter sends one payload and reports the outcome.
type Submitter interface {
	Submit(ctx context.Context, payload activity.Payload) error
}

// Compile-time interface check
var _ Submitter = (*Client)(nil)

// Client posts feedback requests to the suggestion service.
type Client struct {
	baseURL    string
	tokens     auth.TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a feedback client. baseURL must be non-empty.
func NewClient(baseURL string, tokens auth.TokenSource, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, quillerrors.NewConfigError("feedback.base_url", "is required to submit feedback")
	}
	if tokens == nil {
		return nil, quillerrors.NewAuthError("NewClient", "a token source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Submit posts payload synchronously. A non-2xx response is a FeedbackError.
func (c *Client) Submit(ctx context.Context, payload activity.Payload) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return quillerrors.NewFeedbackErrorWithCause("Submit", "no bearer token", err)
	}
	if token == "" {
		return quillerrors.NewFeedbackError("Submit", "token source returned an empty bearer token")
	}

	body, err := json.Marshal(Request{AnsibleContent: payload})
	if err != nil {
		return quillerrors.NewFeedbackErrorWithCause("Submit", "failed to marshal payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+FeedbackPath, bytes.NewReader(body))
	if err != nil {
		return quillerrors.NewFeedbackErrorWithCause("Submit", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return quillerrors.NewFeedbackErrorWithCause("Submit", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return quillerrors.NewFeedbackErrorWithStatus("Submit", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	c.logger.Debug("feedback submitted", "uri", payload.DocumentURI, "trigger", payload.Trigger.String(), "status", resp.StatusCode)
	return nil
}
