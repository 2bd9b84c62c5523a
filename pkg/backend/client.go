// Package backend is the HTTP client for the round service: one mutation
// per action type plus the health probe the connectivity monitor polls.
//
// Failure classification: network errors, 5xx, 408 and 429 responses are
// transient and will be retried by the orchestrator; any other 4xx means the
// service rejected the payload outright and is reported as terminal.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fairwaylabs/linksync/pkg/actions"
	"github.com/fairwaylabs/linksync/pkg/logger"
	"github.com/fairwaylabs/linksync/pkg/syncer"
	"github.com/rs/zerolog"
)

// Client talks to the round service over HTTP. It implements
// syncer.Dispatcher.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a Client for the round service at baseURL (no trailing slash).
// apiKey may be empty when the service runs without authentication.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     logger.With("backend"),
	}
}

// SubmitScore delivers a score mutation and returns the server-assigned id.
func (c *Client) SubmitScore(ctx context.Context, p actions.ScorePayload) (string, error) {
	return c.post(ctx, "/v1/scores", p)
}

// SubmitPhoto delivers a photo mutation and returns the server-assigned id.
func (c *Client) SubmitPhoto(ctx context.Context, p actions.PhotoPayload) (string, error) {
	return c.post(ctx, "/v1/photos", p)
}

// SubmitOrder delivers an order mutation and returns the server-assigned id.
func (c *Client) SubmitOrder(ctx context.Context, p actions.OrderPayload) (string, error) {
	return c.post(ctx, "/v1/orders", p)
}

// Ping checks whether the round service is reachable. Used as the
// connectivity prober's check.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		// A payload that cannot be serialized can never be delivered.
		return "", syncer.Terminal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", syncer.Terminal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("round service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var out struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			c.log.Warn().Err(err).Str("path", path).Msg("Delivery succeeded but response body unreadable")
			return "", nil
		}
		return out.ID, nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("round service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))

	if retryable(resp.StatusCode) {
		return "", err
	}
	return "", syncer.Terminal(err)
}

// retryable reports whether a status code is worth another attempt.
func retryable(status int) bool {
	if status >= 500 {
		return true
	}
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}
