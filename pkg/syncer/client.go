// Package syncer reconciles local state with the remote authoritative
// store. Push-merge submits the full local snapshot and applies the
// server's unified result; pull-only fetches the server state with no
// local payload. Both apply the result as a clear-and-repopulate
// overwrite, never a field-level merge.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vocadrill/vocadrill/pkg/storage"
)

const mergeStrategy = "MERGE"

type pushRequest struct {
	Strategy string           `json:"strategy"`
	Data     storage.Snapshot `json:"data"`
}

type syncResponse struct {
	Data storage.Snapshot `json:"data"`
}

// TokenFunc supplies the bearer token for a request; an empty result sends
// the request unauthenticated.
type TokenFunc func(ctx context.Context) string

type Client struct {
	baseURL string
	httpc   *http.Client
	token   TokenFunc
}

// NewClient builds a sync client. The timeout bounds every request; the
// original design had none, 15s is this implementation's default via
// config.
func NewClient(baseURL string, timeout time.Duration, token TokenFunc) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		token:   token,
	}
}

// Push submits the local snapshot under the MERGE strategy and returns the
// server's unified state.
func (c *Client) Push(ctx context.Context, snap *storage.Snapshot) (*storage.Snapshot, error) {
	body, err := json.Marshal(pushRequest{Strategy: mergeStrategy, Data: *snap})
	if err != nil {
		return nil, fmt.Errorf("syncer: encoding push payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/sync/push", body)
}

// Pull fetches the server state with no local payload.
func (c *Client) Pull(ctx context.Context) (*storage.Snapshot, error) {
	return c.do(ctx, http.MethodGet, "/sync/pull", nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*storage.Snapshot, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("syncer: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := c.token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("syncer: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("syncer: %s %s: server returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var envelope syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("syncer: decoding response: %w", err)
	}
	return &envelope.Data, nil
}
