// Package auth is the thin session client: email/password login against
// the remote service, with the session token persisted in the key-value
// store so it survives restarts. Google and Apple provider logins are not
// implemented.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vocadrill/vocadrill/pkg/kvstore"
	"github.com/vocadrill/vocadrill/pkg/logger"
)

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

const sessionKey = "session"

type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Client struct {
	baseURL string
	httpc   *http.Client
	store   kvstore.Store
}

func NewClient(baseURL string, timeout time.Duration, store kvstore.Store) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		store:   store,
	}
}

// Login authenticates and persists the resulting session. Callers are
// expected to run a push-merge sync right after a successful login and to
// surface any failure of either step.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("auth: encoding login request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("auth: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: login: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("auth: login: server returned %d", resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("auth: decoding login response: %w", err)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	value, err := json.Marshal(&session)
	if err != nil {
		return nil, fmt.Errorf("auth: encoding session: %w", err)
	}
	if err := c.store.Set(ctx, sessionKey, string(value)); err != nil {
		return nil, fmt.Errorf("auth: persisting session: %w", err)
	}
	return &session, nil
}

// Session returns the persisted session, or nil when logged out. A corrupt
// session row is treated as logged out.
func (c *Client) Session(ctx context.Context) *Session {
	value, err := c.store.Get(ctx, sessionKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			logger.Warn("failed to read session", "error", err)
		}
		return nil
	}
	var session Session
	if err := json.Unmarshal([]byte(value), &session); err != nil {
		logger.Warn("dropping corrupt session row", "error", err)
		return nil
	}
	return &session
}

// Token is a syncer.TokenFunc-compatible accessor.
func (c *Client) Token(ctx context.Context) string {
	if session := c.Session(ctx); session != nil {
		return session.Token
	}
	return ""
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.store.Remove(ctx, sessionKey); err != nil {
		return fmt.Errorf("auth: removing session: %w", err)
	}
	return nil
}
