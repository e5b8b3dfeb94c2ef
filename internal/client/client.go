// Package client is a small HTTP client for a running rapport server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/lazypower/rapport/internal/emotion"
	"github.com/lazypower/rapport/internal/engine"
	"github.com/lazypower/rapport/internal/relationship"
)

const (
	defaultServerURL = "http://127.0.0.1:37778"
	httpTimeout      = 30 * time.Second
)

// Client talks to the rapport server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty serverURL falls back to
// RAPPORT_URL, then http://127.0.0.1:37778.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("RAPPORT_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: strings.TrimRight(serverURL, "/"),
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Send posts a chat message and returns the full outcome.
func (c *Client) Send(ctx context.Context, userID, text string) (*engine.Outcome, error) {
	var out engine.Outcome
	err := c.do(ctx, http.MethodPost, "/api/messages", map[string]string{
		"user_id": userID,
		"text":    text,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Relationship fetches a user's relationship snapshot.
func (c *Client) Relationship(ctx context.Context, userID string) (relationship.Summary, error) {
	var s relationship.Summary
	err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/relationship", nil, &s)
	return s, err
}

// EmotionalState fetches a user's emotional state snapshot.
func (c *Client) EmotionalState(ctx context.Context, userID string) (emotion.State, error) {
	var s emotion.State
	err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/emotion", nil, &s)
	return s, err
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil) == nil
}

// URL is the server base URL the client talks to.
func (c *Client) URL() string { return c.serverURL }
