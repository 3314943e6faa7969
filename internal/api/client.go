// Package api implements the REST client for the PashuSagar backend.
//
// The backend is an external collaborator; this package owns only the request
// plumbing and the typed error surface. Failed calls are never retried here;
// recovery is the caller's decision.
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/pashusagar/pashusagar-cli/pkg/types"
)

// requestTimeout is the per-request timeout for all backend calls.
const requestTimeout = 15 * time.Second

// Error is a non-2xx response from the backend.
type Error struct {
	// Status is the HTTP status code.
	Status int
	// Detail is the response body, trimmed for display.
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Detail)
}

// Client talks to the PashuSagar REST API.
type Client struct {
	rest *resty.Client
}

// New creates a REST client for the given base URL.
func New(baseURL string) *Client {
	rest := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json")
	return &Client{rest: rest}
}

// SetToken sets the bearer token used for authenticated endpoints.
func (c *Client) SetToken(token string) {
	c.rest.SetAuthToken(token)
}

// Close releases the underlying transport resources.
func (c *Client) Close() error {
	return c.rest.Close()
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&out).
		Post("/api/token/")
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	if resp.IsError() {
		return "", respError(resp)
	}
	if out.Access == "" {
		return "", fmt.Errorf("login response missing access token")
	}
	return out.Access, nil
}

// Messages fetches all message records visible to the current user.
func (c *Client) Messages(ctx context.Context) ([]types.Message, error) {
	var out []types.Message
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/messages/")
	if err != nil {
		return nil, fmt.Errorf("fetch messages failed: %w", err)
	}
	if resp.IsError() {
		return nil, respError(resp)
	}
	return out, nil
}

// CreateMessage creates a message record. The returned record carries the
// server-assigned id and timestamp.
func (c *Client) CreateMessage(ctx context.Context, sender, recipient types.ID, content string) (types.Message, error) {
	var out types.Message
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"sender":    sender.String(),
			"recipient": recipient.String(),
			"content":   content,
		}).
		SetResult(&out).
		Post("/messages/")
	if err != nil {
		return types.Message{}, fmt.Errorf("create message failed: %w", err)
	}
	if resp.IsError() {
		return types.Message{}, respError(resp)
	}
	return out, nil
}

// Doctors fetches the veterinarian directory.
func (c *Client) Doctors(ctx context.Context) ([]types.Participant, error) {
	return c.participants(ctx, "/doctors/")
}

// Users fetches the user directory.
func (c *Client) Users(ctx context.Context) ([]types.Participant, error) {
	return c.participants(ctx, "/users/")
}

func (c *Client) participants(ctx context.Context, path string) ([]types.Participant, error) {
	var out []types.Participant
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("fetch %s failed: %w", path, err)
	}
	if resp.IsError() {
		return nil, respError(resp)
	}
	return out, nil
}

func respError(resp *resty.Response) error {
	detail := strings.TrimSpace(resp.String())
	if runes := []rune(detail); len(runes) > 200 {
		detail = string(runes[:200])
	}
	return &Error{Status: resp.StatusCode(), Detail: detail}
}
