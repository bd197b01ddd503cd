// Package rest is the HTTP client for the taskmate backend.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Kahyberth/taskmate-rooms/pkg/types"
)

// APIError carries the server's error body so callers can surface the
// message verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// Client talks to the taskmate REST API. Every call is bound by the
// configured timeout on top of the caller's context.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// TeamsByUser fetches all teams the user belongs to.
func (c *Client) TeamsByUser(ctx context.Context, userID string) ([]types.Team, error) {
	var teams []types.Team
	path := "/teams/user/" + url.PathEscape(userID)
	if err := c.get(ctx, path, &teams); err != nil {
		return nil, fmt.Errorf("fetch teams for user %s: %w", userID, err)
	}
	return teams, nil
}

// ProjectsByTeam fetches a team's projects.
func (c *Client) ProjectsByTeam(ctx context.Context, teamID string) ([]types.Project, error) {
	var projects []types.Project
	path := "/projects/team/" + url.PathEscape(teamID)
	if err := c.get(ctx, path, &projects); err != nil {
		return nil, fmt.Errorf("fetch projects for team %s: %w", teamID, err)
	}
	return projects, nil
}

// SessionsByProject fetches a project's active poker sessions.
func (c *Client) SessionsByProject(ctx context.Context, projectID string) ([]types.Session, error) {
	var sessions []types.Session
	path := "/poker/sessions/project/" + url.PathEscape(projectID)
	if err := c.get(ctx, path, &sessions); err != nil {
		return nil, fmt.Errorf("fetch sessions for project %s: %w", projectID, err)
	}
	return sessions, nil
}

// JoinSession asks the server to admit the user into a session. The
// session code is omitted from the body when empty.
func (c *Client) JoinSession(ctx context.Context, req types.JoinRequest) (types.JoinResponse, error) {
	var resp types.JoinResponse
	if err := c.post(ctx, "/poker/sessions/join", req, &resp); err != nil {
		return types.JoinResponse{}, err
	}
	return resp, nil
}

// CreateSession creates a new poker session. The access code, if any,
// is stored server-side; the client only learns hasPassword afterwards.
func (c *Client) CreateSession(ctx context.Context, req types.CreateSessionRequest) (types.Session, error) {
	var sess types.Session
	if err := c.post(ctx, "/poker/sessions", req, &sess); err != nil {
		return types.Session{}, err
	}
	return sess, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody types.ErrorResponse
		if err := json.Unmarshal(raw, &errBody); err == nil {
			apiErr.Message = errBody.Error
		}
		c.log.Debug("api error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
