// Package client talks to the reading API. Client implements session.Store
// so the engine can run against the server from a terminal.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"bireader-backend/internal/models"
	"bireader-backend/internal/session"
)

// APIError is the decoded error envelope of a non-2xx response.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Fields    map[string]string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is lets a NOT_FOUND response match session.ErrSessionNotFound.
func (e *APIError) Is(target error) bool {
	return target == session.ErrSessionNotFound && e.Code == "NOT_FOUND"
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api/v1".
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ session.Store = (*Client)(nil)

func (c *Client) Create(ctx context.Context, req models.CreateSessionRequest) (*models.ReadingSession, error) {
	var out models.ReadingSession
	if err := c.do(ctx, http.MethodPost, "/reading-sessions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Fetch(ctx context.Context, sessionID uuid.UUID) (*models.ReadingSession, error) {
	var out models.ReadingSession
	if err := c.do(ctx, http.MethodGet, "/reading-sessions/"+sessionID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Patch(ctx context.Context, sessionID uuid.UUID, patch models.SessionPatch) (*models.ReadingSession, error) {
	var out models.ReadingSession
	if err := c.do(ctx, http.MethodPatch, "/reading-sessions/"+sessionID.String(), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecordCardCompletion(ctx context.Context, sessionID uuid.UUID, comp models.CardCompletion) (*models.CompletionResult, error) {
	body := struct {
		TimeSpent        int  `json:"timeSpent"`
		WasFlipped       bool `json:"wasFlipped"`
		AudioReplayCount int  `json:"audioReplayCount"`
	}{comp.TimeSpent, comp.WasFlipped, comp.AudioReplayCount}

	path := "/reading-sessions/" + sessionID.String() + "/cards/" + strconv.Itoa(comp.CardIndex) + "/complete"
	var out models.CompletionResult
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cards returns the aligned cards of an article.
func (c *Client) Cards(ctx context.Context, articleID uuid.UUID) (*models.ProcessedArticle, error) {
	var out models.ProcessedArticle
	if err := c.do(ctx, http.MethodGet, "/articles/"+articleID.String()+"/cards", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LatestSession returns the most recently active session for an article, or
// nil when there is none.
func (c *Client) LatestSession(ctx context.Context, articleID uuid.UUID) (*models.ReadingSession, error) {
	var out struct {
		Sessions []*models.ReadingSession `json:"sessions"`
	}
	path := "/reading-sessions?limit=1&article_id=" + articleID.String()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Sessions) == 0 {
		return nil, nil
	}
	return out.Sessions[0], nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var envelope models.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode), Message: strings.TrimSpace(string(raw))}
	}
	return &APIError{
		Status:    resp.StatusCode,
		Code:      envelope.Error.Code,
		Message:   envelope.Error.Message,
		Fields:    envelope.Error.Fields,
		RequestID: envelope.Error.RequestID,
	}
}
