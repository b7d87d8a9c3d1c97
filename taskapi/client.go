// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskapi is the HTTP gateway to the task server.
//
// [Client] is stateless apart from its configuration: every call reads
// the current credential from its [TokenSource] and attaches it as a
// bearer token, performs one request, and returns the decoded result
// or a classified error (see [AuthError], [ValidationError],
// [NetworkError]). Applying results to local state is the caller's job.
//
// Endpoints:
//
//	GET    /api/tasks?status=&dueDate=&sortOrder=
//	POST   /api/tasks
//	PUT    /api/tasks/updateTask/{id}
//	DELETE /api/tasks/deleteTask/{id}
//	GET    /api/users/all
//	GET    /api/users/fetchUser/{id}
package taskapi

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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/tasklist/lib/credential"
	"github.com/bureau-foundation/tasklist/lib/netutil"
	"github.com/bureau-foundation/tasklist/lib/schema"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// DefaultTimeout applies when ClientConfig.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// TokenSource supplies the credential for each request. ok is false
// when there is none, in which case no Authorization header is sent.
type TokenSource interface {
	Token() (token string, ok bool)
}

// TokenFunc adapts a function to [TokenSource].
type TokenFunc func() (string, bool)

func (f TokenFunc) Token() (string, bool) { return f() }

// StoreTokens reads tokens from a credential store.
func StoreTokens(store credential.Store) TokenSource {
	return TokenFunc(func() (string, bool) {
		token, err := store.Get()
		if err != nil {
			return "", false
		}
		return token, true
	})
}

// ClientConfig configures a [Client].
type ClientConfig struct {
	// BaseURL is the server root, e.g. "https://tasks.example.com".
	BaseURL string

	// Tokens supplies the bearer credential. Nil sends no credential.
	Tokens TokenSource

	// HTTPClient defaults to a client with Timeout. When set, its own
	// Timeout is used as is.
	HTTPClient *http.Client

	// Timeout bounds each request when HTTPClient is nil. Defaults to
	// DefaultTimeout.
	Timeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client calls the task server. It is safe for concurrent use.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient returns a Client for config.BaseURL.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("taskapi: BaseURL is required")
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("taskapi: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("taskapi: BaseURL %q must be absolute", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	tokens := config.Tokens
	if tokens == nil {
		tokens = TokenFunc(func() (string, bool) { return "", false })
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		tokens:     tokens,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the server root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// ListTasks returns the tasks matching query, in the server's order.
func (c *Client) ListTasks(ctx context.Context, query schema.Query) ([]schema.Task, error) {
	var tasks []schema.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", query.Values(), nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []schema.Task{}
	}
	return tasks, nil
}

// CreateTask creates a task and returns it with its server-assigned id.
func (c *Client) CreateTask(ctx context.Context, request schema.CreateTaskRequest) (schema.Task, error) {
	var task schema.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", nil, request, &task); err != nil {
		return schema.Task{}, err
	}
	return task, nil
}

// UpdateTask applies request to task id and returns the updated task.
func (c *Client) UpdateTask(ctx context.Context, id string, request schema.UpdateTaskRequest) (schema.Task, error) {
	if id == "" {
		return schema.Task{}, fmt.Errorf("taskapi: update requires a task id")
	}
	var task schema.Task
	if err := c.do(ctx, http.MethodPut, "/api/tasks/updateTask/"+url.PathEscape(id), nil, request, &task); err != nil {
		return schema.Task{}, err
	}
	return task, nil
}

// DeleteTask deletes task id. Any 2xx is success.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("taskapi: delete requires a task id")
	}
	return c.do(ctx, http.MethodDelete, "/api/tasks/deleteTask/"+url.PathEscape(id), nil, nil, nil)
}

// ListUsers returns the user directory.
func (c *Client) ListUsers(ctx context.Context) ([]schema.UserProfile, error) {
	var users []schema.UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/users/all", nil, nil, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []schema.UserProfile{}
	}
	return users, nil
}

// FetchProfile returns the profile of user id.
func (c *Client) FetchProfile(ctx context.Context, id string) (schema.UserProfile, error) {
	if id == "" {
		return schema.UserProfile{}, fmt.Errorf("taskapi: profile fetch requires a user id")
	}
	var profile schema.UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/users/fetchUser/"+url.PathEscape(id), nil, nil, &profile); err != nil {
		return schema.UserProfile{}, err
	}
	if profile.ID == "" {
		profile.ID = id
	}
	return profile, nil
}

// do performs one request. requestBody, when non-nil, is sent as JSON.
// responseBody, when non-nil, receives the decoded 2xx body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, requestBody, responseBody any) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("taskapi: encoding %s %s body: %w", method, path, err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return fmt.Errorf("taskapi: creating %s %s request: %w", method, path, err)
	}
	requestID := uuid.NewString()
	request.Header.Set(RequestIDHeader, requestID)
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Accept-Encoding", netutil.AcceptEncoding)
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token, ok := c.tokens.Token(); ok && token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		// Cancellation surfaces as the context error, not a NetworkError.
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			return fmt.Errorf("taskapi: %s %s: %w", method, path, ctxErr)
		}
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	defer response.Body.Close()

	body, readErr := netutil.ReadResponse(response)
	c.logger.Debug("task api request",
		"method", method,
		"path", path,
		"status", response.StatusCode,
		"duration", time.Since(started),
		"request_id", requestID,
	)
	if readErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			return fmt.Errorf("taskapi: %s %s: %w", method, path, ctxErr)
		}
		// A 401 ends the session whether or not its body is readable.
		if response.StatusCode == http.StatusUnauthorized {
			c.logger.Warn("unreadable 401 body", "method", method, "path", path, "error", readErr)
			return &AuthError{Method: method, Path: path}
		}
		return &NetworkError{StatusCode: response.StatusCode, Method: method, Path: path,
			Err: fmt.Errorf("reading response: %w", readErr)}
	}

	switch {
	case response.StatusCode == http.StatusUnauthorized:
		return &AuthError{Reason: errorMessage(body), Method: method, Path: path}
	case response.StatusCode >= 400 && response.StatusCode < 500:
		return &ValidationError{StatusCode: response.StatusCode, Message: errorMessage(body), Method: method, Path: path}
	case response.StatusCode < 200 || response.StatusCode >= 300:
		return &NetworkError{StatusCode: response.StatusCode, Method: method, Path: path,
			Err: errors.New(orStatusText(errorMessage(body), response.StatusCode))}
	}

	if responseBody == nil || len(bytes.TrimSpace(body)) == 0 {
		if responseBody != nil {
			return &NetworkError{StatusCode: response.StatusCode, Method: method, Path: path,
				Err: errors.New("empty response body")}
		}
		return nil
	}
	if err := json.Unmarshal(body, responseBody); err != nil {
		return &NetworkError{StatusCode: response.StatusCode, Method: method, Path: path,
			Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func orStatusText(message string, statusCode int) string {
	if message != "" {
		return message
	}
	return http.StatusText(statusCode)
}
