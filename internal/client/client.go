// Package client talks to a running tasker server over its JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amirbrooks/tasker-chat/internal/store"
)

const DefaultBaseURL = "http://127.0.0.1:5000"

// APIError is a non-2xx reply decoded from the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, hc *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: baseURL, http: hc}
}

type ListOptions struct {
	Completed *bool
	Sort      string
	Limit     int
	Offset    int
}

type Page struct {
	Items []store.Task `json:"items"`
	Page  struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
		Total  int `json:"total"`
	} `json:"page"`
}

type Deleted struct {
	RemovedTask   store.Task `json:"removed_task"`
	Deleted       int        `json:"deleted"`
	UndoToken     string     `json:"undo_token"`
	UndoExpiresAt time.Time  `json:"undo_expires_at"`
}

type Restored struct {
	Restored int          `json:"restored"`
	Items    []store.Task `json:"items"`
}

// ChatReply mirrors the chat endpoint's response. Result is left raw since
// its shape depends on the function that ran.
type ChatReply struct {
	Status           string          `json:"status"`
	ToolRequest      json.RawMessage `json:"tool_request,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
	AssistantMessage string          `json:"assistant_message,omitempty"`
	Choices          []struct {
		ID        string `json:"id"`
		DisplayID int    `json:"display_id"`
		Title     string `json:"title"`
	} `json:"choices,omitempty"`
}

func (c *Client) Create(ctx context.Context, in store.NewTask) (store.Task, error) {
	var task store.Task
	err := c.do(ctx, http.MethodPost, "/v1/tasks", in, &task)
	return task, err
}

func (c *Client) List(ctx context.Context, opts ListOptions) (Page, error) {
	q := url.Values{}
	if opts.Completed != nil {
		q.Set("completed", strconv.FormatBool(*opts.Completed))
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/v1/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page Page
	err := c.do(ctx, http.MethodGet, path, nil, &page)
	return page, err
}

func (c *Client) Get(ctx context.Context, id string) (store.Task, error) {
	var task store.Task
	err := c.do(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(id), nil, &task)
	return task, err
}

func (c *Client) SetCompleted(ctx context.Context, id string, completed bool) (store.Task, error) {
	var task store.Task
	err := c.do(ctx, http.MethodPatch, "/v1/tasks/"+url.PathEscape(id), map[string]bool{"completed": completed}, &task)
	return task, err
}

func (c *Client) Delete(ctx context.Context, id string) (Deleted, error) {
	var out Deleted
	err := c.do(ctx, http.MethodDelete, "/v1/tasks/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) DeleteAll(ctx context.Context) (Deleted, error) {
	var out Deleted
	err := c.do(ctx, http.MethodDelete, "/v1/tasks?confirm=true", nil, &out)
	return out, err
}

func (c *Client) Restore(ctx context.Context, token string) (Restored, error) {
	var out Restored
	err := c.do(ctx, http.MethodPost, "/v1/undo/restore", map[string]string{"token": token}, &out)
	return out, err
}

func (c *Client) Chat(ctx context.Context, message string) (ChatReply, error) {
	var out ChatReply
	err := c.do(ctx, http.MethodPost, "/v1/chat", map[string]string{"message": message}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
