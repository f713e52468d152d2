// Package client is the Go side of a chat user: a typed API client, a push
// subscriber, and a View that keeps the four relationship buckets in sync.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat_server/models"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Describe returns a short message suitable for showing to the user.
func Describe(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "Request timed out, try again"
		}
		return "Could not reach the server"
	}
	if apiErr.Message != "" && apiErr.Status < http.StatusInternalServerError {
		return apiErr.Message
	}
	switch apiErr.Status {
	case http.StatusUnauthorized:
		return "Please log in again"
	case http.StatusForbidden:
		return "You are not allowed to do that"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusBadRequest:
		return "Invalid request"
	}
	return "Something went wrong, try again"
}

// APIClient calls the chat server HTTP API as one user.
type APIClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var payload struct {
			Message string `json:"message"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &payload) != nil {
			payload.Message = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *APIClient) Users(ctx context.Context) ([]models.PublicUser, error) {
	var out []models.PublicUser
	return out, c.do(ctx, http.MethodGet, "/api/users", nil, &out)
}

func (c *APIClient) OnlineUsers(ctx context.Context) ([]string, error) {
	var out []string
	return out, c.do(ctx, http.MethodGet, "/api/users/online", nil, &out)
}

func (c *APIClient) Pending(ctx context.Context) ([]models.ChatRequestView, error) {
	var out []models.ChatRequestView
	return out, c.do(ctx, http.MethodGet, "/api/chat-requests/pending", nil, &out)
}

func (c *APIClient) Accepted(ctx context.Context) ([]models.PublicUser, error) {
	var out []models.PublicUser
	return out, c.do(ctx, http.MethodGet, "/api/chat-requests/accepted", nil, &out)
}

func (c *APIClient) SendRequest(ctx context.Context, receiverID string) (*models.ChatRequest, error) {
	var out models.ChatRequest
	if err := c.do(ctx, http.MethodPost, "/api/chat-requests/send/"+url.PathEscape(receiverID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) AcceptRequest(ctx context.Context, requestID string) (*models.ChatRequest, error) {
	var out models.ChatRequest
	if err := c.do(ctx, http.MethodPut, "/api/chat-requests/accept/"+url.PathEscape(requestID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) RejectRequest(ctx context.Context, requestID string) (*models.ChatRequest, error) {
	var out models.ChatRequest
	if err := c.do(ctx, http.MethodPut, "/api/chat-requests/reject/"+url.PathEscape(requestID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Messages(ctx context.Context, userID string) ([]models.Message, error) {
	var out []models.Message
	return out, c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(userID), nil, &out)
}

func (c *APIClient) SendMessage(ctx context.Context, userID, text string) (*models.Message, error) {
	var out models.Message
	body := map[string]string{"text": text}
	if err := c.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(userID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
