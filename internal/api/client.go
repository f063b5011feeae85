// Package api is the REST client for the chat-related DevNexus endpoints:
// conversations, message history, read state and notifications.
package api

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

	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

// defaultHTTPTimeout is the per-request timeout used by the client.
const defaultHTTPTimeout = 15 * time.Second

// Client issues authenticated requests against the DevNexus REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a REST client for the given base URL and access token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the access token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("server URL not set")
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// Error is a non-2xx REST response.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Body)
}

// ListConversations fetches the user's conversation summaries.
func (c *Client) ListConversations(ctx context.Context) ([]types.Conversation, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/v1/chat/conversations", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Conversations []types.Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return out.Conversations, nil
}

// GetConversation fetches a single conversation by id.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (types.Conversation, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/v1/chat/conversations/"+url.PathEscape(conversationID), nil)
	if err != nil {
		return types.Conversation{}, err
	}
	var out struct {
		Conversation types.Conversation `json:"conversation"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return types.Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	return out.Conversation, nil
}

// ListMessages fetches one page of a conversation's history. A non-empty
// cursor requests messages older than the cursor; an empty cursor requests
// the most recent page. The returned cursor is empty when no older page
// exists.
func (c *Client) ListMessages(ctx context.Context, conversationID, cursor string, limit int) ([]types.Message, string, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/chat/conversations/" + url.PathEscape(conversationID) + "/messages"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	var out struct {
		Messages   []types.Message `json:"messages"`
		NextCursor string          `json:"nextCursor"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, "", fmt.Errorf("decode messages: %w", err)
	}
	return out.Messages, out.NextCursor, nil
}

// SendMessage persists a message over REST. The realtime engine normally
// sends through the socket so the ack path stays on one connection; this is
// the fallback for callers without a live socket.
func (c *Client) SendMessage(ctx context.Context, conversationID, clientMsgID, text string, attachments []types.Attachment) (types.Message, error) {
	body := map[string]any{
		"clientMsgId": clientMsgID,
		"text":        text,
		"attachments": attachments,
	}
	data, err := c.doRequest(ctx, http.MethodPost, "/v1/chat/conversations/"+url.PathEscape(conversationID)+"/messages", body)
	if err != nil {
		return types.Message{}, err
	}
	var out struct {
		Message types.Message `json:"message"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return types.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return out.Message, nil
}

// MarkRead persists the read state for a conversation.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/v1/chat/conversations/"+url.PathEscape(conversationID)+"/read", nil)
	return err
}

// LeaveConversation removes the user from a conversation.
func (c *Client) LeaveConversation(ctx context.Context, conversationID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/v1/chat/conversations/"+url.PathEscape(conversationID), nil)
	return err
}

// ListNotifications fetches the most recent notifications.
func (c *Client) ListNotifications(ctx context.Context, limit int) ([]types.Notification, error) {
	path := "/v1/notifications"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Notifications []types.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return out.Notifications, nil
}

// MarkNotificationsRead flags the given notification ids as read.
func (c *Client) MarkNotificationsRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/v1/notifications/read", map[string]any{"ids": ids})
	return err
}
