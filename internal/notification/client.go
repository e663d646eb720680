package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/internal/httpclient"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

type tokenKey struct{}

// WithToken attaches the caller's bearer token, which Client forwards.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// Client passes inbox calls through to a remote notification API.
type Client struct {
	origin string
	exec   *httpclient.Executor
}

// NewClient returns a pass-through client for the API at origin.
func NewClient(origin string, exec *httpclient.Executor) *Client {
	return &Client{origin: strings.TrimRight(origin, "/"), exec: exec}
}

// ErrorFromStatus maps remote 4xx responses onto the portal error kinds.
func ErrorFromStatus(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = payload.Error
	}
	switch status {
	case http.StatusNotFound:
		if msg == "" {
			msg = "notification not found"
		}
		return apperr.NotFound("%s", msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "invalid notification request"
		}
		return apperr.InvalidInput("%s", msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.Unauthorized("notification api rejected the session")
	}
	return fmt.Errorf("notification api returned %d", status)
}

func (c *Client) do(ctx context.Context, method, path, userID string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.origin+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := tokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("X-User-Id", userID)
	return c.exec.DoJSON(ctx, req, userID, out)
}

func (c *Client) List(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	path := "/api/notifications"
	if unreadOnly {
		path += "?" + url.Values{"unread": {"true"}}.Encode()
	}
	var resp struct {
		Data []model.Notification `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, userID, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = []model.Notification{}
	}
	return resp.Data, nil
}

func (c *Client) MarkRead(ctx context.Context, userID, notificationID string) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(notificationID)+"/read", userID, nil, nil)
}

func (c *Client) MarkAllRead(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/read-all", userID, nil, nil)
}

type preferencesEnvelope struct {
	Preferences *model.NotificationPreferences `json:"preferences"`
}

func (c *Client) GetPreferences(ctx context.Context, userID string) (model.NotificationPreferences, error) {
	var resp preferencesEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/notifications/preferences", userID, nil, &resp); err != nil {
		return model.NotificationPreferences{}, err
	}
	if resp.Preferences == nil {
		return model.DefaultNotificationPreferences(), nil
	}
	return *resp.Preferences, nil
}

func (c *Client) UpdatePreferences(ctx context.Context, userID string, prefs model.NotificationPreferences) (model.NotificationPreferences, error) {
	var resp preferencesEnvelope
	if err := c.do(ctx, http.MethodPut, "/api/notifications/preferences", userID, prefs, &resp); err != nil {
		return model.NotificationPreferences{}, err
	}
	if resp.Preferences == nil {
		return prefs, nil
	}
	return *resp.Preferences, nil
}
