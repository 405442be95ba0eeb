// Package client talks to the status board server over HTTP and websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/glebk/status-board/internal/domain"
	"github.com/glebk/status-board/internal/feed"
	ws "github.com/glebk/status-board/internal/websocket"
)

const DefaultTimeout = 15 * time.Second

// Client wraps the board's HTTP API
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		Dialer: websocket.DefaultDialer,
	}
}

type apiError struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// Register creates the session's row if missing
func (c *Client) Register(ctx context.Context, session domain.Session) error {
	return c.post(ctx, "/api/register", map[string]string{
		"display_name": session.Name,
		"password":     session.Password,
	})
}

// UpdateStatus sets the session's status
func (c *Client) UpdateStatus(ctx context.Context, session domain.Session, status domain.Status) error {
	return c.post(ctx, "/api/update-status", map[string]string{
		"display_name": session.Name,
		"password":     session.Password,
		"status":       string(status),
	})
}

// ClearAll wipes the board. The session must be the admin's.
func (c *Client) ClearAll(ctx context.Context, session domain.Session) error {
	return c.post(ctx, "/api/clear-all", map[string]string{
		"display_name": session.Name,
		"password":     session.Password,
	})
}

// List fetches the full board, most recently updated first
func (c *Client) List(ctx context.Context) ([]*domain.StatusRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var out struct {
		People []*domain.StatusRecord `json:"people"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode board: %w", domain.ErrNetwork, err)
	}
	return out.People, nil
}

// Subscribe opens the websocket change feed. handler runs on the reader
// goroutine for every frame. If the socket drops before unsubscribe is called,
// onDrop (which may be nil) receives the read error wrapped in domain.ErrNetwork.
func (c *Client) Subscribe(ctx context.Context, table string, handler feed.Handler, onDrop func(error)) (func(), error) {
	wsURL, err := c.changesURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := c.Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open change feed: %w", domain.ErrNetwork, err)
	}

	var closed atomic.Bool
	go func() {
		for {
			var msg ws.Message
			if err := conn.ReadJSON(&msg); err != nil {
				if !closed.Load() && onDrop != nil {
					onDrop(fmt.Errorf("%w: change feed closed: %w", domain.ErrNetwork, err))
				}
				return
			}
			if msg.Type != ws.MessageTypeChange {
				continue
			}
			if table != "" && msg.Table != table {
				continue
			}
			handler(feed.Event{ID: msg.ID, Table: msg.Table, Kind: msg.Kind, At: msg.At})
		}
	}()

	return func() {
		if closed.Swap(true) {
			return
		}
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}, nil
}

func (c *Client) changesURL() (string, error) {
	u, err := url.Parse(c.BaseURL + "/api/changes")
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// decodeError turns an error response into the matching domain error
func decodeError(resp *http.Response) error {
	var body apiError
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Error == "" {
		body.Error = resp.Status
	}

	var kind error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		kind = domain.ErrValidation
	case http.StatusUnauthorized:
		kind = domain.ErrUnauthorized
	case http.StatusInternalServerError:
		kind = domain.ErrStore
	default:
		kind = domain.ErrNetwork
	}
	return fmt.Errorf("%w: %s", kind, body.Error)
}
