package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"anonchat/pkg/logger"
	"anonchat/pkg/models"
)

// Client implements Source and Feed over the server's HTTP and websocket
// endpoints. It is what remote viewers plug into a Reconciler.
type Client struct {
	// BaseURL is the server root, e.g. "http://localhost:8080".
	BaseURL string
	// Token is the bearer token from /v1/login.
	Token string
	// HTTP is the underlying client; a default with a 15s timeout is used
	// when nil.
	HTTP *http.Client
}

// NewClient builds a client for the given server.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Messages fetches the conversation history, oldest first.
func (c *Client) Messages(ctx context.Context, convID string) ([]models.Message, error) {
	var out []models.Message
	err := c.getJSON(ctx, "/v1/conversations/"+url.PathEscape(convID)+"/messages", &out)
	return out, err
}

// GameSessions fetches the game sessions attached to a conversation.
func (c *Client) GameSessions(ctx context.Context, contextType, contextID string) ([]models.GameSession, error) {
	var out []models.GameSession
	q := url.Values{"context_type": {contextType}, "context_id": {contextID}}
	err := c.getJSON(ctx, "/v1/games?"+q.Encode(), &out)
	return out, err
}

// MessageByID fetches a single message for reply resolution.
func (c *Client) MessageByID(ctx context.Context, id string) (*models.Message, error) {
	var out models.Message
	if err := c.getJSON(ctx, "/v1/messages/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the token's own identity.
func (c *Client) Me(ctx context.Context) (id, username string, err error) {
	var out struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := c.getJSON(ctx, "/v1/me", &out); err != nil {
		return "", "", err
	}
	return out.ID, out.Username, nil
}

// Username resolves a user id to its display name.
func (c *Client) Username(ctx context.Context, userID string) (string, error) {
	var out struct {
		Username string `json:"username"`
	}
	if err := c.getJSON(ctx, "/v1/users/"+url.PathEscape(userID)+"/username", &out); err != nil {
		return "", err
	}
	return out.Username, nil
}

// Subscribe dials the feed websocket for the descriptor's topic and decodes
// events onto the returned channel. The stop function closes the
// connection; the channel is closed when the connection drops.
func (c *Client) Subscribe(ctx context.Context, d Descriptor) (<-chan models.Event, func(), error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/v1/feed"
	q := url.Values{"token": {c.Token}}
	if d.Kind == models.KindDM {
		q.Set("dm", "1")
	} else {
		q.Set("conversation", d.ConversationID)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan models.Event, 64)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var ev models.Event
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("feed_read_closed", "error", err)
				}
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	stop := func() { _ = conn.Close() }
	return out, stop, nil
}

// SendMessage posts a new message. For DMs, recipient is the other user id
// and convID the pair key.
func (c *Client) SendMessage(ctx context.Context, convID string, m models.Message) (string, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	path := "/v1/conversations/" + url.PathEscape(convID) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var ack struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return "", err
	}
	return ack.ID, nil
}

// Login exchanges credentials for a bearer token and stores it on the
// client.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/login", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("login: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	c.Token = out.Token
	return nil
}
