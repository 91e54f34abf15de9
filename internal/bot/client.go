// pattern: Imperative Shell

// Package bot talks to the ChatGPT web conversation backend.
package bot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatgptnvim/internal/config"
	"chatgptnvim/internal/logging"
)

const (
	// DefaultBaseURL is the ChatGPT web origin.
	DefaultBaseURL = "https://chat.openai.com"

	// DefaultModel is the model name the web backend expects.
	DefaultModel = "text-davinci-002-render"

	sessionCookie = "__Secure-next-auth.session-token"
	userAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 10 * 1024 * 1024

	// maxEventSize caps a single event-stream line.
	maxEventSize = 1024 * 1024
)

// Options configure a Client.
type Options struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration // 0 means no client-side timeout
	HTTPClient *http.Client  // optional, mainly for tests
}

// Client holds one conversation with the backend. It is not safe for
// concurrent use.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *logging.ScopedLogger

	accessToken    string
	sessionToken   string
	conversationID string
	parentID       string
}

// NewClient creates a client from credentials. It fails with
// ErrNotConfigured when both credentials are empty.
func NewClient(creds config.Credentials, opts Options, logger *logging.ScopedLogger) (*Client, error) {
	if creds.Empty() {
		return nil, &BackendError{Op: "configure", Err: ErrNotConfigured}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		baseURL:      baseURL,
		model:        model,
		httpClient:   httpClient,
		logger:       logger,
		accessToken:  strings.TrimPrefix(strings.TrimSpace(creds.Authorization), "Bearer "),
		sessionToken: strings.TrimSpace(creds.SessionToken),
	}
	c.Reset()
	return c, nil
}

// Reset starts a new conversation.
func (c *Client) Reset() {
	c.conversationID = ""
	c.parentID = uuid.NewString()
}

// ConversationID returns the current conversation, empty before the first reply.
func (c *Client) ConversationID() string {
	return c.conversationID
}

// Refresh exchanges the session token for a fresh access token. It is a
// no-op when only an authorization token is configured.
func (c *Client) Refresh(ctx context.Context) error {
	if c.sessionToken == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/session", nil)
	if err != nil {
		return &BackendError{Op: "refresh", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.sessionToken})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &BackendError{Op: "refresh", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &BackendError{Op: "refresh", Status: resp.StatusCode, Err: errors.New(readErrorBody(resp.Body))}
	}

	var session struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&session); err != nil {
		return &BackendError{Op: "refresh", Err: fmt.Errorf("decode session: %w", err)}
	}
	if session.AccessToken == "" {
		return &BackendError{Op: "refresh", Err: errors.New("session response has no accessToken")}
	}
	c.accessToken = session.AccessToken

	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookie && cookie.Value != "" && cookie.Value != c.sessionToken {
			c.sessionToken = cookie.Value
			c.logger.Debug("session token rotated")
		}
	}

	c.logger.Debug("session refreshed")
	return nil
}

type messageContent struct {
	ContentType string   `json:"content_type"`
	Parts       []string `json:"parts"`
}

type conversationMessage struct {
	ID      string         `json:"id"`
	Role    string         `json:"role"`
	Content messageContent `json:"content"`
}

type conversationRequest struct {
	Action          string                `json:"action"`
	Messages        []conversationMessage `json:"messages"`
	ConversationID  *string               `json:"conversation_id"`
	ParentMessageID string                `json:"parent_message_id"`
	Model           string                `json:"model"`
}

type conversationEvent struct {
	Message *struct {
		ID      string         `json:"id"`
		Content messageContent `json:"content"`
	} `json:"message"`
	ConversationID string `json:"conversation_id"`
	Error          any    `json:"error"`
}

// Query sends one prompt and returns the full reply text.
func (c *Client) Query(ctx context.Context, prompt string) (string, error) {
	if c.accessToken == "" {
		return "", &BackendError{Op: "query", Err: errors.New("no access token; refresh failed or authorization is empty")}
	}

	body := conversationRequest{
		Action: "next",
		Messages: []conversationMessage{{
			ID:      uuid.NewString(),
			Role:    "user",
			Content: messageContent{ContentType: "text", Parts: []string{prompt}},
		}},
		ParentMessageID: c.parentID,
		Model:           c.model,
	}
	if c.conversationID != "" {
		id := c.conversationID
		body.ConversationID = &id
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &BackendError{Op: "query", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/backend-api/conversation", bytes.NewReader(payload))
	if err != nil {
		return "", &BackendError{Op: "query", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &BackendError{Op: "query", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &BackendError{Op: "query", Status: resp.StatusCode, Err: errors.New(readErrorBody(resp.Body))}
	}

	event, err := lastMessageEvent(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &BackendError{Op: "query", Err: err}
	}

	c.parentID = event.Message.ID
	if event.ConversationID != "" {
		c.conversationID = event.ConversationID
	}

	c.logger.Debug("query answered",
		"conversation_id", c.conversationID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return event.Message.Content.Parts[0], nil
}

// lastMessageEvent scans an event stream and returns the last event that
// carries message text. Each event repeats the full text so far.
func lastMessageEvent(r io.Reader) (conversationEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var last conversationEvent
	found := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}

		var ev conversationEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		if ev.Error != nil && ev.Message == nil {
			return conversationEvent{}, fmt.Errorf("backend error event: %v", ev.Error)
		}
		if ev.Message == nil || len(ev.Message.Content.Parts) == 0 {
			continue
		}
		last = ev
		found = true
	}
	if err := scanner.Err(); err != nil {
		return conversationEvent{}, fmt.Errorf("read event stream: %w", err)
	}
	if !found {
		return conversationEvent{}, errors.New("response contained no message")
	}
	return last, nil
}

// readErrorBody returns a short description of a failed response.
func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var apiErr struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Detail != nil {
		return fmt.Sprint(apiErr.Detail)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "empty response body"
	}
	return text
}
