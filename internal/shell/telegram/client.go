// Package telegram sends group notifications through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the interface for sending notifications to the group chat.
type Client interface {
	// SendMessage sends an HTML-formatted text message and returns the
	// Telegram message ID.
	SendMessage(ctx context.Context, text string) (int64, error)

	// SendPhotoURL downloads the photo at the given URL and re-sends it as
	// an upload with the caption attached. Telegram cannot fetch Drive
	// download links itself, so the bytes go through us.
	SendPhotoURL(ctx context.Context, photoURL, caption string) (int64, error)
}

// =============================================================================
// Bot Client Implementation
// =============================================================================

// BotClient implements Client against the Telegram Bot API.
type BotClient struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
}

// BotConfig holds configuration for the Telegram bot client.
type BotConfig struct {
	// BaseURL overrides the Telegram API endpoint. Used in tests.
	BaseURL string
	Token   string
	ChatID  string
	Timeout time.Duration
}

// NewBotClient creates a new Telegram bot client.
func NewBotClient(cfg BotConfig) *BotClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &BotClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// apiResponse is the envelope Telegram wraps every method result in.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// SendMessage sends an HTML text message to the configured chat.
func (c *BotClient) SendMessage(ctx context.Context, text string) (int64, error) {
	payload := map[string]any{
		"chat_id":    c.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal sendMessage request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// SendPhotoURL downloads the photo and uploads it with the caption. Callers
// fall back to SendMessage with a plain link when this fails.
func (c *BotClient) SendPhotoURL(ctx context.Context, photoURL, caption string) (int64, error) {
	photo, err := c.download(ctx, photoURL)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("chat_id", c.chatID); err != nil {
		return 0, fmt.Errorf("failed to build sendPhoto request: %w", err)
	}
	if err := w.WriteField("caption", caption); err != nil {
		return 0, fmt.Errorf("failed to build sendPhoto request: %w", err)
	}
	if err := w.WriteField("parse_mode", "HTML"); err != nil {
		return 0, fmt.Errorf("failed to build sendPhoto request: %w", err)
	}

	part, err := w.CreateFormFile("photo", photoFileName(photoURL))
	if err != nil {
		return 0, fmt.Errorf("failed to build sendPhoto request: %w", err)
	}
	if _, err := part.Write(photo); err != nil {
		return 0, fmt.Errorf("failed to build sendPhoto request: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to build sendPhoto request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendPhoto", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return 0, fmt.Errorf("failed to create sendPhoto request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(req)
}

func (c *BotClient) do(req *http.Request) (int64, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return 0, fmt.Errorf("failed to decode telegram response: %w", err)
	}

	if resp.StatusCode >= 400 || !api.OK {
		return 0, fmt.Errorf("telegram returned error %d: %s", resp.StatusCode, api.Description)
	}

	return api.Result.MessageID, nil
}

func (c *BotClient) download(ctx context.Context, photoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create photo download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("photo download returned error %d", resp.StatusCode)
	}

	// Drive direct links serve full-resolution images; cap reads at 20MB,
	// Telegram's photo upload limit.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}

	return data, nil
}

func photoFileName(photoURL string) string {
	u, err := url.Parse(photoURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "photo.jpg"
	}
	segments := u.Query().Get("id")
	if segments != "" {
		return segments + ".jpg"
	}
	return "photo.jpg"
}

// =============================================================================
// No-Op Client (for development/testing)
// =============================================================================

// NoOpClient is a telegram client that does nothing (for development mode).
type NoOpClient struct{}

// NewNoOpClient creates a no-op telegram client.
func NewNoOpClient() *NoOpClient {
	return &NoOpClient{}
}

// SendMessage does nothing.
func (c *NoOpClient) SendMessage(ctx context.Context, text string) (int64, error) {
	return 0, nil
}

// SendPhotoURL does nothing.
func (c *NoOpClient) SendPhotoURL(ctx context.Context, photoURL, caption string) (int64, error) {
	return 0, nil
}
