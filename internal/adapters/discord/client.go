package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// ErrNotFound is matched by errors.Is for any 404 from the REST API.
var ErrNotFound = errors.New("discord: not found")

// APIError is returned for any non-2xx REST response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord API error: HTTP %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err is a 404 from Discord (deleted message, channel, ...).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Client is a Discord REST API client.
type Client struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Discord client.
func NewClient(botToken string) *Client {
	return NewClientWithBaseURL(botToken, DiscordAPIURL)
}

// NewClientWithBaseURL creates a new Discord client with a custom base URL (for testing).
func NewClientWithBaseURL(botToken, baseURL string) *Client {
	return &Client{
		botToken: botToken,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doRequest sends a JSON request to the Discord API.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	return c.send(ctx, method, endpoint, "application/json", reqBody)
}

func (c *Client) send(ctx context.Context, method, endpoint, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bot "+c.botToken)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "DiscordBot (ghostbot, 1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

func decode[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &v, nil
}

// SendMessage sends a plain text message to a channel.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (*Message, error) {
	return c.CreateMessage(ctx, channelID, &MessageSend{Content: content, AllowedMentions: NoMentions()})
}

// CreateMessage posts a message to a channel.
func (c *Client) CreateMessage(ctx context.Context, channelID string, msg *MessageSend) (*Message, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channelID), msg)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return decode[Message](resp)
}

// CreateMessageWithFiles posts a message with file uploads as multipart/form-data.
func (c *Client) CreateMessageWithFiles(ctx context.Context, channelID string, msg *MessageSend, files []File) (*Message, error) {
	if len(files) == 0 {
		return c.CreateMessage(ctx, channelID, msg)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if err := w.WriteField("payload_json", string(payload)); err != nil {
		return nil, fmt.Errorf("write payload: %w", err)
	}
	for i, f := range files {
		part, err := w.CreateFormFile(fmt.Sprintf("files[%d]", i), f.Name)
		if err != nil {
			return nil, fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, fmt.Errorf("write file %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channelID), w.FormDataContentType(), &buf)
	if err != nil {
		return nil, fmt.Errorf("create message with files: %w", err)
	}
	return decode[Message](resp)
}

// ReplyTo posts msg as a reply to the given message. The reply still goes
// through if the original was deleted in the meantime.
func (c *Client) ReplyTo(ctx context.Context, channelID, messageID string, msg *MessageSend) (*Message, error) {
	msg.MessageReference = &MessageReference{
		MessageID: messageID,
		ChannelID: channelID,
	}
	return c.CreateMessage(ctx, channelID, msg)
}

// EditMessage edits an existing message.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, edit *MessageEdit) (*Message, error) {
	if edit.Components == nil {
		edit.Components = []Component{}
	}
	resp, err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID), edit)
	if err != nil {
		return nil, fmt.Errorf("edit message: %w", err)
	}
	return decode[Message](resp)
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if _, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID), nil); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// CreateDM opens (or returns the existing) DM channel with a user.
func (c *Client) CreateDM(ctx context.Context, userID string) (*Channel, error) {
	payload := struct {
		RecipientID string `json:"recipient_id"`
	}{RecipientID: userID}

	resp, err := c.doRequest(ctx, http.MethodPost, "/users/@me/channels", payload)
	if err != nil {
		return nil, fmt.Errorf("create dm: %w", err)
	}
	return decode[Channel](resp)
}

// SendDirectMessage DMs a user. Users with closed DMs make this fail with HTTP 403.
func (c *Client) SendDirectMessage(ctx context.Context, userID string, msg *MessageSend, files []File) (*Message, error) {
	dm, err := c.CreateDM(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.CreateMessageWithFiles(ctx, dm.ID, msg, files)
}

// CreateInteractionResponse answers an interaction (button click).
func (c *Client) CreateInteractionResponse(ctx context.Context, interactionID, interactionToken string, responseType int, data *InteractionCallbackData) error {
	payload := InteractionResponse{Type: responseType, Data: data}

	_, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/interactions/%s/%s/callback", interactionID, interactionToken), payload)
	if err != nil {
		return fmt.Errorf("create interaction response: %w", err)
	}
	return nil
}

// ListGuildEmojis returns the custom emojis of a guild.
func (c *Client) ListGuildEmojis(ctx context.Context, guildID string) ([]Emoji, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/emojis", guildID), nil)
	if err != nil {
		return nil, fmt.Errorf("list guild emojis: %w", err)
	}
	emojis, err := decode[[]Emoji](resp)
	if err != nil {
		return nil, err
	}
	return *emojis, nil
}

// GetChannel fetches a channel (forums include their available tags).
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/channels/%s", channelID), nil)
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return decode[Channel](resp)
}

// ListActiveThreads returns every unarchived thread in the guild.
func (c *Client) ListActiveThreads(ctx context.Context, guildID string) ([]Channel, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/threads/active", guildID), nil)
	if err != nil {
		return nil, fmt.Errorf("list active threads: %w", err)
	}
	result, err := decode[struct {
		Threads []Channel `json:"threads"`
	}](resp)
	if err != nil {
		return nil, err
	}
	return result.Threads, nil
}

// ArchiveThread archives a thread (forum post).
func (c *Client) ArchiveThread(ctx context.Context, threadID string) error {
	payload := struct {
		Archived bool `json:"archived"`
	}{Archived: true}

	if _, err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/channels/%s", threadID), payload); err != nil {
		return fmt.Errorf("archive thread: %w", err)
	}
	return nil
}

// GetGatewayURL returns the WebSocket gateway URL.
func (c *Client) GetGatewayURL(ctx context.Context) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/gateway", nil)
	if err != nil {
		return "", fmt.Errorf("get gateway: %w", err)
	}

	result, err := decode[struct {
		URL string `json:"url"`
	}](resp)
	if err != nil {
		return "", err
	}
	return result.URL, nil
}
