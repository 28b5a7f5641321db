package line

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultMaxMessageChars keeps pushed messages under the platform's 5000
// character limit with headroom for part markers.
const DefaultMaxMessageChars = 4500

// Config contains messaging platform client configuration.
type Config struct {
	ChannelSecret      string
	ChannelAccessToken string
	APIEndpoint        string // default https://api.line.me
	BlobEndpoint       string // default https://api-data.line.me
	Timeout            time.Duration
	MaxMessageChars    int
}

// Client talks to the messaging platform's reply, push and content APIs.
type Client struct {
	config     Config
	httpClient *http.Client
}

// textMessage is the wire format of an outgoing text message.
type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// NewClient creates a messaging platform client.
func NewClient(config Config) (*Client, error) {
	if config.ChannelSecret == "" {
		return nil, fmt.Errorf("channel secret cannot be empty")
	}

	if config.ChannelAccessToken == "" {
		return nil, fmt.Errorf("channel access token cannot be empty")
	}

	if config.APIEndpoint == "" {
		config.APIEndpoint = "https://api.line.me"
	}

	if config.BlobEndpoint == "" {
		config.BlobEndpoint = "https://api-data.line.me"
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxMessageChars <= 0 {
		config.MaxMessageChars = DefaultMaxMessageChars
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// ValidateSignature reports whether signature is a valid HMAC-SHA256 of body
// under the channel secret. The comparison is constant-time.
func (c *Client) ValidateSignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.config.ChannelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// ReplyText sends a single text reply using a webhook reply token. Reply
// tokens are single-use and short-lived, so no splitting is attempted here.
func (c *Client) ReplyText(ctx context.Context, replyToken, text string) error {
	req := replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: text}},
	}

	return c.post(ctx, c.config.APIEndpoint+"/v2/bot/message/reply", req)
}

// PushText sends text to a user via the push API. Text longer than the
// platform limit is split into ordered parts and pushed sequentially so the
// reading order is preserved.
func (c *Client) PushText(ctx context.Context, to, text string) error {
	for _, part := range SplitMessage(text, c.config.MaxMessageChars) {
		req := pushRequest{
			To:       to,
			Messages: []textMessage{{Type: "text", Text: part}},
		}

		if err := c.post(ctx, c.config.APIEndpoint+"/v2/bot/message/push", req); err != nil {
			return err
		}
	}

	return nil
}

// GetMessageContent downloads the binary content of a message (voice
// recordings, uploaded files) from the platform's content endpoint.
func (c *Client) GetMessageContent(ctx context.Context, messageID string) ([]byte, error) {
	url := fmt.Sprintf("%s/v2/bot/message/%s/content", c.config.BlobEndpoint, messageID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.ChannelAccessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("content download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("content download HTTP error %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read content body: %w", err)
	}

	return data, nil
}

// post sends a JSON request to the messaging API.
func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.ChannelAccessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("messaging API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("messaging API HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// SplitMessage splits text into parts of at most maxChars, cutting at line
// boundaries where possible. When more than one part is produced, each part
// is prefixed with a "Part i/n" marker so recipients can follow the order.
func SplitMessage(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxMessageChars
	}

	if len(text) <= maxChars {
		return []string{text}
	}

	var parts []string
	var current strings.Builder

	for _, line := range strings.Split(text, "\n") {
		// Lines longer than the limit are hard-cut, backed up to a rune
		// boundary so a multi-byte character is never split across parts.
		for len(line) > maxChars {
			if current.Len() > 0 {
				parts = append(parts, strings.TrimRight(current.String(), "\n"))
				current.Reset()
			}

			cut := maxChars
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxChars
			}

			parts = append(parts, line[:cut])
			line = line[cut:]
		}

		if current.Len()+len(line)+1 > maxChars {
			parts = append(parts, strings.TrimRight(current.String(), "\n"))
			current.Reset()
		}

		current.WriteString(line)
		current.WriteString("\n")
	}

	if strings.TrimSpace(current.String()) != "" {
		parts = append(parts, strings.TrimRight(current.String(), "\n"))
	}

	if len(parts) > 1 {
		for i, part := range parts {
			parts[i] = fmt.Sprintf("📄 Part %d/%d\n\n%s", i+1, len(parts), part)
		}
	}

	return parts
}
