package line

import (
	"encoding/json"
	"fmt"
)

// Event types and message types carried by webhook payloads.
const (
	EventTypeMessage = "message"

	MessageTypeText  = "text"
	MessageTypeAudio = "audio"
	MessageTypeFile  = "file"
)

// WebhookRequest is the body of a webhook delivery.
type WebhookRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is a single webhook event.
type Event struct {
	Type       string  `json:"type"`
	ReplyToken string  `json:"replyToken"`
	Timestamp  int64   `json:"timestamp"`
	Source     Source  `json:"source"`
	Message    Message `json:"message"`
}

// Source identifies who sent the event.
type Source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// Message is the message payload of a message event. Audio and file messages
// carry only an id; the binary content is fetched separately.
type Message struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Duration int64  `json:"duration,omitempty"` // milliseconds, audio only
	FileName string `json:"fileName,omitempty"` // file messages only
}

// ParseWebhook decodes a webhook request body into typed events.
func ParseWebhook(body []byte) (*WebhookRequest, error) {
	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}

	return &req, nil
}
