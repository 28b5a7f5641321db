package summary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatResponse mimics an OpenAI-compatible chat completion answer.
func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "deepseek-chat",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     120,
			"completion_tokens": 45,
			"total_tokens":      165,
		},
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	client, err := NewClient(Config{
		APIKey:        "test-key",
		BaseURL:       baseURL,
		Model:         "deepseek-chat",
		MaxInputChars: 200,
		MaxRetries:    0,
	})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("# 會議摘要 / Meeting Summary\n\n## 待辦事項 / Action Items\n- Ship the release (Owner: Alice)"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Summarize(context.Background(), "discussed release schedule", "en")
	require.NoError(t, err)

	assert.Contains(t, result.Text, "會議摘要")
	assert.Contains(t, result.Text, "Action Items")
	assert.Equal(t, len("discussed release schedule"), result.SourceTranscriptLength)
	assert.Equal(t, int64(120), result.InputTokens)
	assert.Equal(t, int64(45), result.OutputTokens)

	assert.Equal(t, "deepseek-chat", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "user", gotBody.Messages[1].Role)
	assert.Contains(t, gotBody.Messages[1].Content, "discussed release schedule")
	assert.Contains(t, gotBody.Messages[1].Content, "[Detected language: en]")
}

func TestSummarizeRejectsOversizedTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("oversized transcript must not reach the API")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Summarize(context.Background(), strings.Repeat("a", 201), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInputTooLarge))
}

func TestSummarizeRejectsEmptyTranscript(t *testing.T) {
	client := newTestClient(t, "http://localhost:0")

	_, err := client.Summarize(context.Background(), "", "")
	assert.Error(t, err)
}

func TestSummarizeUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Summarize(context.Background(), "short transcript", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
}

func TestSummarizeEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := chatResponse("")
		resp["choices"] = []map[string]any{}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Summarize(context.Background(), "short transcript", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}
