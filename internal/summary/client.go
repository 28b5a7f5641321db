package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ErrInputTooLarge is returned when the transcript exceeds the configured
// input budget. The client fails fast rather than truncating silently or
// sending a request the API would reject.
var ErrInputTooLarge = errors.New("transcript exceeds the summarization input limit")

// ErrUpstreamUnavailable wraps network and service errors from the
// summarization API after its bounded retries are exhausted.
var ErrUpstreamUnavailable = errors.New("summarization service unavailable")

// ErrEmptyResponse is returned when the API answers with no choices.
var ErrEmptyResponse = errors.New("summarization returned an empty response")

// Config contains summarization client configuration.
type Config struct {
	APIKey        string
	BaseURL       string // OpenAI-compatible endpoint, default DeepSeek
	Model         string
	MaxTokens     int
	MaxInputChars int
	Timeout       time.Duration
	MaxRetries    int
}

// Result is the final summary artifact returned to the orchestrator.
type Result struct {
	Text                   string `json:"text"`
	SourceTranscriptLength int    `json:"source_transcript_length"`
	InputTokens            int64  `json:"input_tokens,omitempty"`
	OutputTokens           int64  `json:"output_tokens,omitempty"`
}

// Client generates meeting summaries through a chat completion API.
type Client struct {
	config Config
	api    openaigo.Client
}

const systemPrompt = `You are an expert meeting summarizer. Your task is to analyze meeting transcripts and create well-organized meeting summaries.

Instructions:
1. Analyze the transcript carefully to identify key information
2. Create a structured summary in the SAME LANGUAGE as the transcript
3. If the transcript is in Chinese, respond in Chinese
4. If the transcript is in English, respond in English
5. If the transcript is mixed, use the dominant language
6. Be concise but comprehensive
7. Extract action items even if not explicitly stated as such
8. Identify decisions made during the meeting
9. Note any follow-up items or next steps mentioned`

const promptTemplate = `Please analyze this meeting transcript and create a structured summary.

## Transcript:
%s

## Required Output Format:

# 會議摘要 / Meeting Summary

**日期/Date:** [Extract from transcript or use "Not specified"]
**參與者/Attendees:** [List attendees if mentioned, otherwise "Not explicitly mentioned"]

## 重點討論 / Key Discussion Points
[List the main topics discussed as bullet points]

## 決議事項 / Decisions Made
[List any decisions made during the meeting]

## 待辦事項 / Action Items
[List action items with owners if mentioned, format: - [Action] (Owner: [Name])]

## 後續步驟 / Next Steps
[List any follow-up items or next meeting plans]`

// NewClient creates a summarization client.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.BaseURL == "" {
		config.BaseURL = "https://api.deepseek.com"
	}

	if config.Model == "" {
		config.Model = "deepseek-chat"
	}

	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}

	if config.MaxInputChars <= 0 {
		config.MaxInputChars = 120000
	}

	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 2
	}

	api := openaigo.NewClient(
		option.WithBaseURL(config.BaseURL),
		option.WithAPIKey(config.APIKey),
		option.WithRequestTimeout(config.Timeout),
		option.WithMaxRetries(config.MaxRetries),
	)

	return &Client{config: config, api: api}, nil
}

// Summarize generates a structured meeting summary from a transcript.
// detectedLanguage is an optional hint from transcription and may be empty.
func (c *Client) Summarize(ctx context.Context, transcript, detectedLanguage string) (*Result, error) {
	if transcript == "" {
		return nil, fmt.Errorf("transcript cannot be empty")
	}

	if len(transcript) > c.config.MaxInputChars {
		return nil, fmt.Errorf("transcript is %d chars, limit is %d: %w", len(transcript), c.config.MaxInputChars, ErrInputTooLarge)
	}

	prompt := fmt.Sprintf(promptTemplate, transcript)
	if detectedLanguage != "" {
		prompt = fmt.Sprintf("[Detected language: %s]\n\n%s", detectedLanguage, prompt)
	}

	resp, err := c.api.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model:     openaigo.ChatModel(c.config.Model),
		MaxTokens: openaigo.Int(int64(c.config.MaxTokens)),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(systemPrompt),
			openaigo.UserMessage(prompt),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return &Result{
		Text:                   resp.Choices[0].Message.Content,
		SourceTranscriptLength: len(transcript),
		InputTokens:            resp.Usage.PromptTokens,
		OutputTokens:           resp.Usage.CompletionTokens,
	}, nil
}
