package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/THRAUR/line-speech-to-text/internal/audio"
	"github.com/THRAUR/line-speech-to-text/internal/auth"
	"github.com/THRAUR/line-speech-to-text/internal/line"
	"github.com/THRAUR/line-speech-to-text/internal/metrics"
	"github.com/THRAUR/line-speech-to-text/internal/session"
	"github.com/THRAUR/line-speech-to-text/internal/summary"
	"github.com/THRAUR/line-speech-to-text/internal/transcription"
)

// audioExtensions are the uploaded file types accepted for transcription.
var audioExtensions = []string{".m4a", ".mp3", ".wav", ".ogg", ".flac", ".mp4", ".mpeg", ".mpga", ".webm"}

// Messenger is the outbound messaging surface the handler needs.
type Messenger interface {
	ReplyText(ctx context.Context, replyToken, text string) error
	PushText(ctx context.Context, to, text string) error
	GetMessageContent(ctx context.Context, messageID string) ([]byte, error)
}

// AudioConverter normalizes a downloaded recording into mono PCM WAV. Voice
// messages arrive as M4A and uploads in arbitrary containers, so every
// recording passes through conversion before chunking.
type AudioConverter interface {
	ToWAV(ctx context.Context, data []byte) ([]byte, error)
}

// Transcriber turns audio chunks into an ordered transcript.
type Transcriber interface {
	TranscribeAll(ctx context.Context, chunks []audio.Chunk) (*transcription.Transcript, error)
}

// Summarizer turns a full transcript into a structured summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcript, detectedLanguage string) (*summary.Result, error)
}

// Config contains orchestrator configuration.
type Config struct {
	// MaxRecordingBytes bounds the size of a downloaded recording; larger
	// downloads are refused before chunking. Zero means no limit.
	MaxRecordingBytes int

	// PipelineTimeout bounds one background transcription+summary run.
	PipelineTimeout time.Duration
}

// Handler orchestrates webhook events. Text messages drive authentication;
// audio and file messages drive the transcription pipeline. The pipeline
// runs in a background goroutine so the webhook acknowledgment stays inside
// the platform's response-time budget.
type Handler struct {
	config      Config
	logger      *slog.Logger
	sessions    *session.Store
	validator   *auth.Validator
	messenger   Messenger
	converter   AudioConverter
	chunker     *audio.Chunker
	transcriber Transcriber
	summarizer  Summarizer
	metrics     *metrics.Metrics

	now func() time.Time

	wg sync.WaitGroup
}

// New creates the orchestrator. A nil clock defaults to time.Now.
func New(config Config, logger *slog.Logger, sessions *session.Store, validator *auth.Validator,
	messenger Messenger, converter AudioConverter, chunker *audio.Chunker,
	transcriber Transcriber, summarizer Summarizer,
	m *metrics.Metrics, clock func() time.Time) *Handler {

	if config.PipelineTimeout <= 0 {
		config.PipelineTimeout = 15 * time.Minute
	}

	if clock == nil {
		clock = time.Now
	}

	return &Handler{
		config:      config,
		logger:      logger,
		sessions:    sessions,
		validator:   validator,
		messenger:   messenger,
		converter:   converter,
		chunker:     chunker,
		transcriber: transcriber,
		summarizer:  summarizer,
		metrics:     m,
		now:         clock,
	}
}

// HandleEvent dispatches a single webhook event. It returns quickly; audio
// processing continues in the background after the reply is sent.
func (h *Handler) HandleEvent(ctx context.Context, event line.Event) {
	if event.Type != line.EventTypeMessage || event.Source.UserID == "" {
		return
	}

	h.metrics.RecordWebhookEvent(event.Message.Type)

	switch event.Message.Type {
	case line.MessageTypeText:
		h.handleText(ctx, event)
	case line.MessageTypeAudio:
		h.handleAudio(ctx, event)
	case line.MessageTypeFile:
		h.handleFile(ctx, event)
	}
}

// Wait blocks until all in-flight background pipelines finish. Used during
// graceful shutdown.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// handleText performs password authentication.
func (h *Handler) handleText(ctx context.Context, event line.Event) {
	userID := event.Source.UserID
	now := h.now()

	if sess, ok := h.sessions.Get(userID, now); ok {
		h.reply(ctx, event.ReplyToken, alreadyAuthenticatedMessage(sess.ExpiresAt))
		return
	}

	candidate := strings.TrimSpace(event.Message.Text)
	_, err := h.sessions.Authenticate(userID, candidate, now)
	success := err == nil

	h.metrics.RecordAuthAttempt(success)
	h.metrics.SetActiveSessions(h.sessions.ActiveCount(now))

	if !success {
		h.logger.Info("Authentication failed", slog.String("user_id", userID))
		h.reply(ctx, event.ReplyToken, incorrectPasswordMessage())
		return
	}

	h.logger.Info("User authenticated", slog.String("user_id", userID))
	h.reply(ctx, event.ReplyToken, welcomeMessage())
}

// handleAudio starts the transcription pipeline for a voice message.
func (h *Handler) handleAudio(ctx context.Context, event line.Event) {
	if !h.requireAuth(ctx, event) {
		return
	}

	h.reply(ctx, event.ReplyToken, processingMessage())
	h.startPipeline(event.Source.UserID, event.Message.ID)
}

// handleFile accepts uploaded audio files as an alternative to recorded
// voice messages.
func (h *Handler) handleFile(ctx context.Context, event line.Event) {
	if !h.requireAuth(ctx, event) {
		return
	}

	fileName := strings.ToLower(event.Message.FileName)
	supported := false
	for _, ext := range audioExtensions {
		if strings.HasSuffix(fileName, ext) {
			supported = true
			break
		}
	}

	if !supported {
		h.reply(ctx, event.ReplyToken, unsupportedFileMessage(event.Message.FileName))
		return
	}

	h.reply(ctx, event.ReplyToken, fileReceivedMessage(event.Message.FileName))
	h.startPipeline(event.Source.UserID, event.Message.ID)
}

// requireAuth checks the session and prompts for the password if absent.
func (h *Handler) requireAuth(ctx context.Context, event line.Event) bool {
	if h.sessions.IsAuthenticated(event.Source.UserID, h.now()) {
		return true
	}

	h.reply(ctx, event.ReplyToken, passwordPromptMessage(h.validator.Hint()))
	return false
}

// startPipeline runs processAudio in the background so the webhook
// acknowledgment is not delayed by upstream API calls.
func (h *Handler) startPipeline(userID, messageID string) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), h.config.PipelineTimeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("Pipeline panic",
					slog.String("user_id", userID),
					slog.Any("panic", r),
				)
				h.push(ctx, userID, generalErrorMessage())
			}
		}()

		h.processAudio(ctx, userID, messageID)
	}()
}

// processAudio is the full pipeline for one recording: download, convert to
// WAV, chunk, transcribe all chunks, summarize, push the formatted document. Every
// failure is translated into a plain-language push message; a failure in one
// user's pipeline never affects other users.
func (h *Handler) processAudio(ctx context.Context, userID, messageID string) {
	logger := h.logger.With(slog.String("user_id", userID), slog.String("message_id", messageID))
	logger.Info("Starting audio processing")

	data, err := h.messenger.GetMessageContent(ctx, messageID)
	if err != nil {
		logger.Error("Content download failed", slog.String("error", err.Error()))
		h.push(ctx, userID, downloadErrorMessage())
		return
	}
	logger.Info("Downloaded audio", slog.Int("bytes", len(data)))

	if h.config.MaxRecordingBytes > 0 && len(data) > h.config.MaxRecordingBytes {
		logger.Warn("Recording exceeds size limit",
			slog.Int("bytes", len(data)),
			slog.Int("limit", h.config.MaxRecordingBytes),
		)
		h.push(ctx, userID, chunkingErrorMessage())
		return
	}

	wav, err := h.converter.ToWAV(ctx, data)
	if err != nil {
		logger.Error("Audio conversion failed", slog.String("error", err.Error()))
		h.push(ctx, userID, chunkingErrorMessage())
		return
	}

	chunks, err := h.chunker.Chunk(wav)
	if err != nil {
		logger.Error("Chunking failed", slog.String("error", err.Error()))
		h.push(ctx, userID, chunkingErrorMessage())
		return
	}

	durations := make([]float64, len(chunks))
	totalDuration := float64(0)
	for i, chunk := range chunks {
		durations[i] = chunk.Duration
		totalDuration += chunk.Duration
	}
	h.metrics.RecordRecording(len(data), durations)
	logger.Info("Audio chunked",
		slog.Int("chunks", len(chunks)),
		slog.Float64("duration_seconds", totalDuration),
	)

	transcribeStart := time.Now()
	transcript, err := h.transcriber.TranscribeAll(ctx, chunks)
	h.metrics.RecordTranscription(err == nil, time.Since(transcribeStart).Seconds())
	if err != nil {
		logger.Error("Transcription failed", slog.String("error", err.Error()))

		var partial *transcription.PartialFailureError
		if errors.As(err, &partial) {
			h.push(ctx, userID, partialTranscriptionMessage(partial.FailedIndices, len(chunks)))
		} else {
			h.push(ctx, userID, transcriptionErrorMessage())
		}
		return
	}

	text := strings.TrimSpace(transcript.Text())
	if text == "" {
		logger.Info("No speech detected")
		h.push(ctx, userID, noSpeechMessage())
		return
	}
	logger.Info("Transcription complete",
		slog.Int("chars", len(text)),
		slog.String("language", transcript.Language),
	)

	summarizeStart := time.Now()
	result, err := h.summarizer.Summarize(ctx, text, transcript.Language)
	h.metrics.RecordSummary(err == nil, time.Since(summarizeStart).Seconds())
	if err != nil {
		logger.Error("Summarization failed", slog.String("error", err.Error()))

		// The transcript is still worth delivering when only the summary
		// step failed.
		if errors.Is(err, summary.ErrInputTooLarge) {
			h.push(ctx, userID, transcriptTooLargeMessage(text))
		} else {
			h.push(ctx, userID, summaryFallbackMessage(text))
		}
		return
	}

	duration := transcript.Duration
	if duration == 0 {
		duration = totalDuration
	}

	h.push(ctx, userID, formatDocument(result.Text, duration, h.now()))
	logger.Info("Audio processed successfully",
		slog.Int("summary_chars", len(result.Text)),
		slog.Int("transcript_chars", result.SourceTranscriptLength),
	)
}

func (h *Handler) reply(ctx context.Context, replyToken, text string) {
	if err := h.messenger.ReplyText(ctx, replyToken, text); err != nil {
		h.logger.Error("Reply failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) push(ctx context.Context, userID, text string) {
	if err := h.messenger.PushText(ctx, userID, text); err != nil {
		h.logger.Error("Push failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
