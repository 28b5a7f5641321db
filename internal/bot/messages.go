package bot

import (
	"fmt"
	"strings"
	"time"
)

// Canned user-facing messages. All pipeline failures reach the user as one
// of these; raw transport errors never do.

func welcomeMessage() string {
	return "✅ Welcome to Meeting Summary Bot!\n\n" +
		"📝 How to use:\n" +
		"1. Send a voice message with your meeting recording\n" +
		"2. Wait for the transcription and summary\n" +
		"3. Receive a formatted meeting document\n\n" +
		"🌐 Supported languages: Chinese (中文) & English\n\n" +
		"Ready when you are! 🎤"
}

func alreadyAuthenticatedMessage(expiresAt time.Time) string {
	return fmt.Sprintf("You're already authenticated until %s! Send me a voice message to transcribe.",
		expiresAt.Format("15:04"))
}

func incorrectPasswordMessage() string {
	return "❌ Incorrect password. Please try again."
}

func passwordPromptMessage(hint string) string {
	return "🔐 Please enter today's password to use this bot.\n\n" +
		"Format: " + hint + "\n" +
		"Example: meeting0203 (for Feb 3rd)"
}

func processingMessage() string {
	return "🎤 Voice message received!\n\n" +
		"⏳ Processing your audio...\n" +
		"• Transcribing speech\n" +
		"• Generating summary\n\n" +
		"This may take a moment for longer recordings."
}

func fileReceivedMessage(fileName string) string {
	return fmt.Sprintf("📁 File received: %s\n\n%s", fileName, processingMessage())
}

func unsupportedFileMessage(fileName string) string {
	return fmt.Sprintf("⚠️ Please send an audio file.\n\n"+
		"Supported formats: M4A, MP3, WAV, OGG, FLAC\n\n"+
		"Received: %s", fileName)
}

func noSpeechMessage() string {
	return "⚠️ No speech detected in the audio. Please try again with a clearer recording."
}

func downloadErrorMessage() string {
	return "❌ Download Error\n\n" +
		"Sorry, I couldn't download your voice message. " +
		"Please try sending it again."
}

func chunkingErrorMessage() string {
	return "❌ Audio Error\n\n" +
		"Sorry, I couldn't process your voice message. " +
		"This might happen if:\n" +
		"• The audio quality is too low\n" +
		"• The file is corrupted\n" +
		"• The audio is too short or silent\n\n" +
		"Please try recording again."
}

func transcriptionErrorMessage() string {
	return "❌ Transcription Error\n\n" +
		"Sorry, I couldn't transcribe your voice message. " +
		"Please try recording again."
}

func partialTranscriptionMessage(failedIndices []int, total int) string {
	parts := make([]string, len(failedIndices))
	for i, idx := range failedIndices {
		parts[i] = fmt.Sprintf("%d", idx+1)
	}

	return fmt.Sprintf("❌ Transcription Error\n\n"+
		"Segment(s) %s of %d could not be transcribed, so no summary was "+
		"generated. Please try sending the recording again.",
		strings.Join(parts, ", "), total)
}

func summaryFallbackMessage(transcript string) string {
	return "⚠️ Summary generation failed, but here's the transcript:\n\n" + transcript
}

func transcriptTooLargeMessage(transcript string) string {
	return "⚠️ The transcript is too long to summarize, so here it is in full:\n\n" + transcript
}

func generalErrorMessage() string {
	return "❌ Error\n\n" +
		"An unexpected error occurred. " +
		"Please try again in a moment."
}

// formatDocument adds the summary header with timestamp and duration.
func formatDocument(summary string, durationSeconds float64, now time.Time) string {
	header := fmt.Sprintf("📋 Meeting Summary\n📅 %s\n", now.Format("2006-01-02 15:04"))

	if durationSeconds > 0 {
		minutes := int(durationSeconds) / 60
		seconds := int(durationSeconds) % 60
		header += fmt.Sprintf("⏱️ Duration: %dm %ds\n", minutes, seconds)
	}

	header += strings.Repeat("─", 20) + "\n\n"

	return header + summary
}
