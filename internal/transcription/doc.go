// Package transcription implements the HTTP client for the Whisper-compatible
// speech-to-text API. It handles multipart requests per audio chunk, retry
// with exponential backoff, bounded concurrency, and in-order reassembly of
// chunk transcripts.
package transcription
