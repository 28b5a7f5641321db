package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ConversionError indicates the input recording could not be transcoded.
type ConversionError struct {
	Detail string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio conversion failed: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("audio conversion failed: %s", e.Detail)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ConverterConfig contains audio conversion configuration.
type ConverterConfig struct {
	// Binary is the ffmpeg executable. Default "ffmpeg" (resolved via PATH).
	Binary string

	// SampleRate is the output sample rate in Hz. Default 16000, matching
	// what speech models expect.
	SampleRate int
}

// Converter normalizes downloaded recordings into mono PCM-16 WAV. The
// messaging platform delivers voice messages as M4A and uploads arrive in
// whatever container the user recorded, so everything funnels through ffmpeg
// before chunking. Input that already is canonical WAV passes through
// untouched.
type Converter struct {
	config ConverterConfig
}

// NewConverter creates a converter. Zero config values fall back to defaults.
func NewConverter(config ConverterConfig) *Converter {
	if config.Binary == "" {
		config.Binary = "ffmpeg"
	}

	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}

	return &Converter{config: config}
}

// ToWAV transcodes a recording into mono PCM-16 WAV at the configured sample
// rate. The exchange goes through temp files rather than pipes: M4A stores
// its index at the end of the file, so ffmpeg needs seekable input.
func (c *Converter) ToWAV(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &ConversionError{Detail: "empty recording"}
	}

	if _, _, err := DecodeWAV(data); err == nil {
		return data, nil
	}

	dir, err := os.MkdirTemp("", "recording-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input")
	if err := os.WriteFile(inPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write temp input: %w", err)
	}
	outPath := filepath.Join(dir, "output.wav")

	// -bitexact keeps the output header at the canonical 44 bytes (no LIST
	// metadata chunk).
	cmd := exec.CommandContext(ctx, c.config.Binary,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", inPath,
		"-ac", "1",
		"-ar", strconv.Itoa(c.config.SampleRate),
		"-c:a", "pcm_s16le",
		"-bitexact",
		outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "transcode failed"
		}
		return nil, &ConversionError{Detail: detail, Err: err}
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcoded output: %w", err)
	}

	if _, err := WAVDuration(out); err != nil {
		return nil, &ConversionError{Detail: "transcoded output is not canonical WAV", Err: err}
	}

	return out, nil
}
