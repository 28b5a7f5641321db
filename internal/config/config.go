package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Line          LineConfig          `yaml:"line"`
	Auth          AuthConfig          `yaml:"auth"`
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Summary       SummaryConfig       `yaml:"summary"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// LineConfig contains messaging platform credentials and endpoints.
// Credentials come from the environment, not the config file.
type LineConfig struct {
	ChannelSecret      string `yaml:"-"`
	ChannelAccessToken string `yaml:"-"`
	APIEndpoint        string `yaml:"api_endpoint"`
	BlobEndpoint       string `yaml:"blob_endpoint"`
	Timeout            int    `yaml:"timeout"` // seconds
	MaxMessageChars    int    `yaml:"max_message_chars"`
}

// AuthConfig contains the daily password and session settings.
type AuthConfig struct {
	PasswordSeed string `yaml:"-"`           // from environment
	SessionTTL   int    `yaml:"session_ttl"` // seconds
	Timezone     string `yaml:"timezone"`
}

// AudioConfig contains audio chunking parameters.
type AudioConfig struct {
	FFmpegBinary           string  `yaml:"ffmpeg_binary"`
	MaxChunkSeconds        float64 `yaml:"max_chunk_seconds"`
	SilenceLookbackSeconds float64 `yaml:"silence_lookback_seconds"`
	MaxRecordingBytes      int     `yaml:"max_recording_bytes"`
	PipelineTimeout        int     `yaml:"pipeline_timeout"` // seconds
}

// TranscriptionConfig contains speech-to-text API configuration.
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"-"` // from environment
	Model         string `yaml:"model"`
	Language      string `yaml:"language"` // empty = auto-detect
	Timeout       int    `yaml:"timeout"`  // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// SummaryConfig contains summarization API configuration.
type SummaryConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"-"` // from environment
	Model         string `yaml:"model"`
	MaxTokens     int    `yaml:"max_tokens"`
	MaxInputChars int    `yaml:"max_input_chars"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration defaults applied before the YAML file
// is read.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "0.0.0.0",
		},
		Line: LineConfig{
			APIEndpoint:     "https://api.line.me",
			BlobEndpoint:    "https://api-data.line.me",
			Timeout:         30,
			MaxMessageChars: 4500,
		},
		Auth: AuthConfig{
			SessionTTL: 86400,
			Timezone:   "Asia/Taipei",
		},
		Audio: AudioConfig{
			FFmpegBinary:           "ffmpeg",
			MaxChunkSeconds:        600,
			SilenceLookbackSeconds: 2,
			MaxRecordingBytes:      200 * 1024 * 1024,
			PipelineTimeout:        900,
		},
		Transcription: TranscriptionConfig{
			Endpoint:      "https://api.groq.com/openai/v1/audio/transcriptions",
			Model:         "whisper-large-v3-turbo",
			Timeout:       60,
			MaxRetries:    2,
			MaxConcurrent: 4,
		},
		Summary: SummaryConfig{
			BaseURL:       "https://api.deepseek.com",
			Model:         "deepseek-chat",
			MaxTokens:     4096,
			MaxInputChars: 120000,
			Timeout:       120,
			MaxRetries:    2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads the configuration file, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnv overlays secrets from the environment. Secrets never live in the
// config file.
func (c *Config) applyEnv() {
	c.Line.ChannelSecret = os.Getenv("LINE_CHANNEL_SECRET")
	c.Line.ChannelAccessToken = os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")
	c.Transcription.APIKey = os.Getenv("GROQ_API_KEY")
	c.Summary.APIKey = os.Getenv("DEEPSEEK_API_KEY")

	c.Auth.PasswordSeed = os.Getenv("DAILY_PASSWORD_SEED")
	if c.Auth.PasswordSeed == "" {
		c.Auth.PasswordSeed = "default_seed"
	}
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Line.Validate(); err != nil {
		return fmt.Errorf("line config: %w", err)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Summary.Validate(); err != nil {
		return fmt.Errorf("summary config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP server configuration.
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates messaging platform configuration.
func (l *LineConfig) Validate() error {
	if l.ChannelSecret == "" {
		return fmt.Errorf("LINE_CHANNEL_SECRET environment variable is required")
	}

	if l.ChannelAccessToken == "" {
		return fmt.Errorf("LINE_CHANNEL_ACCESS_TOKEN environment variable is required")
	}

	if l.APIEndpoint == "" {
		return fmt.Errorf("api_endpoint cannot be empty")
	}

	if l.BlobEndpoint == "" {
		return fmt.Errorf("blob_endpoint cannot be empty")
	}

	if l.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", l.Timeout)
	}

	if l.MaxMessageChars < 100 || l.MaxMessageChars > 5000 {
		return fmt.Errorf("max_message_chars must be between 100 and 5000, got %d", l.MaxMessageChars)
	}

	return nil
}

// Validate validates authentication configuration.
func (a *AuthConfig) Validate() error {
	if a.SessionTTL < 60 {
		return fmt.Errorf("session_ttl must be at least 60 seconds, got %d", a.SessionTTL)
	}

	if a.Timezone == "" {
		return fmt.Errorf("timezone cannot be empty")
	}

	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", a.Timezone, err)
	}

	return nil
}

// Validate validates audio configuration.
func (a *AudioConfig) Validate() error {
	if a.FFmpegBinary == "" {
		return fmt.Errorf("ffmpeg_binary cannot be empty")
	}

	if a.MaxChunkSeconds <= 0 {
		return fmt.Errorf("max_chunk_seconds must be positive, got %f", a.MaxChunkSeconds)
	}

	if a.SilenceLookbackSeconds < 0 {
		return fmt.Errorf("silence_lookback_seconds cannot be negative, got %f", a.SilenceLookbackSeconds)
	}

	if a.SilenceLookbackSeconds >= a.MaxChunkSeconds {
		return fmt.Errorf("silence_lookback_seconds (%f) must be less than max_chunk_seconds (%f)",
			a.SilenceLookbackSeconds, a.MaxChunkSeconds)
	}

	if a.MaxRecordingBytes < 0 {
		return fmt.Errorf("max_recording_bytes cannot be negative, got %d", a.MaxRecordingBytes)
	}

	if a.PipelineTimeout < 1 {
		return fmt.Errorf("pipeline_timeout must be at least 1 second, got %d", a.PipelineTimeout)
	}

	return nil
}

// Validate validates transcription configuration.
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.APIKey == "" {
		return fmt.Errorf("GROQ_API_KEY environment variable is required")
	}

	if t.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates summarization configuration.
func (s *SummaryConfig) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}

	if s.APIKey == "" {
		return fmt.Errorf("DEEPSEEK_API_KEY environment variable is required")
	}

	if s.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if s.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", s.MaxTokens)
	}

	if s.MaxInputChars < 1000 {
		return fmt.Errorf("max_input_chars must be at least 1000, got %d", s.MaxInputChars)
	}

	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", s.MaxRetries)
	}

	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetLocation returns the configured timezone location.
func (a *AuthConfig) GetLocation() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

// GetSessionTTL returns the session TTL as a time.Duration.
func (a *AuthConfig) GetSessionTTL() time.Duration {
	return time.Duration(a.SessionTTL) * time.Second
}

// GetTimeout returns the messaging client timeout as a time.Duration.
func (l *LineConfig) GetTimeout() time.Duration {
	return time.Duration(l.Timeout) * time.Second
}

// GetPipelineTimeout returns the pipeline timeout as a time.Duration.
func (a *AudioConfig) GetPipelineTimeout() time.Duration {
	return time.Duration(a.PipelineTimeout) * time.Second
}

// GetTimeout returns the transcription timeout as a time.Duration.
func (t *TranscriptionConfig) GetTimeout() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeout returns the summarization timeout as a time.Duration.
func (s *SummaryConfig) GetTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}
