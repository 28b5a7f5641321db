package audio

import (
	"fmt"
	"math"
	"sync"
)

// energyWindowMillis is the analysis window used when scanning for quiet
// split points, matching the 64ms VAD window the upstream models use.
const energyWindowMillis = 64

// Chunk is a bounded-duration slice of a longer recording, encoded as a
// standalone WAV file. Index is contiguous from 0 and determines the order
// in which transcripts are reassembled.
type Chunk struct {
	Index    int     `json:"index"`
	Data     []byte  `json:"-"`
	Duration float64 `json:"duration_seconds"`
}

// ChunkingError indicates the input recording could not be decoded or split.
type ChunkingError struct {
	Reason string
	Err    error
}

func (e *ChunkingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chunking failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("chunking failed: %s", e.Reason)
}

func (e *ChunkingError) Unwrap() error {
	return e.Err
}

// ChunkerConfig contains configuration for the chunking process.
type ChunkerConfig struct {
	// MaxChunkSeconds bounds the duration of every produced chunk. It should
	// stay under the transcription API's accepted duration/size limit.
	MaxChunkSeconds float64

	// SilenceLookbackSeconds is how far before a fixed cut point the chunker
	// searches for a quieter stretch of audio. Zero disables alignment and
	// produces fixed-duration cuts.
	SilenceLookbackSeconds float64
}

// Chunker splits recordings into consecutive, non-overlapping chunks.
type Chunker struct {
	config ChunkerConfig

	// Statistics
	chunksCreated uint64
	totalDuration float64

	mu sync.RWMutex
}

// ChunkerStats represents chunker statistics.
type ChunkerStats struct {
	ChunksCreated    uint64  `json:"chunks_created"`
	TotalDuration    float64 `json:"total_duration_seconds"`
	AvgChunkDuration float64 `json:"avg_chunk_duration_seconds"`
}

// NewChunker creates a chunker. Invalid durations fall back to defaults
// (10 minute chunks, 2 second silence lookback).
func NewChunker(config ChunkerConfig) *Chunker {
	if config.MaxChunkSeconds <= 0 {
		config.MaxChunkSeconds = 600
	}

	if config.SilenceLookbackSeconds < 0 {
		config.SilenceLookbackSeconds = 2
	}

	return &Chunker{config: config}
}

// Chunk splits a WAV recording into chunks of at most MaxChunkSeconds each.
// The final chunk may be shorter. When silence lookback is enabled, interior
// cut points move back to the quietest analysis window found within the
// lookback range, so a cut never lands mid-word when a pause is nearby.
func (c *Chunker) Chunk(data []byte) ([]Chunk, error) {
	samples, sampleRate, err := DecodeWAV(data)
	if err != nil {
		return nil, &ChunkingError{Reason: "cannot decode audio", Err: err}
	}

	if len(samples) == 0 {
		return nil, &ChunkingError{Reason: "recording contains no audio"}
	}

	maxSamples := int(c.config.MaxChunkSeconds * float64(sampleRate))
	if maxSamples <= 0 {
		return nil, &ChunkingError{Reason: fmt.Sprintf("max chunk duration %.2fs too small for sample rate %d", c.config.MaxChunkSeconds, sampleRate)}
	}

	var chunks []Chunk
	for start := 0; start < len(samples); {
		end := start + maxSamples
		if end >= len(samples) {
			end = len(samples)
		} else {
			end = c.alignToSilence(samples, start, end, sampleRate)
		}

		segment := samples[start:end]
		encoded, err := EncodeWAV(segment, sampleRate)
		if err != nil {
			return nil, &ChunkingError{Reason: fmt.Sprintf("cannot encode chunk %d", len(chunks)), Err: err}
		}

		chunks = append(chunks, Chunk{
			Index:    len(chunks),
			Data:     encoded,
			Duration: float64(len(segment)) / float64(sampleRate),
		})

		start = end
	}

	c.mu.Lock()
	c.chunksCreated += uint64(len(chunks))
	c.totalDuration += float64(len(samples)) / float64(sampleRate)
	c.mu.Unlock()

	return chunks, nil
}

// alignToSilence returns the cut position for a chunk starting at start with
// a fixed cut at cut. It scans backwards from cut in analysis-window steps
// and moves the cut to the quietest window found, preferring later positions
// on ties so uniform audio keeps exact fixed-duration cuts.
func (c *Chunker) alignToSilence(samples []int16, start, cut, sampleRate int) int {
	lookback := int(c.config.SilenceLookbackSeconds * float64(sampleRate))
	if lookback <= 0 {
		return cut
	}

	window := sampleRate * energyWindowMillis / 1000
	if window <= 0 || cut-start <= 2*window {
		return cut
	}

	searchStart := cut - lookback
	// Never shrink a chunk below one analysis window.
	if searchStart < start+window {
		searchStart = start + window
	}

	best := cut
	bestEnergy := rmsEnergy(samples[cut-window : cut])

	for pos := cut - window; pos-window >= searchStart; pos -= window {
		if e := rmsEnergy(samples[pos-window : pos]); e < bestEnergy {
			bestEnergy = e
			best = pos
		}
	}

	return best
}

// rmsEnergy computes the root-mean-square energy of a run of samples.
func rmsEnergy(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var energy float64
	for _, sample := range samples {
		energy += float64(sample) * float64(sample)
	}

	return math.Sqrt(energy / float64(len(samples)))
}

// GetStats returns current chunker statistics.
func (c *Chunker) GetStats() ChunkerStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	avg := float64(0)
	if c.chunksCreated > 0 {
		avg = c.totalDuration / float64(c.chunksCreated)
	}

	return ChunkerStats{
		ChunksCreated:    c.chunksCreated,
		TotalDuration:    c.totalDuration,
		AvgChunkDuration: avg,
	}
}
