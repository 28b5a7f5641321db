package audio

import (
	"errors"
	"math"
	"testing"
)

const testSampleRate = 8000

// makeRecording builds a WAV recording of the given duration carrying an
// alternating square wave. Every even-length window of a square wave has
// identical RMS energy, which makes cut positions deterministic.
func makeRecording(t *testing.T, durationSeconds float64, amplitude int16) []byte {
	t.Helper()

	numSamples := int(durationSeconds * testSampleRate)
	samples := make([]int16, numSamples)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}

	data, err := EncodeWAV(samples, testSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	return data
}

func TestChunkCountMatchesFixedCuts(t *testing.T) {
	tests := []struct {
		name            string
		durationSeconds float64
		maxChunkSeconds float64
		wantChunks      int
	}{
		{"half over limit", 90, 60, 2},
		{"exact multiple", 120, 60, 2},
		{"just over limit", 61, 60, 2},
		{"exactly at limit", 60, 60, 1},
		{"under limit", 30, 60, 1},
		{"many chunks", 200, 30, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunker := NewChunker(ChunkerConfig{
				MaxChunkSeconds:        tt.maxChunkSeconds,
				SilenceLookbackSeconds: 0, // fixed cuts
			})

			chunks, err := chunker.Chunk(makeRecording(t, tt.durationSeconds, 8000))
			if err != nil {
				t.Fatalf("Chunk failed: %v", err)
			}

			if len(chunks) != tt.wantChunks {
				t.Fatalf("got %d chunks, want %d", len(chunks), tt.wantChunks)
			}

			total := float64(0)
			for i, chunk := range chunks {
				if chunk.Index != i {
					t.Errorf("chunk %d has index %d, want contiguous from 0", i, chunk.Index)
				}

				if i < len(chunks)-1 && chunk.Duration != tt.maxChunkSeconds {
					t.Errorf("chunk %d duration = %f, want exactly %f", i, chunk.Duration, tt.maxChunkSeconds)
				}

				if chunk.Duration > tt.maxChunkSeconds {
					t.Errorf("chunk %d duration %f exceeds max %f", i, chunk.Duration, tt.maxChunkSeconds)
				}

				total += chunk.Duration
			}

			if math.Abs(total-tt.durationSeconds) > 0.001 {
				t.Errorf("chunk durations sum to %f, want %f", total, tt.durationSeconds)
			}
		})
	}
}

func TestChunkUniformAudioKeepsFixedCutsWithLookback(t *testing.T) {
	// Uniform-energy audio has no quieter window, so the latest-position
	// tie break must keep the cut at exactly the fixed position.
	chunker := NewChunker(ChunkerConfig{
		MaxChunkSeconds:        60,
		SilenceLookbackSeconds: 2,
	})

	chunks, err := chunker.Chunk(makeRecording(t, 90, 8000))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	if chunks[0].Duration != 60 {
		t.Errorf("first chunk duration = %f, want exactly 60", chunks[0].Duration)
	}
}

func TestChunkAlignsToSilence(t *testing.T) {
	// Loud audio with a silent gap just before the fixed 60s cut: the cut
	// should move back into the gap instead of landing mid-tone.
	numSamples := 90 * testSampleRate
	samples := make([]int16, numSamples)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/testSampleRate))
	}

	silenceStart := int(58.5 * testSampleRate)
	silenceEnd := 59 * testSampleRate
	for i := silenceStart; i < silenceEnd; i++ {
		samples[i] = 0
	}

	data, err := EncodeWAV(samples, testSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	chunker := NewChunker(ChunkerConfig{
		MaxChunkSeconds:        60,
		SilenceLookbackSeconds: 2,
	})

	chunks, err := chunker.Chunk(data)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	if chunks[0].Duration < 58.5 || chunks[0].Duration > 59 {
		t.Errorf("first chunk duration = %f, want a cut inside the 58.5-59s silence", chunks[0].Duration)
	}

	total := chunks[0].Duration + chunks[1].Duration
	if math.Abs(total-90) > 0.001 {
		t.Errorf("chunk durations sum to %f, want 90", total)
	}
}

func TestChunkProducesStandaloneWAVs(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{MaxChunkSeconds: 30})

	chunks, err := chunker.Chunk(makeRecording(t, 70, 8000))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	for _, chunk := range chunks {
		duration, err := WAVDuration(chunk.Data)
		if err != nil {
			t.Fatalf("chunk %d is not a valid WAV: %v", chunk.Index, err)
		}

		if math.Abs(duration-chunk.Duration) > 0.001 {
			t.Errorf("chunk %d encoded duration %f does not match reported %f", chunk.Index, duration, chunk.Duration)
		}
	}
}

func TestChunkRejectsCorruptAudio(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{MaxChunkSeconds: 60})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty input", nil},
		{"garbage bytes", []byte("definitely not audio data, just text padding out 44+ bytes")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chunker.Chunk(tt.data)
			if err == nil {
				t.Fatal("expected chunking error")
			}

			var chunkErr *ChunkingError
			if !errors.As(err, &chunkErr) {
				t.Errorf("error %v is not a ChunkingError", err)
			}
		})
	}
}

func TestChunkerStats(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{MaxChunkSeconds: 30})

	if _, err := chunker.Chunk(makeRecording(t, 60, 8000)); err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	stats := chunker.GetStats()
	if stats.ChunksCreated != 2 {
		t.Errorf("ChunksCreated = %d, want 2", stats.ChunksCreated)
	}

	if math.Abs(stats.TotalDuration-60) > 0.001 {
		t.Errorf("TotalDuration = %f, want 60", stats.TotalDuration)
	}
}
