package transcription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/THRAUR/line-speech-to-text/internal/audio"
)

func testChunks(n int) []audio.Chunk {
	chunks := make([]audio.Chunk, n)
	for i := range chunks {
		chunks[i] = audio.Chunk{
			Index:    i,
			Data:     []byte(fmt.Sprintf("audio-%d", i)),
			Duration: 60,
		}
	}
	return chunks
}

// chunkIndex recovers the chunk index from the uploaded form file name.
func chunkIndex(t *testing.T, r *http.Request) int {
	t.Helper()

	require.NoError(t, r.ParseMultipartForm(1<<20))
	_, header, err := r.FormFile("file")
	require.NoError(t, err)

	var index int
	_, err = fmt.Sscanf(header.Filename, "chunk_%03d.wav", &index)
	require.NoError(t, err)
	return index
}

func newTestClient(t *testing.T, endpoint string, maxRetries int) *Client {
	t.Helper()

	client, err := NewClient(Config{
		Endpoint:   endpoint,
		APIKey:     "test-key",
		Model:      "whisper-large-v3-turbo",
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
	})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{APIKey: "key"})
	assert.Error(t, err, "missing endpoint must be rejected")

	_, err = NewClient(Config{Endpoint: "http://localhost"})
	assert.Error(t, err, "missing API key must be rejected")
}

func TestTranscribeSendsExpectedRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-large-v3-turbo", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))

		fmt.Fprint(w, `{"text": "hello world", "language": "en", "duration": 60}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)

	result, err := client.Transcribe(context.Background(), testChunks(1)[0])
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Text)
	assert.Equal(t, "en", result.Language)
	assert.Equal(t, float64(60), result.Duration)
}

func TestTranscribeAllReassemblesInChunkOrder(t *testing.T) {
	// Delay early chunks so responses complete in reverse order; the
	// transcript must still come back ordered by chunk index.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		index := chunkIndex(t, r)
		time.Sleep(time.Duration(2-index) * 50 * time.Millisecond)
		fmt.Fprintf(w, `{"text": "segment %d", "language": "zh", "duration": 60}`, index)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)

	transcript, err := client.TranscribeAll(context.Background(), testChunks(3))
	require.NoError(t, err)
	require.Len(t, transcript.Entries, 3)

	for i, entry := range transcript.Entries {
		assert.Equal(t, i, entry.Index)
		assert.Equal(t, fmt.Sprintf("segment %d", i), entry.Text)
	}

	assert.Equal(t, "segment 0\n\nsegment 1\n\nsegment 2", transcript.Text())
	assert.Equal(t, "zh", transcript.Language)
	assert.Equal(t, float64(180), transcript.Duration)
}

func TestTranscribeAllReportsFailedIndices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chunkIndex(t, r) == 1 {
			http.Error(w, `{"error": "bad audio"}`, http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"text": "ok"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)

	_, err := client.TranscribeAll(context.Background(), testChunks(3))
	require.Error(t, err)

	var partial *PartialFailureError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []int{1}, partial.FailedIndices)
}

func TestTranscribeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "temporarily down", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"text": "recovered"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)

	result, err := client.Transcribe(context.Background(), testChunks(1)[0])
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Text)
	assert.Equal(t, int64(2), calls.Load())

	stats := client.GetStats()
	assert.Equal(t, uint64(1), stats.TotalRetries)
	assert.Equal(t, uint64(1), stats.SuccessRequests)
}

func TestTranscribeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	_, err := client.Transcribe(context.Background(), testChunks(1)[0])
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestTranscribeRejectsMalformedResponse(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, "<html>definitely not json</html>")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	_, err := client.Transcribe(context.Background(), testChunks(1)[0])
	require.Error(t, err)

	var formatErr *UpstreamFormatError
	assert.True(t, errors.As(err, &formatErr))
	assert.Equal(t, int64(1), calls.Load(), "malformed responses must not be retried")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &statusError{code: http.StatusTooManyRequests}, true},
		{"server error", &statusError{code: http.StatusBadGateway}, true},
		{"bad request", &statusError{code: http.StatusBadRequest}, false},
		{"unauthorized", &statusError{code: http.StatusUnauthorized}, false},
		{"malformed response", &UpstreamFormatError{Detail: "not json"}, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}
