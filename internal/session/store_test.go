package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/THRAUR/line-speech-to-text/internal/auth"
)

func newTestStore(ttl time.Duration) *Store {
	validator := auth.NewValidator("seed", time.UTC)
	return NewStore(validator, ttl, time.UTC)
}

func TestAuthenticateValidPassword(t *testing.T) {
	store := newTestStore(2 * time.Hour)
	now := time.Date(2024, time.August, 15, 10, 0, 0, 0, time.UTC)

	sess, err := store.Authenticate("user1", "meeting0815", now)
	require.NoError(t, err)
	assert.Equal(t, "user1", sess.UserID)
	assert.Equal(t, now, sess.AuthenticatedAt)
	assert.Equal(t, now.Add(2*time.Hour), sess.ExpiresAt)
}

func TestAuthenticateInvalidPassword(t *testing.T) {
	store := newTestStore(2 * time.Hour)
	now := time.Date(2024, time.August, 15, 10, 0, 0, 0, time.UTC)

	_, err := store.Authenticate("user1", "meeting0816", now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPassword))
	assert.False(t, store.IsAuthenticated("user1", now))
}

func TestSessionTTLWindow(t *testing.T) {
	ttl := 90 * time.Minute
	store := newTestStore(ttl)
	authAt := time.Date(2024, time.August, 15, 10, 0, 0, 0, time.UTC)

	_, err := store.Authenticate("user1", "meeting0815", authAt)
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"at authentication time", authAt, true},
		{"mid window", authAt.Add(45 * time.Minute), true},
		{"just before expiry", authAt.Add(ttl - time.Second), true},
		{"at expiry", authAt.Add(ttl), false},
		{"after expiry", authAt.Add(2 * ttl), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Re-authenticate because expiry checks delete the session.
			store.Authenticate("user1", "meeting0815", authAt)
			assert.Equal(t, tt.want, store.IsAuthenticated("user1", tt.at))
		})
	}
}

func TestSessionEndsAtLocalMidnight(t *testing.T) {
	// A 24h TTL still must not carry an authentication into the next day.
	store := newTestStore(24 * time.Hour)
	authAt := time.Date(2024, time.August, 15, 23, 0, 0, 0, time.UTC)

	sess, err := store.Authenticate("user1", "meeting0815", authAt)
	require.NoError(t, err)

	midnight := time.Date(2024, time.August, 16, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, midnight, sess.ExpiresAt)

	assert.True(t, store.IsAuthenticated("user1", authAt.Add(30*time.Minute)))
	assert.False(t, store.IsAuthenticated("user1", midnight))
	assert.False(t, store.IsAuthenticated("user1", midnight.Add(time.Hour)))
}

func TestAuthenticateRefreshesSession(t *testing.T) {
	store := newTestStore(time.Hour)
	first := time.Date(2024, time.August, 15, 10, 0, 0, 0, time.UTC)
	second := first.Add(30 * time.Minute)

	_, err := store.Authenticate("user1", "meeting0815", first)
	require.NoError(t, err)

	sess, err := store.Authenticate("user1", "meeting0815", second)
	require.NoError(t, err)
	assert.Equal(t, second.Add(time.Hour), sess.ExpiresAt)
	assert.Equal(t, 1, store.ActiveCount(second))
}

func TestGet(t *testing.T) {
	store := newTestStore(time.Hour)
	now := time.Date(2024, time.August, 15, 10, 0, 0, 0, time.UTC)

	_, ok := store.Get("user1", now)
	assert.False(t, ok)

	_, err := store.Authenticate("user1", "meeting0815", now)
	require.NoError(t, err)

	sess, ok := store.Get("user1", now)
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Hour), sess.ExpiresAt)

	_, ok = store.Get("user1", now.Add(2*time.Hour))
	assert.False(t, ok)
}

func TestActiveCountAndSweep(t *testing.T) {
	store := newTestStore(time.Hour)
	now := time.Date(2024, time.August, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := store.Authenticate(fmt.Sprintf("user%d", i), "meeting0815", now)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, store.ActiveCount(now))
	assert.Equal(t, 0, store.ActiveCount(now.Add(2*time.Hour)))

	removed := store.Sweep(now.Add(2 * time.Hour))
	assert.Equal(t, 3, removed)
	assert.Equal(t, 0, store.ActiveCount(now))
}

func TestConcurrentAuthentication(t *testing.T) {
	store := newTestStore(time.Hour)
	now := time.Date(2024, time.August, 15, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user%d", i%5)
			store.Authenticate(userID, "meeting0815", now)
			store.IsAuthenticated(userID, now)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, store.ActiveCount(now))
}
