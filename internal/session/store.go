package session

import (
	"errors"
	"sync"
	"time"

	"github.com/THRAUR/line-speech-to-text/internal/auth"
)

// ErrInvalidPassword is returned when an authentication attempt does not
// match today's password.
var ErrInvalidPassword = errors.New("invalid password")

// Session records a successful authentication for a single user.
type Session struct {
	UserID          string    `json:"user_id"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Store tracks authenticated users in memory. Sessions do not survive a
// restart, matching the daily-password trust model.
//
// Expiry is lazy: expired sessions are treated as absent on lookup and
// removed when encountered. A session never outlives the local day it was
// created on, so yesterday's password can never unlock today.
type Store struct {
	validator *auth.Validator
	ttl       time.Duration
	location  *time.Location

	mu       sync.Mutex
	sessions map[string]Session
}

// NewStore creates a session store. ttl bounds how long a single
// authentication remains valid; the session additionally ends at the next
// local midnight. If loc is nil, UTC is used.
func NewStore(validator *auth.Validator, ttl time.Duration, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}

	return &Store{
		validator: validator,
		ttl:       ttl,
		location:  loc,
		sessions:  make(map[string]Session),
	}
}

// Authenticate validates password against today's expected value and, on
// success, creates or refreshes the session for userID. The check-then-write
// happens under the store lock so concurrent attempts for the same user
// cannot interleave.
func (s *Store) Authenticate(userID, password string, now time.Time) (Session, error) {
	if !s.validator.Validate(password, now) {
		return Session{}, ErrInvalidPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := Session{
		UserID:          userID,
		AuthenticatedAt: now,
		ExpiresAt:       s.expiry(now),
	}
	s.sessions[userID] = sess

	return sess, nil
}

// IsAuthenticated reports whether userID holds an unexpired session at now.
func (s *Store) IsAuthenticated(userID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return false
	}

	if !now.Before(sess.ExpiresAt) {
		delete(s.sessions, userID)
		return false
	}

	return true
}

// Get returns the session for userID if it exists and has not expired.
func (s *Store) Get(userID string, now time.Time) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok || !now.Before(sess.ExpiresAt) {
		return Session{}, false
	}

	return sess, true
}

// ActiveCount returns the number of unexpired sessions at now.
func (s *Store) ActiveCount(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, sess := range s.sessions {
		if now.Before(sess.ExpiresAt) {
			count++
		}
	}

	return count
}

// Sweep removes expired sessions and returns how many were removed. Expiry
// is already lazy, so sweeping is optional housekeeping.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}

	return removed
}

// expiry returns now+ttl capped at the next local midnight.
func (s *Store) expiry(now time.Time) time.Time {
	expires := now.Add(s.ttl)

	local := now.In(s.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location).AddDate(0, 0, 1)
	if midnight.Before(expires) {
		return midnight
	}

	return expires
}
