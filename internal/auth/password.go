package auth

import (
	"fmt"
	"time"
)

// passwordPrefix is the fixed prefix of every daily password.
const passwordPrefix = "meeting"

// Validator generates and checks the daily rotating password.
//
// The password format is "meetingMMDD" (e.g. "meeting0203" for February 3rd)
// and is derived purely from the current date in the configured timezone.
// The format trades secrecy for a password that meeting participants can
// reconstruct without a side channel. The seed is carried in configuration
// for future obfuscation but is not mixed into the password yet.
type Validator struct {
	seed     string
	location *time.Location
}

// NewValidator creates a password validator. If loc is nil, times are
// interpreted in UTC.
func NewValidator(seed string, loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}

	return &Validator{
		seed:     seed,
		location: loc,
	}
}

// Expected returns the password that is valid on the given date.
func (v *Validator) Expected(date time.Time) string {
	d := date.In(v.location)
	return fmt.Sprintf("%s%02d%02d", passwordPrefix, int(d.Month()), d.Day())
}

// Validate reports whether candidate matches the password for the given date.
// The comparison is exact and case-sensitive; malformed input simply fails
// equality.
func (v *Validator) Validate(candidate string, date time.Time) bool {
	return candidate == v.Expected(date)
}

// Hint returns the expected password format for user-facing prompts.
func (v *Validator) Hint() string {
	return passwordPrefix + "MMDD"
}
