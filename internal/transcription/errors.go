package transcription

import (
	"fmt"
	"strings"
)

// PartialFailureError reports which chunks could not be transcribed after
// retries were exhausted. The caller must be told which segments are missing
// rather than receiving a transcript with silent gaps.
type PartialFailureError struct {
	FailedIndices []int
	Errs          []error
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, len(e.FailedIndices))
	for i, idx := range e.FailedIndices {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return fmt.Sprintf("transcription failed for %d of the chunks (indices %s)", len(e.FailedIndices), strings.Join(parts, ", "))
}

// UpstreamFormatError indicates the API returned a response whose shape does
// not match the expected schema.
type UpstreamFormatError struct {
	Detail string
	Err    error
}

func (e *UpstreamFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected transcription response: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("unexpected transcription response: %s", e.Detail)
}

func (e *UpstreamFormatError) Unwrap() error {
	return e.Err
}

// statusError carries the HTTP status of a failed upstream request so retry
// decisions do not depend on string matching.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.code, e.body)
}
