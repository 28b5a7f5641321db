// Package summary generates structured meeting summaries from transcripts
// using an OpenAI-compatible chat completion API.
package summary
