// Package audio handles normalization of voice recordings into mono PCM WAV
// (via ffmpeg) and splitting long recordings into bounded-duration chunks
// that the transcription API will accept. Split points are aligned to the
// quietest nearby stretch of audio so spoken words are not cut mid-sample.
package audio
