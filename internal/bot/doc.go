// Package bot orchestrates webhook events: password authentication over text
// messages, and for voice messages the pipeline that downloads the recording,
// chunks it, transcribes every chunk and replies with a generated summary.
package bot
