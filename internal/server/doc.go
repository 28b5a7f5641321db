// Package server provides the HTTP surface of the bot: the webhook callback
// endpoint plus health, stats and Prometheus metrics endpoints.
package server
