// Package config provides configuration loading and validation for the bot.
// It reads a YAML file, overlays secrets from environment variables, and
// validates every section before the service starts.
package config
