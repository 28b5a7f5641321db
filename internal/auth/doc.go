// Package auth implements the daily rotating password scheme that gates
// access to the bot. Passwords are a pure function of the current date.
package auth
