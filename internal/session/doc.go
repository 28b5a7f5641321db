// Package session tracks which users are currently authenticated and until
// when. It owns all session state; no other component mutates it.
package session
