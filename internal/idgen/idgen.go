// internal/idgen/idgen.go
package idgen

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet omits characters that are easy to confuse when read aloud or typed
// from a screen (0/O, 1/I).
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Lengths of the generated identifiers.
const (
	LobbyIDLength   = 6
	LobbyCodeLength = 6
	RoundIDLength   = 8
	MessageIDLength = 10
)

// New returns a random identifier of the given length drawn from Alphabet.
// It panics only if the system random source fails.
func New(length int) string {
	return gonanoid.MustGenerate(Alphabet, length)
}

// LobbyID returns a new public lobby identifier.
func LobbyID() string { return New(LobbyIDLength) }

// LobbyCode returns a new secret join code.
func LobbyCode() string { return New(LobbyCodeLength) }

// RoundID returns a new round identifier.
func RoundID() string { return New(RoundIDLength) }

// MessageID returns a new chat message identifier.
func MessageID() string { return New(MessageIDLength) }

// Normalize trims and upper-cases a user-typed lobby id or code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether s has the given length and only uses Alphabet.
func Valid(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}
