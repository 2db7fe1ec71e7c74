// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected action.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindAuthorization
	KindPhaseMismatch
	KindNotMember
	KindNotFound
	KindValidation
	KindCapacity
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindPhaseMismatch:
		return "phase_mismatch"
	case KindNotMember:
		return "not_member"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindCapacity:
		return "capacity"
	default:
		return "internal"
	}
}

// Wire codes carried in ERROR events and failed acks.
const (
	CodeNotInLobby    = "NOT_IN_LOBBY"
	CodeLobbyNotFound = "LOBBY_NOT_FOUND"
	CodeBadLobbyCode  = "BAD_LOBBY_CODE"
	CodeBadJoin       = "BAD_JOIN"
	CodeBadLobbyName  = "BAD_LOBBY_NAME"
	CodeNotHost       = "NOT_HOST"
	CodeInGame        = "IN_GAME"
	CodeBadSettings   = "BAD_SETTINGS"
	CodeBadTarget     = "BAD_TARGET"
	CodeNotCluesPhase = "NOT_CLUES_PHASE"
	CodeNotVoting     = "NOT_VOTING"
	CodeAlreadyVoted  = "ALREADY_VOTED"
	CodeBadPhase      = "BAD_PHASE"
	CodeNotGuessing   = "NOT_GUESSING"
	CodeNotFraud      = "NOT_FRAUD"
	CodeBadGuess      = "BAD_GUESS"
	CodeBadClue       = "BAD_CLUE"
	CodeBadMessage    = "BAD_MESSAGE"
	CodeBadImage      = "BAD_IMAGE"
	CodeBadRequest    = "BAD_REQUEST"
	CodeRateLimited   = "RATE_LIMITED"
	CodeInternal      = "INTERNAL"
)

// Error is a rejected action. No state has been mutated when one is returned.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string

	// Quiet errors are reported in the ack only, without an ERROR event.
	Quiet bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an Error.
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// AsError extracts an *Error from err, wrapping anything else as internal.
func AsError(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "Something went wrong."}
}

func errNotHost(msg string) *Error {
	return NewError(KindAuthorization, CodeNotHost, msg)
}

func errPhase(code, msg string) *Error {
	return NewError(KindPhaseMismatch, code, msg)
}

// ErrNotHost rejects a host-only action.
func ErrNotHost(msg string) *Error { return errNotHost(msg) }

// ErrNotInLobby rejects an action from a connection without a lobby.
func ErrNotInLobby() *Error {
	return NewError(KindNotMember, CodeNotInLobby, "Join a lobby first.")
}

// ErrLobbyNotFound rejects a reference to a lobby that does not exist.
func ErrLobbyNotFound() *Error {
	return NewError(KindNotFound, CodeLobbyNotFound, "Lobby not found.")
}
