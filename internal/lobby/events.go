// internal/lobby/events.go
package lobby

import (
	"github.com/jason-s-yu/fraud/internal/game"
	"github.com/jason-s-yu/fraud/internal/models"
)

// EventType tags an outbound message.
type EventType string

const (
	EventLobbyList        EventType = "LOBBY_LIST"
	EventLobbyState       EventType = "LOBBY_STATE"
	EventHostChanged      EventType = "HOST_CHANGED"
	EventGameStarted      EventType = "GAME_STARTED"
	EventVoteState        EventType = "VOTE_STATE"
	EventVoteReveal       EventType = "VOTE_REVEAL"
	EventFraudGuessPrompt EventType = "FRAUD_GUESS_PROMPT"
	EventFraudGuessResult EventType = "FRAUD_GUESS_RESULT"
	EventRoundEnded       EventType = "ROUND_ENDED"
	EventScoreUpdate      EventType = "SCORE_UPDATE"
	EventChatMessage      EventType = "CHAT_MESSAGE"
	EventError            EventType = "ERROR"
	EventAck              EventType = "ACK"
)

// Event is one outbound message. Payload is always the struct that matches Type.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

type LobbyListPayload struct {
	Lobbies []Summary `json:"lobbies"`
}

type HostChangedPayload struct {
	LobbyID      string  `json:"lobbyId"`
	HostPlayerID *string `json:"hostPlayerId"`
}

// GameStartedPayload is built per player. SecretIndexIfAllowed is only set
// for players who are not frauds.
type GameStartedPayload struct {
	LobbyID                string   `json:"lobbyId"`
	RoundID                string   `json:"roundId"`
	Category               string   `json:"category"`
	CategoryID             string   `json:"categoryId"`
	ClueBoard16            []string `json:"clueBoard16"`
	StartingPlayerID       string   `json:"startingPlayerId,omitempty"`
	VisibleSecretForPlayer bool     `json:"visibleSecretForPlayer"`
	SecretIndexIfAllowed   *int     `json:"secretIndexIfAllowed,omitempty"`
}

// VoteStatePayload carries either readiness progress (clues phase) or vote
// progress (voting phase).
type VoteStatePayload struct {
	LobbyID              string            `json:"lobbyId"`
	VotesByVoterID       map[string]string `json:"votesByVoterId,omitempty"`
	VoteCountsByTargetID map[string]int    `json:"voteCountsByTargetId,omitempty"`
	VotedPlayerIDs       []string          `json:"votedPlayerIds,omitempty"`
	AllSubmitted         bool              `json:"allSubmittedBoolean"`
	VoteToStartCount     *int              `json:"voteToStartCount,omitempty"`
	VoteToStartRequired  *int              `json:"voteToStartRequired,omitempty"`
}

type ResultsSummary struct {
	EndedEarly         bool   `json:"endedEarly"`
	EliminatedPlayerID string `json:"eliminatedPlayerId,omitempty"`
	FraudEliminated    bool   `json:"fraudEliminated"`
	WasUnanimous       bool   `json:"wasUnanimous"`
	Summary            string `json:"summary"`
}

type VoteRevealPayload struct {
	LobbyID        string         `json:"lobbyId"`
	FraudIDs       []string       `json:"fraudIds"`
	ResultsSummary ResultsSummary `json:"resultsSummary"`
}

type FraudGuessPromptPayload struct {
	LobbyID     string   `json:"lobbyId"`
	Category    string   `json:"category"`
	ClueBoard16 []string `json:"clueBoard16"`
}

// FraudGuessResultPayload is built per player; SecretIndex is left out for frauds.
type FraudGuessResultPayload struct {
	LobbyID     string `json:"lobbyId"`
	IsCorrect   bool   `json:"isCorrect"`
	GuessIndex  *int   `json:"guessIndex"`
	SecretIndex *int   `json:"secretIndex,omitempty"`
	TimedOut    bool   `json:"timedOut,omitempty"`
}

type RoundEndedPayload struct {
	LobbyID string            `json:"lobbyId"`
	Results game.RoundResults `json:"results"`
}

type ScoreUpdatePayload struct {
	LobbyID     string                    `json:"lobbyId"`
	Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
}

type ChatMessagePayload struct {
	LobbyID    string             `json:"lobbyId"`
	MessageObj models.ChatMessage `json:"messageObj"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AckPayload answers one inbound request.
type AckPayload struct {
	RequestID string      `json:"requestId,omitempty"`
	OK        bool        `json:"ok"`
	Code      string      `json:"code,omitempty"`
	Error     string      `json:"error,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func errorEvent(err *game.Error) Event {
	return Event{Type: EventError, Payload: ErrorPayload{Code: err.Code, Message: err.Message}}
}
