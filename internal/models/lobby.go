// internal/models/lobby.go
package models

import "time"

// GameRecord summarizes a finished game (someone reached the winning score)
// for the results table.
type GameRecord struct {
	LobbyID      string             `json:"lobbyId"`
	LobbyName    string             `json:"lobbyName"`
	WinnerID     string             `json:"winnerId"`
	WinnerName   string             `json:"winnerName"`
	RoundsPlayed int                `json:"roundsPlayed"`
	StartedAt    time.Time          `json:"startedAt"`
	FinishedAt   time.Time          `json:"finishedAt"`
	Standings    []LeaderboardEntry `json:"standings"`
}
