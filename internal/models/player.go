// internal/models/player.go
package models

import (
	"regexp"
	"time"
)

var playerIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,80}$`)

// ValidPlayerID reports whether id is an acceptable client supplied player id.
func ValidPlayerID(id string) bool {
	return playerIDPattern.MatchString(id)
}

// Player is one member of a lobby. Players are identified by a client
// generated opaque id that survives reconnects.
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Points    int       `json:"points"`
	JoinedAt  time.Time `json:"joinedAt"`
	Connected bool      `json:"connected"`

	// ProfileImage is an image reference (usually an avatar URL). Empty means none.
	ProfileImage string `json:"profileImage,omitempty"`

	// Pending marks a player who joined mid-round. Pending players sit out
	// fraud selection, votes and scoring until the next round starts.
	Pending bool `json:"pending"`
}

// Active reports whether the player takes part in the current round.
func (p *Player) Active() bool {
	return p.Connected && !p.Pending
}

// LeaderboardEntry is one row of the score table.
type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
}
