// internal/lobby/lobby.go
package lobby

import (
	"sort"
	"sync"
	"time"

	"github.com/jason-s-yu/fraud/internal/game"
	"github.com/jason-s-yu/fraud/internal/models"
)

// Lobby is an in-memory room: its roster, settings and the current round.
// All fields are guarded by Mu; methods suffixed Unsafe expect it held.
type Lobby struct {
	ID        string
	Code      string // secret join code, shown to members only
	Name      string
	IsPrivate bool

	// HostPlayerID is empty iff Players is empty.
	HostPlayerID string

	Settings  game.Settings
	Players   []*models.Player // in join order
	Round     *game.Round      // never nil
	CreatedAt time.Time

	// conns maps a player id to the connection currently bound to it.
	conns map[string]*Connection

	// task is the single pending timed transition, if any.
	task *scheduledTask

	// closed is set once the lobby is removed from the store. Callers that
	// still hold a pointer must treat it as gone.
	closed bool

	actionIndex   int
	gameStartedAt time.Time
	roundsPlayed  int

	Mu sync.Mutex
}

func newLobby(id, code, name string, private bool, settings game.Settings, now time.Time) *Lobby {
	return &Lobby{
		ID:        id,
		Code:      code,
		Name:      name,
		IsPrivate: private,
		Settings:  settings,
		Players:   []*models.Player{},
		Round:     game.NewRound(),
		CreatedAt: now,
		conns:     make(map[string]*Connection),
	}
}

func (l *Lobby) playerUnsafe(id string) *models.Player {
	for _, p := range l.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (l *Lobby) removePlayerUnsafe(id string) bool {
	for i, p := range l.Players {
		if p.ID == id {
			l.Players = append(l.Players[:i:i], l.Players[i+1:]...)
			delete(l.conns, id)
			return true
		}
	}
	return false
}

func (l *Lobby) isHostUnsafe(playerID string) bool {
	return playerID != "" && l.HostPlayerID == playerID
}

// repairHostUnsafe keeps the host if still present, otherwise hands the role
// to the earliest joined player. It reports whether the host changed.
func (l *Lobby) repairHostUnsafe() bool {
	prev := l.HostPlayerID
	if l.playerUnsafe(prev) != nil {
		return false
	}
	l.HostPlayerID = ""
	if len(l.Players) > 0 {
		candidates := append([]*models.Player(nil), l.Players...)
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].JoinedAt.Before(candidates[j].JoinedAt)
		})
		l.HostPlayerID = candidates[0].ID
	}
	return prev != l.HostPlayerID
}

// boundConnectionsUnsafe returns player id -> connection for connected players.
func (l *Lobby) boundConnectionsUnsafe() map[string]*Connection {
	out := make(map[string]*Connection, len(l.conns))
	for id, c := range l.conns {
		if p := l.playerUnsafe(id); p != nil && p.Connected {
			out[id] = c
		}
	}
	return out
}

func (l *Lobby) nextActionIndexUnsafe() int {
	l.actionIndex++
	return l.actionIndex
}
