// internal/lobby/broadcast.go
package lobby

import (
	"github.com/jason-s-yu/fraud/internal/game"
)

// sendUnsafe queues ev for one member, if that member has a bound connection.
func (l *Lobby) sendUnsafe(playerID string, ev Event) {
	if c, ok := l.boundConnectionsUnsafe()[playerID]; ok {
		c.Write(ev)
	}
}

// broadcastUnsafe sends the same event to every connected member.
func (l *Lobby) broadcastUnsafe(typ EventType, payload interface{}) {
	ev := Event{Type: typ, Payload: payload}
	for _, c := range l.boundConnectionsUnsafe() {
		c.Write(ev)
	}
}

// broadcastEachUnsafe builds one event per connected member.
func (l *Lobby) broadcastEachUnsafe(build func(playerID string) Event) {
	for id, c := range l.boundConnectionsUnsafe() {
		c.Write(build(id))
	}
}

// broadcastStateUnsafe sends each member their own LOBBY_STATE snapshot.
func (l *Lobby) broadcastStateUnsafe() {
	l.broadcastEachUnsafe(func(id string) Event {
		return Event{Type: EventLobbyState, Payload: Project(l, id)}
	})
}

func (l *Lobby) broadcastHostUnsafe() {
	l.broadcastUnsafe(EventHostChanged, HostChangedPayload{
		LobbyID:      l.ID,
		HostPlayerID: nullable(l.HostPlayerID),
	})
}

func (l *Lobby) broadcastScoresUnsafe() {
	l.broadcastUnsafe(EventScoreUpdate, ScoreUpdatePayload{
		LobbyID:     l.ID,
		Leaderboard: game.Leaderboard(l.Players),
	})
}

func (l *Lobby) broadcastRoundStartUnsafe() {
	l.broadcastEachUnsafe(func(id string) Event {
		return Event{Type: EventGameStarted, Payload: roundStartFor(l, id)}
	})
}

func (l *Lobby) broadcastRoundEndUnsafe(res game.RoundResults) {
	l.broadcastEachUnsafe(func(id string) Event {
		return Event{Type: EventRoundEnded, Payload: roundResultsFor(l, id, res)}
	})
}

func (l *Lobby) broadcastGuessResultUnsafe(timedOut bool) {
	l.broadcastEachUnsafe(func(id string) Event {
		return Event{Type: EventFraudGuessResult, Payload: fraudGuessResultFor(l, id, timedOut)}
	})
}

// promptFraudsUnsafe asks every fraud for their guess of the secret word.
func (l *Lobby) promptFraudsUnsafe() {
	prompt := Event{Type: EventFraudGuessPrompt, Payload: FraudGuessPromptPayload{
		LobbyID:     l.ID,
		Category:    l.Round.CategoryName,
		ClueBoard16: append([]string(nil), l.Round.ClueBoard16...),
	}}
	conns := l.boundConnectionsUnsafe()
	for _, id := range l.Round.FraudIDs {
		if c, ok := conns[id]; ok {
			c.Write(prompt)
		}
	}
}

// broadcastLobbyList sends the public lobby list to every open connection.
// It takes m.mu and the store lock one after the other, never nested.
func (m *Manager) broadcastLobbyList() {
	ev := Event{Type: EventLobbyList, Payload: LobbyListPayload{Lobbies: m.store.Summaries()}}
	for _, c := range m.connections() {
		c.Write(ev)
	}
}

// publishUnsafe refreshes l's public summary and pushes the lobby list when
// it changed. Expects l.Mu held.
func (m *Manager) publishUnsafe(l *Lobby) {
	if l.closed {
		return
	}
	if m.store.Publish(Summarize(l)) {
		m.broadcastLobbyList()
	}
}
