// internal/lobby/view.go
package lobby

import (
	"github.com/jason-s-yu/fraud/internal/game"
	"github.com/jason-s-yu/fraud/internal/models"
)

// Summary is the public listing entry of a lobby. It never carries the join code.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	InGame      bool   `json:"inGame"`

	private bool
}

// PublicPlayer is the part of a player every lobby member may see.
type PublicPlayer struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Points       int     `json:"points"`
	JoinedAt     int64   `json:"joinedAt"`
	Connected    bool    `json:"connected"`
	ProfileImage *string `json:"profileImage"`
	Pending      bool    `json:"pending"`
}

// GameStateView is a player's view of the round. It never includes the
// secret index; fraud ids only appear once they have been revealed.
type GameStateView struct {
	Phase               game.Phase        `json:"phase"`
	RoundID             *string           `json:"roundId"`
	CategoryID          *string           `json:"categoryId"`
	CategoryName        *string           `json:"categoryName"`
	ClueBoard16         []string          `json:"clueBoard16,omitempty"`
	StartingPlayerID    *string           `json:"startingPlayerId"`
	CluesByPlayerID     map[string]string `json:"cluesByPlayerId,omitempty"`
	VoteToStartCount    int               `json:"voteToStartCount"`
	VoteToStartRequired int               `json:"voteToStartRequired"`
	VotedPlayerIDs      []string          `json:"votedPlayerIds,omitempty"`
	FraudIDs            []string          `json:"fraudIds,omitempty"`
	EliminatedPlayerID  *string           `json:"eliminatedPlayerId"`
	FraudGuessIndex     *int              `json:"fraudGuessIndex"`
	LastVoteResult      *game.VoteResult  `json:"lastVoteResult"`
}

// LobbyView is the LOBBY_STATE payload for one viewer.
type LobbyView struct {
	LobbyID      string         `json:"lobbyId"`
	LobbyName    string         `json:"lobbyName"`
	LobbyCode    string         `json:"lobbyCode"`
	IsPrivate    bool           `json:"isPrivate"`
	HostPlayerID *string        `json:"hostPlayerId"`
	Players      []PublicPlayer `json:"players"`
	Settings     game.Settings  `json:"settings"`
	GameState    GameStateView  `json:"gameState"`
	ViewerID     string         `json:"viewerId"`
	IsHost       bool           `json:"isHost"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Summarize builds the public listing entry of l. Expects l.Mu held.
func Summarize(l *Lobby) Summary {
	return Summary{
		ID:          l.ID,
		Name:        l.Name,
		PlayerCount: len(l.Players),
		InGame:      l.Round.Phase.InRound(),
		private:     l.IsPrivate,
	}
}

func publicPlayer(p *models.Player) PublicPlayer {
	return PublicPlayer{
		ID:           p.ID,
		Name:         p.Name,
		Points:       p.Points,
		JoinedAt:     p.JoinedAt.UnixMilli(),
		Connected:    p.Connected,
		ProfileImage: nullable(p.ProfileImage),
		Pending:      p.Pending,
	}
}

// Project builds the snapshot for viewerID. Expects l.Mu held. Maps and
// slices are copied so the result can be encoded after the lock is released.
func Project(l *Lobby, viewerID string) LobbyView {
	players := make([]PublicPlayer, 0, len(l.Players))
	for _, p := range l.Players {
		players = append(players, publicPlayer(p))
	}

	return LobbyView{
		LobbyID:      l.ID,
		LobbyName:    l.Name,
		LobbyCode:    l.Code,
		IsPrivate:    l.IsPrivate,
		HostPlayerID: nullable(l.HostPlayerID),
		Players:      players,
		Settings:     l.Settings,
		GameState:    projectRound(l.Round, l.Players),
		ViewerID:     viewerID,
		IsHost:       l.isHostUnsafe(viewerID),
	}
}

func projectRound(r *game.Round, players []*models.Player) GameStateView {
	v := GameStateView{
		Phase:              r.Phase,
		RoundID:            nullable(r.RoundID),
		CategoryID:         nullable(r.CategoryID),
		CategoryName:       nullable(r.CategoryName),
		StartingPlayerID:   nullable(r.StartingPlayerID),
		EliminatedPlayerID: nullable(r.EliminatedPlayerID),
	}
	if r.LastVoteResult != nil {
		res := *r.LastVoteResult
		v.LastVoteResult = &res
	}
	if r.Phase == game.PhaseLobby {
		return v
	}

	v.ClueBoard16 = append([]string(nil), r.ClueBoard16...)
	if len(r.CluesByPlayerID) > 0 {
		v.CluesByPlayerID = make(map[string]string, len(r.CluesByPlayerID))
		for id, clue := range r.CluesByPlayerID {
			v.CluesByPlayerID[id] = clue
		}
	}
	switch r.Phase {
	case game.PhaseClues:
		v.VoteToStartCount, v.VoteToStartRequired = r.Readiness(players)
	case game.PhaseVoting:
		v.VotedPlayerIDs = r.Tally(players).VotedPlayerIDs
	}
	if r.Phase.RevealsFrauds() {
		v.FraudIDs = append([]string(nil), r.FraudIDs...)
	}
	if r.FraudGuessIndex != nil && r.Phase != game.PhaseFraudGuess {
		g := *r.FraudGuessIndex
		v.FraudGuessIndex = &g
	}
	return v
}

// roundStartFor builds the GAME_STARTED payload for one player.
func roundStartFor(l *Lobby, playerID string) GameStartedPayload {
	r := l.Round
	payload := GameStartedPayload{
		LobbyID:          l.ID,
		RoundID:          r.RoundID,
		Category:         r.CategoryName,
		CategoryID:       r.CategoryID,
		ClueBoard16:      append([]string(nil), r.ClueBoard16...),
		StartingPlayerID: r.StartingPlayerID,
	}
	if !r.IsFraud(playerID) {
		idx := r.SecretIndex
		payload.VisibleSecretForPlayer = true
		payload.SecretIndexIfAllowed = &idx
	}
	return payload
}

// fraudGuessResultFor builds the FRAUD_GUESS_RESULT payload for one player.
func fraudGuessResultFor(l *Lobby, playerID string, timedOut bool) FraudGuessResultPayload {
	r := l.Round
	payload := FraudGuessResultPayload{
		LobbyID:   l.ID,
		IsCorrect: r.FraudGuessCorrect,
		TimedOut:  timedOut,
	}
	if r.FraudGuessIndex != nil {
		g := *r.FraudGuessIndex
		payload.GuessIndex = &g
	}
	if !r.IsFraud(playerID) {
		idx := r.SecretIndex
		payload.SecretIndex = &idx
	}
	return payload
}

// roundResultsFor hides the secret word from frauds.
func roundResultsFor(l *Lobby, playerID string, res game.RoundResults) RoundEndedPayload {
	if l.Round.IsFraud(playerID) {
		res.CorrectWord = ""
	}
	return RoundEndedPayload{LobbyID: l.ID, Results: res}
}

// voteStateFor builds the shared VOTE_STATE payload of the voting phase.
func voteStateFor(l *Lobby) VoteStatePayload {
	t := l.Round.Tally(l.Players)
	payload := VoteStatePayload{
		LobbyID:              l.ID,
		VoteCountsByTargetID: t.VoteCountsByTargetID,
		VotedPlayerIDs:       t.VotedPlayerIDs,
		AllSubmitted:         t.AllSubmitted,
	}
	if !l.Settings.AnonymousVoting {
		payload.VotesByVoterID = t.VotesByVoterID
	}
	return payload
}

func readinessFor(l *Lobby, count, required int) VoteStatePayload {
	return VoteStatePayload{
		LobbyID:             l.ID,
		VoteToStartCount:    &count,
		VoteToStartRequired: &required,
	}
}
