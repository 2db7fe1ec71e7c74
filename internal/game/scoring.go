// internal/game/scoring.go
package game

import (
	"sort"
	"strings"

	"github.com/jason-s-yu/fraud/internal/models"
)

// WinningScore ends the game once any player reaches it.
const WinningScore = 10

// Reasons a round can end.
const (
	ReasonRoundComplete = "round_complete"
	ReasonHostEnded     = "host_ended_round"
	ReasonGameWon       = "game_won"
)

// RoundResults is the end-of-round summary sent with ROUND_ENDED.
type RoundResults struct {
	Reason                string                   `json:"reason"`
	FraudWon              bool                     `json:"fraudWon"`
	FraudLost             bool                     `json:"fraudLost"`
	MajorityVote          bool                     `json:"majorityVote"`
	FraudIDs              []string                 `json:"fraudIds"`
	FraudNames            []string                 `json:"fraudNames"`
	CorrectWord           string                   `json:"correctWord,omitempty"`
	FraudGuessedCorrectly bool                     `json:"fraudGuessedCorrectly"`
	FraudGuessWord        string                   `json:"fraudGuessWord,omitempty"`
	EliminatedPlayerID    string                   `json:"eliminatedPlayerId,omitempty"`
	EliminatedPlayerName  string                   `json:"eliminatedPlayerName,omitempty"`
	Winner                *models.LeaderboardEntry `json:"winner,omitempty"`
}

// awardVotePoints gives +1 to active detectives when a fraud was voted out,
// otherwise +1 to each active fraud.
func awardVotePoints(players []*models.Player, fraudIDs []string, fraudEliminated bool) {
	for _, p := range players {
		if !p.Active() {
			continue
		}
		if contains(fraudIDs, p.ID) != fraudEliminated {
			p.Points++
		}
	}
}

// awardGuessPoints gives +1 to every fraud still in the lobby.
func awardGuessPoints(players []*models.Player, fraudIDs []string) {
	for _, p := range players {
		if p.Connected && contains(fraudIDs, p.ID) {
			p.Points++
		}
	}
}

// Leaderboard orders players by points, highest first, then by name.
func Leaderboard(players []*models.Player) []models.LeaderboardEntry {
	out := make([]models.LeaderboardEntry, 0, len(players))
	for _, p := range players {
		out = append(out, models.LeaderboardEntry{PlayerID: p.ID, Name: p.Name, Points: p.Points})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Winner returns the leader if they reached WinningScore.
func Winner(players []*models.Player) (models.LeaderboardEntry, bool) {
	board := Leaderboard(players)
	if len(board) == 0 || board[0].Points < WinningScore {
		return models.LeaderboardEntry{}, false
	}
	return board[0], true
}

// ResetPoints starts a fresh game.
func ResetPoints(players []*models.Player) {
	for _, p := range players {
		p.Points = 0
	}
}

// End moves an in-progress round to PhaseRoundResults and summarizes it.
func (r *Round) End(players []*models.Player, reason string) (RoundResults, error) {
	if !r.Phase.InRound() {
		return RoundResults{}, errPhase(CodeBadPhase, "No round is in progress.")
	}
	res := r.Results(players, reason)
	r.Phase = PhaseRoundResults
	return res, nil
}

// FinishGame ends the game for winner: the lobby goes back to PhaseLobby and
// keeps a game_won result until the next start.
func (r *Round) FinishGame(players []*models.Player, winner models.LeaderboardEntry) RoundResults {
	res := r.Results(players, ReasonGameWon)
	w := winner
	res.Winner = &w

	vr := VoteResult{Reason: ReasonGameWon, Winner: &w, Summary: winner.Name + " wins the game!"}
	if r.LastVoteResult != nil {
		vr.EliminatedPlayerID = r.LastVoteResult.EliminatedPlayerID
		vr.FraudEliminated = r.LastVoteResult.FraudEliminated
		vr.WasUnanimous = r.LastVoteResult.WasUnanimous
		vr.EndedEarly = r.LastVoteResult.EndedEarly
	}
	r.LastVoteResult = &vr
	r.Phase = PhaseLobby
	return res
}

// GameWon reports whether the last game ended with a winner.
func (r *Round) GameWon() bool {
	return r.LastVoteResult != nil && r.LastVoteResult.Reason == ReasonGameWon
}

// Results summarizes the round without changing it.
func (r *Round) Results(players []*models.Player, reason string) RoundResults {
	res := RoundResults{
		Reason:     reason,
		FraudIDs:   append([]string{}, r.FraudIDs...),
		FraudNames: make([]string, 0, len(r.FraudIDs)),
	}
	for _, id := range r.FraudIDs {
		name := "Unknown"
		if p := findPlayer(players, id); p != nil {
			name = p.Name
		}
		res.FraudNames = append(res.FraudNames, name)
	}
	res.CorrectWord = r.SecretWord()

	tally := r.Tally(players)
	top := 0
	for _, c := range tally.VoteCountsByTargetID {
		top = max(top, c)
	}
	connected := 0
	for _, p := range players {
		if p.Connected {
			connected++
		}
	}
	res.MajorityVote = top > 0 && top > connected/2

	if r.voteResolved && r.LastVoteResult != nil {
		res.FraudLost = r.LastVoteResult.FraudEliminated
		res.FraudWon = !r.LastVoteResult.FraudEliminated
	}
	if r.EliminatedPlayerID != "" {
		res.EliminatedPlayerID = r.EliminatedPlayerID
		res.EliminatedPlayerName = "Unknown"
		if p := findPlayer(players, r.EliminatedPlayerID); p != nil {
			res.EliminatedPlayerName = p.Name
		}
	}
	if r.fraudGuessed {
		res.FraudGuessedCorrectly = r.FraudGuessCorrect
		if r.FraudGuessIndex != nil && *r.FraudGuessIndex < len(r.ClueBoard16) {
			res.FraudGuessWord = r.ClueBoard16[*r.FraudGuessIndex]
		}
	}
	return res
}

// ReturnToLobby leaves PhaseRoundResults once the results have been shown.
func (r *Round) ReturnToLobby() error {
	if r.Phase != PhaseRoundResults {
		return errPhase(CodeBadPhase, "Round results are not being shown.")
	}
	r.Phase = PhaseLobby
	return nil
}
