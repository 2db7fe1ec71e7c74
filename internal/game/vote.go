// internal/game/vote.go
package game

import (
	"sort"

	"github.com/jason-s-yu/fraud/internal/models"
)

// Vote summaries shown with the reveal.
const (
	SummaryNoVotes         = "No votes were cast."
	SummaryFraudEliminated = "Detectives eliminated The Fraud. +1 point each for Detectives."
	SummaryFraudSurvived   = "The Fraud survived the vote. +1 point for each Fraud."
)

// VoteResult is the outcome of the last resolved vote, or of the last game
// when Reason is ReasonGameWon.
type VoteResult struct {
	Reason             string                   `json:"reason,omitempty"`
	EndedEarly         bool                     `json:"endedEarly"`
	EliminatedPlayerID string                   `json:"eliminatedPlayerId,omitempty"`
	FraudEliminated    bool                     `json:"fraudEliminated"`
	WasUnanimous       bool                     `json:"wasUnanimous"`
	Summary            string                   `json:"summary"`
	Winner             *models.LeaderboardEntry `json:"winner,omitempty"`
}

// VoteTally is the current voting progress.
type VoteTally struct {
	VotesByVoterID       map[string]string
	VoteCountsByTargetID map[string]int
	VotedPlayerIDs       []string
	AllSubmitted         bool
}

// CastVote records voter's vote for targetID. complete reports whether every
// active player has now voted.
func (r *Round) CastVote(voter *models.Player, targetID string, players []*models.Player) (complete bool, err error) {
	if r.Phase != PhaseVoting {
		return false, errPhase(CodeNotVoting, "Voting is not active.")
	}
	if voter.Pending {
		return false, errPhase(CodeBadPhase, "You will join at the next round.")
	}
	if _, voted := r.VotesByVoterID[voter.ID]; voted {
		return false, NewError(KindValidation, CodeAlreadyVoted, "You already voted.")
	}
	if target := findPlayer(players, targetID); target == nil || !target.Active() {
		return false, NewError(KindValidation, CodeBadTarget, "Pick a player in this round.")
	}
	r.VotesByVoterID[voter.ID] = targetID
	return r.Tally(players).AllSubmitted, nil
}

// Tally computes counts per target and whether all active players voted.
// The returned maps are copies.
func (r *Round) Tally(players []*models.Player) VoteTally {
	t := VoteTally{
		VotesByVoterID:       make(map[string]string, len(r.VotesByVoterID)),
		VoteCountsByTargetID: map[string]int{},
		VotedPlayerIDs:       make([]string, 0, len(r.VotesByVoterID)),
	}
	for voter, target := range r.VotesByVoterID {
		t.VotesByVoterID[voter] = target
		t.VoteCountsByTargetID[target]++
		t.VotedPlayerIDs = append(t.VotedPlayerIDs, voter)
	}
	sort.Strings(t.VotedPlayerIDs)

	t.AllSubmitted = true
	for _, id := range ActiveIDs(players) {
		if _, ok := r.VotesByVoterID[id]; !ok {
			t.AllSubmitted = false
			break
		}
	}
	return t
}

// ResolveVotes ends the voting phase: the target with the most votes is
// eliminated (ties broken uniformly at random), points are awarded, and the
// round moves to PhaseFraudGuess. Because the phase changes, points for a
// voting phase are awarded at most once.
func (r *Round) ResolveVotes(players []*models.Player, rng Rand, endedEarly bool) (VoteResult, error) {
	if r.Phase != PhaseVoting {
		return VoteResult{}, errPhase(CodeNotVoting, "Voting is not active.")
	}

	res := VoteResult{EndedEarly: endedEarly}
	eliminated, unique := plurality(r.Tally(players).VoteCountsByTargetID, rng)
	if eliminated == "" {
		res.Summary = SummaryNoVotes
	} else {
		res.EliminatedPlayerID = eliminated
		res.WasUnanimous = unique
		res.FraudEliminated = r.IsFraud(eliminated)
		awardVotePoints(players, r.FraudIDs, res.FraudEliminated)
		if res.FraudEliminated {
			res.Summary = SummaryFraudEliminated
		} else {
			res.Summary = SummaryFraudSurvived
		}
	}

	r.Phase = PhaseFraudGuess
	r.voteResolved = true
	r.EliminatedPlayerID = eliminated
	r.LastVoteResult = &res
	return res, nil
}

// plurality returns the most voted target. unique is false when the winner
// was drawn from a tie. An empty tally elects nobody.
func plurality(counts map[string]int, rng Rand) (target string, unique bool) {
	if len(counts) == 0 {
		return "", false
	}
	top := 0
	for _, c := range counts {
		if c > top {
			top = c
		}
	}
	var tied []string
	for id, c := range counts {
		if c == top {
			tied = append(tied, id)
		}
	}
	// Map order is random; sort so the tie-break depends only on rng.
	sort.Strings(tied)
	if len(tied) == 1 {
		return tied[0], true
	}
	target, _ = pick(rng, tied)
	return target, false
}

// SubmitFraudGuess resolves the fraud's guess of the secret word. A nil guess
// counts as no guess.
func (r *Round) SubmitFraudGuess(p *models.Player, guess *int, players []*models.Player) (correct bool, err error) {
	if r.Phase != PhaseFraudGuess {
		return false, errPhase(CodeNotGuessing, "Fraud guess is not active.")
	}
	if !r.IsFraud(p.ID) {
		return false, NewError(KindAuthorization, CodeNotFraud, "Only The Fraud can guess.")
	}
	if guess != nil && (*guess < 0 || *guess >= len(r.ClueBoard16)) {
		return false, NewError(KindValidation, CodeBadGuess, "Pick a word on the board.")
	}
	return r.resolveGuess(guess, players), nil
}

// TimeoutFraudGuess resolves the guess phase as if no guess was made.
func (r *Round) TimeoutFraudGuess(players []*models.Player) error {
	if r.Phase != PhaseFraudGuess {
		return errPhase(CodeNotGuessing, "Fraud guess is not active.")
	}
	r.resolveGuess(nil, players)
	return nil
}

func (r *Round) resolveGuess(guess *int, players []*models.Player) bool {
	correct := guess != nil && *guess == r.SecretIndex
	if correct {
		awardGuessPoints(players, r.FraudIDs)
	}
	if guess != nil {
		g := *guess
		r.FraudGuessIndex = &g
	}
	r.FraudGuessCorrect = correct
	r.fraudGuessed = true
	r.Phase = PhaseFraudGuessResult
	return correct
}

func findPlayer(players []*models.Player, id string) *models.Player {
	for _, p := range players {
		if p.ID == id {
			return p
		}
	}
	return nil
}
