// internal/game/phase.go
package game

// Phase is the lobby's position in the round state machine.
type Phase string

const (
	PhaseLobby            Phase = "lobby"
	PhaseClues            Phase = "clues"
	PhaseVoting           Phase = "voting"
	PhaseFraudGuess       Phase = "fraud_guess"
	PhaseFraudGuessResult Phase = "fraud_guess_result"
	PhaseRoundResults     Phase = "round_results"
)

var transitions = map[Phase][]Phase{
	PhaseLobby:            {PhaseClues},
	PhaseClues:            {PhaseVoting, PhaseRoundResults},
	PhaseVoting:           {PhaseFraudGuess, PhaseRoundResults, PhaseLobby},
	PhaseFraudGuess:       {PhaseFraudGuessResult, PhaseRoundResults, PhaseLobby},
	PhaseFraudGuessResult: {PhaseClues, PhaseLobby, PhaseRoundResults},
	PhaseRoundResults:     {PhaseLobby, PhaseClues},
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := transitions[p]
	return ok
}

// InRound reports whether a round is being played.
func (p Phase) InRound() bool {
	switch p {
	case PhaseClues, PhaseVoting, PhaseFraudGuess, PhaseFraudGuessResult:
		return true
	}
	return false
}

// RevealsFrauds reports whether fraud identities are public in this phase.
func (p Phase) RevealsFrauds() bool {
	switch p {
	case PhaseFraudGuess, PhaseFraudGuessResult, PhaseRoundResults:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows p -> next.
func (p Phase) CanTransitionTo(next Phase) bool {
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}
