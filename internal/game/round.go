// internal/game/round.go
package game

import (
	"strings"
	"unicode/utf8"

	"github.com/jason-s-yu/fraud/internal/catalog"
	"github.com/jason-s-yu/fraud/internal/models"
)

// MaxClueLength caps clue and chat text, in characters.
const MaxClueLength = 280

// Content resolves built-in category ids to their boards.
type Content interface {
	Category(id string) (catalog.Category, bool)
	First() catalog.Category
}

// Round is the state of the current (or last) round of a lobby. A lobby
// always owns exactly one Round; in PhaseLobby most fields are empty.
type Round struct {
	Phase        Phase
	RoundID      string
	CategoryID   string
	CategoryName string
	ClueBoard16  []string

	// SecretIndex is the position of the secret word on ClueBoard16. It is
	// never serialized and only leaves the server in round-start events sent
	// to non-fraud players.
	SecretIndex int `json:"-"`

	FraudIDs         []string
	StartingPlayerID string

	CluesByPlayerID     map[string]string
	VoteToStartVoterIDs map[string]bool
	VotesByVoterID      map[string]string
	LastVoteResult      *VoteResult

	EliminatedPlayerID string
	FraudGuessIndex    *int
	FraudGuessCorrect  bool
	voteResolved       bool
	fraudGuessed       bool
}

// NewRound returns the idle round of a lobby that has not started a game.
func NewRound() *Round {
	return &Round{
		Phase:               PhaseLobby,
		CluesByPlayerID:     map[string]string{},
		VoteToStartVoterIDs: map[string]bool{},
		VotesByVoterID:      map[string]string{},
	}
}

// RoundSetup carries everything StartRound needs besides the roster.
type RoundSetup struct {
	RoundID  string
	Settings Settings
	Content  Content
	Rand     Rand
}

// StartRound begins a new round in PhaseClues. Pending players become active
// first, so they take part in fraud selection. The previous round's vote
// result is carried over so clients can still show it.
func StartRound(players []*models.Player, prev *Round, setup RoundSetup) *Round {
	for _, p := range players {
		p.Pending = false
	}

	category := resolveCategory(setup)
	board, _ := pick(setup.Rand, category.Boards)

	r := NewRound()
	r.Phase = PhaseClues
	r.RoundID = setup.RoundID
	r.CategoryID = category.ID
	r.CategoryName = category.Name
	r.ClueBoard16 = append([]string(nil), board.Clues16...)
	r.SecretIndex = setup.Rand.Intn(catalog.BoardSize)
	r.FraudIDs = ChooseFrauds(players, setup.Settings, setup.Rand)
	r.StartingPlayerID = chooseStartingPlayer(players, r.FraudIDs, setup.Settings, setup.Rand)
	if prev != nil {
		r.LastVoteResult = prev.LastVoteResult
	}
	return r
}

// resolveCategory picks one of the selected categories, preferring the
// built-in catalog, then the lobby's custom categories, then the first
// built-in category.
func resolveCategory(setup RoundSetup) catalog.Category {
	ids := setup.Settings.Categories
	if len(ids) == 0 {
		ids = DefaultSettings().Categories
	}
	id, _ := pick(setup.Rand, ids)
	if c, ok := setup.Content.Category(id); ok {
		return c
	}
	if c, ok := setup.Settings.CustomCategory(id); ok {
		return c
	}
	return setup.Content.First()
}

// ActiveIDs returns the ids of connected, non-pending players in roster order.
func ActiveIDs(players []*models.Player) []string {
	ids := make([]string, 0, len(players))
	for _, p := range players {
		if p.Active() {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// FraudCount returns how many frauds a round with n active players gets.
func FraudCount(n int, s Settings, r Rand) int {
	if n <= 0 {
		return 0
	}
	maxCount := n - 1
	if maxCount < 1 {
		maxCount = 1
	}
	if s.RandomizeImposterCount {
		return 1 + r.Intn(min(3, maxCount))
	}
	return max(1, min(s.ImposterCount, maxCount))
}

// ChooseFrauds shuffles the active players and takes the head of the shuffle.
func ChooseFrauds(players []*models.Player, s Settings, r Rand) []string {
	eligible := ActiveIDs(players)
	count := FraudCount(len(eligible), s, r)
	if count == 0 {
		return []string{}
	}
	return Shuffle(r, eligible)[:count]
}

func chooseStartingPlayer(players []*models.Player, fraudIDs []string, s Settings, r Rand) string {
	active := ActiveIDs(players)
	candidates := active
	if s.FraudNeverGoesFirst {
		candidates = make([]string, 0, len(active))
		for _, id := range active {
			if !contains(fraudIDs, id) {
				candidates = append(candidates, id)
			}
		}
		if len(candidates) == 0 {
			candidates = active
		}
	}
	id, _ := pick(r, candidates)
	return id
}

// IsFraud reports whether playerID is a fraud this round.
func (r *Round) IsFraud(playerID string) bool {
	return contains(r.FraudIDs, playerID)
}

// SecretWord returns the clue at the secret index, or "" outside a round.
func (r *Round) SecretWord() string {
	if r.SecretIndex < 0 || r.SecretIndex >= len(r.ClueBoard16) {
		return ""
	}
	return r.ClueBoard16[r.SecretIndex]
}

// SubmitClue stores the player's clue for this round, replacing an earlier one.
func (r *Round) SubmitClue(p *models.Player, text string) error {
	if r.Phase != PhaseClues {
		return errPhase(CodeNotCluesPhase, "Clues are not being collected.")
	}
	if p.Pending {
		return errPhase(CodeBadPhase, "You will join at the next round.")
	}
	clue := CleanText(text, MaxClueLength)
	if clue == "" {
		e := NewError(KindValidation, CodeBadClue, "Clue cannot be empty.")
		e.Quiet = true
		return e
	}
	r.CluesByPlayerID[p.ID] = clue
	return nil
}

// ReadyToVote records that p wants to move on to voting. Once at least half
// of the connected players (rounded up) have signalled, the round moves to
// PhaseVoting and started is true.
func (r *Round) ReadyToVote(p *models.Player, players []*models.Player) (count, required int, started bool, err error) {
	if r.Phase != PhaseClues {
		return 0, 0, false, errPhase(CodeNotCluesPhase, "Voting can only be requested during clues.")
	}
	if p.Pending {
		return 0, 0, false, errPhase(CodeBadPhase, "You will join at the next round.")
	}
	r.VoteToStartVoterIDs[p.ID] = true
	count, required = r.Readiness(players)
	if count >= required {
		if err := r.StartVoting(); err != nil {
			return count, required, false, err
		}
		return count, required, true, nil
	}
	return count, required, false, nil
}

// Readiness counts active players who asked to vote. The threshold is half
// of every connected player, pending ones included.
func (r *Round) Readiness(players []*models.Player) (count, required int) {
	connected := 0
	for _, p := range players {
		if !p.Connected {
			continue
		}
		connected++
		if p.Active() && r.VoteToStartVoterIDs[p.ID] {
			count++
		}
	}
	required = (connected + 1) / 2
	if required < 1 {
		required = 1
	}
	return count, required
}

// StartVoting moves the round from clues to voting, clearing votes and readiness.
func (r *Round) StartVoting() error {
	if r.Phase != PhaseClues {
		return errPhase(CodeNotCluesPhase, "Voting can only start during clues.")
	}
	r.Phase = PhaseVoting
	r.VotesByVoterID = map[string]string{}
	r.VoteToStartVoterIDs = map[string]bool{}
	return nil
}

// CleanText trims s and truncates it to limit characters.
func CleanText(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
