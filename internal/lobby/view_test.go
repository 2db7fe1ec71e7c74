// internal/lobby/view_test.go
package lobby

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jason-s-yu/fraud/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestProjectIdleLobby(t *testing.T) {
	m := newTestManager(t, Options{})
	joined := time.UnixMilli(1_700_000_000_000)
	m.now = func() time.Time { return joined }
	l, _ := setupTable(t, m, 2)

	l.Mu.Lock()
	got := Project(l, "p2")
	l.Mu.Unlock()

	want := LobbyView{
		LobbyID:      l.ID,
		LobbyName:    "Test Lobby",
		LobbyCode:    l.Code,
		HostPlayerID: strPtr("p1"),
		Players: []PublicPlayer{
			{ID: "p1", Name: "Player p1", JoinedAt: joined.UnixMilli(), Connected: true},
			{ID: "p2", Name: "Player p2", JoinedAt: joined.UnixMilli(), Connected: true},
		},
		Settings:  game.DefaultSettings(),
		GameState: GameStateView{Phase: game.PhaseLobby},
		ViewerID:  "p2",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Project() mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectNeverLeaksSecret(t *testing.T) {
	m := newTestManager(t, Options{})
	l, conns := setupTable(t, m, 4)
	require.NoError(t, m.StartGame(conns["p1"]))
	require.NoError(t, m.SubmitClue(conns["p2"], "heist"))

	for _, phase := range []game.Phase{game.PhaseClues, game.PhaseVoting, game.PhaseFraudGuess} {
		l.Mu.Lock()
		view := Project(l, "p1")
		l.Mu.Unlock()

		assert.Equal(t, phase, view.GameState.Phase)
		data, err := json.Marshal(view)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "secretIndex")
		assert.Equal(t, "heist", view.GameState.CluesByPlayerID["p2"])
		if phase.RevealsFrauds() {
			assert.Equal(t, []string{"p1"}, view.GameState.FraudIDs)
		} else {
			assert.Empty(t, view.GameState.FraudIDs)
		}

		switch phase {
		case game.PhaseClues:
			assert.Equal(t, 2, view.GameState.VoteToStartRequired)
			require.NoError(t, m.ForceStartVoting(conns["p1"]))
		case game.PhaseVoting:
			require.NoError(t, m.CastVote(conns["p3"], "p2"))
			l.Mu.Lock()
			assert.Equal(t, []string{"p3"}, Project(l, "p4").GameState.VotedPlayerIDs)
			l.Mu.Unlock()
			require.NoError(t, m.EndVotingEarly(conns["p1"]))
		}
	}
}

func TestProjectCopiesRoundState(t *testing.T) {
	m := newTestManager(t, Options{})
	l, conns := setupTable(t, m, 3)
	require.NoError(t, m.StartGame(conns["p1"]))
	require.NoError(t, m.SubmitClue(conns["p2"], "first"))

	l.Mu.Lock()
	view := Project(l, "p2")
	l.Mu.Unlock()
	require.NoError(t, m.SubmitClue(conns["p2"], "second"))

	assert.Equal(t, "first", view.GameState.CluesByPlayerID["p2"])
	assert.False(t, view.IsHost)
}

func TestSummaryOmitsCode(t *testing.T) {
	l := storeLobby("AAAAAA", "SECRET", "Alpha", false)
	data, err := json.Marshal(Summarize(l))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"AAAAAA","name":"Alpha","playerCount":0,"inGame":false}`, string(data))
}
