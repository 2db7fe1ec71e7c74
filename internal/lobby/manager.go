// internal/lobby/manager.go
package lobby

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jason-s-yu/fraud/internal/catalog"
	"github.com/jason-s-yu/fraud/internal/game"
	"github.com/jason-s-yu/fraud/internal/idgen"
	"github.com/jason-s-yu/fraud/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultContinueDelay = 10 * time.Second
	DefaultEmptyLobbyTTL = 2 * time.Minute

	MinLobbyNameLength    = 3
	MaxLobbyNameLength    = 24
	MaxPlayerNameLength   = 24
	MaxProfileImageLength = 1_000_000

	maxIDAttempts = 16
	recordTimeout = 5 * time.Second
)

// NameFilter decides whether a lobby name is acceptable.
type NameFilter interface {
	Allowed(name string) bool
}

// AvatarSource returns the best known image reference for a player, or "".
type AvatarSource interface {
	AvatarURL(ctx context.Context, playerID string) (string, error)
}

// ActionRecorder receives every accepted lobby action. Record must not block.
type ActionRecorder interface {
	Record(rec models.ActionRecord)
}

// ResultRecorder stores finished games.
type ResultRecorder interface {
	RecordGame(ctx context.Context, rec models.GameRecord) error
}

type allowAll struct{}

func (allowAll) Allowed(string) bool { return true }

type noAvatars struct{}

func (noAvatars) AvatarURL(context.Context, string) (string, error) { return "", nil }

type discardActions struct{}

func (discardActions) Record(models.ActionRecord) {}

type discardResults struct{}

func (discardResults) RecordGame(context.Context, models.GameRecord) error { return nil }

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Content       game.Content
	Names         NameFilter
	Avatars       AvatarSource
	Actions       ActionRecorder
	Results       ResultRecorder
	Rand          game.Rand
	ContinueDelay time.Duration
	EmptyLobbyTTL time.Duration
	Logger        *logrus.Logger
}

type membership struct {
	lobbyID  string
	playerID string
}

// Manager owns every lobby and every open connection, and runs all lobby
// actions. m.mu guards conns only and, like the store lock, is never held
// while a lobby lock is acquired.
type Manager struct {
	store         *Store
	content       game.Content
	names         NameFilter
	avatars       AvatarSource
	actions       ActionRecorder
	results       ResultRecorder
	rng           game.Rand
	continueDelay time.Duration
	emptyTTL      time.Duration
	logger        *logrus.Logger
	now           func() time.Time

	mu    sync.Mutex
	conns map[*Connection]membership // zero membership: not in a lobby
}

// NewManager builds a Manager. Without Content the embedded catalog is used.
func NewManager(opts Options) (*Manager, error) {
	m := &Manager{
		store:         NewStore(),
		content:       opts.Content,
		names:         opts.Names,
		avatars:       opts.Avatars,
		actions:       opts.Actions,
		results:       opts.Results,
		rng:           opts.Rand,
		continueDelay: opts.ContinueDelay,
		emptyTTL:      opts.EmptyLobbyTTL,
		logger:        opts.Logger,
		now:           time.Now,
		conns:         make(map[*Connection]membership),
	}
	if m.content == nil {
		c, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("loading default catalog: %w", err)
		}
		m.content = c
	}
	if m.names == nil {
		m.names = allowAll{}
	}
	if m.avatars == nil {
		m.avatars = noAvatars{}
	}
	if m.actions == nil {
		m.actions = discardActions{}
	}
	if m.results == nil {
		m.results = discardResults{}
	}
	if m.rng == nil {
		m.rng = game.CryptoRand()
	}
	if m.continueDelay <= 0 {
		m.continueDelay = DefaultContinueDelay
	}
	if m.emptyTTL <= 0 {
		m.emptyTTL = DefaultEmptyLobbyTTL
	}
	if m.logger == nil {
		m.logger = logrus.StandardLogger()
	}
	return m, nil
}

// Store exposes the lobby registry.
func (m *Manager) Store() *Store { return m.store }

func (m *Manager) connections() []*Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Connection, 0, len(m.conns))
	for c := range m.conns {
		out = append(out, c)
	}
	return out
}

func (m *Manager) membership(conn *Connection) (membership, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms := m.conns[conn]
	return ms, ms.lobbyID != ""
}

func (m *Manager) setMembership(conn *Connection, ms membership) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conns[conn]; ok {
		m.conns[conn] = ms
	}
}

// clearMembership forgets conn's lobby if it is still lobbyID.
func (m *Manager) clearMembership(conn *Connection, lobbyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ms, ok := m.conns[conn]; ok && ms.lobbyID == lobbyID {
		m.conns[conn] = membership{}
	}
}

// Connect registers a new socket and sends it the public lobby list.
func (m *Manager) Connect(conn *Connection) {
	m.mu.Lock()
	m.conns[conn] = membership{}
	m.mu.Unlock()
	conn.Write(Event{Type: EventLobbyList, Payload: LobbyListPayload{Lobbies: m.store.Summaries()}})
}

// Disconnect removes the socket and its player, if it still owns one.
func (m *Manager) Disconnect(conn *Connection) {
	ms, inLobby := m.membership(conn)
	if inLobby {
		m.leave(conn, ms)
	}
	m.mu.Lock()
	delete(m.conns, conn)
	m.mu.Unlock()
}

// ListLobbies returns the public lobby list.
func (m *Manager) ListLobbies() []Summary {
	return m.store.Summaries()
}

// SendLobbyList answers a LOBBY_LIST_REQUEST.
func (m *Manager) SendLobbyList(conn *Connection) {
	conn.Write(Event{Type: EventLobbyList, Payload: LobbyListPayload{Lobbies: m.store.Summaries()}})
}

// Shutdown stops every pending task and drops all lobbies.
func (m *Manager) Shutdown() {
	for _, l := range m.store.Lobbies() {
		l.Mu.Lock()
		m.closeUnsafe(l)
		l.Mu.Unlock()
	}
}

// CreateLobbyRequest is the LOBBY_CREATE payload.
type CreateLobbyRequest struct {
	Name             string
	IsPrivate        bool
	SettingsDefaults map[string]interface{}
}

type CreateLobbyResult struct {
	LobbyID   string `json:"lobbyId"`
	LobbyCode string `json:"lobbyCode"`
	LobbyName string `json:"lobbyName"`
}

// CreateLobby registers an empty lobby. The creator joins it separately; a
// lobby nobody joins is dropped after the empty lobby TTL.
func (m *Manager) CreateLobby(req CreateLobbyRequest) (CreateLobbyResult, error) {
	name := strings.TrimSpace(req.Name)
	n := utf8.RuneCountInString(name)
	if n < MinLobbyNameLength || n > MaxLobbyNameLength {
		return CreateLobbyResult{}, game.NewError(game.KindValidation, game.CodeBadLobbyName,
			fmt.Sprintf("Lobby name must be %d-%d characters.", MinLobbyNameLength, MaxLobbyNameLength))
	}
	if !m.names.Allowed(name) {
		return CreateLobbyResult{}, game.NewError(game.KindValidation, game.CodeBadLobbyName, "Pick a different lobby name.")
	}

	settings := game.DefaultSettings()
	if len(req.SettingsDefaults) > 0 {
		if err := settings.Update(req.SettingsDefaults, m.builtin); err != nil {
			return CreateLobbyResult{}, game.NewError(game.KindValidation, game.CodeBadSettings, err.Error())
		}
	}

	for i := 0; i < maxIDAttempts; i++ {
		id, code := idgen.LobbyID(), idgen.LobbyCode()
		if id == code || m.store.Taken(id) || m.store.Taken(code) {
			continue
		}
		l := newLobby(id, code, name, req.IsPrivate, settings, m.now())
		l.Mu.Lock()
		if err := m.store.Add(l, Summarize(l)); err != nil {
			l.Mu.Unlock()
			continue
		}
		l.scheduleUnsafe("reap_empty", m.emptyTTL, func() {
			if len(l.Players) == 0 {
				m.logger.WithField("lobby", l.ID).Info("dropping lobby nobody joined")
				m.closeUnsafe(l)
			}
		})
		m.recordUnsafe(l, "", "lobby_create", map[string]interface{}{"isPrivate": l.IsPrivate})
		l.Mu.Unlock()

		m.logger.WithFields(logrus.Fields{"lobby": id, "private": req.IsPrivate}).Info("lobby created")
		if !req.IsPrivate {
			m.broadcastLobbyList()
		}
		return CreateLobbyResult{LobbyID: id, LobbyCode: code, LobbyName: name}, nil
	}
	return CreateLobbyResult{}, game.NewError(game.KindInternal, game.CodeInternal, "Could not allocate a lobby id.")
}

// JoinRequest is the LOBBY_JOIN payload.
type JoinRequest struct {
	LobbyID      string
	LobbyCode    string
	PlayerName   string
	PlayerID     string
	ProfileImage string
}

type JoinResult struct {
	LobbyID      string  `json:"lobbyId"`
	HostPlayerID *string `json:"hostPlayerId"`
	LobbyCode    string  `json:"lobbyCode"`
}

// JoinLobby adds (or re-attaches) the connection's player to a lobby. A
// player id already present keeps its points and join time; the connection
// previously bound to it is unbound.
func (m *Manager) JoinLobby(ctx context.Context, conn *Connection, req JoinRequest) (JoinResult, error) {
	if !models.ValidPlayerID(req.PlayerID) {
		return JoinResult{}, game.NewError(game.KindValidation, game.CodeBadJoin, "Invalid player id.")
	}
	name := game.CleanText(req.PlayerName, MaxPlayerNameLength)
	if name == "" {
		return JoinResult{}, game.NewError(game.KindValidation, game.CodeBadJoin, "Enter a name.")
	}
	if len(req.ProfileImage) >= MaxProfileImageLength {
		return JoinResult{}, game.NewError(game.KindCapacity, game.CodeBadImage, "Profile image is too large.")
	}

	l, err := m.resolveJoinTarget(req)
	if err != nil {
		return JoinResult{}, err
	}

	image := req.ProfileImage
	if stored, err := m.avatars.AvatarURL(ctx, req.PlayerID); err != nil {
		m.logger.WithError(err).WithField("player", req.PlayerID).Warn("avatar lookup failed")
	} else if stored != "" {
		image = stored
	}

	prev, bound := m.membership(conn)
	switching := bound && (prev.lobbyID != l.ID || prev.playerID != req.PlayerID)
	if switching && prev.lobbyID != l.ID {
		m.leave(conn, prev)
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.closed {
		return JoinResult{}, game.ErrLobbyNotFound()
	}

	// Same lobby under another player id: the old entry goes without the
	// lobby ever emptying out.
	replaced := false
	if switching && prev.lobbyID == l.ID && l.conns[prev.playerID] == conn {
		m.clearMembership(conn, l.ID)
		l.removePlayerUnsafe(prev.playerID)
		m.recordUnsafe(l, prev.playerID, "lobby_leave", nil)
		replaced = true
	}

	p := l.playerUnsafe(req.PlayerID)
	if p == nil {
		p = &models.Player{
			ID:       req.PlayerID,
			JoinedAt: m.now(),
			Pending:  l.Round.Phase != game.PhaseLobby,
		}
		l.Players = append(l.Players, p)
	}
	p.Name = name
	p.Connected = true
	if image != "" {
		p.ProfileImage = image
	}

	if old, ok := l.conns[p.ID]; ok && old != conn {
		m.clearMembership(old, l.ID)
		m.logger.WithFields(logrus.Fields{"lobby": l.ID, "player": p.ID}).Info("player taken over by a new connection")
	}
	l.conns[p.ID] = conn
	m.setMembership(conn, membership{lobbyID: l.ID, playerID: p.ID})

	if l.repairHostUnsafe() {
		l.broadcastHostUnsafe()
	}
	m.recordUnsafe(l, p.ID, "lobby_join", map[string]interface{}{"name": p.Name, "pending": p.Pending})

	l.broadcastStateUnsafe()
	if l.Round.Phase.InRound() && !p.Pending {
		conn.Write(Event{Type: EventGameStarted, Payload: roundStartFor(l, p.ID)})
	}
	if replaced {
		m.settleRoundUnsafe(l)
	}
	m.publishUnsafe(l)

	return JoinResult{LobbyID: l.ID, HostPlayerID: nullable(l.HostPlayerID), LobbyCode: l.Code}, nil
}

func (m *Manager) resolveJoinTarget(req JoinRequest) (*Lobby, error) {
	code := idgen.Normalize(req.LobbyCode)
	switch {
	case strings.TrimSpace(req.LobbyID) != "":
		l, ok := m.store.Get(idgen.Normalize(req.LobbyID))
		if !ok {
			return nil, game.ErrLobbyNotFound()
		}
		if l.IsPrivate && code != l.Code {
			return nil, game.NewError(game.KindAuthorization, game.CodeBadLobbyCode, "This lobby needs a join code.")
		}
		return l, nil
	case code != "":
		l, ok := m.store.FindByCode(code)
		if !ok {
			return nil, game.NewError(game.KindNotFound, game.CodeBadLobbyCode, "No lobby with that code.")
		}
		return l, nil
	default:
		return nil, game.NewError(game.KindValidation, game.CodeBadJoin, "Pick a lobby or enter a code.")
	}
}

// LeaveLobby removes the connection's player from its lobby.
func (m *Manager) LeaveLobby(conn *Connection) error {
	ms, ok := m.membership(conn)
	if !ok {
		return game.ErrNotInLobby()
	}
	m.leave(conn, ms)
	return nil
}

func (m *Manager) leave(conn *Connection, ms membership) {
	m.clearMembership(conn, ms.lobbyID)
	l, ok := m.store.Get(ms.lobbyID)
	if !ok {
		return
	}
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.closed || l.conns[ms.playerID] != conn {
		return
	}
	l.removePlayerUnsafe(ms.playerID)
	m.recordUnsafe(l, ms.playerID, "lobby_leave", nil)
	m.afterRemovalUnsafe(l)
}

// afterRemovalUnsafe repairs the host and closes the lobby once empty.
func (m *Manager) afterRemovalUnsafe(l *Lobby) {
	if len(l.Players) == 0 {
		m.logger.WithField("lobby", l.ID).Info("last player left, closing lobby")
		m.closeUnsafe(l)
		return
	}
	if l.repairHostUnsafe() {
		l.broadcastHostUnsafe()
	}
	if !m.settleRoundUnsafe(l) {
		l.broadcastStateUnsafe()
	}
	m.publishUnsafe(l)
}

// settleRoundUnsafe moves the round on when a departure left nobody to wait
// for: the last fraud during the guess, or the last missing voter.
func (m *Manager) settleRoundUnsafe(l *Lobby) bool {
	switch l.Round.Phase {
	case game.PhaseFraudGuess:
		if m.fraudPresentUnsafe(l) {
			return false
		}
		if err := l.Round.TimeoutFraudGuess(l.Players); err != nil {
			return false
		}
		m.afterGuessUnsafe(l, true)
		return true
	case game.PhaseVoting:
		if !l.Round.Tally(l.Players).AllSubmitted {
			return false
		}
		return m.resolveVotesUnsafe(l, false) == nil
	}
	return false
}

// closeUnsafe removes l from the registry and unbinds its connections.
func (m *Manager) closeUnsafe(l *Lobby) {
	if l.closed {
		return
	}
	l.closed = true
	l.cancelTaskUnsafe()
	m.store.Delete(l.ID)
	for _, c := range l.conns {
		m.clearMembership(c, l.ID)
	}
	l.conns = map[string]*Connection{}
	if !l.IsPrivate {
		m.broadcastLobbyList()
	}
}

// withLobby runs fn with the connection's lobby locked and its player resolved.
func (m *Manager) withLobby(conn *Connection, fn func(l *Lobby, p *models.Player) error) error {
	ms, ok := m.membership(conn)
	if !ok {
		return game.ErrNotInLobby()
	}
	l, ok := m.store.Get(ms.lobbyID)
	if !ok {
		m.clearMembership(conn, ms.lobbyID)
		return game.ErrLobbyNotFound()
	}
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.closed {
		return game.ErrLobbyNotFound()
	}
	p := l.playerUnsafe(ms.playerID)
	if p == nil || l.conns[p.ID] != conn {
		return game.ErrNotInLobby()
	}
	return fn(l, p)
}

func requireHost(l *Lobby, p *models.Player, msg string) error {
	if !l.isHostUnsafe(p.ID) {
		return game.ErrNotHost(msg)
	}
	return nil
}

func (m *Manager) builtin(id string) bool {
	_, ok := m.content.Category(id)
	return ok
}

// UpdateProfile sets the player's profile image. A nil image clears it;
// refresh asks the avatar store for the current reference instead.
func (m *Manager) UpdateProfile(ctx context.Context, conn *Connection, image *string, refresh bool) (string, error) {
	ms, ok := m.membership(conn)
	if !ok {
		return "", game.ErrNotInLobby()
	}
	next := ""
	switch {
	case refresh:
		stored, err := m.avatars.AvatarURL(ctx, ms.playerID)
		if err != nil {
			m.logger.WithError(err).WithField("player", ms.playerID).Warn("avatar lookup failed")
			return "", game.NewError(game.KindInternal, game.CodeInternal, "Could not load your avatar.")
		}
		next = stored
	case image != nil:
		if len(*image) >= MaxProfileImageLength {
			return "", game.NewError(game.KindCapacity, game.CodeBadImage, "Profile image is too large.")
		}
		next = strings.TrimSpace(*image)
	}

	err := m.withLobby(conn, func(l *Lobby, p *models.Player) error {
		p.ProfileImage = next
		m.recordUnsafe(l, p.ID, "profile_update", nil)
		l.broadcastStateUnsafe()
		return nil
	})
	return next, err
}

// UpdateSettings applies a partial settings object. Host only, between rounds.
func (m *Manager) UpdateSettings(conn *Connection, partial map[string]interface{}) error {
	return m.withLobby(conn, func(l *Lobby, p *models.Player) error {
		if err := requireHost(l, p, "Only the host can change settings."); err != nil {
			return err
		}
		if l.Round.Phase != game.PhaseLobby {
			return game.NewError(game.KindPhaseMismatch, game.CodeInGame, "Settings are locked during a game.")
		}
		if err := l.Settings.Update(partial, m.builtin); err != nil {
			return game.NewError(game.KindValidation, game.CodeBadSettings, err.Error())
		}
		m.recordUnsafe(l, p.ID, "settings_update", partial)
		l.broadcastStateUnsafe()
		return nil
	})
}

// TransferHost hands the host role to another member.
func (m *Manager) TransferHost(conn *Connection, newHostID string) error {
	return m.withLobby(conn, func(l *Lobby, p *models.Player) error {
		if err := requireHost(l, p, "Only the host can transfer host."); err != nil {
			return err
		}
		if l.playerUnsafe(newHostID) == nil {
			return game.NewError(game.KindValidation, game.CodeBadTarget, "Pick a player in this lobby.")
		}
		if newHostID == l.HostPlayerID {
			return nil
		}
		l.HostPlayerID = newHostID
		m.recordUnsafe(l, p.ID, "host_transfer", map[string]interface{}{"newHostPlayerId": newHostID})
		l.broadcastHostUnsafe()
		l.broadcastStateUnsafe()
		return nil
	})
}

// StartGame starts the next round. After a won game the scores start over.
func (m *Manager) StartGame(conn *Connection) error {
	return m.withLobby(conn, func(l *Lobby, p *models.Player) error {
		if err := requireHost(l, p, "Only the host can start the game."); err != nil {
			return err
		}
		if ph := l.Round.Phase; ph != game.PhaseLobby && ph != game.PhaseRoundResults {
			return game.NewError(game.KindPhaseMismatch, game.CodeInGame, "A round is already in progress.")
		}
		l.cancelTaskUnsafe()
		if l.Round.GameWon() {
			game.ResetPoints(l.Players)
			l.roundsPlayed = 0
			l.gameStartedAt = time.Time{}
		}
		if l.gameStartedAt.IsZero() {
			l.gameStartedAt = m.now()
		}
		m.recordUnsafe(l, p.ID, "game_start", nil)
		m.startRoundUnsafe(l)
		return nil
	})
}

func (m *Manager) startRoundUnsafe(l *Lobby) {
	l.Round = game.StartRound(l.Players, l.Round, game.RoundSetup{
		RoundID:  idgen.RoundID(),
		Settings: l.Settings,
		Content:  m.content,
		Rand:     m.rng,
	})
	l.roundsPlayed++
	m.logger.WithFields(logrus.Fields{
		"lobby":    l.ID,
		"round":    l.Round.RoundID,
		"category": l.Round.CategoryID,
		"frauds":   len(l.Round.FraudIDs),
	}).Info("round started")

	l.broadcastRoundStartUnsafe()
	l.broadcastStateUnsafe()
	m.publishUnsafe(l)

	if l.Settings.TimeLimitEnabled {
		l.scheduleUnsafe("clues_time_limit", m.timeLimit(l), func() {
			if err := l.Round.StartVoting(); err == nil {
				m.recordUnsafe(l, "", "voting_start_timeout", nil)
				m.enterVotingUnsafe(l)
			}
		})
	}
}

func (m *Manager) timeLimit(l *Lobby) time.Duration {
	return time.Duration(l.Settings.TimeLimitSeconds) * time.Second
}

// SubmitClue stores the player's clue for this round.
func (m *Manager) SubmitClue(conn *Connection, text string) error {
	return m.withLobby(conn, func(l *Lobby, p *models.Player) error {
		if err := l.Round.SubmitClue(p, text); err != nil {
			return err
		}
		m.recordUnsafe(l, p.ID, "clue_submit", map[string]interface{}{"clue": l.Round.CluesByPlayerID[p.ID]})
		l.broadcastStateUnsafe()
		return nil
	})
}

// ReadyProgress is the VOTE_TO_START_VOTING ack data.
type ReadyProgress struct {
	VoteCount     int `json:"voteCount"`
	RequiredVotes int `json:"requiredVotes"`
}

// SignalReadyToVote counts the player towards starting the vote.
func (m *Manager) SignalReadyToVote(conn *Connection) (ReadyProgress, error) {
	var out ReadyProgress
	err := m.withLobby(conn, func(l *Lobby, p *models.Player) error {
		count, required, started, err := l.Round.ReadyToVote(p, l.Players)
		if err != nil {
			return err
		}
		out = ReadyProgress{VoteCount: count, RequiredVotes: required}
		m.recordUnsafe(l, p.ID, "vote_to_start_voting", nil)
		if started {
			m.enterVotingUnsafe(l)
			return nil
		}
		l.broadcastUnsafe(EventVoteState, readinessFor(l, count, required))
		l.broadcastStateUnsafe()
		return nil
	})
	return out, err
}

// ForceStartVoting ends the clue phase. Host only.
func (m *Manager) ForceStartVoting(conn *Connection) error {
	return m.withLobby(conn, func(l *Lobby, p *models.Player) error {
		if err := requireHost(l, p, "Only the host can start voting."); err != nil {
			return err
		}
		if err := l.Round.StartVoting(); err != nil {
			return err
		}
		m.recordUnsafe(l, p.ID, "voting_start", nil)
		m.enterVotingUnsafe(l)
		return nil
	})
}

func (m *Manager) enterVotingUnsafe(l *Lobby) {
	l.cancelTaskUnsafe()
	l.broadcastUnsafe(EventVoteState, voteStateFor(l))
	l.broadcastStateUnsafe()
}

// CastVote records a vote. The vote resolves once every active player voted.
func (m *Manager) CastVote(conn *Connection, targetID string) error {
	return m.withLobby(conn, func(l *Lobby, p *models.Player) error {
		complete, err := l.Round.CastVote(p, targetID, l.Players)
		if err != nil {
			return err
		}
		m.recordUnsafe(l, p.ID, "vote_submit", map[string]interface{}{"targetPlayerId": targetID})
		l.broadcastUnsafe(EventVoteState, voteStateFor(l))
		if complete {
			return m.resolveVotesUnsafe(l, false)
		}
		l.broadcastStateUnsafe()
		return nil
	})
}

// EndVotingEarly resolves the vote with the votes cast so far. Host only.
func (m *Manager) EndVotingEarly(conn *Connection) error {
	return m.withLobby(conn, func(l *Lobby, p *models.Player) error {
		if err := requireHost(l, p, "Only the host can end voting."); err != nil {
			return err
		}
		if err := m.resolveVotesUnsafe(l, true); err != nil {
			return err
		}
		m.recordUnsafe(l, p.ID, "voting_end_early", nil)
		return nil
	})
}

func (m *Manager) resolveVotesUnsafe(l *Lobby, early bool) error {
	res, err := l.Round.ResolveVotes(l.Players, m.rng, early)
	if err != nil {
		return err
	}
	l.cancelTaskUnsafe()
	m.logger.WithFields(logrus.Fields{
		"lobby":      l.ID,
		"round":      l.Round.RoundID,
		"eliminated": res.EliminatedPlayerID,
		"fraudOut":   res.FraudEliminated,
	}).Info("vote resolved")

	l.broadcastUnsafe(EventVoteReveal, VoteRevealPayload{
		LobbyID:  l.ID,
		FraudIDs: append([]string(nil), l.Round.FraudIDs...),
		ResultsSummary: ResultsSummary{
			EndedEarly:         res.EndedEarly,
			EliminatedPlayerID: res.EliminatedPlayerID,
			FraudEliminated:    res.FraudEliminated,
			WasUnanimous:       res.WasUnanimous,
			Summary:            res.Summary,
		},
	})
	l.broadcastScoresUnsafe()
	if m.checkWinUnsafe(l) {
		return nil
	}

	if !m.fraudPresentUnsafe(l) {
		_ = l.Round.TimeoutFraudGuess(l.Players)
		m.afterGuessUnsafe(l, true)
		return nil
	}
	l.promptFraudsUnsafe()
	l.broadcastStateUnsafe()
	if l.Settings.TimeLimitEnabled {
		l.scheduleUnsafe("fraud_guess_time_limit", m.timeLimit(l), func() {
			if err := l.Round.TimeoutFraudGuess(l.Players); err == nil {
				m.recordUnsafe(l, "", "fraud_guess_timeout", nil)
				m.afterGuessUnsafe(l, true)
			}
		})
	}
	return nil
}

func (m *Manager) fraudPresentUnsafe(l *Lobby) bool {
	for _, id := range l.Round.FraudIDs {
		if p := l.playerUnsafe(id); p != nil && p.Connected {
			return true
		}
	}
	return false
}

// FraudGuessResult is the FRAUD_GUESS ack data.
type FraudGuessResult struct {
	Correct bool `json:"correct"`
}

// SubmitFraudGuess resolves the fraud's guess. A nil guess gives up.
func (m *Manager) SubmitFraudGuess(conn *Connection, guess *int) (FraudGuessResult, error) {
	var out FraudGuessResult
	err := m.withLobby(conn, func(l *Lobby, p *models.Player) error {
		correct, err := l.Round.SubmitFraudGuess(p, guess, l.Players)
		if err != nil {
			return err
		}
		out.Correct = correct
		l.cancelTaskUnsafe()
		payload := map[string]interface{}{"guessIndex": nil, "correct": correct}
		if guess != nil {
			payload["guessIndex"] = *guess
		}
		m.recordUnsafe(l, p.ID, "fraud_guess", payload)
		m.afterGuessUnsafe(l, false)
		return nil
	})
	return out, err
}

// afterGuessUnsafe announces the guess outcome and either ends the game or
// schedules the next round.
func (m *Manager) afterGuessUnsafe(l *Lobby, timedOut bool) {
	l.broadcastGuessResultUnsafe(timedOut)
	l.broadcastScoresUnsafe()
	if m.checkWinUnsafe(l) {
		return
	}
	l.broadcastRoundEndUnsafe(l.Round.Results(l.Players, game.ReasonRoundComplete))
	l.broadcastStateUnsafe()
	l.scheduleUnsafe("next_round", m.continueDelay, func() {
		if m.checkWinUnsafe(l) {
			return
		}
		m.startRoundUnsafe(l)
	})
}

// checkWinUnsafe ends the game when someone reached the winning score.
func (m *Manager) checkWinUnsafe(l *Lobby) bool {
	winner, ok := game.Winner(l.Players)
	if !ok {
		return false
	}
	l.cancelTaskUnsafe()
	res := l.Round.FinishGame(l.Players, winner)
	m.logger.WithFields(logrus.Fields{"lobby": l.ID, "winner": winner.PlayerID, "points": winner.Points}).Info("game won")

	l.broadcastRoundEndUnsafe(res)
	l.broadcastScoresUnsafe()
	l.broadcastStateUnsafe()
	m.publishUnsafe(l)
	m.recordUnsafe(l, winner.PlayerID, "game_won", map[string]interface{}{"points": winner.Points})

	rec := models.GameRecord{
		LobbyID:      l.ID,
		LobbyName:    l.Name,
		WinnerID:     winner.PlayerID,
		WinnerName:   winner.Name,
		RoundsPlayed: l.roundsPlayed,
		StartedAt:    l.gameStartedAt,
		FinishedAt:   m.now(),
		Standings:    game.Leaderboard(l.Players),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := m.results.RecordGame(ctx, rec); err != nil {
			m.logger.WithError(err).WithField("lobby", rec.LobbyID).Error("failed to record game result")
		}
	}()
	return true
}

// EndRound stops the current round and shows its results before returning
// to the lobby. Host only.
func (m *Manager) EndRound(conn *Connection) error {
	return m.withLobby(conn, func(l *Lobby, p *models.Player) error {
		if err := requireHost(l, p, "Only the host can end the round."); err != nil {
			return err
		}
		res, err := l.Round.End(l.Players, game.ReasonHostEnded)
		if err != nil {
			return err
		}
		l.cancelTaskUnsafe()
		m.recordUnsafe(l, p.ID, "round_end", nil)

		l.broadcastRoundEndUnsafe(res)
		l.broadcastScoresUnsafe()
		l.broadcastStateUnsafe()
		m.publishUnsafe(l)
		l.scheduleUnsafe("return_to_lobby", m.continueDelay, func() {
			if err := l.Round.ReturnToLobby(); err == nil {
				l.broadcastStateUnsafe()
				m.publishUnsafe(l)
			}
		})
		return nil
	})
}

// SendChat broadcasts a chat line to the lobby.
func (m *Manager) SendChat(conn *Connection, text string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := m.withLobby(conn, func(l *Lobby, p *models.Player) error {
		clean := game.CleanText(text, game.MaxClueLength)
		if clean == "" {
			e := game.NewError(game.KindValidation, game.CodeBadMessage, "Message cannot be empty.")
			e.Quiet = true
			return e
		}
		msg = models.ChatMessage{
			ID:           idgen.MessageID(),
			At:           m.now().UnixMilli(),
			FromPlayerID: p.ID,
			FromName:     p.Name,
			Text:         clean,
		}
		m.recordUnsafe(l, p.ID, "chat_send", map[string]interface{}{"messageId": msg.ID})
		l.broadcastUnsafe(EventChatMessage, ChatMessagePayload{LobbyID: l.ID, MessageObj: msg})
		return nil
	})
	return msg, err
}

func (m *Manager) recordUnsafe(l *Lobby, actorID, action string, payload map[string]interface{}) {
	m.actions.Record(models.ActionRecord{
		LobbyID:       l.ID,
		RoundID:       l.Round.RoundID,
		ActionIndex:   l.nextActionIndexUnsafe(),
		ActorPlayerID: actorID,
		ActionType:    action,
		ActionPayload: payload,
		Timestamp:     m.now().UnixMilli(),
	})
}
