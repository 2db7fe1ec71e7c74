// internal/handlers/protocol.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/jason-s-yu/fraud/internal/game"
	"github.com/jason-s-yu/fraud/internal/lobby"
	"github.com/sirupsen/logrus"
)

// Inbound message tags.
const (
	MsgLobbyCreate       = "LOBBY_CREATE"
	MsgLobbyJoin         = "LOBBY_JOIN"
	MsgLobbyLeave        = "LOBBY_LEAVE"
	MsgLobbyListRequest  = "LOBBY_LIST_REQUEST"
	MsgSettingsUpdate    = "SETTINGS_UPDATE"
	MsgHostTransfer      = "HOST_TRANSFER"
	MsgGameStart         = "GAME_START"
	MsgClueSubmit        = "CLUE_SUBMIT"
	MsgVoteToStartVoting = "VOTE_TO_START_VOTING"
	MsgVotingStart       = "VOTING_START"
	MsgVoteSubmit        = "VOTE_SUBMIT"
	MsgVotingEndEarly    = "VOTING_END_EARLY"
	MsgFraudGuess        = "FRAUD_GUESS"
	MsgRoundEnd          = "ROUND_END"
	MsgChatSend          = "CHAT_SEND"
	MsgProfileUpdate     = "PROFILE_UPDATE"
)

// Inbound is the envelope of every client message.
type Inbound struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type lobbyCreatePayload struct {
	LobbyName        string                 `json:"lobbyName"`
	IsPrivate        bool                   `json:"isPrivate"`
	SettingsDefaults map[string]interface{} `json:"settingsDefaults"`
}

type lobbyJoinPayload struct {
	LobbyID        string `json:"lobbyId"`
	LobbyCode      string `json:"lobbyCode"`
	PlayerName     string `json:"playerName"`
	ClientPlayerID string `json:"clientPlayerId"`
	ProfileImage   string `json:"profileImage"`
}

type settingsUpdatePayload struct {
	PartialSettings map[string]interface{} `json:"partialSettings"`
}

type hostTransferPayload struct {
	NewHostPlayerID string `json:"newHostPlayerId"`
}

type cluePayload struct {
	Clue string `json:"clue"`
}

type votePayload struct {
	TargetPlayerID string `json:"targetPlayerId"`
}

type fraudGuessPayload struct {
	GuessIndex *int `json:"guessIndex"`
}

type chatPayload struct {
	Message string `json:"message"`
}

type profileData struct {
	ProfileImage string `json:"profileImage"`
}

// Dispatcher routes decoded client messages to the lobby manager and answers
// each one with an ACK.
type Dispatcher struct {
	manager *lobby.Manager
	logger  *logrus.Logger
}

func NewDispatcher(manager *lobby.Manager, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{manager: manager, logger: logger}
}

// Decode parses one raw client frame.
func Decode(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, err
	}
	if in.Type == "" {
		return in, fmt.Errorf("message has no type")
	}
	return in, nil
}

// Reply sends the ACK for requestID. A failed request also gets an ERROR
// event unless the error is quiet.
func Reply(conn *lobby.Connection, requestID string, data interface{}, err error) {
	if err == nil {
		conn.Write(lobby.Event{Type: lobby.EventAck, Payload: lobby.AckPayload{RequestID: requestID, OK: true, Data: data}})
		return
	}
	ge := game.AsError(err)
	conn.Write(lobby.Event{Type: lobby.EventAck, Payload: lobby.AckPayload{
		RequestID: requestID,
		Code:      ge.Code,
		Error:     ge.Message,
	}})
	if !ge.Quiet {
		conn.WriteError(ge)
	}
}

// Handle runs one message. A panic inside the manager is logged and answered
// with an INTERNAL ack; the connection stays open.
func (d *Dispatcher) Handle(ctx context.Context, conn *lobby.Connection, in Inbound) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"conn":  conn.ID,
				"type":  in.Type,
				"panic": r,
			}).Errorf("panic handling message\n%s", debug.Stack())
			Reply(conn, in.RequestID, nil, game.NewError(game.KindInternal, game.CodeInternal, "Something went wrong."))
		}
	}()

	data, err := d.dispatch(ctx, conn, in)
	if err != nil {
		ge := game.AsError(err)
		entry := d.logger.WithFields(logrus.Fields{"conn": conn.ID, "type": in.Type, "code": ge.Code})
		if ge.Kind == game.KindInternal {
			entry.WithError(err).Warn("request failed")
		} else {
			entry.Debug("request rejected")
		}
	}
	Reply(conn, in.RequestID, data, err)
}

func badRequest(msg string) error {
	return game.NewError(game.KindValidation, game.CodeBadRequest, msg)
}

// decodePayload unmarshals the payload into v. An absent payload leaves v zero.
func decodePayload(in Inbound, v interface{}) error {
	if len(in.Payload) == 0 || bytes.Equal(bytes.TrimSpace(in.Payload), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(in.Payload, v); err != nil {
		return badRequest(fmt.Sprintf("Invalid %s payload.", in.Type))
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, conn *lobby.Connection, in Inbound) (interface{}, error) {
	m := d.manager
	switch in.Type {
	case MsgLobbyCreate:
		var p lobbyCreatePayload
		if err := decodePayload(in, &p); err != nil {
			return nil, err
		}
		return m.CreateLobby(lobby.CreateLobbyRequest{
			Name:             p.LobbyName,
			IsPrivate:        p.IsPrivate,
			SettingsDefaults: p.SettingsDefaults,
		})

	case MsgLobbyJoin:
		var p lobbyJoinPayload
		if err := decodePayload(in, &p); err != nil {
			return nil, err
		}
		return m.JoinLobby(ctx, conn, lobby.JoinRequest{
			LobbyID:      p.LobbyID,
			LobbyCode:    p.LobbyCode,
			PlayerName:   p.PlayerName,
			PlayerID:     p.ClientPlayerID,
			ProfileImage: p.ProfileImage,
		})

	case MsgLobbyLeave:
		return nil, m.LeaveLobby(conn)

	case MsgLobbyListRequest:
		m.SendLobbyList(conn)
		return nil, nil

	case MsgSettingsUpdate:
		var p settingsUpdatePayload
		if err := decodePayload(in, &p); err != nil {
			return nil, err
		}
		if p.PartialSettings == nil {
			return nil, game.NewError(game.KindValidation, game.CodeBadSettings, "partialSettings is required.")
		}
		return nil, m.UpdateSettings(conn, p.PartialSettings)

	case MsgHostTransfer:
		var p hostTransferPayload
		if err := decodePayload(in, &p); err != nil {
			return nil, err
		}
		return nil, m.TransferHost(conn, p.NewHostPlayerID)

	case MsgGameStart:
		return nil, m.StartGame(conn)

	case MsgClueSubmit:
		var p cluePayload
		if err := decodePayload(in, &p); err != nil {
			return nil, err
		}
		return nil, m.SubmitClue(conn, p.Clue)

	case MsgVoteToStartVoting:
		return m.SignalReadyToVote(conn)

	case MsgVotingStart:
		return nil, m.ForceStartVoting(conn)

	case MsgVoteSubmit:
		var p votePayload
		if err := decodePayload(in, &p); err != nil {
			return nil, err
		}
		return nil, m.CastVote(conn, p.TargetPlayerID)

	case MsgVotingEndEarly:
		return nil, m.EndVotingEarly(conn)

	case MsgFraudGuess:
		var p fraudGuessPayload
		if err := decodePayload(in, &p); err != nil {
			return nil, err
		}
		return m.SubmitFraudGuess(conn, p.GuessIndex)

	case MsgRoundEnd:
		return nil, m.EndRound(conn)

	case MsgChatSend:
		var p chatPayload
		if err := decodePayload(in, &p); err != nil {
			return nil, err
		}
		return m.SendChat(conn, p.Message)

	case MsgProfileUpdate:
		image, refresh, err := profileImageArg(in)
		if err != nil {
			return nil, err
		}
		ref, err := m.UpdateProfile(ctx, conn, image, refresh)
		if err != nil {
			return nil, err
		}
		return profileData{ProfileImage: ref}, nil

	default:
		return nil, badRequest(fmt.Sprintf("Unknown message type %q.", in.Type))
	}
}

// profileImageArg reads PROFILE_UPDATE's profileImage: absent asks for a
// refresh from the avatar store, null clears, a string sets.
func profileImageArg(in Inbound) (image *string, refresh bool, err error) {
	var fields map[string]json.RawMessage
	if err := decodePayload(in, &fields); err != nil {
		return nil, false, err
	}
	raw, ok := fields["profileImage"]
	if !ok {
		return nil, true, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, game.NewError(game.KindValidation, game.CodeBadImage, "profileImage must be a string or null.")
	}
	return &s, false, nil
}
