// internal/handlers/lobby_ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/fraud/internal/lobby"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ack struct {
	RequestID string          `json:"requestId"`
	OK        bool            `json:"ok"`
	Code      string          `json:"code"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
}

type client struct {
	t       *testing.T
	ctx     context.Context
	conn    *websocket.Conn
	seen    []frame // every frame read so far
	pending []frame // frames read but not yet matched by an await
}

func dial(t *testing.T, srv *httptest.Server, subprotocols ...string) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + WSPath
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: subprotocols})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c, ctx
}

func newClient(t *testing.T, srv *httptest.Server) *client {
	c, ctx := dial(t, srv, Subprotocol)
	cl := &client{t: t, ctx: ctx, conn: c}
	first := cl.read()
	require.Equal(t, string(lobby.EventLobbyList), first.Type, "every socket starts with the lobby list")
	return cl
}

func (c *client) read() frame {
	c.t.Helper()
	_, data, err := c.conn.Read(c.ctx)
	require.NoError(c.t, err)
	var f frame
	require.NoError(c.t, json.Unmarshal(data, &f))
	c.seen = append(c.seen, f)
	return f
}

func (c *client) send(typ, requestID string, payload interface{}) {
	c.t.Helper()
	data, err := json.Marshal(map[string]interface{}{"type": typ, "requestId": requestID, "payload": payload})
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.Write(c.ctx, websocket.MessageText, data))
}

// take returns the first pending or newly read frame that matches.
func (c *client) take(match func(frame) bool) frame {
	c.t.Helper()
	for i, f := range c.pending {
		if match(f) {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			return f
		}
	}
	for {
		f := c.read()
		if match(f) {
			return f
		}
		c.pending = append(c.pending, f)
	}
}

// awaitAck returns the ACK for requestID.
func (c *client) awaitAck(requestID string) ack {
	c.t.Helper()
	var a ack
	c.take(func(f frame) bool {
		if f.Type != string(lobby.EventAck) {
			return false
		}
		var candidate ack
		require.NoError(c.t, json.Unmarshal(f.Payload, &candidate))
		if candidate.RequestID != requestID {
			return false
		}
		a = candidate
		return true
	})
	return a
}

// await returns the next event of type typ.
func (c *client) await(typ lobby.EventType) frame {
	c.t.Helper()
	return c.take(func(f frame) bool { return f.Type == string(typ) })
}

func TestSocketCreateAndJoin(t *testing.T) {
	s := newTestServer(t, WSOptions{})
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	host := newClient(t, srv)
	host.send(MsgLobbyCreate, "1", map[string]interface{}{"lobbyName": "Friday", "isPrivate": false})
	a := host.awaitAck("1")
	require.True(t, a.OK, a.Error)

	var created lobby.CreateLobbyResult
	require.NoError(t, json.Unmarshal(a.Data, &created))
	assert.Equal(t, "Friday", created.LobbyName)
	assert.NotEqual(t, created.LobbyID, created.LobbyCode)

	host.send(MsgLobbyJoin, "2", map[string]interface{}{
		"lobbyId":        created.LobbyID,
		"playerName":     "Al",
		"clientPlayerId": "p1",
	})
	a = host.awaitAck("2")
	require.True(t, a.OK, a.Error)

	var joined lobby.JoinResult
	require.NoError(t, json.Unmarshal(a.Data, &joined))
	require.NotNil(t, joined.HostPlayerID)
	assert.Equal(t, "p1", *joined.HostPlayerID)

	state := host.await(lobby.EventLobbyState)
	var view lobby.LobbyView
	require.NoError(t, json.Unmarshal(state.Payload, &view))
	assert.Equal(t, created.LobbyID, view.LobbyID)
	assert.True(t, view.IsHost)
	require.Len(t, view.Players, 1)
	assert.Equal(t, "Al", view.Players[0].Name)

	guest := newClient(t, srv)
	guest.send(MsgLobbyJoin, "g1", map[string]interface{}{
		"lobbyCode":      strings.ToLower(created.LobbyCode),
		"playerName":     "Bea",
		"clientPlayerId": "p2",
	})
	require.True(t, guest.awaitAck("g1").OK)

	guest.send(MsgChatSend, "g2", map[string]string{"message": "hi all"})
	require.True(t, guest.awaitAck("g2").OK)

	chat := host.await(lobby.EventChatMessage)
	var msg lobby.ChatMessagePayload
	require.NoError(t, json.Unmarshal(chat.Payload, &msg))
	assert.Equal(t, "hi all", msg.MessageObj.Text)
	assert.Equal(t, "p2", msg.MessageObj.FromPlayerID)

	guest.send(MsgGameStart, "g3", nil)
	a = guest.awaitAck("g3")
	assert.False(t, a.OK)
	assert.Equal(t, "NOT_HOST", a.Code)
	guest.await(lobby.EventError)
}

func TestSocketBadMessages(t *testing.T) {
	s := newTestServer(t, WSOptions{})
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	cl := newClient(t, srv)

	require.NoError(t, cl.conn.Write(cl.ctx, websocket.MessageText, []byte("{not json")))
	a := cl.awaitAck("")
	assert.False(t, a.OK)
	assert.Equal(t, "BAD_REQUEST", a.Code)

	cl.send("TELEPORT", "x", nil)
	a = cl.awaitAck("x")
	assert.Equal(t, "BAD_REQUEST", a.Code)
	cl.await(lobby.EventError)

	cl.send(MsgClueSubmit, "y", map[string]string{"clue": "shark"})
	a = cl.awaitAck("y")
	assert.Equal(t, "NOT_IN_LOBBY", a.Code)

	cl.send(MsgLobbyListRequest, "z", nil)
	assert.True(t, cl.awaitAck("z").OK)
	var lists int
	for _, f := range cl.seen {
		if f.Type == string(lobby.EventLobbyList) {
			lists++
		}
	}
	assert.Equal(t, 2, lists, "one list on connect and one on request")
}

func TestSocketRateLimit(t *testing.T) {
	s := newTestServer(t, WSOptions{MessageRate: rate.Limit(0.001), MessageBurst: 1})
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	cl := newClient(t, srv)
	cl.send(MsgLobbyListRequest, "1", nil)
	assert.True(t, cl.awaitAck("1").OK)

	cl.send(MsgLobbyListRequest, "2", nil)
	a := cl.awaitAck("2")
	assert.False(t, a.OK)
	assert.Equal(t, "RATE_LIMITED", a.Code)
}

func TestSocketRequiresSubprotocol(t *testing.T) {
	s := newTestServer(t, WSOptions{})
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	c, ctx := dial(t, srv)
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, BadSubprotocolError, websocket.CloseStatus(err))
}

func TestDisconnectLeavesLobby(t *testing.T) {
	s := newTestServer(t, WSOptions{})
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	res, err := s.manager.CreateLobby(lobby.CreateLobbyRequest{Name: "Friday"})
	require.NoError(t, err)

	cl := newClient(t, srv)
	cl.send(MsgLobbyJoin, "1", map[string]interface{}{"lobbyId": res.LobbyID, "playerName": "Al", "clientPlayerId": "p1"})
	require.True(t, cl.awaitAck("1").OK)

	require.NoError(t, cl.conn.Close(websocket.StatusNormalClosure, "bye"))

	assert.Eventually(t, func() bool {
		_, ok := s.manager.Store().Get(res.LobbyID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "the last player leaving closes the lobby")
}
