// internal/handlers/api_test.go
package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jason-s-yu/fraud/internal/avatar"
	"github.com/jason-s-yu/fraud/internal/catalog"
	"github.com/jason-s-yu/fraud/internal/lobby"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	manager *lobby.Manager
	avatars *avatar.MemoryStore
	handler http.Handler
	logger  *logrus.Logger
}

func newTestServer(t *testing.T, opts WSOptions) *testServer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	cat, err := catalog.Default()
	require.NoError(t, err)

	avatars := avatar.NewMemoryStore()
	m, err := lobby.NewManager(lobby.Options{
		Content: cat,
		Avatars: avatar.Source{Store: avatars},
		Logger:  logger,
	})
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)

	api := &API{Manager: m, Categories: cat, Avatars: avatars, Logger: logger}
	return &testServer{
		manager: m,
		avatars: avatars,
		handler: NewRouter(api, LobbyWSHandler(logger, m, opts), logger),
		logger:  logger,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func TestHealthAndMeta(t *testing.T) {
	s := newTestServer(t, WSOptions{})

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = s.do(t, http.MethodGet, "/api/meta", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var meta struct {
		Categories      []catalog.Meta         `json:"categories"`
		DefaultSettings map[string]interface{} `json:"defaultSettings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.NotEmpty(t, meta.Categories)
	assert.EqualValues(t, 1, meta.DefaultSettings["imposterCount"])
	assert.Equal(t, []interface{}{"movies"}, meta.DefaultSettings["categories"])
}

func TestListLobbies(t *testing.T) {
	s := newTestServer(t, WSOptions{})
	_, err := s.manager.CreateLobby(lobby.CreateLobbyRequest{Name: "Friday"})
	require.NoError(t, err)
	_, err = s.manager.CreateLobby(lobby.CreateLobbyRequest{Name: "Secret", IsPrivate: true})
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/api/lobbies", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Lobbies []map[string]interface{} `json:"lobbies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Lobbies, 1)
	assert.Equal(t, "Friday", resp.Lobbies[0]["name"])
	assert.NotContains(t, resp.Lobbies[0], "code")
}

func pngDataURL(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func TestAvatarUploadAndServe(t *testing.T) {
	s := newTestServer(t, WSOptions{})
	img := []byte("\x89PNG fake image bytes")

	body, _ := json.Marshal(map[string]string{"playerId": "player-1", "dataUrl": pngDataURL(img)})
	w := s.do(t, http.MethodPost, "/api/avatar", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "/avatars/player-1", resp.URL)

	w = s.do(t, http.MethodGet, resp.URL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, img, w.Body.Bytes())

	w = s.do(t, http.MethodGet, "/avatars/nobody", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAvatarUploadRejects(t *testing.T) {
	s := newTestServer(t, WSOptions{})

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", "{", http.StatusBadRequest},
		{"bad player id", `{"playerId":"has space","dataUrl":"` + pngDataURL([]byte("x")) + `"}`, http.StatusBadRequest},
		{"not an image", `{"playerId":"p1","dataUrl":"data:text/plain;base64,aGk="}`, http.StatusBadRequest},
		{"too large", `{"playerId":"p1","dataUrl":"data:image/png;base64,` + strings.Repeat("A", avatar.MaxDataURLLength) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/avatar", []byte(tc.body))
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestQRCode(t *testing.T) {
	s := newTestServer(t, WSOptions{})
	res, err := s.manager.CreateLobby(lobby.CreateLobbyRequest{Name: "Friday", IsPrivate: true})
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/api/qr/"+strings.ToLower(res.LobbyCode), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = s.do(t, http.MethodGet, "/api/qr/nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	unknown := "222222"
	if unknown == res.LobbyCode {
		unknown = "333333"
	}
	w = s.do(t, http.MethodGet, "/api/qr/"+unknown, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinBase(t *testing.T) {
	api := &API{}
	req := httptest.NewRequest(http.MethodGet, "/api/qr/ABCDEF", nil)
	req.Host = "fraud.local:8080"
	assert.Equal(t, "http://fraud.local:8080", api.joinBase(req))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://fraud.local:8080", api.joinBase(req))

	api.PublicURL = "https://play.example.com/"
	assert.Equal(t, "https://play.example.com", api.joinBase(req))
}
