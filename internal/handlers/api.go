// internal/handlers/api.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/fraud/internal/avatar"
	"github.com/jason-s-yu/fraud/internal/catalog"
	"github.com/jason-s-yu/fraud/internal/game"
	"github.com/jason-s-yu/fraud/internal/idgen"
	"github.com/jason-s-yu/fraud/internal/lobby"
	"github.com/jason-s-yu/fraud/internal/models"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

// qrSize is the edge length of generated QR codes in pixels.
const qrSize = 320

// CategoryLister lists the built-in categories.
type CategoryLister interface {
	Categories() []catalog.Meta
}

// API serves the HTTP side of the server: metadata, the public lobby list,
// avatar upload and download, and join QR codes.
type API struct {
	Manager    *lobby.Manager
	Categories CategoryLister
	Avatars    avatar.Store
	// PublicURL is the base of join links; empty derives it from the request.
	PublicURL string
	Logger    *logrus.Logger
}

type metaResponse struct {
	Categories      []catalog.Meta `json:"categories"`
	DefaultSettings game.Settings  `json:"defaultSettings"`
}

type lobbiesResponse struct {
	Lobbies []lobby.Summary `json:"lobbies"`
}

type avatarUpload struct {
	PlayerID string `json:"playerId"`
	DataURL  string `json:"dataUrl"`
}

type avatarResponse struct {
	URL string `json:"url"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"lobbies": a.Manager.Store().Len(),
	})
}

func (a *API) meta(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	resp := metaResponse{DefaultSettings: game.DefaultSettings(), Categories: []catalog.Meta{}}
	if a.Categories != nil {
		resp.Categories = a.Categories.Categories()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) listLobbies(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, lobbiesResponse{Lobbies: a.Manager.ListLobbies()})
}

// uploadAvatar stores a data URL image for a player id and returns the path
// it is served at.
func (a *API) uploadAvatar(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	r.Body = http.MaxBytesReader(w, r.Body, avatar.MaxDataURLLength+4096)

	var req avatarUpload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, avatar.ErrImageTooLarge.Error())
			return
		}
		writeJSONError(w, http.StatusBadRequest, "bad avatar request payload")
		return
	}
	if !models.ValidPlayerID(req.PlayerID) {
		writeJSONError(w, http.StatusBadRequest, "invalid playerId")
		return
	}

	img, err := avatar.ParseDataURL(req.DataURL)
	switch {
	case errors.Is(err, avatar.ErrImageTooLarge):
		writeJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	img.UpdatedAt = time.Now()

	if err := a.Avatars.Put(r.Context(), req.PlayerID, img); err != nil {
		a.Logger.WithError(err).WithField("player", req.PlayerID).Warn("failed to store avatar")
		writeJSONError(w, http.StatusInternalServerError, "could not store avatar")
		return
	}
	writeJSON(w, http.StatusOK, avatarResponse{URL: avatar.URLFor(req.PlayerID)})
}

func (a *API) serveAvatar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	playerID := ps.ByName("playerId")
	if !models.ValidPlayerID(playerID) {
		http.NotFound(w, r)
		return
	}
	img, err := a.Avatars.Get(r.Context(), playerID)
	if errors.Is(err, avatar.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		a.Logger.WithError(err).WithField("player", playerID).Warn("failed to load avatar")
		http.Error(w, "could not load avatar", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "no-cache")
	if !img.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", img.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	_, _ = w.Write(img.Data)
}

// joinBase is the scheme and host join links point at.
func (a *API) joinBase(r *http.Request) string {
	if a.PublicURL != "" {
		return strings.TrimSuffix(a.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// qr renders a PNG QR code of the join link for an existing lobby code.
func (a *API) qr(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := idgen.Normalize(ps.ByName("code"))
	if !idgen.Valid(code, idgen.LobbyCodeLength) {
		http.Error(w, "invalid lobby code", http.StatusBadRequest)
		return
	}
	if _, ok := a.Manager.Store().FindByCode(code); !ok {
		http.NotFound(w, r)
		return
	}

	png, err := qrcode.Encode(a.joinBase(r)+"/?code="+code, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
