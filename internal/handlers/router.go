// internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/fraud/internal/middleware"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

// WSPath is where clients open the lobby socket.
const WSPath = "/ws"

// NewRouter mounts the HTTP API and the lobby socket, wrapped in request logging.
func NewRouter(api *API, ws http.Handler, logger *logrus.Logger) http.Handler {
	if api.Logger == nil {
		api.Logger = logger
	}

	mux := httprouter.New()
	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"panic":  v,
		}).Error("panic serving request")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}

	mux.GET("/health", api.health)
	mux.GET("/api/meta", api.meta)
	mux.GET("/api/lobbies", api.listLobbies)
	mux.POST("/api/avatar", api.uploadAvatar)
	mux.GET("/avatars/:playerId", api.serveAvatar)
	mux.GET("/api/qr/:code", api.qr)
	mux.Handler(http.MethodGet, WSPath, ws)

	return middleware.LogMiddleware(logger)(nosniff(mux))
}

func nosniff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}
