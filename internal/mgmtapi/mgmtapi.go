// Package mgmtapi serves the management HTTP surface a backend uses to
// push data to a client, inspect a session, or close it, on the same
// listener as the WebSocket upgrade routes.
package mgmtapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/localstackws/wsgateway/internal/session"
)

// sessionStore is the subset of *session.Manager the management API needs.
type sessionStore interface {
	Push(id string, body []byte) bool
	Info(id string) (session.Info, bool)
	Delete(id string) bool
	Count() int
	List() []session.Info
	Uptime() time.Duration
}

// Identity describes the gateway instance reporting health, so a polling
// dashboard can display it without a side channel.
type Identity struct {
	Port  int
	Stage string
}

// NewMux builds a chi router serving /@connections/{id} and /health,
// mountable alongside WebSocket upgrade routes on the same listener.
func NewMux(store sessionStore, wsHandler http.HandlerFunc, identity Identity, logger *slog.Logger) *chi.Mux {
	log := logger.With("component", "mgmtapi")
	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(chimw.RealIP)
	mux.Use(securityHeadersMiddleware)

	mux.Get("/health", healthHandler(store, identity))
	mux.Get("/@connections", listConnectionsHandler(store))
	mux.Post("/@connections/{id}", pushHandler(store, log))
	mux.Get("/@connections/{id}", infoHandler(store))
	mux.Delete("/@connections/{id}", deleteHandler(store, log))

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if wsHandler != nil && isWebSocketUpgrade(r) {
			wsHandler(w, r)
			return
		}
		http.NotFound(w, r)
	})

	return mux
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func connectionID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func writeGone(w http.ResponseWriter, id string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusGone)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message":      "Gone",
		"connectionId": id,
	})
}

func pushHandler(store sessionStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := connectionID(r)
		body, err := io.ReadAll(io.LimitReader(r.Body, 128*1024))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if !store.Push(id, body) {
			writeGone(w, id)
			return
		}
		log.Debug("pushed to connection", "connectionId", id, "bytes", len(body))
		w.WriteHeader(http.StatusOK)
	}
}

func infoHandler(store sessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := connectionID(r)
		info, ok := store.Info(id)
		if !ok {
			writeGone(w, id)
			return
		}
		const isoMillis = "2006-01-02T15:04:05.000Z07:00"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"connectionId": info.ConnectionID,
			"connectedAt":  info.ConnectedAt.UTC().Format(isoMillis),
			"lastActiveAt": info.LastActiveAt.UTC().Format(isoMillis),
		})
	}
}

func deleteHandler(store sessionStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := connectionID(r)
		if !store.Delete(id) {
			writeGone(w, id)
			return
		}
		log.Debug("closed connection via management API", "connectionId", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func healthHandler(store sessionStore, identity Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"connections": store.Count(),
			"uptime":      int(store.Uptime().Seconds()),
			"port":        identity.Port,
			"stage":       identity.Stage,
		})
	}
}

// listConnectionsHandler serves the additive, read-only listing endpoint
// used by the dashboard. It is not part of the original management surface.
func listConnectionsHandler(store sessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(store.List())
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
