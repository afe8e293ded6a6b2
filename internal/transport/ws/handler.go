package ws

import (
	"context"
	"net/http"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
	"github.com/vedran77/relay/internal/transport/http/middleware"
	"nhooyr.io/websocket"
)

// ServeWS upgrades to a websocket. With a secret the participant comes from ?token=
// (browsers cannot set headers on the upgrade), otherwise from ?participant=.
// A non-nil guard restricts join-room to conversations the participant belongs to.
func ServeWS(hub *Hub, directory repository.ParticipantDirectory, guard RoomGuard, jwtSecret, allowedOrigin string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participant, err := identify(r, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ok, err := directory.Exists(r.Context(), participant)
		if err != nil {
			hub.log.Error("ws lookup participant", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "unknown participant", http.StatusUnauthorized)
			return
		}

		opts := &websocket.AcceptOptions{}
		if allowedOrigin == "*" {
			opts.InsecureSkipVerify = true
		} else {
			opts.OriginPatterns = []string{allowedOrigin}
		}
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			hub.log.Warn("ws accept", "error", err)
			return
		}

		client := NewClient(hub, conn, participant, guard)
		if err := hub.Register(client); err != nil {
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		}

		// The request context ends with this handler, so the pumps get their own.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}
}

func identify(r *http.Request, jwtSecret string) (domain.ParticipantID, error) {
	if jwtSecret != "" {
		return middleware.ParseToken(r.URL.Query().Get("token"), jwtSecret)
	}
	return domain.NewParticipantID(r.URL.Query().Get("participant"))
}
