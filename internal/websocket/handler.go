package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Handler upgrades requests to websocket connections served by hub. initial,
// when set, supplies the messages sent to a client as soon as it connects.
func Handler(hub *Hub, initial func() []Message, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		var first []Message
		if initial != nil {
			first = initial()
		}
		NewClient(hub, conn).Run(r.Context(), first)
	}
}
