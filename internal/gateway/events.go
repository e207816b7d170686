package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const eventWriteTimeout = 5 * time.Second

// handleEvents upgrades to a websocket and streams lifecycle events as JSON
// text messages. ?run_id= restricts the stream to one agent run. The stream
// is server to client only; anything the client sends closes it.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	// The server's write timeout would kill a long-lived stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// Subscribe before the handshake completes so nothing published after
	// the client sees the upgrade is missed.
	events, cancel := a.Events.Subscribe(a.config.Events.Buffer)
	defer cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: a.config.CORS.AllowedOrigins,
	})
	if err != nil {
		a.Logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusInternalError, "unexpected close") }()

	runID := r.URL.Query().Get("run_id")

	ctx := conn.CloseRead(r.Context())
	a.Logger.Debug("event stream opened", "run_id", runID, "remote_addr", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if runID != "" && e.RunID != runID {
				continue
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, eventWriteTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			wcancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					a.Logger.Debug("event stream write failed", "error", err)
				}
				return
			}
		}
	}
}
