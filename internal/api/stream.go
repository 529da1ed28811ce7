package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yourusername/arblens/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// streamMessage is pushed to the client whenever the backtest row changes
type streamMessage struct {
	Type     string           `json:"type"`
	Backtest backtestResponse `json:"backtest"`
}

// handleBacktestStream pushes the backtest row over a WebSocket each time its
// status changes, and closes once the backtest reaches a terminal status.
func (s *Server) handleBacktestStream(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Invalid backtest ID", nil)
		return
	}
	if !s.requireDB(w, r) {
		return
	}

	bt, err := s.repos.Backtest.GetByID(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		s.respondError(w, r, http.StatusNotFound, "Backtest not found", nil)
		return
	}
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Failed to fetch backtest", err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).WithField("backtest_id", id.String()).Debug("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.readPump(conn, cancel)

	s.writePump(ctx, conn, bt)
}

// readPump discards client frames and cancels the stream when the peer goes away
func (s *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, bt *models.Backtest) {
	poll := time.NewTicker(s.cfg.Server.StreamPollInterval)
	ping := time.NewTicker(pingPeriod)
	defer poll.Stop()
	defer ping.Stop()

	send := func(b *models.Backtest) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(streamMessage{Type: "backtest", Backtest: newBacktestResponse(b)}) == nil
	}
	closeStream := func(reason string) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	}

	if !send(bt) {
		return
	}
	if bt.Status.IsTerminal() {
		closeStream(string(bt.Status))
		return
	}

	lastStatus, lastUpdate := bt.Status, bt.UpdatedAt
	for {
		select {
		case <-ctx.Done():
			closeStream("stream cancelled")
			return

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-poll.C:
			current, err := s.repos.Backtest.GetByID(ctx, bt.ID)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.WithError(err).WithField("backtest_id", bt.ID.String()).Warn("Backtest stream poll failed")
				}
				continue
			}
			if current.Status == lastStatus && current.UpdatedAt.Equal(lastUpdate) {
				continue
			}
			lastStatus, lastUpdate = current.Status, current.UpdatedAt

			if !send(current) {
				return
			}
			if current.Status.IsTerminal() {
				closeStream(string(current.Status))
				return
			}
		}
	}
}

// checkOrigin allows same-origin requests and the configured CORS origins
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
