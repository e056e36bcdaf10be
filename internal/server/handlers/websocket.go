// internal/server/handlers/websocket.go

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"pulse/internal/domain/pipeline"
	"pulse/internal/logger"
)

// Watcher streams the events of a run published elsewhere
type Watcher interface {
	Watch(ctx context.Context, runID string) (<-chan pipeline.StageEvent, func(), error)
}

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 4 * 1024,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS layer
		return true
	},
}

// runWatchClient relays one run's events to one socket
type runWatchClient struct {
	conn   *websocket.Conn
	runID  string
	config WebSocketConfig
	logger logger.Logger
}

// RunWebSocketHandler relays the events of run {id} to a WebSocket client.
// The socket closes after the run's terminal event.
func RunWebSocketHandler(watcher Watcher, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "id")
		if runID == "" {
			respondWithError(w, log, pipeline.Validation("missing run ID"))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("Failed to upgrade to WebSocket", logger.Error(err))
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, stop, err := watcher.Watch(ctx, runID)
		if err != nil {
			log.Error("Failed to watch run", logger.String("run_id", runID), logger.Error(err))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "watch failed"))
			conn.Close()
			return
		}
		defer stop()

		client := &runWatchClient{
			conn:   conn,
			runID:  runID,
			config: DefaultWebSocketConfig(),
			logger: log.With(logger.String("run_id", runID)),
		}

		client.logger.Info("Run watcher connected")
		go client.readPump(cancel)
		client.writePump(ctx, events)
		client.logger.Info("Run watcher disconnected")
	}
}

// readPump drains the socket so control frames are processed, and cancels
// the relay once the peer goes away
func (c *runWatchClient) readPump(cancel context.CancelFunc) {
	defer cancel()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket error", logger.Error(err))
			}
			return
		}
	}
}

// writePump pumps run events to the WebSocket connection
func (c *runWatchClient) writePump(ctx context.Context, events <-chan pipeline.StageEvent) {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(ev)
			if err != nil {
				c.logger.Error("Failed to encode run event", logger.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

			if isFinal(ev) {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(ev.Status)))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// isFinal reports whether ev ends a run
func isFinal(ev pipeline.StageEvent) bool {
	if ev.Status == pipeline.StatusError {
		return true
	}
	last := pipeline.Stages[len(pipeline.Stages)-1]
	return ev.Stage == last && ev.Status == pipeline.StatusComplete
}
