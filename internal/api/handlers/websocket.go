// Package handlers provides HTTP request handlers for the portsweep API.
// This file implements the WebSocket endpoint that streams a scan's results
// as they arrive and the final run once it finishes.
package handlers

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/portsweep/internal/api/middleware"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/report"
	"github.com/anstrom/portsweep/internal/results"
	"github.com/anstrom/portsweep/internal/scanning"
)

const (
	// WebSocket configuration constants.
	writeWait       = 10 * time.Second                                   // Time allowed to write a message to the peer
	pongWait        = 60 * time.Second                                   // Time to read next pong message from peer
	pingPeriodRatio = 0.9                                                // Ratio of pongWait for pingPeriod
	pingPeriod      = time.Duration(float64(pongWait) * pingPeriodRatio) // Send pings to peer (must be < pongWait)
	maxMessageSize  = 512                                                // Maximum message size allowed from peer
)

// Stream message types.
const (
	MessageSnapshot = "snapshot"
	MessageResult   = "result"
	MessageComplete = "complete"
	MessageError    = "error"
)

// WebSocketHandler streams scan progress to WebSocket clients.
type WebSocketHandler struct {
	manager  RunManager
	logger   *logging.Logger
	upgrader websocket.Upgrader

	clients  atomic.Int64
	shutdown chan struct{}
	once     sync.Once
}

// WebSocketMessage represents a WebSocket message structure.
type WebSocketMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	RequestID string    `json:"request_id,omitempty"`
}

// SnapshotMessage is the first message of a stream.
type SnapshotMessage struct {
	ScanResponse
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(manager RunManager, logger *logging.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		logger:  logger.WithFields("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origins are governed by the CORS and auth middleware.
				return true
			},
		},
		shutdown: make(chan struct{}),
	}
}

// Clients returns the number of open streams.
func (h *WebSocketHandler) Clients() int {
	return int(h.clients.Load())
}

// Shutdown ends every open stream.
func (h *WebSocketHandler) Shutdown() {
	h.once.Do(func() { close(h.shutdown) })
}

// StreamScan handles GET /api/v1/scans/{id}/stream.
//
// The stream opens with a snapshot of the run, then sends one result message
// per port as it completes, and ends with a complete message carrying the
// final run before the server closes the connection.
//
//	@Summary		Stream scan results
//	@Description	WebSocket stream of live port results followed by the final run
//	@Tags			Scans
//	@Param			id	path	string	true	"Scan ID"
//	@Success		101
//	@Failure		404	{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/scans/{id}/stream [get]
func (h *WebSocketHandler) StreamScan(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	id, err := extractUUIDFromPath(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	// Subscribe before the snapshot so no result falls between the two.
	live, unsubscribe, err := h.manager.Subscribe(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	defer unsubscribe()

	snapshot, err := h.manager.Get(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", "request_id", requestID, "error", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			h.logger.Debug("Error closing WebSocket connection", "request_id", requestID, "error", err)
		}
	}()

	h.clients.Add(1)
	defer h.clients.Add(-1)

	logger := h.logger.WithScanID(id.String()).WithFields("request_id", requestID)
	logger.Info("New scan stream connection", "remote_addr", r.RemoteAddr)

	gone := h.readPump(conn, requestID)
	sent, err := h.writeStream(conn, snapshot, live, gone, requestID)
	if err != nil {
		logger.Debug("Scan stream ended early", "sent", sent, "error", err)
		return
	}
	logger.Info("Scan stream completed", "sent", sent)
}

// writeStream sends the snapshot, the live results not already in it and the
// final run. It returns the number of result messages written.
func (h *WebSocketHandler) writeStream(conn *websocket.Conn, snapshot *results.ScanRun,
	live <-chan scanning.PortResult, gone <-chan struct{}, requestID string,
) (int, error) {
	seen := make(map[uint16]struct{}, len(snapshot.Results))
	for _, res := range snapshot.Results {
		seen[res.Port] = struct{}{}
	}

	if err := writeMessage(conn, MessageSnapshot, SnapshotMessage{toResponse(snapshot)}, requestID); err != nil {
		return 0, err
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case res, ok := <-live:
			if !ok {
				return sent, h.writeFinal(conn, snapshot, requestID)
			}
			if _, dup := seen[res.Port]; dup {
				continue
			}
			seen[res.Port] = struct{}{}
			if err := writeMessage(conn, MessageResult, report.NewResultRecord(res), requestID); err != nil {
				return sent, err
			}
			sent++
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return sent, err
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return sent, err
			}
		case <-gone:
			return sent, websocket.ErrCloseSent
		case <-h.shutdown:
			_ = writeClose(conn, websocket.CloseGoingAway, "server shutting down")
			return sent, websocket.ErrCloseSent
		}
	}
}

func (h *WebSocketHandler) writeFinal(conn *websocket.Conn, snapshot *results.ScanRun, requestID string) error {
	final, err := h.manager.Get(snapshot.ID)
	if err != nil {
		// The run aged out of history between the last result and now.
		_ = writeMessage(conn, MessageError, map[string]string{"message": err.Error()}, requestID)
		return err
	}
	if err := writeMessage(conn, MessageComplete, report.NewRecord(final), requestID); err != nil {
		return err
	}
	return writeClose(conn, websocket.CloseNormalClosure, string(final.State))
}

// readPump discards client messages and reports when the client goes away.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, requestID string) <-chan struct{} {
	gone := make(chan struct{})

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("Failed to set read deadline", "request_id", requestID, "error", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure,
					websocket.CloseAbnormalClosure) {
					h.logger.Warn("WebSocket unexpected close", "request_id", requestID, "error", err)
				}
				return
			}
		}
	}()
	return gone
}

func writeMessage(conn *websocket.Conn, msgType string, data any, requestID string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(WebSocketMessage{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
		RequestID: requestID,
	})
}

func writeClose(conn *websocket.Conn, code int, text string) error {
	return conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
