package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/forgo/gather/api/internal/model"
	"github.com/forgo/gather/api/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// WatchHandler streams availability snapshots to websocket clients
type WatchHandler struct {
	allocator   *service.SeatAllocator
	broadcaster *service.Broadcaster
	upgrader    websocket.Upgrader
}

// NewWatchHandler creates a new watch handler
func NewWatchHandler(allocator *service.SeatAllocator, broadcaster *service.Broadcaster) *WatchHandler {
	return &WatchHandler{
		allocator:   allocator,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Availability is public; cross-origin pages may watch
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Watch handles GET /v1/events/{eventId}/watch - live seat availability.
//
// The client receives the current snapshot on connect, then every
// committed snapshot in commit order. The connection closes when the
// client goes away or the event is deleted.
func (h *WatchHandler) Watch(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")

	// Reject unknown events before upgrading
	if _, err := h.allocator.Availability(r.Context(), eventID); err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	// Subscribe before reading the initial snapshot: any decision that
	// commits after this point is queued, so the client may see a count
	// twice but never misses one.
	sub := h.broadcaster.Subscribe(eventID)
	defer h.broadcaster.Unsubscribe(sub)

	current, err := h.allocator.Availability(r.Context(), eventID)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed",
			slog.String("event_id", eventID),
			slog.Any("error", err))
		return
	}
	defer conn.Close()

	if err := writeSnapshot(conn, *current); err != nil {
		return
	}

	// Reader goroutine notices client disconnects
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case snapshot, ok := <-sub.C:
			if !ok {
				// Event deleted; tell the client why and hang up
				deadline := time.Now().Add(writeWait)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "event deleted"),
					deadline)
				return
			}
			if err := writeSnapshot(conn, snapshot); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-clientGone:
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snapshot model.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snapshot)
}
