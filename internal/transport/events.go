package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rpggio/activitylog/internal/events"
	"github.com/rpggio/activitylog/internal/repository"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

// Subscriber manages listeners for named events.
type Subscriber interface {
	AddListener(eventName string, l events.Listener)
	RemoveListener(eventName string, l events.Listener) bool
}

// EventsOptions configure the event stream endpoint.
type EventsOptions struct {
	Router    Subscriber
	EventName string
	// Authorize decides whether caller may subscribe. A non-nil error rejects
	// the upgrade with 403.
	Authorize  func(caller repository.Caller) error
	BufferSize int
	Logger     *slog.Logger
}

// EventsHandler streams events of one name to WebSocket clients.
type EventsHandler struct {
	opts     EventsOptions
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewEventsHandler creates the /events handler.
func NewEventsHandler(opts EventsOptions) *EventsHandler {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the CORS layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok || caller.ProfileID == "" {
		http.Error(w, "missing caller", http.StatusUnauthorized)
		return
	}
	if h.opts.Authorize != nil {
		if err := h.opts.Authorize(caller); err != nil {
			h.logger.Warn("event subscription rejected", "profile_id", caller.ProfileID, "extension_id", caller.ExtensionID, "error", err)
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	l := newSocketListener(caller.ProfileID, h.opts.BufferSize)
	h.opts.Router.AddListener(h.opts.EventName, l)
	h.logger.Info("event client connected", "listener_id", l.id, "profile_id", caller.ProfileID)

	go l.writePump(conn)
	l.readPump(conn)

	h.opts.Router.RemoveListener(h.opts.EventName, l)
	l.close()
	h.logger.Info("event client disconnected", "listener_id", l.id, "profile_id", caller.ProfileID)
}

// socketListener is an events.Listener backed by one WebSocket connection.
// A client that cannot keep up is disconnected rather than slowing the
// broadcaster.
type socketListener struct {
	id        string
	profileID string
	send      chan []byte
	quit      chan struct{}
	once      sync.Once
}

func newSocketListener(profileID string, size int) *socketListener {
	return &socketListener{
		id:        uuid.NewString(),
		profileID: profileID,
		send:      make(chan []byte, size),
		quit:      make(chan struct{}),
	}
}

func (l *socketListener) ID() string        { return l.id }
func (l *socketListener) ProfileID() string { return l.profileID }

func (l *socketListener) Deliver(evt *events.Event) {
	msg, err := json.Marshal(evt)
	if err != nil {
		slog.Default().Error("failed to encode event", "event", evt.Name, "error", err)
		return
	}
	select {
	case <-l.quit:
	case l.send <- msg:
	default:
		l.close()
	}
}

func (l *socketListener) close() {
	l.once.Do(func() { close(l.quit) })
}

// readPump discards inbound frames and returns once the peer goes away.
func (l *socketListener) readPump(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (l *socketListener) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg := <-l.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-l.quit:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "client too slow"))
			return
		}
	}
}
