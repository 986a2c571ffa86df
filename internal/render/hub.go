package render

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// writeTimeout bounds a single websocket write so a stalled browser cannot
// hold up the batch.
const writeTimeout = time.Second

// EventType names a live update.
type EventType string

const (
	EventReset    EventType = "reset"
	EventFragment EventType = "fragment"
	EventTimer    EventType = "timer"
	EventState    EventType = "state"
)

// Event is one live update sent to browsers.
type Event struct {
	Type  EventType `json:"type"`
	HTML  string    `json:"html,omitempty"`
	Text  string    `json:"text,omitempty"`
	State string    `json:"state,omitempty"`
	Color string    `json:"color,omitempty"`
}

// Hub is a Sink that keeps a Page and pushes every change to connected
// browsers over websocket. Browsers that connect late first receive the
// current content.
type Hub struct {
	page     *Page
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// mu guards clients and serializes writes; a websocket.Conn allows
	// one writer at a time.
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub returns a Hub backed by page.
func NewHub(page *Page, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		page:   page,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Append adds the fragment to the page and broadcasts it. The page update
// and the broadcast happen under mu so a browser connecting in between
// sees the fragment exactly once.
func (h *Hub) Append(f model.Fragment) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.page.Append(f); err != nil {
		return err
	}
	h.broadcastLocked(Event{Type: EventFragment, HTML: f.HTML})
	return nil
}

// SetState updates the page and broadcasts the new state.
func (h *Hub) SetState(s model.BatchState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.page.SetState(s)
	h.broadcastLocked(stateEvent(s))
}

// SetTimer updates the page and broadcasts the timer text.
func (h *Hub) SetTimer(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.page.SetTimer(text)
	h.broadcastLocked(Event{Type: EventTimer, Text: text})
}

func stateEvent(s model.BatchState) Event {
	return Event{Type: EventState, State: s.String(), Color: s.Color()}
}

// Handler serves the live page at / and the update stream at /ws.
func (h *Hub) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", h.servePage)
	r.Get("/ws", h.HandleWebSocket)
	return r
}

func (h *Hub) servePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.render(w, true); err != nil {
		h.logger.Warn("failed to render live page", "error", err)
	}
}

// HandleWebSocket upgrades the connection, replays the current page and
// keeps the client registered until it disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	snap := h.page.Snapshot()
	backlog := make([]Event, 0, len(snap.Fragments)+3)
	backlog = append(backlog, Event{Type: EventReset})
	for _, f := range snap.Fragments {
		backlog = append(backlog, Event{Type: EventFragment, HTML: f.HTML})
	}
	backlog = append(backlog, stateEvent(snap.State))
	if snap.Timer != "" {
		backlog = append(backlog, Event{Type: EventTimer, Text: snap.Timer})
	}
	ok := true
	for _, ev := range backlog {
		if err := writeEvent(conn, ev); err != nil {
			ok = false
			break
		}
	}
	if ok {
		h.clients[conn] = struct{}{}
	}
	h.mu.Unlock()

	if !ok {
		conn.Close()
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// broadcastLocked sends ev to every client. The caller holds mu.
func (h *Hub) broadcastLocked(ev Event) {
	for conn := range h.clients {
		if err := writeEvent(conn, ev); err != nil {
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

func writeEvent(conn *websocket.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// ClientCount returns the number of connected browsers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every browser.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
