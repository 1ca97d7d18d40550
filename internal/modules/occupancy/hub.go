// Package occupancy pushes live seat counts of lessons to websocket subscribers.
package occupancy

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"lessonbook/internal/admission"
	"lessonbook/internal/events"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024

	lookupTimeout = 3 * time.Second
)

const TypeOccupancy = "occupancy"

// Update is what a subscriber receives whenever a lesson's seat count is known to change.
type Update struct {
	Type      string      `json:"type"`
	LessonID  int64       `json:"lesson_id"`
	Occupancy int         `json:"occupancy"`
	Capacity  int         `json:"capacity"`
	SeatsLeft int         `json:"seats_left"`
	Reason    events.Type `json:"reason,omitempty"`
}

type clientMessage struct {
	Type     string `json:"type"`
	LessonID int64  `json:"lesson_id"`
}

// connection is a single websocket client. A user may hold several.
type connection struct {
	userID  int64
	conn    *websocket.Conn
	send    chan []byte
	lessons map[int64]bool
}

// Hub tracks connections and the lessons each one watches.
// It implements events.Publisher so booking mutations can feed it directly.
type Hub struct {
	mu          sync.RWMutex
	connections map[*connection]struct{}
	lessons     admission.LessonLookup
	log         *zap.Logger
}

// NewHub creates a hub. lessons, when set, supplies the current seat count on subscribe.
func NewHub(lessons admission.LessonLookup, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		connections: make(map[*connection]struct{}),
		lessons:     lessons,
		log:         log,
	}
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = struct{}{}
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[c]; ok {
		delete(h.connections, c)
		close(c.send)
	}
}

func (h *Hub) subscribe(c *connection, lessonID int64, on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if on {
		c.lessons[lessonID] = true
	} else {
		delete(c.lessons, lessonID)
	}
}

// ConnectionCount reports the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Publish broadcasts the lesson snapshots carried by a reservation event.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	for _, l := range e.Lessons {
		h.Broadcast(newUpdate(l.ID, l.Occupancy, l.Capacity, e.Type))
	}
	return nil
}

// Broadcast sends u to every connection subscribed to its lesson.
func (h *Hub) Broadcast(u Update) {
	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		if c.lessons[u.LessonID] {
			h.enqueue(c, data)
		}
	}
}

// enqueue requires h.mu to be held.
func (h *Hub) enqueue(c *connection, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn("occupancy subscriber too slow, dropping update", zap.Int64("user_id", c.userID))
	}
}

func (h *Hub) sendTo(c *connection, u Update) {
	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[c]; ok {
		h.enqueue(c, data)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.connections {
		delete(h.connections, c)
		close(c.send)
	}
}

// ServeWS registers a connection and runs its read and write loops. It blocks until the client leaves.
func (h *Hub) ServeWS(conn *websocket.Conn, userID int64) {
	c := &connection{
		userID:  userID,
		conn:    conn,
		send:    make(chan []byte, 64),
		lessons: make(map[int64]bool),
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *connection) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var m clientMessage
		if err := json.Unmarshal(msg, &m); err != nil || m.LessonID <= 0 {
			continue
		}

		switch m.Type {
		case "subscribe":
			h.subscribe(c, m.LessonID, true)
			h.sendCurrent(c, m.LessonID)
		case "unsubscribe":
			h.subscribe(c, m.LessonID, false)
		}
	}
}

func (h *Hub) sendCurrent(c *connection, lessonID int64) {
	if h.lessons == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	lesson, err := h.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		h.log.Debug("occupancy snapshot unavailable", zap.Int64("lesson_id", lessonID), zap.Error(err))
		return
	}
	h.sendTo(c, newUpdate(lesson.ID, lesson.Occupancy, lesson.Capacity, ""))
}

func (h *Hub) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func newUpdate(lessonID int64, occupancy, capacity int, reason events.Type) Update {
	left := capacity - occupancy
	if left < 0 {
		left = 0
	}
	return Update{
		Type:      TypeOccupancy,
		LessonID:  lessonID,
		Occupancy: occupancy,
		Capacity:  capacity,
		SeatsLeft: left,
		Reason:    reason,
	}
}
