package occupancy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lessonbook/internal/admission"
	"lessonbook/internal/domain"
	"lessonbook/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLessons map[int64]*domain.Lesson

func (s stubLessons) GetLesson(_ context.Context, id int64) (*domain.Lesson, error) {
	if l, ok := s[id]; ok {
		return l, nil
	}
	return nil, admission.ErrNotFound
}

func startServer(t *testing.T, hub *Hub, userID int64) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	ws := router.Group("/ws", func(c *gin.Context) {
		if userID != 0 {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	NewHandler(hub, nil).RegisterRoutes(ws)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/lessons"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) Update {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var u Update
	require.NoError(t, conn.ReadJSON(&u))
	return u
}

func TestHub_SubscribeSendsCurrentSnapshot(t *testing.T) {
	hub := NewHub(stubLessons{7: {ID: 7, Capacity: 10, Occupancy: 4}}, nil)
	t.Cleanup(hub.Close)
	conn := dial(t, startServer(t, hub, 1))

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "subscribe", LessonID: 7}))

	u := readUpdate(t, conn)
	assert.Equal(t, Update{Type: TypeOccupancy, LessonID: 7, Occupancy: 4, Capacity: 10, SeatsLeft: 6}, u)
}

func TestHub_PublishReachesOnlySubscribers(t *testing.T) {
	hub := NewHub(nil, nil)
	t.Cleanup(hub.Close)
	url := startServer(t, hub, 1)

	watcher := dial(t, url)
	other := dial(t, url)
	require.NoError(t, watcher.WriteJSON(clientMessage{Type: "subscribe", LessonID: 1}))
	require.NoError(t, other.WriteJSON(clientMessage{Type: "subscribe", LessonID: 2}))

	// Subscriptions are applied asynchronously by the read loop.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		n := 0
		for c := range hub.connections {
			n += len(c.lessons)
		}
		return n == 2
	}, 2*time.Second, 10*time.Millisecond)

	err := hub.Publish(context.Background(), events.Event{
		Type:     events.ReservationBooked,
		LessonID: 1,
		Lessons:  []events.LessonSnapshot{{ID: 1, Occupancy: 3, Capacity: 3}},
	})
	require.NoError(t, err)

	u := readUpdate(t, watcher)
	assert.Equal(t, int64(1), u.LessonID)
	assert.Equal(t, 0, u.SeatsLeft)
	assert.Equal(t, events.ReservationBooked, u.Reason)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "subscriber of another lesson must not receive the update")
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil, nil)
	conn := dial(t, startServer(t, hub, 1))

	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil, nil)
	conn := dial(t, startServer(t, hub, 1))
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.ConnectionCount())
}

func TestHandler_RequiresUser(t *testing.T) {
	hub := NewHub(nil, nil)
	url := startServer(t, hub, 0)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNewUpdate_ClampsSeatsLeft(t *testing.T) {
	assert.Equal(t, 0, newUpdate(1, 12, 10, "").SeatsLeft)
	assert.Equal(t, 2, newUpdate(1, 8, 10, "").SeatsLeft)
}
