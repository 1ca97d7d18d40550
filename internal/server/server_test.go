package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lessonbook/internal/database"
	"lessonbook/internal/domain"
	"lessonbook/internal/modules/auth"
	"lessonbook/internal/modules/occupancy"
	"lessonbook/internal/pkg/jwt"
	"lessonbook/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const password = "Password123!"

type testSuite struct {
	app    *App
	db     *gorm.DB
	tokens map[string]string
	ids    map[string]int64
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func setupTestSuite(t *testing.T) *testSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect(fmt.Sprintf("file:server_%s?mode=memory&cache=shared", name), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	app := New(Options{
		DB:             db,
		JWT:            jwt.New("test_secret_key_32_characters_min", time.Hour),
		MaxListRange:   31 * 24 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
	t.Cleanup(app.Hub.Close)

	s := &testSuite{app: app, db: db, tokens: map[string]string{}, ids: map[string]int64{}}

	users := repository.NewUserRepository(db)
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	for _, u := range []domain.User{
		{Email: "admin@test.com", Name: "Admin", Role: domain.RoleAdmin},
		{Email: "alice@test.com", Name: "Alice", Role: domain.RoleStudent},
		{Email: "bob@test.com", Name: "Bob", Role: domain.RoleStudent},
	} {
		u.PasswordHash = hash
		require.NoError(t, users.Create(context.Background(), &u))
		s.ids[u.Name] = u.ID
		s.tokens[u.Name] = s.login(t, u.Email)
	}
	return s
}

func (s *testSuite) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, *testResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)

	var resp testResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	return w, &resp
}

func (s *testSuite) login(t *testing.T, email string) string {
	t.Helper()
	w, resp := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.NotEmpty(t, data.AccessToken)
	return data.AccessToken
}

func (s *testSuite) createLesson(t *testing.T, start time.Time, capacity int, price int64) int64 {
	t.Helper()
	w, resp := s.do(t, http.MethodPost, "/api/v1/admin/lessons", map[string]any{
		"title":      "Morning yoga",
		"start_time": start.UTC().Format(time.RFC3339),
		"end_time":   start.Add(time.Hour).UTC().Format(time.RFC3339),
		"capacity":   capacity,
		"price":      price,
	}, s.tokens["Admin"])
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		Lesson struct {
			ID int64 `json:"id"`
		} `json:"lesson"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data.Lesson.ID
}

func (s *testSuite) topUp(t *testing.T, user string, amount int64) {
	t.Helper()
	path := fmt.Sprintf("/api/v1/admin/wallets/%d/topup", s.ids[user])
	w, _ := s.do(t, http.MethodPost, path, map[string]int64{"amount": amount}, s.tokens["Admin"])
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (s *testSuite) balance(t *testing.T, user string) int64 {
	t.Helper()
	w, resp := s.do(t, http.MethodGet, "/api/v1/users/me/wallet", nil, s.tokens[user])
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data.Balance
}

func reservationID(t *testing.T, resp *testResponse) int64 {
	t.Helper()
	var data struct {
		Reservation domain.Reservation `json:"reservation"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data.Reservation.ID
}

func TestHealth(t *testing.T) {
	s := setupTestSuite(t)

	w, resp := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestAuth(t *testing.T) {
	s := setupTestSuite(t)

	t.Run("wrong password", func(t *testing.T) {
		w, resp := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "alice@test.com", "password": "nope"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "INVALID_CREDENTIALS", resp.Error.Code)
	})

	t.Run("me", func(t *testing.T) {
		w, resp := s.do(t, http.MethodGet, "/api/v1/users/me", nil, s.tokens["Alice"])
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(resp.Data), "alice@test.com")
	})

	t.Run("protected without token", func(t *testing.T) {
		w, resp := s.do(t, http.MethodGet, "/api/v1/users/me/reservations", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "AUTH_HEADER_MISSING", resp.Error.Code)
	})

	t.Run("admin routes reject students", func(t *testing.T) {
		w, resp := s.do(t, http.MethodPost, "/api/v1/admin/wallets/1/topup", map[string]int64{"amount": 5}, s.tokens["Alice"])
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "FORBIDDEN", resp.Error.Code)
	})
}

func TestBookingFlow(t *testing.T) {
	s := setupTestSuite(t)
	lessonID := s.createLesson(t, time.Now().Add(48*time.Hour), 1, 5)
	bookPath := fmt.Sprintf("/api/v1/lessons/%d/book", lessonID)

	w, resp := s.do(t, http.MethodPost, bookPath, nil, s.tokens["Alice"])
	require.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())
	assert.Equal(t, "INSUFFICIENT_CREDITS", resp.Error.Code)

	s.topUp(t, "Alice", 10)
	s.topUp(t, "Bob", 10)

	w, resp = s.do(t, http.MethodPost, bookPath, nil, s.tokens["Alice"])
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resID := reservationID(t, resp)
	assert.Equal(t, int64(5), s.balance(t, "Alice"))

	w, resp = s.do(t, http.MethodPost, bookPath, nil, s.tokens["Bob"])
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "LESSON_FULL", resp.Error.Code)
	assert.Equal(t, int64(10), s.balance(t, "Bob"))

	w, resp = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/lessons/%d", lessonID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), `"seats_left":0`)

	cancelPath := fmt.Sprintf("/api/v1/reservations/%d/cancel", resID)
	w, resp = s.do(t, http.MethodPost, cancelPath, nil, s.tokens["Bob"])
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)

	w, _ = s.do(t, http.MethodPost, cancelPath, nil, s.tokens["Alice"])
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(10), s.balance(t, "Alice"))

	w, resp = s.do(t, http.MethodPost, cancelPath, nil, s.tokens["Alice"])
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "BOOKING_NOT_ACTIVE", resp.Error.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/users/me/reservations", nil, s.tokens["Alice"])
	require.Equal(t, http.StatusOK, w.Code)
	var mine struct {
		Reservations []domain.Reservation `json:"reservations"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &mine))
	require.Len(t, mine.Reservations, 1)
	assert.Equal(t, domain.ReservationCancelled, mine.Reservations[0].Status)
}

func TestCancelWithinCutoff(t *testing.T) {
	s := setupTestSuite(t)
	lessonID := s.createLesson(t, time.Now().Add(3*time.Hour), 5, 0)

	w, resp := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/lessons/%d/book", lessonID), nil, s.tokens["Alice"])
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resID := reservationID(t, resp)

	w, resp = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/reservations/%d/cancel", resID), nil, s.tokens["Alice"])
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "CANNOT_CANCEL_WITHIN_CUTOFF", resp.Error.Code)

	// Admins are exempt from the cutoff.
	w, _ = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/reservations/%d/cancel", resID), nil, s.tokens["Admin"])
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSwapFlow(t *testing.T) {
	s := setupTestSuite(t)
	start := time.Now().Add(72 * time.Hour)
	first := s.createLesson(t, start, 5, 4)
	second := s.createLesson(t, start.Add(2*time.Hour), 5, 6)
	s.topUp(t, "Alice", 10)

	w, _ := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/lessons/%d/book", first), nil, s.tokens["Alice"])
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, resp := s.do(t, http.MethodPost, "/api/v1/reservations/swap", map[string]int64{"old_lesson_id": first, "new_lesson_id": first}, s.tokens["Alice"])
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SWAP", resp.Error.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/reservations/swap", map[string]int64{"old_lesson_id": first, "new_lesson_id": second}, s.tokens["Alice"])
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(4), s.balance(t, "Alice"))

	w, resp = s.do(t, http.MethodPost, "/api/v1/reservations/swap", map[string]int64{"old_lesson_id": first, "new_lesson_id": second}, s.tokens["Alice"])
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NO_ACTIVE_BOOKING", resp.Error.Code)
}

func TestListLessonsRange(t *testing.T) {
	s := setupTestSuite(t)
	s.createLesson(t, time.Now().Add(24*time.Hour), 5, 0)

	w, resp := s.do(t, http.MethodGet, "/api/v1/lessons", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), "Morning yoga")

	from := time.Now().UTC()
	path := fmt.Sprintf("/api/v1/lessons?from=%s&to=%s", from.Format(time.RFC3339), from.Add(90*24*time.Hour).Format(time.RFC3339))
	w, resp = s.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_RANGE", resp.Error.Code)
}

func TestOccupancyFeed(t *testing.T) {
	s := setupTestSuite(t)
	lessonID := s.createLesson(t, time.Now().Add(48*time.Hour), 2, 0)

	srv := httptest.NewServer(s.app.Router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/lessons?token=" + s.tokens["Bob"]
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "lesson_id": lessonID}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var u occupancy.Update
	require.NoError(t, conn.ReadJSON(&u))
	assert.Equal(t, 0, u.Occupancy)

	w, _ := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/lessons/%d/book", lessonID), nil, s.tokens["Alice"])
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, conn.ReadJSON(&u))
	assert.Equal(t, lessonID, u.LessonID)
	assert.Equal(t, 1, u.Occupancy)
	assert.Equal(t, 1, u.SeatsLeft)
}
