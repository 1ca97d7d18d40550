package occupancy

import (
	"net/http"

	"lessonbook/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler accepts upgrades from any of allowedOrigins. An empty list allows every origin.
func NewHandler(hub *Hub, log *zap.Logger, allowedOrigins ...string) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// RegisterRoutes mounts GET /lessons on rg. rg must already authenticate the caller.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/lessons", h.Serve)
}

func (h *Handler) Serve(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	h.log.Debug("occupancy subscriber connected", zap.Int64("user_id", userID))
	h.hub.ServeWS(conn, userID)
	h.log.Debug("occupancy subscriber left", zap.Int64("user_id", userID))
}
