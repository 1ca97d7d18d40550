package booking

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"lessonbook/internal/domain"
	"lessonbook/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service BookingService
}

func NewHandler(service BookingService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/lessons/:id/book", h.Book)
	rg.POST("/reservations/:id/cancel", h.Cancel)
	rg.POST("/reservations/swap", h.Swap)
	rg.GET("/users/me/reservations", h.ListMine)
}

func (h *Handler) Book(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	lessonID, ok := pathID(c, "Invalid lesson ID")
	if !ok {
		return
	}

	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	isAdmin := isAdminRole(c)
	studentID := userID
	if isAdmin && req.StudentID > 0 {
		studentID = req.StudentID
	}

	res, err := h.service.Book(c.Request.Context(), studentID, lessonID, isAdmin)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"reservation": res})
}

func (h *Handler) Cancel(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	reservationID, ok := pathID(c, "Invalid reservation ID")
	if !ok {
		return
	}

	res, err := h.service.Cancel(c.Request.Context(), userID, reservationID, isAdminRole(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reservation": res})
}

func (h *Handler) Swap(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.Swap(c.Request.Context(), userID, req.OldLessonID, req.NewLessonID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reservation": res})
}

func (h *Handler) ListMine(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	items, err := h.service.ListMine(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reservations": items})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code, message := httpError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Error(c, status, code, message)
}

func pathID(c *gin.Context, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", message)
		return 0, false
	}
	return id, true
}

func isAdminRole(c *gin.Context) bool {
	return c.GetString("role") == string(domain.RoleAdmin)
}
