package lesson

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"lessonbook/internal/admission"
	"lessonbook/internal/pkg/response"
	"lessonbook/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(public, admin *gin.RouterGroup) {
	public.GET("/lessons", h.List)
	public.GET("/lessons/:id", h.Get)

	admin.POST("/lessons", h.Create)
}

func (h *Handler) List(c *gin.Context) {
	from, err := parseTimeQuery(c, "from")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "from must be an RFC3339 timestamp")
		return
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "to must be an RFC3339 timestamp")
		return
	}

	lessons, err := h.service.List(c.Request.Context(), from, to)
	if err != nil {
		if errors.Is(err, admission.ErrInvalidRange) {
			response.Error(c, http.StatusBadRequest, string(admission.KindInvalidRange), err.Error())
			return
		}
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list lessons")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"lessons": lessons})
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid lesson ID")
		return
	}

	l, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, admission.ErrNotFound) {
			response.Error(c, http.StatusNotFound, "LESSON_NOT_FOUND", "Lesson not found")
			return
		}
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load lesson")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"lesson": l})
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid lesson", errs)
		return
	}

	l, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, admission.ErrInvalidRange) {
			response.Error(c, http.StatusBadRequest, string(admission.KindInvalidRange), err.Error())
			return
		}
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create lesson")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"lesson": toView(*l)})
}

func parseTimeQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
