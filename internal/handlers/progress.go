package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codecourse/server/internal/services"
	"github.com/codecourse/server/pkg/errors"
	"github.com/codecourse/server/pkg/response"
)

// ProgressHandler records and reports per-lesson course progress.
type ProgressHandler struct {
	progress *services.ProgressService
}

func NewProgressHandler(progress *services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

type saveProgressRequest struct {
	CourseName   string `json:"courseName" validate:"required"`
	LessonNumber int    `json:"lessonNumber" validate:"required,min=1"`
}

// POST /api/course-progress
func (h *ProgressHandler) Save(c *gin.Context) {
	var req saveProgressRequest
	if !bindAndValidate(c, &req) {
		return
	}

	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.progress.Save(requestContext(c), userID, req.CourseName, req.LessonNumber); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"recorded": true})
}

// GET /api/course-progress
func (h *ProgressHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	summaries, err := h.progress.Summary(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"courses": summaries})
}
