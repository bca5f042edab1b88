package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Skufu/ReliefMap/internal/assessment"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	diaryListLimit   = 500
)

func (h *handler) saveAssessment(c *gin.Context) {
	var a assessment.Assessment
	if !bindJSON(c, &a) {
		return
	}
	if details := assessment.Validate(a); len(details) > 0 {
		validationFailed(c, details)
		return
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = h.now().UTC()
	}
	a.SelectedMuscles = a.Regions()

	if err := h.archive.SaveAssessment(c.Request.Context(), a); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *handler) listAssessments(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			validationFailed(c, []string{"limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	list, err := h.archive.ListAssessments(c.Request.Context(), limit)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) getAssessment(c *gin.Context) {
	a, err := h.archive.GetAssessment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *handler) deleteAssessment(c *gin.Context) {
	if err := h.archive.DeleteAssessment(c.Request.Context(), c.Param("id")); err != nil {
		writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listDiary(c *gin.Context) {
	entries, err := h.archive.ListDiaryEntries(c.Request.Context(), c.Param("id"), diaryListLimit)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
