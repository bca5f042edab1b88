package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/ReliefMap/internal/analysis"
	"github.com/Skufu/ReliefMap/internal/assessment"
)

// bindJSON decodes the body into dst and answers the request itself when the
// body is oversized or not JSON.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload_too_large"})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "message": "Request body must be valid JSON."})
	return false
}

func validationFailed(c *gin.Context, details []string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "validation_failed",
		"details": details,
	})
}

func (h *handler) analyze(c *gin.Context) {
	var req assessment.AnalyzeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.analysis.Analyze(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		_ = c.Error(err)
		writeAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func writeAnalysisError(c *gin.Context, err error) {
	ae, ok := analysis.AsError(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message":   "The analysis could not be completed.",
			"retryable": false,
		})
		return
	}

	switch {
	case ae.Kind == analysis.KindInvalidInput:
		validationFailed(c, ae.Details)
	case ae.Status == http.StatusTooManyRequests:
		c.Header("Retry-After", strconv.Itoa(ae.RetryAfterSeconds))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"message":           ae.Message,
			"retryAfterSeconds": ae.RetryAfterSeconds,
		})
	default:
		c.JSON(ae.Status, gin.H{
			"message":   ae.Message,
			"retryable": ae.Retryable,
		})
	}
}

func (h *handler) fallback(c *gin.Context) {
	var req assessment.AnalyzeRequest
	if !bindJSON(c, &req) {
		return
	}
	if details := assessment.Validate(req); len(details) > 0 {
		validationFailed(c, details)
		return
	}
	c.JSON(http.StatusOK, analysis.Fallback(h.kb, req))
}
