package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/ReliefMap/internal/assessment"
	"github.com/Skufu/ReliefMap/internal/report"
)

type exportRequest struct {
	Assessment assessment.Assessment     `json:"assessment"`
	Analysis   *assessment.AnalysisResult `json:"analysis,omitempty"`
}

func (h *handler) exportPDF(c *gin.Context) {
	var req exportRequest
	if !bindJSON(c, &req) {
		return
	}
	analysis := req.Analysis
	if analysis == nil {
		analysis = req.Assessment.Analysis
	}

	out, err := h.renderer.Render(req.Assessment, analysis)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "The PDF could not be generated."})
		return
	}
	h.metrics.Export("pdf")
	attach(c, report.Filename("pdf", h.now()), "application/pdf", out)
}

func (h *handler) exportJSON(c *gin.Context) {
	var req exportRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := report.RenderJSON(req.Assessment, req.Analysis)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "The export could not be generated."})
		return
	}
	h.metrics.Export("json")
	attach(c, report.Filename("json", h.now()), "application/json", out)
}

func attach(c *gin.Context, filename, contentType string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}
