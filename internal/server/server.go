// Package server exposes the analysis, diary and export operations over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/ReliefMap/internal/analysis"
	"github.com/Skufu/ReliefMap/internal/assessment"
	"github.com/Skufu/ReliefMap/internal/diary"
	"github.com/Skufu/ReliefMap/internal/knowledge"
	"github.com/Skufu/ReliefMap/internal/metrics"
	"github.com/Skufu/ReliefMap/internal/report"
)

// DefaultMaxBodyBytes caps request bodies at 1MB.
const DefaultMaxBodyBytes = 1 << 20

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Archive is the persistence the assessment history routes need.
type Archive interface {
	SaveAssessment(ctx context.Context, a assessment.Assessment) error
	GetAssessment(ctx context.Context, id string) (*assessment.Assessment, error)
	ListAssessments(ctx context.Context, limit int) ([]assessment.Assessment, error)
	DeleteAssessment(ctx context.Context, id string) error
	ListDiaryEntries(ctx context.Context, assessmentID string, limit int) ([]assessment.DiaryEntry, error)
	DeleteDiaryEntry(ctx context.Context, id string) error
}

type Options struct {
	Analysis  *analysis.Service
	Feedback  *diary.Service
	Knowledge *knowledge.Base
	Renderer  *report.Renderer
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	// Archive and Journal are nil when the database is disabled; the history
	// routes are not registered then.
	Archive Archive
	Journal *diary.Journal
	Health  HealthChecker

	StaticDir      string
	CORSOrigins    []string
	TrustedProxies []string
	MaxBodyBytes   int64

	Now func() time.Time
}

type handler struct {
	analysis *analysis.Service
	feedback *diary.Service
	kb       *knowledge.Base
	renderer *report.Renderer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	archive  Archive
	journal  *diary.Journal
	health   HealthChecker
	now      func() time.Time
}

// NewRouter builds the gin engine with every route the options allow.
func NewRouter(opts Options) (*gin.Engine, error) {
	h := &handler{
		analysis: opts.Analysis,
		feedback: opts.Feedback,
		kb:       opts.Knowledge,
		renderer: opts.Renderer,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		archive:  opts.Archive,
		journal:  opts.Journal,
		health:   opts.Health,
		now:      opts.Now,
	}
	if h.kb == nil {
		h.kb = knowledge.Default()
	}
	if h.renderer == nil {
		h.renderer = report.NewRenderer()
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(
		RequestLogger(h.logger),
		gin.Recovery(),
		limitBodySize(maxBody),
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders: []string{"Content-Disposition", "Retry-After", requestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	if opts.StaticDir != "" {
		router.Static("/static", opts.StaticDir)
		router.StaticFile("/", filepath.Join(opts.StaticDir, "index.html"))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", h.readyz)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := router.Group("/api")
	api.POST("/analyze", h.analyze)
	api.POST("/analyze/fallback", h.fallback)
	api.POST("/diary/ai-feedback", h.diaryFeedback)
	api.POST("/export-pdf", h.exportPDF)
	api.POST("/export-json", h.exportJSON)

	if h.archive != nil {
		api.POST("/assessments", h.saveAssessment)
		api.GET("/assessments", h.listAssessments)
		api.GET("/assessments/:id", h.getAssessment)
		api.DELETE("/assessments/:id", h.deleteAssessment)
		api.GET("/assessments/:id/diary", h.listDiary)
		api.DELETE("/diary/entries/:id", h.deleteDiaryEntry)
	}
	if h.journal != nil {
		api.POST("/diary/entries", h.recordDiaryEntry)
		api.POST("/diary/entries/:id/follow-up", h.followUp)
	}

	return router, nil
}

func (h *handler) readyz(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"db":     fmt.Sprintf("unhealthy: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
}
