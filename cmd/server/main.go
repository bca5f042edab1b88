package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Skufu/ReliefMap/internal/analysis"
	"github.com/Skufu/ReliefMap/internal/assessment"
	"github.com/Skufu/ReliefMap/internal/config"
	"github.com/Skufu/ReliefMap/internal/diary"
	"github.com/Skufu/ReliefMap/internal/knowledge"
	"github.com/Skufu/ReliefMap/internal/llm"
	"github.com/Skufu/ReliefMap/internal/logging"
	"github.com/Skufu/ReliefMap/internal/metrics"
	"github.com/Skufu/ReliefMap/internal/ratelimit"
	"github.com/Skufu/ReliefMap/internal/report"
	"github.com/Skufu/ReliefMap/internal/server"
	"github.com/Skufu/ReliefMap/internal/store"
)

const (
	appName         = "reliefmap"
	shutdownTimeout = 5 * time.Second
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Pain self-assessment backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(serveCmd(), renderPDFCmd(), versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, version)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			gin.SetMode(cfg.GinMode)

			logger, cleanup, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

// limiter is a rate limiter with a background maintenance loop.
type limiter interface {
	ratelimit.Checker
	Run(ctx context.Context) error
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	m := metrics.New()
	kb := knowledge.Default()

	lim, closeLimiter := newLimiter(ctx, cfg, logger)
	defer closeLimiter()

	completer, err := llm.New(ctx, cfg.LLM())
	if err != nil {
		return err
	}
	if closer, ok := completer.(io.Closer); ok {
		defer closer.Close()
	}

	analysisSvc := analysis.NewService(lim, completer,
		analysis.WithModel(cfg.LLMModel),
		analysis.WithMaxTokens(cfg.LLMMaxTokens),
		analysis.WithTimeout(cfg.LLMTimeout),
		analysis.WithKnowledge(kb),
		analysis.WithMetrics(m),
		analysis.WithLogger(logger.Named("analysis")),
	)
	feedbackSvc := diary.NewService(completer,
		diary.WithModel(cfg.LLMModel),
		diary.WithMetrics(m),
		diary.WithLogger(logger.Named("diary")),
	)

	opts := server.Options{
		Analysis:       analysisSvc,
		Feedback:       feedbackSvc,
		Knowledge:      kb,
		Renderer:       report.NewRenderer(),
		Metrics:        m,
		Logger:         logger.Named("http"),
		StaticDir:      cfg.StaticDir,
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
	}

	if cfg.EnableDB {
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer pool.Close()

		repo := store.New(pool)
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		opts.Archive = repo
		opts.Journal = diary.NewJournal(repo, feedbackSvc, logger.Named("journal"))
		opts.Health = repo
	}

	router, err := server.NewRouter(opts)
	if err != nil {
		return err
	}
	srv := newHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return lim.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("provider", completer.Name()),
			zap.String("model", cfg.LLMModel),
			zap.Bool("archive", cfg.EnableDB))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// newLimiter uses Redis when REDIS_URL is set and reachable, otherwise the
// in-process limiter.
func newLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (limiter, func()) {
	memory := func() (limiter, func()) {
		return ratelimit.New(cfg.RateLimit, ratelimit.WithLogger(logger.Named("ratelimit"))), func() {}
	}
	if cfg.RedisURL == "" {
		return memory()
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, using in-memory rate limiter", zap.Error(err))
		return memory()
	}
	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Warn("redis unreachable, using in-memory rate limiter", zap.Error(err))
		return memory()
	}

	return ratelimit.NewRedis(client, cfg.RateLimit, logger.Named("ratelimit")), func() { _ = client.Close() }
}

func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func renderPDFCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render-pdf <export.json>",
		Short: "Render a JSON export as a PDF report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = report.Filename("pdf", time.Now())
			}
			if err := renderPDFFile(args[0], out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default pain-assessment-<date>.pdf)")
	return cmd
}

// renderPDFFile reads a JSON export (an assessment with its analysis) from in,
// or stdin when in is "-", and writes the rendered report to out.
func renderPDFFile(in, out string) error {
	var (
		raw []byte
		err error
	)
	if in == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(in)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}

	var a assessment.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return fmt.Errorf("decode %s: %w", in, err)
	}

	pdf, err := report.RenderPDF(a, a.Analysis)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, pdf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	return nil
}
