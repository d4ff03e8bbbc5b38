package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/yungbote/companion-client/internal/platform/logger"
)

type RouterConfig struct {
	Handler      *Handler
	Metrics      *Metrics
	Tokens       *Tokens
	AllowOrigins []string
	Logger       *logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("companion-sandbox"))
	r.Use(requestLog(cfg.Logger))
	r.Use(cfg.Metrics.middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	h := cfg.Handler
	r.GET("/healthcheck", h.HealthCheck)
	r.GET("/assets/:file", h.Asset)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := r.Group("/v1")
	v1.Use(requireOwner(cfg.Tokens))
	{
		v1.POST("/personas/jobs", h.SubmitPersonaJob)
		v1.POST("/personas/:key/dresses/jobs", h.SubmitDressJob)
		v1.POST("/personas/:key/video/jobs", h.SubmitVideoJob)
		v1.GET("/jobs/:target_key", h.JobStatus)

		v1.GET("/owners/:owner/personas", h.ListPersonas)
		v1.GET("/owners/:owner/wallet", h.Wallet)
		v1.GET("/personas/:key/dresses", h.ListDresses)

		v1.PATCH("/personas/:key", h.UpdateBasic)
		v1.DELETE("/personas/:key", h.DeletePersona)
		v1.POST("/personas/:key/favorite", h.ToggleFavorite)
		v1.POST("/personas/:key/equip", h.EquipDress)
	}
	return r
}

func requestLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"request_id", c.GetHeader("X-Request-ID"),
			"elapsed", time.Since(start),
		)
	}
}

// Server bundles the sandbox so cmd and tests build it the same way.
type Server struct {
	Engine  *gin.Engine
	Service *Service
	Tokens  *Tokens
	DB      *gorm.DB
	cfg     Config
	log     *logger.Logger
}

func NewServer(db *gorm.DB, cfg Config, log *logger.Logger) *Server {
	cfg = cfg.withDefaults()
	metrics := NewMetrics()
	svc := NewService(db, cfg, log, metrics)
	var tokens *Tokens
	if cfg.JWTSecret != "" {
		tokens = NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	}
	engine := NewRouter(RouterConfig{
		Handler:      NewHandler(svc, metrics, log),
		Metrics:      metrics,
		Tokens:       tokens,
		AllowOrigins: cfg.AllowOrigins,
		Logger:       log.With("component", "SandboxRouter"),
	})
	return &Server{Engine: engine, Service: svc, Tokens: tokens, DB: db, cfg: cfg, log: log}
}

// Run serves until ctx is cancelled, then drains for up to five seconds.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("sandbox listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
