package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"btcoracle/internal/cache"
	"btcoracle/internal/config"
	"btcoracle/internal/database"
)

// Server exposes the public read surface: latest price, 24h range,
// volatility by duration, submission audit, health and metrics. Every
// endpoint serves stored values only; nothing here triggers a fetch.
type Server struct {
	cfg        config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	handlers   *Handlers
	hub        *Hub
	log        *logrus.Logger
}

// NewServer creates the read API server.
func NewServer(cfg *config.Config, handlers *Handlers, hub *Hub, db *database.DB, cacher cache.Cacher, log *logrus.Logger) *Server {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg.Server,
		router:   router,
		handlers: handlers,
		hub:      hub,
		log:      log,
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/price", handlers.GetLatestPrice)
		v1.GET("/price/range24h", handlers.Get24hRange)
		v1.GET("/volatility", handlers.GetVolatilityForDuration)
		v1.GET("/submissions", handlers.GetRecentSubmissions)
	}

	router.GET("/ws/price", hub.Serve)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", healthHandler(db, cacher))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("read API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(db *database.DB, cacher cache.Cacher) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := gin.H{"status": "ok", "time": time.Now().UTC()}
		healthy := true

		if db != nil {
			if err := db.HealthCheck(ctx); err != nil {
				status["database"] = err.Error()
				healthy = false
			} else {
				status["database"] = "ok"
			}
		} else {
			status["database"] = "disabled"
		}

		if cacher != nil {
			if err := cacher.Ping(ctx); err != nil {
				status["cache"] = err.Error()
				healthy = false
			} else {
				status["cache"] = "ok"
			}
		}

		if !healthy {
			status["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
