// Package api exposes the inference service over HTTP: health and
// metadata probes plus the prediction endpoints. Prediction traffic
// is rate limited and every request carries an X-Request-ID.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/drug-risk-ml-server/internal/cache"
	"github.com/drug-risk-ml-server/internal/domain"
	"github.com/drug-risk-ml-server/internal/service"
)

// Server is the HTTP inference server.
type Server struct {
	configManager domain.ConfigManager
	predictor     *service.Predictor
	cache         *cache.PredictionCache
	audit         domain.AuditStore
	router        *gin.Engine
	server        *http.Server
	log           *logrus.Logger
}

// NewServer creates the HTTP server. cache and audit are optional;
// nil disables the concern.
func NewServer(configManager domain.ConfigManager, predictor *service.Predictor,
	predictionCache *cache.PredictionCache, auditStore domain.AuditStore, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	server := &Server{
		configManager: configManager,
		predictor:     predictor,
		cache:         predictionCache,
		audit:         auditStore,
		router:        router,
		log:           logger,
	}

	server.setupRoutes()

	return server
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	cfg := s.configManager.GetServerConfig()

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metadata", s.handleMetadata)

	predict := s.router.Group("/")
	predict.Use(rateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
	{
		predict.POST("/predict", s.handlePredict)
		predict.POST("/predict/both", s.handlePredictBoth)
		predict.POST("/explain", s.handleExplain)
	}
}
