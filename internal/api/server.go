// Package api собирает HTTP-сервер кошелька: middleware, health-check и маршруты фич.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/retro-wallet/internal/api/middleware"
	"serotonyl.ru/retro-wallet/internal/config"
)

// Pinger: проверка доступности БД для /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes: обработчик фичи, который умеет зарегистрировать свои маршруты.
type Routes interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Server: HTTP-сервер с graceful shutdown.
type Server struct {
	cfg     *config.Config
	engine  *gin.Engine
	http    *http.Server
	limiter *middleware.RateLimiter
	db      Pinger
}

// NewServer создаёт сервер.
// player регистрируются за RequirePlayer, admin проверяет ключ сам.
func NewServer(cfg *config.Config, db Pinger, player []Routes, admin Routes) *Server {
	s := &Server{
		cfg:     cfg,
		engine:  gin.New(),
		limiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		db:      db,
	}

	// Порядок важен: Recovery ловит панику в любом следующем middleware
	s.engine.Use(
		middleware.Recovery(),
		middleware.Logger(),
		middleware.MaxInflight(cfg.HTTPMaxInflight),
	)

	s.engine.GET("/healthz", s.health)

	v1 := s.engine.Group("/api/v1")

	playerGroup := v1.Group("", middleware.RequirePlayer(cfg.PlayerIDHeader), s.limiter.Middleware())
	for _, r := range player {
		r.RegisterRoutes(playerGroup)
	}

	if admin != nil {
		admin.RegisterRoutes(v1.Group("", s.limiter.Middleware()))
	}

	s.http = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      s.engine,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}
	return s
}

// Handler возвращает http.Handler сервера (для тестов).
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start слушает HTTP_ADDR до отмены ctx, затем корректно завершается:
// новые соединения не принимаются, текущие запросы дорабатывают до HTTP_SHUTDOWN_TIMEOUT.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP-сервер слушает %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.limiter.Close()
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Останавливаем HTTP-сервер...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTPShutdownTimeout)
	defer cancel()

	defer s.limiter.Close()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки HTTP-сервера: %w", err)
	}
	log.Info("HTTP-сервер остановлен")
	return nil
}

// health: GET /healthz
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		log.WithError(err).Warn("Health-check: БД недоступна")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
