package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/consultation_bot/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger проверяет доступность базы
type Pinger interface {
	Ping(ctx context.Context) error
}

// AuditProvider отдаёт полную историю консультации
type AuditProvider interface {
	GetAudit(ctx context.Context, consultationID int64) (*service.Audit, error)
}

// Server служебный HTTP: healthcheck и просмотр консультаций для поддержки
type Server struct {
	db     Pinger
	audit  AuditProvider
	logger *zap.Logger
	server *http.Server
}

func NewServer(addr string, db Pinger, audit AuditProvider, logger *zap.Logger) *Server {
	s := &Server{
		db:     db,
		audit:  audit,
		logger: logger,
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Router собирает gin engine со всеми маршрутами
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/healthz", s.health)
	router.GET("/consultations/:id", s.consultation)

	return router
}

// Start запускает сервер в фоне. Ошибка прослушивания логируется.
func (s *Server) Start() {
	go func() {
		s.logger.Info("HTTP server starting", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		s.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) consultation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid consultation id"})
		return
	}

	audit, err := s.audit.GetAudit(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrConsultationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "consultation not found"})
			return
		}
		s.logger.Error("Failed to load consultation audit", zap.Int64("consultation_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load consultation"})
		return
	}

	c.JSON(http.StatusOK, audit)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
