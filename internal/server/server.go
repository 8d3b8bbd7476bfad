package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/config"
	"chatrelay/internal/gateway"
	"chatrelay/internal/services"
	"chatrelay/pkg/database"
	"chatrelay/pkg/logger"
)

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogging(l))

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func requestLogging(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		// The socket route stays open for the connection lifetime; logging
		// it here would just record the disconnect.
		if c.Request.URL.Path == "/ws" {
			return
		}
		l.Infof("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) SetupRoutes(gw *gateway.Gateway, rooms *services.RoomService, presence *services.PresenceService, pool *pgxpool.Pool) {
	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(c.Request.Context(), pool); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	s.engine.GET("/ws", gw.Connect)

	admin := s.engine.Group("/v1/admin")
	admin.Use(s.adminAuth())
	admin.POST("/rooms/:roomID/repair-creator", func(c *gin.Context) {
		roomID, err := uuid.Parse(c.Param("roomID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
			return
		}
		if err := rooms.RepairCreatorMembership(c.Request.Context(), roomID); err != nil {
			s.logger.Errorf("creator repair for room %s failed: %v", roomID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "repair failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "repaired"})
	})
	admin.GET("/presence/online", func(c *gin.Context) {
		users, err := presence.OnlineUsers(c.Request.Context())
		if err != nil {
			s.logger.Errorf("online users lookup failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "presence lookup failed"})
			return
		}
		if users == nil {
			users = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"online": users})
	})
}

// adminAuth gates operator endpoints behind the configured token. With no
// token configured the endpoints are disabled entirely.
func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.config.AdminToken == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin endpoints disabled"})
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+s.config.AdminToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start(onShutdown func()) error {
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Error in starting the server: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	s.logger.Infof("Server is running on :%s", s.config.AppPort)

	<-quit

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	if onShutdown != nil {
		onShutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
