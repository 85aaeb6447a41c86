// Package api exposes the session engine over HTTP to the browser client.
// All state lives in pkg/session; handlers translate between request
// envelopes and engine calls.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/navimind/navimind/pkg/database"
	"github.com/navimind/navimind/pkg/session"
	"github.com/navimind/navimind/pkg/version"
)

// healthTimeout bounds the database ping on /health.
const healthTimeout = 5 * time.Second

// Server holds the handler dependencies.
type Server struct {
	mgr *session.Manager
	db  *database.Client // nil when running on the memory store
	log *slog.Logger
}

// NewServer creates the API server. db may be nil.
func NewServer(mgr *session.Manager, db *database.Client, logger *slog.Logger) *Server {
	return &Server{mgr: mgr, db: db, log: logger}
}

// Router builds the route table.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())

	r.GET("/health", s.health)

	r.POST("/sessions/create", s.createSession)
	sess := r.Group("/sessions/:id")
	{
		sess.POST("/execute", s.execute)
		sess.POST("/follow-up", s.followUp)
		sess.GET("/next-action", s.nextAction)
		sess.POST("/action-result", s.actionResult)
		sess.POST("/state", s.updateState)
		sess.POST("/pause", s.pause)
		sess.POST("/resume", s.resume)
		sess.POST("/cancel", s.cancel)
		sess.GET("/history", s.history)
		sess.GET("/events", s.streamEvents)
		sess.POST("/replay", s.replay)
		sess.POST("/extract", s.extract)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

// health reports process and store health.
func (s *Server) health(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"version": version.Full(),
		"store":   "memory",
	}
	if s.db != nil {
		resp["store"] = "postgres"
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		dbHealth, err := s.db.Health(ctx)
		resp["database"] = dbHealth
		if err != nil {
			resp["status"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}
