package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/navimind/navimind/pkg/config"
	"github.com/navimind/navimind/pkg/llm"
	"github.com/navimind/navimind/pkg/session"
)

// abortWithError maps engine errors to the {error} envelope. Anything not
// recognized is an internal error and gets logged.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrBlockedTask),
		errors.Is(err, session.ErrNoCredentials),
		errors.Is(err, session.ErrNoActiveAction),
		errors.Is(err, config.ErrInvalid),
		errors.Is(err, llm.ErrUnknownProvider):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrTerminal),
		errors.Is(err, session.ErrNotPaused):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// badRequest rejects a malformed body.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
