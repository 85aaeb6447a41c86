package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// streamEvents handles GET /sessions/:id/events as a server-sent event
// stream. The stream ends when the client disconnects or the session's bus
// closes.
func (s *Server) streamEvents(c *gin.Context) {
	eng, ok := s.engine(c)
	if !ok {
		return
	}
	ch, cancel := eng.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			blob, err := json.Marshal(ev)
			if err != nil {
				s.log.Warn("failed to encode event", "error", err)
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", blob)
			c.Writer.Flush()
		}
	}
}
