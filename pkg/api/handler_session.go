package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/navimind/navimind/pkg/models"
	"github.com/navimind/navimind/pkg/session"
)

type createSessionRequest struct {
	ExtensionID string          `json:"extensionId"`
	Config      json.RawMessage `json:"config"`
}

// createSession handles POST /sessions/create.
func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	eng, err := s.mgr.Create(c.Request.Context(), req.ExtensionID, req.Config)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId": eng.ID(),
		// Legacy field kept for older extension builds; same value.
		"durableObjectId": eng.ID(),
	})
}

// engine resolves the :id path parameter, writing the error response on
// failure.
func (s *Server) engine(c *gin.Context) (*session.Engine, bool) {
	eng, err := s.mgr.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return nil, false
	}
	return eng, true
}

type executeRequest struct {
	Task     string          `json:"task" binding:"required"`
	Provider string          `json:"provider"`
	APIKey   string          `json:"apiKey"`
	Model    string          `json:"model"`
	Vision   *bool           `json:"vision"`
	Config   json.RawMessage `json:"config"`
}

// execute handles POST /sessions/:id/execute.
func (s *Server) execute(c *gin.Context) {
	eng, ok := s.engine(c)
	if !ok {
		return
	}
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "task is required")
		return
	}

	opts := session.ExecuteOptions{
		Provider: req.Provider,
		APIKey:   req.APIKey,
		Model:    req.Model,
		Vision:   req.Vision,
		Config:   req.Config,
	}
	s.mgr.ApplyDefaults(&opts)

	taskID, err := eng.Execute(req.Task, opts)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "taskId": taskID})
}

type followUpRequest struct {
	Task string `json:"task" binding:"required"`
}

// followUp handles POST /sessions/:id/follow-up.
func (s *Server) followUp(c *gin.Context) {
	eng, ok := s.engine(c)
	if !ok {
		return
	}
	var req followUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "task is required")
		return
	}
	taskID, err := eng.FollowUp(req.Task)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "taskId": taskID})
}

// nextAction handles GET /sessions/:id/next-action.
func (s *Server) nextAction(c *gin.Context) {
	eng, ok := s.engine(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, eng.NextAction())
}

type actionResultRequest struct {
	Success    bool                 `json:"success"`
	Result     string               `json:"result"`
	Error      string               `json:"error"`
	Screenshot string               `json:"screenshot"`
	DOMState   *models.BrowserState `json:"domState"`
	DurationMs int64                `json:"durationMs"`
}

// actionResult handles POST /sessions/:id/action-result.
func (s *Server) actionResult(c *gin.Context) {
	eng, ok := s.engine(c)
	if !ok {
		return
	}
	var req actionResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	err := eng.ActionResult(&models.Result{
		Success:      req.Success,
		Data:         req.Result,
		Error:        req.Error,
		Screenshot:   req.Screenshot,
		BrowserState: req.DOMState,
		DurationMs:   req.DurationMs,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// updateState handles POST /sessions/:id/state.
func (s *Server) updateState(c *gin.Context) {
	eng, ok := s.engine(c)
	if !ok {
		return
	}
	var state models.BrowserState
	if err := c.ShouldBindJSON(&state); err != nil {
		badRequest(c, "invalid browser state: "+err.Error())
		return
	}
	if err := eng.UpdateState(&state); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// pause handles POST /sessions/:id/pause.
func (s *Server) pause(c *gin.Context) {
	s.lifecycle(c, (*session.Engine).Pause)
}

// resume handles POST /sessions/:id/resume.
func (s *Server) resume(c *gin.Context) {
	s.lifecycle(c, (*session.Engine).Resume)
}

// cancel handles POST /sessions/:id/cancel.
func (s *Server) cancel(c *gin.Context) {
	s.lifecycle(c, (*session.Engine).Cancel)
}

func (s *Server) lifecycle(c *gin.Context, op func(*session.Engine) error) {
	eng, ok := s.engine(c)
	if !ok {
		return
	}
	if err := op(eng); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// history handles GET /sessions/:id/history.
func (s *Server) history(c *gin.Context) {
	eng, ok := s.engine(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, eng.History())
}

// replay handles POST /sessions/:id/replay.
func (s *Server) replay(c *gin.Context) {
	eng, ok := s.engine(c)
	if !ok {
		return
	}
	replayID, err := eng.Replay(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "replayId": replayID})
}

type extractRequest struct {
	Content          string          `json:"content" binding:"required"`
	Fields           json.RawMessage `json:"fields" binding:"required"`
	ExtractionPrompt string          `json:"extractionPrompt"`
}

// extractFields accepts both wire forms of the fields parameter: a list of
// field names or a name-to-type object.
func extractFields(raw json.RawMessage) (map[string]any, error) {
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		fields := make(map[string]any, len(names))
		for _, name := range names {
			fields[name] = "any"
		}
		return fields, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// extract handles POST /sessions/:id/extract.
func (s *Server) extract(c *gin.Context) {
	eng, ok := s.engine(c)
	if !ok {
		return
	}
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content and fields are required")
		return
	}
	fields, err := extractFields(req.Fields)
	if err != nil {
		badRequest(c, "fields must be a list of names or an object")
		return
	}
	data, err := eng.Extract(c.Request.Context(), req.Content, req.ExtractionPrompt, fields)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       data,
		"confidence": extractionConfidence(data, fields),
	})
}

// extractionConfidence scores an extraction as the fraction of requested
// fields that came back non-null.
func extractionConfidence(data json.RawMessage, fields map[string]any) float64 {
	if len(fields) == 0 {
		return 1.0
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal(data, &got); err != nil {
		return 0
	}
	populated := 0
	for name := range fields {
		if v, ok := got[name]; ok && string(v) != "null" {
			populated++
		}
	}
	return float64(populated) / float64(len(fields))
}
