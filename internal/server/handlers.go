package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zero-day-ai/graphqa/internal/guardrail"
	"github.com/zero-day-ai/graphqa/internal/quality"
	"github.com/zero-day-ai/graphqa/internal/rag"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse is the body returned for an answered question.
type QueryResponse struct {
	Response            string `json:"response"`
	GraphPartialAnswer  string `json:"graph_partial_answer"`
	VectorPartialAnswer string `json:"vector_partial_answer"`
	TraceID             string `json:"trace_id"`
	SpanID              string `json:"span_id"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	TraceID string   `json:"trace_id"`
	SpanID  string   `json:"span_id"`
	Score   *float64 `json:"score"`
	Comment string   `json:"comment"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Guardrail string `json:"guardrail,omitempty"`
	Action    string `json:"action,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     types.HealthState             `json:"status"`
	Components map[string]types.HealthStatus `json:"components"`
	Failing    []string                      `json:"failing,omitempty"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "question is required", Code: string(rag.ErrCodeInvalidQuestion)})
		return
	}
	if s.cfg.MaxQuestionLen > 0 && len(question) > s.cfg.MaxQuestionLen {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "question is too long", Code: string(rag.ErrCodeInvalidQuestion)})
		return
	}

	ctx := c.Request.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	resp, err := s.deps.Asker.Ask(ctx, question)
	if err != nil {
		s.writeAskError(c, err)
		return
	}

	c.JSON(http.StatusOK, QueryResponse{
		Response:            resp.Answer,
		GraphPartialAnswer:  resp.Graph.Text,
		VectorPartialAnswer: resp.Vector.Text,
		TraceID:             resp.TraceID,
		SpanID:              resp.SpanID,
	})
}

func (s *Server) writeAskError(c *gin.Context, err error) {
	var blocked *guardrail.GuardrailBlockedError
	switch {
	case errors.As(err, &blocked):
		// The blocked text and the guardrail's findings are never echoed.
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:     "request rejected by guardrail",
			Code:      string(guardrail.ErrGuardrailBlocked),
			Guardrail: blocked.GuardrailName,
			Action:    string(guardrail.ActionBlock),
		})
	case types.HasCode(err, rag.ErrCodeInvalidQuestion):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "question is required", Code: string(rag.ErrCodeInvalidQuestion)})
	case rag.IsUpstreamUnavailable(err):
		s.logger.ErrorContext(c.Request.Context(), "upstream unavailable", "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "an upstream service is unavailable", Code: string(rag.ErrCodeUpstreamUnavailable)})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "request timed out"})
	default:
		s.logger.ErrorContext(c.Request.Context(), "query failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: string(types.CodeOf(err))})
	}
}

func (s *Server) handleFeedback(c *gin.Context) {
	if s.deps.Feedback == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "feedback is not enabled"})
		return
	}

	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Score == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "score is required", Code: string(quality.ErrInvalidFeedback)})
		return
	}

	err := s.deps.Feedback.Record(c.Request.Context(), quality.Feedback{
		TraceID: req.TraceID,
		SpanID:  req.SpanID,
		Score:   *req.Score,
		Comment: req.Comment,
	})
	if types.HasCode(err, quality.ErrInvalidFeedback) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: string(quality.ErrInvalidFeedback)})
		return
	}
	// Delivery failures are logged; the caller's feedback was valid.
	if err != nil {
		s.logger.WarnContext(c.Request.Context(), "feedback not delivered",
			"trace_id", req.TraceID,
			"error", err,
		)
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) handleHealth(c *gin.Context) {
	statuses := make(map[string]types.HealthStatus, len(s.deps.Components))
	for name, comp := range s.deps.Components {
		statuses[name] = comp.Health(c.Request.Context())
	}
	report := types.NewHealthReport(statuses)

	code := http.StatusOK
	if report.State == types.HealthStateUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{
		Status:     report.State,
		Components: report.Components,
		Failing:    report.Failing(),
	})
}
