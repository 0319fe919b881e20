package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/core"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/ratelimit"
)

// ResearchHandler exposes clarification and the streaming research pipeline.
type ResearchHandler struct {
	Clarify   *core.ClarificationStage
	Orch      *core.Orchestrator
	Limiter   *ratelimit.Limiter
	Telemetry *telemetry.Telemetry
	Logger    *log.Logger
}

// Register mounts the handler's routes on g.
func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("/clarify", h.clarify)
	g.POST("/research", h.research)
}

// admit runs the admission check for the caller, logging and counting denials.
// A denied check consumes no quota.
func (h *ResearchHandler) admit(c echo.Context) (string, ratelimit.Decision) {
	id := identifierFromRequest(c)
	decision := h.Limiter.Allow(id)
	if !decision.Allowed {
		h.Logger.Printf("rate limit exceeded for user %s: %s", id, decision.Reason)
		if h.Telemetry != nil {
			h.Telemetry.RecordDenial(decision.Code)
		}
	}
	return id, decision
}

// clarify generates clarifying questions for a raw query.
func (h *ResearchHandler) clarify(c echo.Context) error {
	var req ClarifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	// An empty query is rejected before admission so it consumes no quota.
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, core.MsgEmptyQuery)
	}

	_, decision := h.admit(c)
	if !decision.Allowed {
		return echo.NewHTTPError(http.StatusTooManyRequests, decision.Reason)
	}

	questions, err := h.Clarify.Clarify(c.Request().Context(), req.Query)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			if verr.Message == core.MsgEmptyQuery {
				return echo.NewHTTPError(http.StatusBadRequest, verr.Message)
			}
			return echo.NewHTTPError(http.StatusBadGateway, verr.Message)
		}
		return err
	}

	return c.JSON(http.StatusOK, ClarifyResponse{Questions: questions})
}

// research runs the full pipeline, streaming progress events via SSE. The
// stream ends with the final report markdown or one "❌" failure line.
func (h *ResearchHandler) research(c echo.Context) error {
	var req core.PipelineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	// An invalid request still streams its failure line, but is caught here
	// first so it never reaches the admission check and consumes no quota.
	if core.ValidateRequest(req) == "" {
		id, decision := h.admit(c)
		if !decision.Allowed {
			return echo.NewHTTPError(http.StatusTooManyRequests, decision.Reason)
		}
		h.Logger.Printf("starting research for user %s", id)
	}

	ctx := c.Request().Context()
	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	// ctx is cancelled when the caller disconnects; Run stops producing and
	// the range loop ends.
	for ev := range h.Orch.Run(ctx, req) {
		data, err := json.Marshal(researchEvent{Message: ev})
		if err != nil {
			return err
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
	}
	return nil
}
