package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	appconfig "github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/core"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/email"
	"github.com/mohammad-safakhou/deepresearch/internal/ratelimit"
	openai "github.com/mohammad-safakhou/deepresearch/provider/openai"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run wires the service together and starts the HTTP API.
func Run(cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Shared dependencies (top-level DI)
	var tele *telemetry.Telemetry
	if cfg.Telemetry.Enabled {
		tele = telemetry.NewTelemetry(nil)
	}

	llm := openai.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Temperature, cfg.LLM.MaxTokens, cfg.LLM.Timeout)

	var emailer core.EmailSender
	if cfg.Email.Enabled {
		sender, err := email.NewSESSender(context.Background(), cfg.Email.Region, cfg.Email.Sender)
		if err != nil {
			return err
		}
		emailer = sender
	}

	gatewayLogger := log.New(log.Writer(), "[GATEWAY] ", log.LstdFlags)
	gateway := core.NewLLMGateway(cfg, llm, emailer, gatewayLogger, tele)

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	orch := core.NewOrchestrator(cfg, orchLogger, tele, gateway)

	clarifyLogger := log.New(log.Writer(), "[CLARIFY] ", log.LstdFlags)
	clarify := core.NewClarificationStage(gateway, clarifyLogger)

	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.DailyLimit)

	rh := &ResearchHandler{
		Clarify:   clarify,
		Orch:      orch,
		Limiter:   limiter,
		Telemetry: tele,
		Logger:    log.New(log.Writer(), "[API] ", log.LstdFlags),
	}
	rh.Register(e.Group("/api"))

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10002"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
