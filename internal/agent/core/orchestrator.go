package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var pipelineTracer trace.Tracer = otel.Tracer("deepresearch/internal/agent/orchestrator")

// Orchestrator sequences one research run: validation, planning, concurrent
// searching, report writing and optional email delivery. Progress is streamed
// as ordered human-readable events; the stream ends with either the report's
// markdown body or a single failure line prefixed with "❌".
type Orchestrator struct {
	cfg         *config.Config
	logger      *log.Logger
	telemetry   *telemetry.Telemetry
	gateway     AgentGateway
	coordinator *SearchCoordinator
}

// NewOrchestrator creates a new orchestrator instance
func NewOrchestrator(cfg *config.Config, logger *log.Logger, tele *telemetry.Telemetry, gateway AgentGateway) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Orchestrator{
		cfg:         cfg,
		logger:      logger,
		telemetry:   tele,
		gateway:     gateway,
		coordinator: NewSearchCoordinator(gateway, logger, tele, cfg.Research.MaxConcurrentSearch),
	}
}

// Run starts one pipeline run and returns its event stream. The channel is
// closed after the terminal event. Cancelling ctx stops the run; in-flight
// searches are cancelled and no later stage executes.
func (o *Orchestrator) Run(ctx context.Context, req PipelineRequest) <-chan string {
	events := make(chan string, 1)
	go o.run(ctx, req, events)
	return events
}

func (o *Orchestrator) run(ctx context.Context, req PipelineRequest, events chan<- string) {
	defer close(events)
	startTime := time.Now()

	emit := func(msg string) bool {
		select {
		case events <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}

	run, failMsg := o.validate(req)
	if failMsg != "" {
		if o.telemetry != nil {
			o.telemetry.RecordRun("invalid")
		}
		emit("❌ " + failMsg)
		return
	}

	run.traceID = uuid.New().String()
	ctx, span := pipelineTracer.Start(ctx, "agent.research_pipeline",
		trace.WithAttributes(attribute.String("run.trace_id", run.traceID)))
	defer span.End()

	o.logger.Printf("starting research run %s with %d question-answer pairs", run.traceID, len(run.pairs))
	if !emit("Trace: " + run.traceID) {
		return
	}

	fail := func(stage string, err error) {
		stageErr := &StageError{Stage: stage, Err: err}
		o.logger.Printf("run %s failed: %v", run.traceID, stageErr)
		span.RecordError(stageErr)
		span.SetStatus(codes.Error, stageErr.Error())
		if o.telemetry != nil {
			o.telemetry.RecordRun("failed")
		}
		emit(fmt.Sprintf("❌ Research pipeline failed: %v", stageErr))
	}

	// Planning
	if !emit("Planning searches based on clarifications...") {
		return
	}
	plan, err := o.planSearches(ctx, run)
	if err != nil {
		fail("planning", err)
		return
	}
	run.plan = plan
	span.AddEvent("plan.complete", trace.WithAttributes(attribute.Int("plan.search_count", len(plan.Searches))))

	// Searching: individual task failures are tolerated; an empty result set
	// is not a pipeline error.
	if !emit(fmt.Sprintf("Starting %d searches...", len(plan.Searches))) {
		return
	}
	run.results = o.coordinator.Execute(ctx, plan)
	if ctx.Err() != nil {
		return
	}
	span.AddEvent("search.complete", trace.WithAttributes(attribute.Int("search.result_count", len(run.results))))

	// Writing
	if !emit("Analyzing search results and writing report...") {
		return
	}
	report, err := o.writeReport(ctx, run)
	if err != nil {
		fail("writing", err)
		return
	}
	run.report = report

	// Delivery is opt-in; its failure is a hard pipeline failure because the
	// caller must know the side effect did not happen.
	if req.SendEmail && run.recipient() != "" {
		if !emit(fmt.Sprintf("Sending report to %s...", run.recipient())) {
			return
		}
		if err := o.sendReport(ctx, run); err != nil {
			fail("delivery", err)
			return
		}
		if !emit(fmt.Sprintf("Report sent to %s.", run.recipient())) {
			return
		}
	} else {
		if !emit("Email sending skipped.") {
			return
		}
	}

	if o.telemetry != nil {
		o.telemetry.RecordRun("succeeded")
	}
	span.SetStatus(codes.Ok, "completed")
	o.logger.Printf("completed research run %s in %v", run.traceID, time.Since(startTime))
	emit(run.report.MarkdownReport)
}

// ValidateRequest checks the request shape without side effects. It returns
// the user-facing failure message, or "" when the request is admissible.
// Callers gate quota-consuming work on it so that an invalid request costs
// nothing.
func ValidateRequest(req PipelineRequest) string {
	if strings.TrimSpace(req.Query) == "" {
		return MsgEmptyQuery
	}
	if req.SendEmail && strings.TrimSpace(req.RecipientEmail) == "" {
		return "Email sending requested but no recipient email provided."
	}
	if len(req.Questions) != len(req.Answers) {
		return fmt.Sprintf("Input validation failed: Mismatch: %d questions but %d answers", len(req.Questions), len(req.Answers))
	}
	return ""
}

// validate checks the input shape before any remote call is made. A non-empty
// failMsg is the fully rendered terminal failure line (minus prefix). Pairs
// that are empty after trimming are silently dropped; a count mismatch or an
// empty query is fatal.
func (o *Orchestrator) validate(req PipelineRequest) (*pipelineRun, string) {
	if msg := ValidateRequest(req); msg != "" {
		return nil, msg
	}

	run := &pipelineRun{query: strings.TrimSpace(req.Query), request: req}
	for i := range req.Questions {
		q := strings.TrimSpace(req.Questions[i])
		a := strings.TrimSpace(req.Answers[i])
		if q == "" || a == "" {
			continue
		}
		run.pairs = append(run.pairs, QA{Question: q, Answer: a})
	}
	return run, ""
}

func (o *Orchestrator) planSearches(ctx context.Context, run *pipelineRun) (SearchPlan, error) {
	ctx, span := pipelineTracer.Start(ctx, "agent.plan")
	defer span.End()

	var clarifications []string
	for _, pair := range run.pairs {
		clarifications = append(clarifications, fmt.Sprintf("Q: %s\nA: %s", pair.Question, pair.Answer))
	}
	prompt := fmt.Sprintf("Query: %s\n\nClarifications:\n%s", run.query, strings.Join(clarifications, "\n"))

	out, err := o.gateway.Invoke(ctx, RolePlanner, AgentInput{Text: prompt})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SearchPlan{}, err
	}
	if len(out.Plan.Searches) == 0 {
		err := fmt.Errorf("planner agent returned no searches")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SearchPlan{}, err
	}

	o.logger.Printf("planned %d searches", len(out.Plan.Searches))
	span.SetStatus(codes.Ok, "completed")
	return out.Plan, nil
}

func (o *Orchestrator) writeReport(ctx context.Context, run *pipelineRun) (Report, error) {
	ctx, span := pipelineTracer.Start(ctx, "agent.write_report")
	defer span.End()

	prompt := fmt.Sprintf("Original query: %s\n\nSearch Results:\n%s", run.query, strings.Join(run.results, "\n---\n"))

	out, err := o.gateway.Invoke(ctx, RoleWriter, AgentInput{Text: prompt})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}
	if err := out.Report.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}

	span.SetStatus(codes.Ok, "completed")
	return out.Report, nil
}

func (o *Orchestrator) sendReport(ctx context.Context, run *pipelineRun) error {
	ctx, span := pipelineTracer.Start(ctx, "agent.send_report",
		trace.WithAttributes(attribute.String("delivery.recipient", run.recipient())))
	defer span.End()

	input := fmt.Sprintf("Send the following research report as an email:\nTo: %s\n\nBody (HTML):\n%s", run.recipient(), run.report.MarkdownReport)

	out, err := o.gateway.Invoke(ctx, RoleDelivery, AgentInput{Text: input, Recipient: run.recipient()})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.String("delivery.message_id", out.Confirmation))
	span.SetStatus(codes.Ok, "completed")
	return nil
}
