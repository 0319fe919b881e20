package core

import (
	"context"
	"fmt"
	"strings"
)

// Role identifies a remote agent capability reachable through the gateway.
type Role string

const (
	RoleClarifier Role = "clarifier"
	RolePlanner   Role = "planner"
	RoleSearcher  Role = "searcher"
	RoleWriter    Role = "writer"
	RoleDelivery  Role = "delivery"
)

// SearchTask is one planned web search with its justification.
type SearchTask struct {
	Query  string `json:"query"`
	Reason string `json:"reason"`
}

// SearchPlan is the ordered set of searches produced by the planner role.
type SearchPlan struct {
	Searches []SearchTask `json:"searches"`
}

// Report is the writer role's synthesized output.
type Report struct {
	ShortSummary      string `json:"short_summary"`
	MarkdownReport    string `json:"markdown_report"`
	FollowUpQuestions string `json:"follow_up_questions"`
}

// Validate checks the report shape invariant: summary and body must be present.
func (r Report) Validate() error {
	if strings.TrimSpace(r.ShortSummary) == "" || strings.TrimSpace(r.MarkdownReport) == "" {
		return fmt.Errorf("writer agent returned incomplete report")
	}
	return nil
}

// AgentInput carries the prompt text for a gateway call. Recipient is only
// consulted by the delivery role.
type AgentInput struct {
	Text      string
	Recipient string
}

// AgentOutput is the union of role output shapes. Only the field matching the
// invoked role is populated.
type AgentOutput struct {
	Questions    []string   // clarifier
	Plan         SearchPlan // planner
	Text         string     // searcher
	Report       Report     // writer
	Confirmation string     // delivery (message id)
}

// AgentGateway is the uniform async call contract for all remote agent roles.
type AgentGateway interface {
	Invoke(ctx context.Context, role Role, input AgentInput) (AgentOutput, error)
}

// QA is one surviving clarification question/answer pair.
type QA struct {
	Question string
	Answer   string
}

// PipelineRequest is the caller's input to one orchestrator run.
type PipelineRequest struct {
	Query          string   `json:"query"`
	Questions      []string `json:"questions"`
	Answers        []string `json:"answers"`
	SendEmail      bool     `json:"send_email"`
	RecipientEmail string   `json:"recipient_email"`
}

// pipelineRun holds the per-invocation state. It is owned by exactly one
// orchestrator run and discarded when the event stream completes.
type pipelineRun struct {
	traceID string
	query   string
	request PipelineRequest
	pairs   []QA
	plan    SearchPlan
	results []string
	report  Report
}

func (r *pipelineRun) recipient() string {
	return strings.TrimSpace(r.request.RecipientEmail)
}
