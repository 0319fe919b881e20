package core

import (
	"context"
	"log"
	"strings"
)

// Clarification question generation is independent of the main pipeline and
// callable before it: the caller shows the questions, collects answers, and
// only then starts a run.

const (
	// MsgEmptyQuery is returned when the caller submitted a blank query.
	MsgEmptyQuery = "Please enter a research query first."
	// MsgNoQuestions is returned when the clarifier produced an empty set.
	MsgNoQuestions = "Could not generate questions. Please try again."
	// MsgClarifyFailed is returned when the clarifier call faulted. The raw
	// fault stays in the server log, never on the wire.
	MsgClarifyFailed = "Error generating questions. Please try again."
)

// ClarificationStage turns a raw query into a fixed-size set of clarifying
// questions via the clarifier role.
type ClarificationStage struct {
	gateway AgentGateway
	logger  *log.Logger
}

func NewClarificationStage(gateway AgentGateway, logger *log.Logger) *ClarificationStage {
	if logger == nil {
		logger = log.New(log.Writer(), "[CLARIFY] ", log.LstdFlags)
	}
	return &ClarificationStage{gateway: gateway, logger: logger}
}

// Clarify returns the clarifying questions for query. Every failure mode maps
// to a *ValidationError carrying a user-facing guidance message; no transport
// fault propagates raw.
func (s *ClarificationStage) Clarify(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ValidationError{Message: MsgEmptyQuery}
	}

	out, err := s.gateway.Invoke(ctx, RoleClarifier, AgentInput{Text: query})
	if err != nil {
		s.logger.Printf("error generating questions: %v", err)
		return nil, &ValidationError{Message: MsgClarifyFailed}
	}
	if len(out.Questions) == 0 {
		return nil, &ValidationError{Message: MsgNoQuestions}
	}

	s.logger.Printf("generated %d questions", len(out.Questions))
	return out.Questions, nil
}
