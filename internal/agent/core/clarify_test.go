package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func clarifyErr(t *testing.T, err error) *ValidationError {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return verr
}

func TestClarifyEmptyQuery(t *testing.T) {
	gw := happyGateway()
	stage := NewClarificationStage(gw, nil)

	_, err := stage.Clarify(context.Background(), "   ")
	if verr := clarifyErr(t, err); verr.Message != MsgEmptyQuery {
		t.Fatalf("unexpected message %q", verr.Message)
	}
	if len(gw.calls) != 0 {
		t.Fatalf("empty query must not reach the gateway, calls: %v", gw.calls)
	}
}

func TestClarifyMapsFaultsToGuidance(t *testing.T) {
	gw := &stubGateway{fn: func(ctx context.Context, role Role, input AgentInput) (AgentOutput, error) {
		return AgentOutput{}, fmt.Errorf("gateway timeout")
	}}
	stage := NewClarificationStage(gw, nil)

	_, err := stage.Clarify(context.Background(), "remote work")
	if verr := clarifyErr(t, err); verr.Message != MsgClarifyFailed {
		t.Fatalf("unexpected message %q", verr.Message)
	}
}

func TestClarifyEmptyQuestionSet(t *testing.T) {
	gw := &stubGateway{fn: func(ctx context.Context, role Role, input AgentInput) (AgentOutput, error) {
		return AgentOutput{Questions: nil}, nil
	}}
	stage := NewClarificationStage(gw, nil)

	_, err := stage.Clarify(context.Background(), "remote work")
	if verr := clarifyErr(t, err); verr.Message != MsgNoQuestions {
		t.Fatalf("unexpected message %q", verr.Message)
	}
}

func TestClarifySuccess(t *testing.T) {
	want := []string{"Which region?", "What timeframe?", "Which sectors?"}
	gw := &stubGateway{fn: func(ctx context.Context, role Role, input AgentInput) (AgentOutput, error) {
		if role != RoleClarifier {
			return AgentOutput{}, fmt.Errorf("unexpected role %s", role)
		}
		if input.Text != "remote work" {
			return AgentOutput{}, fmt.Errorf("query not trimmed: %q", input.Text)
		}
		return AgentOutput{Questions: want}, nil
	}}
	stage := NewClarificationStage(gw, nil)

	questions, err := stage.Clarify(context.Background(), "  remote work  ")
	if err != nil {
		t.Fatalf("Clarify: %v", err)
	}
	if len(questions) != 3 || questions[0] != want[0] {
		t.Fatalf("unexpected questions: %v", questions)
	}
}
