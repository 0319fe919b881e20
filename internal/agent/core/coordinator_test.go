package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestExecuteCollectsSuccessesAndDropsFailures(t *testing.T) {
	var mu sync.Mutex
	failed := map[string]bool{"query 2": true, "query 4": true}

	gw := &stubGateway{}
	gw.fn = func(ctx context.Context, role Role, input AgentInput) (AgentOutput, error) {
		mu.Lock()
		defer mu.Unlock()
		for q := range failed {
			if strings.Contains(input.Text, q) {
				return AgentOutput{}, fmt.Errorf("transient fault")
			}
		}
		return AgentOutput{Text: "ok: " + input.Text}, nil
	}

	c := NewSearchCoordinator(gw, nil, nil, 0)
	results := c.Execute(context.Background(), testPlan(5))

	if len(results) != 3 {
		t.Fatalf("expected 3 results from 5 tasks with 2 failures, got %d", len(results))
	}
	if gw.callCount(RoleSearcher) != 5 {
		t.Fatalf("expected all 5 tasks attempted, got %d", gw.callCount(RoleSearcher))
	}
}

func TestExecuteEmptyPlan(t *testing.T) {
	gw := happyGateway()
	c := NewSearchCoordinator(gw, nil, nil, 0)

	if results := c.Execute(context.Background(), SearchPlan{}); results != nil {
		t.Fatalf("expected no results, got %v", results)
	}
	if len(gw.calls) != 0 {
		t.Fatalf("expected no calls for empty plan, got %v", gw.calls)
	}
}

func TestExecutePromptContainsQueryAndReason(t *testing.T) {
	gw := happyGateway()
	c := NewSearchCoordinator(gw, nil, nil, 0)

	c.Execute(context.Background(), testPlan(1))
	prompt := gw.lastInput(RoleSearcher).Text
	if !strings.Contains(prompt, "Search: query 1") || !strings.Contains(prompt, "Reason: reason 1") {
		t.Fatalf("unexpected searcher prompt: %q", prompt)
	}
}

func TestExecuteRespectsConcurrencyCap(t *testing.T) {
	var active, peak int64
	release := make(chan struct{})

	gw := &stubGateway{}
	gw.fn = func(ctx context.Context, role Role, input AgentInput) (AgentOutput, error) {
		n := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt64(&active, -1)
		return AgentOutput{Text: "done"}, nil
	}

	c := NewSearchCoordinator(gw, nil, nil, 2)
	done := make(chan []string)
	go func() { done <- c.Execute(context.Background(), testPlan(6)) }()

	close(release)
	results := <-done

	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	if p := atomic.LoadInt64(&peak); p > 2 {
		t.Fatalf("concurrency cap violated: peak %d", p)
	}
}
