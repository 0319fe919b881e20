package core

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
)

// SearchCoordinator executes a batch of independent search tasks concurrently
// against the gateway's searcher role, collecting results as they complete.
// Individual task failures are recorded and dropped; they never abort the
// batch or the pipeline.
type SearchCoordinator struct {
	gateway   AgentGateway
	logger    *log.Logger
	telemetry *telemetry.Telemetry

	// maxConcurrent bounds parallelism when > 0. The batch itself is the only
	// bound otherwise.
	maxConcurrent int
}

func NewSearchCoordinator(gateway AgentGateway, logger *log.Logger, tele *telemetry.Telemetry, maxConcurrent int) *SearchCoordinator {
	if logger == nil {
		logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	}
	return &SearchCoordinator{gateway: gateway, logger: logger, telemetry: tele, maxConcurrent: maxConcurrent}
}

// Execute runs every task in plan and returns the successful results in
// completion order. It waits for all launched tasks to reach a terminal state
// before returning; the only timeout is whatever the gateway call carries.
func (c *SearchCoordinator) Execute(ctx context.Context, plan SearchPlan) []string {
	total := len(plan.Searches)
	if total == 0 {
		return nil
	}

	var sem chan struct{}
	if c.maxConcurrent > 0 {
		sem = make(chan struct{}, c.maxConcurrent)
	}

	type outcome struct {
		result string
		ok     bool
	}

	outcomes := make(chan outcome, total)
	var wg sync.WaitGroup

	for _, task := range plan.Searches {
		wg.Add(1)
		go func(t SearchTask) {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					outcomes <- outcome{}
					return
				}
			}
			result, err := c.searchWeb(ctx, t)
			if err != nil {
				c.logger.Printf("search failed for %q: %v", t.Query, err)
				if c.telemetry != nil {
					c.telemetry.RecordSearch(false)
				}
				outcomes <- outcome{}
				return
			}
			if c.telemetry != nil {
				c.telemetry.RecordSearch(true)
			}
			outcomes <- outcome{result: result, ok: true}
		}(task)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var results []string
	completed := 0
	for out := range outcomes {
		completed++
		if out.ok {
			results = append(results, out.result)
		}
		c.logger.Printf("Searching... %d/%d completed", completed, total)
	}
	c.logger.Printf("Finished all searches.")

	return results
}

func (c *SearchCoordinator) searchWeb(ctx context.Context, task SearchTask) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	input := fmt.Sprintf("Search: %s\nReason: %s", task.Query, task.Reason)
	out, err := c.gateway.Invoke(ctx, RoleSearcher, AgentInput{Text: input})
	if err != nil {
		return "", err
	}
	return out.Text, nil
}
