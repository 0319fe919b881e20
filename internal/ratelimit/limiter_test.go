package ratelimit

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func fixedClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

func TestPerMinuteLimit(t *testing.T) {
	l := New(2, 10)
	now, clock := fixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	l.now = clock

	for i := 0; i < 2; i++ {
		if d := l.Allow("user"); !d.Allowed {
			t.Fatalf("check %d: expected allowed, got %q", i+1, d.Reason)
		}
	}

	d := l.Allow("user")
	if d.Allowed {
		t.Fatalf("expected third check to be denied")
	}
	if !strings.Contains(d.Reason, "requests per minute") {
		t.Fatalf("expected per-minute reason, got %q", d.Reason)
	}

	// The window rolls: a minute later the same identifier is admitted again.
	*now = now.Add(61 * time.Second)
	if d := l.Allow("user"); !d.Allowed {
		t.Fatalf("expected allowed after window rolled, got %q", d.Reason)
	}
}

func TestDeniedCheckConsumesNoQuota(t *testing.T) {
	l := New(1, 2)
	now, clock := fixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	l.now = clock

	if d := l.Allow("user"); !d.Allowed {
		t.Fatalf("first check: %q", d.Reason)
	}
	if d := l.Allow("user"); d.Allowed {
		t.Fatalf("second check should hit the minute limit")
	}

	// The minute-denied attempt must not have counted against the daily cap:
	// one daily slot remains.
	*now = now.Add(61 * time.Second)
	if d := l.Allow("user"); !d.Allowed {
		t.Fatalf("expected second daily slot to be free, got %q", d.Reason)
	}
	*now = now.Add(61 * time.Second)
	d := l.Allow("user")
	if d.Allowed {
		t.Fatalf("expected daily limit to be reached")
	}
	if !strings.Contains(d.Reason, "requests per day") {
		t.Fatalf("expected daily reason, got %q", d.Reason)
	}
}

func TestDailyLimitResetsNextDay(t *testing.T) {
	l := New(10, 2)
	now, clock := fixedClock(time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC))
	l.now = clock

	for i := 0; i < 2; i++ {
		if d := l.Allow("user"); !d.Allowed {
			t.Fatalf("check %d: %q", i+1, d.Reason)
		}
	}
	if d := l.Allow("user"); d.Allowed || d.Code != "daily" {
		t.Fatalf("expected daily denial, got %+v", d)
	}

	*now = now.Add(2 * time.Hour) // past midnight
	if d := l.Allow("user"); !d.Allowed {
		t.Fatalf("expected allowance on the next day, got %q", d.Reason)
	}
}

func TestIdentifiersAreIndependent(t *testing.T) {
	l := New(1, 1)
	if d := l.Allow("alice"); !d.Allowed {
		t.Fatalf("alice: %q", d.Reason)
	}
	if d := l.Allow("bob"); !d.Allowed {
		t.Fatalf("bob should not contend with alice: %q", d.Reason)
	}
}

func TestConcurrentAdmissionNeverOverAdmits(t *testing.T) {
	const limit = 5
	l := New(limit, limit)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("user").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Fatalf("expected exactly %d admissions, got %d", limit, allowed)
	}
}
