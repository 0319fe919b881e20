// Package ratelimit provides per-identifier admission control combining a
// rolling one-minute request cap with a calendar-day request cap. State lives
// in memory for the process lifetime; daily counters reset themselves by date
// comparison.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

const window = time.Minute

// Decision is the outcome of one admission check. Code is a short stable
// label for metrics; Reason is the user-facing denial message.
type Decision struct {
	Allowed bool
	Code    string
	Reason  string
}

// Limiter guards admission per identifier. A denied check never consumes
// quota; an allowed check consumes exactly one minute-slot and one daily-slot
// atomically with the check.
type Limiter struct {
	requestsPerMinute int
	dailyLimit        int

	mu      sync.Mutex
	entries map[string]*entry

	now func() time.Time
}

// entry tracks one identifier. Its mutex serializes check-and-increment so two
// near-simultaneous checks for the same identifier cannot both pass the limit.
type entry struct {
	mu     sync.Mutex
	stamps []time.Time
	day    string
	count  int
}

// New creates a limiter with the given caps.
func New(requestsPerMinute, dailyLimit int) *Limiter {
	return &Limiter{
		requestsPerMinute: requestsPerMinute,
		dailyLimit:        dailyLimit,
		entries:           make(map[string]*entry),
		now:               time.Now,
	}
}

// Allow performs one admission check for id.
func (l *Limiter) Allow(id string) Decision {
	e := l.entry(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()

	// Prune timestamps older than the rolling window.
	kept := e.stamps[:0]
	for _, ts := range e.stamps {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}
	e.stamps = kept

	if len(e.stamps) >= l.requestsPerMinute {
		return Decision{Code: "per_minute", Reason: fmt.Sprintf("Rate limit exceeded: Max %d requests per minute.", l.requestsPerMinute)}
	}

	today := now.Format("2006-01-02")
	if e.day != today {
		e.day = today
		e.count = 0
	}
	if e.count >= l.dailyLimit {
		return Decision{Code: "daily", Reason: fmt.Sprintf("Daily limit exceeded: Max %d requests per day.", l.dailyLimit)}
	}

	e.stamps = append(e.stamps, now)
	e.count++
	return Decision{Allowed: true}
}

// entry returns the identifier's state, creating it lazily on first use.
// Entries are never destroyed; the map lives for the process lifetime.
func (l *Limiter) entry(id string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		e = &entry{}
		l.entries[id] = e
	}
	return e
}
