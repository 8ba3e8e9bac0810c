package metrics

import "sync"

// Counters are process-wide performance counters, incremented by explicit
// Record calls from collaborators. They are never reset except by Maintain,
// which halves a group once its total exceeds the configured cap so the
// derived rates stay meaningful over long uptimes.
type Counters struct {
	mu  sync.Mutex
	cap uint64

	requests    counterGroup
	actions     counterGroup
	connections connectionGroup
	issues      issueGroup
	recovery    recoveryGroup

	// Exponentially weighted average request duration in milliseconds.
	respEWMA float64
}

type counterGroup struct {
	Total   uint64 `json:"total"`
	Success uint64 `json:"success"`
	Error   uint64 `json:"error"`
}

type connectionGroup struct {
	Total  uint64 `json:"total"`
	Active uint64 `json:"active"`
	Failed uint64 `json:"failed"`
}

type issueGroup struct {
	Detected uint64 `json:"detected"`
	Resolved uint64 `json:"resolved"`
}

type recoveryGroup struct {
	Attempts uint64 `json:"attempts"`
	Success  uint64 `json:"success"`
	Failed   uint64 `json:"failed"`
}

// Totals is a consistent read of all counters plus derived rates, consumed
// by the health scorer and diagnostics.
type Totals struct {
	Requests    counterGroup    `json:"requests"`
	Actions     counterGroup    `json:"actions"`
	Connections connectionGroup `json:"connections"`
	Issues      issueGroup      `json:"issues"`
	Recovery    recoveryGroup   `json:"recovery"`

	ErrorRatePct  float64 `json:"errorRatePct"`
	AvgResponseMs float64 `json:"avgResponseMs"`
}

const respEWMAWeight = 0.2

// NewCounters creates counters with the given cap-and-decay threshold.
func NewCounters(cap uint64) *Counters {
	if cap == 0 {
		cap = DefaultConfig().CounterCap
	}
	return &Counters{cap: cap}
}

// RecordRequest records one request outcome and its duration.
func (c *Counters) RecordRequest(success bool, durationMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests.Total++
	if success {
		c.requests.Success++
	} else {
		c.requests.Error++
	}
	if c.respEWMA == 0 {
		c.respEWMA = durationMs
	} else {
		c.respEWMA = respEWMAWeight*durationMs + (1-respEWMAWeight)*c.respEWMA
	}
}

// RecordAction records one recovery/user action outcome.
func (c *Counters) RecordAction(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions.Total++
	if success {
		c.actions.Success++
	} else {
		c.actions.Error++
	}
}

// ConnectionOpened records a connection being established.
func (c *Counters) ConnectionOpened() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connections.Total++
	c.connections.Active++
}

// ConnectionClosed records a connection closing cleanly.
func (c *Counters) ConnectionClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connections.Active > 0 {
		c.connections.Active--
	}
}

// ConnectionFailed records a failed connection attempt.
func (c *Counters) ConnectionFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connections.Total++
	c.connections.Failed++
}

// IssueDetected records one newly detected issue.
func (c *Counters) IssueDetected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issues.Detected++
}

// IssueResolved records one resolved issue.
func (c *Counters) IssueResolved() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issues.Resolved++
}

// RecordRecovery records one recovery attempt outcome.
func (c *Counters) RecordRecovery(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recovery.Attempts++
	if success {
		c.recovery.Success++
	} else {
		c.recovery.Failed++
	}
}

// Totals returns a consistent copy of all counters with derived rates.
func (c *Counters) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := Totals{
		Requests:      c.requests,
		Actions:       c.actions,
		Connections:   c.connections,
		Issues:        c.issues,
		Recovery:      c.recovery,
		AvgResponseMs: c.respEWMA,
	}
	if c.requests.Total > 0 {
		t.ErrorRatePct = float64(c.requests.Error) / float64(c.requests.Total) * 100
	}
	return t
}

// Maintain halves any counter group whose total exceeds the cap. Ratios
// within a group are preserved.
func (c *Counters) Maintain() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.requests.Total > c.cap {
		c.requests.Total /= 2
		c.requests.Success /= 2
		c.requests.Error /= 2
	}
	if c.actions.Total > c.cap {
		c.actions.Total /= 2
		c.actions.Success /= 2
		c.actions.Error /= 2
	}
	if c.connections.Total > c.cap {
		c.connections.Total /= 2
		c.connections.Failed /= 2
	}
	if c.issues.Detected > c.cap {
		c.issues.Detected /= 2
		c.issues.Resolved /= 2
	}
	if c.recovery.Attempts > c.cap {
		c.recovery.Attempts /= 2
		c.recovery.Success /= 2
		c.recovery.Failed /= 2
	}
}
