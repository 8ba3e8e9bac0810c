// Package detector evaluates a registry of declarative detection rules
// against the application state on a fixed tick, tracks issue lifecycle
// (new / persisting / resolved) and drives rule-based auto-recovery through
// the action executor.
package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"vigil/internal/actions"
	"vigil/internal/appstate"
	"vigil/internal/logging"
	"vigil/internal/metrics"
)

// ============================================================================
// DATA STRUCTURES
// ============================================================================

// Severity levels for rules and issues.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Rule is a declarative detection rule, immutable after registration.
// Condition must be a side-effect-free predicate over the state view; a
// condition that panics is treated as not firing for that tick.
type Rule struct {
	ID          string
	Category    string // issue bucket: camera, obs, windows, system
	Severity    string
	Condition   func(appstate.State) bool
	Message     string
	Suggestion  string
	Actions     []string // recovery action names, in preference order
	AutoRecover bool     // attempt the first available action while firing
}

// ResolvedIssue pairs an issue with how long its condition held.
type ResolvedIssue struct {
	appstate.Issue
	Duration time.Duration `json:"duration"`
}

// EvaluationResult is the outcome of one detector tick.
type EvaluationResult struct {
	New      []appstate.Issue
	Resolved []ResolvedIssue
}

// Observer receives issue lifecycle transitions. Implementations must be
// statically registered before Start and must not block.
type Observer interface {
	IssuesDetected(issues []appstate.Issue)
	IssuesResolved(issues []ResolvedIssue)
}

// Action execution failure codes.
const (
	FailIssueNotFound     = "issue_not_found"
	FailActionNotFound    = "action_not_found"
	FailActionUnavailable = "action_unavailable"
)

// ActionOutcome is the structured result of ExecuteIssueAction. Code is
// empty when the action was delegated to the executor; otherwise it names
// why delegation never happened.
type ActionOutcome struct {
	actions.Result
	Code string `json:"code,omitempty"`
}

// recoveryState tracks auto-recovery backoff for one firing rule.
type recoveryState struct {
	attempts    int
	nextAttempt time.Time
}

// ============================================================================
// DETECTOR
// ============================================================================

// Detector owns the rule registry and the evaluation loop.
type Detector struct {
	cfg      Config
	store    *appstate.Store
	exec     actions.Executor
	log      *logging.Logger
	counters *metrics.Counters
	clk      clock.Clock

	mu        sync.Mutex
	rules     []Rule         // insertion order
	ruleIdx   map[string]int // rule ID -> index in rules
	active    map[string]appstate.Issue
	recovery  map[string]*recoveryState
	observers []Observer
	busy      bool

	loopMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Detector.
type Option func(*Detector)

// WithClock injects a clock for tests.
func WithClock(c clock.Clock) Option {
	return func(d *Detector) { d.clk = c }
}

// New creates a detector. store, exec and log are required.
func New(cfg Config, store *appstate.Store, exec actions.Executor, log *logging.Logger, counters *metrics.Counters, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || exec == nil || log == nil {
		return nil, fmt.Errorf("store, executor, and logger are required")
	}
	d := &Detector{
		cfg:      cfg,
		store:    store,
		exec:     exec,
		log:      log,
		counters: counters,
		clk:      clock.New(),
		ruleIdx:  map[string]int{},
		active:   map[string]appstate.Issue{},
		recovery: map[string]*recoveryState{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Register adds a rule to the registry. Registration is idempotent by ID:
// a later registration replaces the earlier one in place, keeping the
// original insertion position so iteration stays deterministic.
func (d *Detector) Register(rule Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if rule.Condition == nil {
		return fmt.Errorf("rule %q has no condition", rule.ID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx, ok := d.ruleIdx[rule.ID]; ok {
		d.rules[idx] = rule
		return nil
	}
	d.ruleIdx[rule.ID] = len(d.rules)
	d.rules = append(d.rules, rule)
	return nil
}

// AddObserver registers a lifecycle observer.
func (d *Detector) AddObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// ActiveIssues returns the currently firing issues in rule order.
func (d *Detector) ActiveIssues() []appstate.Issue {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]appstate.Issue, 0, len(d.active))
	for _, r := range d.rules {
		if iss, ok := d.active[r.ID]; ok {
			out = append(out, iss)
		}
	}
	return out
}

// ============================================================================
// EVALUATION
// ============================================================================

// Evaluate runs one detector tick. Ticks never overlap: if a previous tick
// is still executing the call is skipped with a warning.
//
// Meta-rules that read state.Issues observe the buckets written by the
// previous tick (one-tick lag): the state view is taken before this tick's
// buckets are written back.
func (d *Detector) Evaluate(ctx context.Context) EvaluationResult {
	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		d.log.Warn("detector tick skipped: previous evaluation still running")
		return EvaluationResult{}
	}
	d.busy = true
	rules := append([]Rule(nil), d.rules...)
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.busy = false
		d.mu.Unlock()
	}()

	now := d.clk.Now()
	st := d.store.Get()
	available := d.exec.Available()

	firing := map[string]bool{}
	for _, r := range rules {
		if d.safeCondition(r, st) {
			firing[r.ID] = true
		}
	}

	var result EvaluationResult
	d.mu.Lock()
	for _, r := range rules {
		_, wasActive := d.active[r.ID]
		switch {
		case firing[r.ID] && !wasActive:
			iss := d.buildIssue(r, st, now, available)
			d.active[r.ID] = iss
			result.New = append(result.New, iss)
		case !firing[r.ID] && wasActive:
			iss := d.active[r.ID]
			delete(d.active, r.ID)
			delete(d.recovery, r.ID)
			result.Resolved = append(result.Resolved, ResolvedIssue{
				Issue:    iss,
				Duration: now.Sub(iss.DetectedAt),
			})
		}
	}
	buckets := d.partitionLocked()
	observers := append([]Observer(nil), d.observers...)
	d.mu.Unlock()

	for _, iss := range result.New {
		if d.counters != nil {
			d.counters.IssueDetected()
		}
		d.log.Warn("issue detected", "id", iss.ID, "category", iss.Category, "severity", iss.Severity, "message", iss.Message)
	}
	for _, iss := range result.Resolved {
		if d.counters != nil {
			d.counters.IssueResolved()
		}
		d.log.Info("issue resolved", "id", iss.ID, "duration", iss.Duration.String())
	}

	// Clear-then-append every bucket, including empty ones, so stale issues
	// cannot survive a bucket going quiet.
	for _, bucket := range appstate.IssueBuckets {
		d.store.ReplaceIssues(bucket, buckets[bucket])
	}

	for _, o := range observers {
		if len(result.New) > 0 {
			o.IssuesDetected(result.New)
		}
		if len(result.Resolved) > 0 {
			o.IssuesResolved(result.Resolved)
		}
	}

	if d.cfg.AutoRecover {
		d.runAutoRecovery(ctx, rules, firing, now, available)
	}

	return result
}

// safeCondition evaluates one rule predicate, converting a panic into
// "not firing" so a single bad rule cannot crash monitoring.
func (d *Detector) safeCondition(r Rule, st appstate.State) (fired bool) {
	defer func() {
		if rec := recover(); rec != nil {
			fired = false
			d.log.Error("rule_evaluation", "rule condition panicked", "rule", r.ID, "panic", fmt.Sprint(rec))
		}
	}()
	return r.Condition(st)
}

func (d *Detector) buildIssue(r Rule, st appstate.State, now time.Time, available map[string]bool) appstate.Issue {
	acts := make([]appstate.IssueAction, 0, len(r.Actions))
	for _, name := range r.Actions {
		acts = append(acts, appstate.IssueAction{ID: name, Available: available[name]})
	}
	return appstate.Issue{
		ID:         r.ID,
		Category:   r.Category,
		Severity:   r.Severity,
		Message:    r.Message,
		Suggestion: r.Suggestion,
		Actions:    acts,
		DetectedAt: now,
		Context: map[string]any{
			"currentTab": st.CurrentTab,
		},
	}
}

// partitionLocked groups active issues by bucket in rule order. Caller
// holds d.mu.
func (d *Detector) partitionLocked() map[string][]appstate.Issue {
	buckets := map[string][]appstate.Issue{}
	for _, r := range d.rules {
		if iss, ok := d.active[r.ID]; ok {
			buckets[iss.Category] = append(buckets[iss.Category], iss)
		}
	}
	return buckets
}

// ============================================================================
// RECOVERY
// ============================================================================

// runAutoRecovery attempts the first available action of each firing
// auto-recover rule, with exponential backoff between attempts.
func (d *Detector) runAutoRecovery(ctx context.Context, rules []Rule, firing map[string]bool, now time.Time, available map[string]bool) {
	for _, r := range rules {
		if !r.AutoRecover || !firing[r.ID] || len(r.Actions) == 0 {
			continue
		}

		d.mu.Lock()
		rs, ok := d.recovery[r.ID]
		if !ok {
			rs = &recoveryState{nextAttempt: now}
			d.recovery[r.ID] = rs
		}
		due := rs.attempts < d.cfg.MaxRecoveryAttempts && !now.Before(rs.nextAttempt)
		if due {
			rs.attempts++
			backoff := d.cfg.RecoveryBackoffBase << (rs.attempts - 1)
			if backoff > d.cfg.RecoveryBackoffMax {
				backoff = d.cfg.RecoveryBackoffMax
			}
			rs.nextAttempt = now.Add(backoff)
		}
		d.mu.Unlock()

		if !due {
			continue
		}

		name := ""
		for _, a := range r.Actions {
			if available[a] {
				name = a
				break
			}
		}
		if name == "" {
			continue
		}

		res := d.exec.Execute(ctx, name, map[string]any{"issueId": r.ID, "automatic": true})
		if d.counters != nil {
			d.counters.RecordRecovery(res.Success)
		}
		d.log.Action(name, "issue", r.ID, "automatic", true, "success", res.Success, "error", res.Error)
	}
}

// ExecuteIssueAction runs a declared action of a still-active issue on
// behalf of a caller (UI, MCP). The issue or the action may have vanished
// between detection and invocation; those races come back as structured
// failures, never as errors.
func (d *Detector) ExecuteIssueAction(ctx context.Context, issueID, actionID string) ActionOutcome {
	d.mu.Lock()
	iss, ok := d.active[issueID]
	d.mu.Unlock()
	if !ok {
		return ActionOutcome{
			Result: actions.Result{Success: false, Error: fmt.Sprintf("issue %q is not active", issueID)},
			Code:   FailIssueNotFound,
		}
	}

	declared := false
	for _, a := range iss.Actions {
		if a.ID == actionID {
			declared = true
			break
		}
	}
	if !declared {
		return ActionOutcome{
			Result: actions.Result{Success: false, Error: fmt.Sprintf("action %q not declared for issue %q", actionID, issueID)},
			Code:   FailActionNotFound,
		}
	}

	if !d.exec.Available()[actionID] {
		return ActionOutcome{
			Result: actions.Result{Success: false, Error: fmt.Sprintf("action %q is not currently available", actionID)},
			Code:   FailActionUnavailable,
		}
	}

	res := d.exec.Execute(ctx, actionID, map[string]any{"issueId": issueID})
	if d.counters != nil {
		d.counters.RecordRecovery(res.Success)
	}
	d.log.Action(actionID, "issue", issueID, "automatic", false, "success", res.Success, "error", res.Error)
	return ActionOutcome{Result: res}
}

// ============================================================================
// LOOP
// ============================================================================

// Start begins the periodic evaluation loop.
func (d *Detector) Start(ctx context.Context) error {
	d.loopMu.Lock()
	defer d.loopMu.Unlock()
	if d.cancel != nil {
		return fmt.Errorf("detector already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()
		ticker := d.clk.Ticker(d.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.Evaluate(ctx)
			}
		}
	}()
	return nil
}

// Stop gracefully stops the evaluation loop.
func (d *Detector) Stop() {
	d.loopMu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.loopMu.Unlock()

	if cancel != nil {
		cancel()
		d.wg.Wait()
	}
}
