package orchestrator

import (
	"errors"
	"sync"
	"time"

	"github.com/spectralhq/ghostcrew/internal/llm"
)

// RecoveryAction is what the recovery manager wants done about a failure.
type RecoveryAction int

const (
	// ActionRetry indicates the step should be retried after the backoff.
	ActionRetry RecoveryAction = iota
	// ActionEscalate indicates the failure is beyond automatic recovery.
	ActionEscalate
)

// String returns a human-readable representation of the action.
func (a RecoveryAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionEscalate:
		return "escalate"
	default:
		return "unknown"
	}
}

// ExponentialBackoff computes retry delays: Base doubled per attempt,
// capped at Max.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before the given attempt (1-indexed).
func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Recovery is the full decision for one failure.
type Recovery struct {
	// Action is what to do.
	Action RecoveryAction
	// Delay is how long to wait before retrying. Provider rate-limit hints
	// override the computed backoff.
	Delay time.Duration
	// Attempt is the attempt number this decision is for (1-indexed).
	Attempt int
	// Reason summarizes why, for escalations.
	Reason string
	// Kind is the failure classification.
	Kind llm.FailureKind
}

// RecoveryManager decides whether failed steps retry or escalate. Attempts
// are counted per task and reset on success, so a long task that hits
// occasional transient failures is not punished for earlier recoveries.
type RecoveryManager struct {
	mu          sync.Mutex
	maxAttempts int
	backoff     ExponentialBackoff
	attempts    map[string]int
}

// NewRecoveryManager creates a recovery manager. maxAttempts bounds retries
// per task between successes.
func NewRecoveryManager(maxAttempts int, backoff ExponentialBackoff) *RecoveryManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoff.Base <= 0 {
		backoff.Base = time.Second
	}
	return &RecoveryManager{
		maxAttempts: maxAttempts,
		backoff:     backoff,
		attempts:    make(map[string]int),
	}
}

// OnFailure classifies a step failure and decides retry or escalate.
// Transient and rate-limited failures retry up to the attempt bound;
// unrecoverable failures escalate immediately.
func (m *RecoveryManager) OnFailure(taskID string, err error) Recovery {
	m.mu.Lock()
	m.attempts[taskID]++
	attempt := m.attempts[taskID]
	max := m.maxAttempts
	m.mu.Unlock()

	kind := llm.Classify(err)
	rec := Recovery{Attempt: attempt, Kind: kind}

	if kind == llm.FailureUnrecoverable {
		rec.Action = ActionEscalate
		rec.Reason = "unrecoverable failure: " + err.Error()
		debugLog("[recovery] task %s: unrecoverable, escalating: %v", taskID, err)
		return rec
	}

	if attempt >= max {
		rec.Action = ActionEscalate
		rec.Reason = "retries exhausted: " + err.Error()
		// Malformed output that survived every retry is no longer worth
		// treating as transient.
		if errors.Is(err, llm.ErrMalformedOutput) {
			rec.Kind = llm.FailureUnrecoverable
		}
		debugLog("[recovery] task %s: attempt %d/%d exhausted, escalating", taskID, attempt, max)
		return rec
	}

	rec.Action = ActionRetry
	rec.Delay = m.backoff.Delay(attempt)
	if hint := llm.RetryHint(err); hint > 0 {
		rec.Delay = hint
	}
	debugLog("[recovery] task %s: attempt %d/%d, retrying in %s (%s)", taskID, attempt, max, rec.Delay, kind)
	return rec
}

// OnSuccess resets the task's attempt counter.
func (m *RecoveryManager) OnSuccess(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, taskID)
}

// Attempts returns the current attempt count for a task.
func (m *RecoveryManager) Attempts(taskID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[taskID]
}
