package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spectralhq/ghostcrew/internal/store"
	"github.com/spectralhq/ghostcrew/pkg/models"
)

// RunnerConfig bounds a team runner's execution.
type RunnerConfig struct {
	// StepTimeout caps one capability call. A timed-out step is a
	// transient failure. Zero means no per-step timeout.
	StepTimeout time.Duration
	// MaxStepsPerTask caps runaway tasks that never report done.
	MaxStepsPerTask int
}

// DefaultRunnerConfig returns the runner bounds used when none are given.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		StepTimeout:     5 * time.Minute,
		MaxStepsPerTask: 25,
	}
}

// teamRunner drives one team to completion. All task and member mutations
// for the team happen on the runner's goroutine, serialized by mu against
// engine-side queries. Scheduling passes are triggered by resolution events
// over the trigger channel rather than polling.
type teamRunner struct {
	team        *models.Team
	tree        *TaskTree
	registry    *Registry
	budget      *BudgetEnforcer
	checkpoints *CheckpointManager
	recovery    *RecoveryManager
	review      *ReviewLoop
	executor    Executor
	st          store.Store
	bus         *EventBus
	now         func() time.Time
	cfg         RunnerConfig

	trigger chan struct{}
	done    chan struct{}

	// pendingFeedback carries revision feedback to the next execution step.
	pendingFeedback map[string]string
}

func newTeamRunner(
	team *models.Team,
	tree *TaskTree,
	registry *Registry,
	budget *BudgetEnforcer,
	checkpoints *CheckpointManager,
	recovery *RecoveryManager,
	review *ReviewLoop,
	executor Executor,
	st store.Store,
	bus *EventBus,
	now func() time.Time,
	cfg RunnerConfig,
) *teamRunner {
	if now == nil {
		now = time.Now
	}
	if cfg.MaxStepsPerTask <= 0 {
		cfg.MaxStepsPerTask = DefaultRunnerConfig().MaxStepsPerTask
	}
	return &teamRunner{
		team:            team,
		tree:            tree,
		registry:        registry,
		budget:          budget,
		checkpoints:     checkpoints,
		recovery:        recovery,
		review:          review,
		executor:        executor,
		st:              st,
		bus:             bus,
		now:             now,
		cfg:             cfg,
		trigger:         make(chan struct{}, 1),
		done:            make(chan struct{}),
		pendingFeedback: make(map[string]string),
	}
}

// signal nudges the runner to take another scheduling pass.
func (r *teamRunner) signal() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run drives the team until every root task resolves, a critical task
// fails, the budget is exceeded, or the context is cancelled. The returned
// error reports engine faults (storage failures), not task failures; those
// land in the team's terminal status.
func (r *teamRunner) Run(ctx context.Context) error {
	defer close(r.done)

	r.signal()
	for {
		done, failed := r.tree.Outcome()
		if done {
			return r.finish(failed)
		}

		progressed, err := r.schedulePass(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return r.cancel()
			}
			return err
		}
		if progressed {
			continue
		}

		// Nothing runnable right now. Wait for a resolution or cancellation.
		select {
		case <-ctx.Done():
			return r.cancel()
		case <-r.trigger:
		}
	}
}

// schedulePass assigns and executes ready tasks one at a time. It returns
// whether any task was advanced.
func (r *teamRunner) schedulePass(ctx context.Context) (bool, error) {
	ready := r.tree.ReadyTasks()
	debugLog("[runner %s] scheduling pass: %d ready tasks", r.team.ID, len(ready))
	if len(ready) == 0 {
		return false, nil
	}

	task := ready[0]
	if err := r.assign(task); err != nil {
		if errors.Is(err, ErrNoEligibleWorker) {
			// All workers saturated. The next release re-triggers.
			return false, nil
		}
		return false, err
	}

	if err := r.runTask(ctx, task); err != nil {
		return false, err
	}
	return true, nil
}

// assign picks a worker and moves the task to assigned.
func (r *teamRunner) assign(task *models.Task) error {
	worker, err := r.registry.FindEligibleWorker(task.Specialization)
	if err != nil {
		return err
	}
	manager := r.registry.Manager()

	if err := r.registry.Assign(worker.ID); err != nil {
		return err
	}
	if err := r.transitionTask(task, models.TaskStatusAssigned); err != nil {
		// Roll the workload back so the invariant holds.
		_ = r.registry.Release(worker.ID)
		return err
	}
	task.AssignedTo = worker.ID
	if manager != nil {
		task.AssignedBy = manager.ID
	}
	if err := r.persistTask(task); err != nil {
		return err
	}
	if err := r.st.UpdateMember(worker); err != nil {
		return fmt.Errorf("persist member %s: %w", worker.ID, err)
	}

	r.appendMessage(task.AssignedBy, worker.ID, models.MessageAssignment,
		fmt.Sprintf("assigned task %q", task.Title), map[string]string{"task_id": task.ID})
	r.publish(Event{
		Type: EventTaskAssigned, TeamID: r.team.ID, TaskID: task.ID,
		MemberID: worker.ID, Timestamp: r.now().UTC(),
	})
	return nil
}

// runTask executes the task's steps from its latest checkpoint through
// review to resolution.
func (r *teamRunner) runTask(ctx context.Context, task *models.Task) error {
	if err := r.transitionTask(task, models.TaskStatusInProgress); err != nil {
		return err
	}
	if task.StartedAt == nil {
		now := r.now().UTC()
		task.StartedAt = &now
	}
	if err := r.persistTask(task); err != nil {
		return err
	}

	for {
		finished, err := r.executeSteps(ctx, task)
		if err != nil {
			return err
		}
		if !finished {
			// Task failed terminally during execution.
			return r.resolveFailure(task)
		}

		if err := r.transitionTask(task, models.TaskStatusReview); err != nil {
			return err
		}
		if err := r.persistTask(task); err != nil {
			return err
		}

		verdict, err := r.reviewTask(ctx, task)
		if err != nil {
			return err
		}
		switch verdict {
		case models.VerdictApprove:
			return r.resolveSuccess(task)
		case models.VerdictReject:
			return r.resolveFailure(task)
		case models.VerdictRevise:
			// Back to assigned with the same worker, then more steps.
			if err := r.transitionTask(task, models.TaskStatusAssigned); err != nil {
				return err
			}
			if err := r.transitionTask(task, models.TaskStatusInProgress); err != nil {
				return err
			}
			if err := r.persistTask(task); err != nil {
				return err
			}
		}
	}
}

// executeSteps runs checkpointed steps until the executor reports done.
// Returns false when the task failed terminally instead.
func (r *teamRunner) executeSteps(ctx context.Context, task *models.Task) (bool, error) {
	steps := 0
	for {
		if ctx.Err() != nil {
			return false, context.Canceled
		}
		if steps >= r.cfg.MaxStepsPerTask {
			task.Status = models.TaskStatusFailed
			task.Reason = fmt.Sprintf("exceeded %d execution steps without completing", r.cfg.MaxStepsPerTask)
			return false, nil
		}

		latest, err := r.checkpoints.Latest(task.ID)
		if err != nil {
			return false, err
		}
		step := 0
		accumulated := ""
		if latest != nil {
			step = latest.StepNumber + 1
			accumulated = latest.AccumulatedContext
		}
		if fb := r.pendingFeedback[task.ID]; fb != "" {
			accumulated = accumulated + "\n\nManager feedback on the previous submission:\n" + fb
			delete(r.pendingFeedback, task.ID)
		}

		// Budget gate before every costed step.
		estimate := r.executor.EstimateStepCost(task, accumulated)
		check := r.budget.Check(estimate)
		switch check.Verdict {
		case BudgetExceeded:
			r.publish(Event{
				Type: EventBudgetExceeded, TeamID: r.team.ID, TaskID: task.ID,
				Utilization: check.Utilization, Timestamp: r.now().UTC(),
				Message: fmt.Sprintf("step denied: spend %.4f + estimate %.4f over limit", check.Spend, estimate),
			})
			task.Status = models.TaskStatusFailed
			task.Reason = ErrBudgetExceeded.Error()
			r.team.Reason = ErrBudgetExceeded.Error()
			return false, nil
		case BudgetWarning:
			r.publish(Event{
				Type: EventBudgetWarning, TeamID: r.team.ID, TaskID: task.ID,
				Utilization: check.Utilization, Timestamp: r.now().UTC(),
			})
		}

		result, err := r.executeOnce(ctx, task, accumulated)
		if err != nil {
			if ctx.Err() != nil {
				return false, context.Canceled
			}
			retry, rerr := r.handleStepFailure(ctx, task, err)
			if rerr != nil {
				return false, rerr
			}
			if !retry {
				return false, nil
			}
			continue
		}

		// Durable checkpoint before the step counts as done.
		if _, err := r.checkpoints.Create(task.ID, step, result); err != nil {
			return false, fmt.Errorf("checkpoint task %s: %w", task.ID, err)
		}
		r.recordStepCost(task, result)
		r.recovery.OnSuccess(task.ID)
		r.publish(Event{
			Type: EventStepCheckpointed, TeamID: r.team.ID, TaskID: task.ID,
			StepNumber: step, Timestamp: r.now().UTC(),
		})

		steps++
		if result.Done {
			task.Output = result.Output
			return true, nil
		}
	}
}

// executeOnce makes one capability call under the per-step timeout.
func (r *teamRunner) executeOnce(ctx context.Context, task *models.Task, accumulated string) (*models.StepResult, error) {
	attempt := r.recovery.Attempts(task.ID)
	stepCtx := ctx
	if r.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, r.cfg.StepTimeout)
		defer cancel()
	}
	return r.executor.ExecuteStep(stepCtx, task, accumulated, attempt)
}

// handleStepFailure consults the recovery manager. Returns retry=true when
// the step should run again; otherwise the task has been failed (and
// escalated) terminally.
func (r *teamRunner) handleStepFailure(ctx context.Context, task *models.Task, stepErr error) (retry bool, err error) {
	rec := r.recovery.OnFailure(task.ID, stepErr)
	if rec.Action == ActionRetry {
		select {
		case <-ctx.Done():
			return false, context.Canceled
		case <-time.After(rec.Delay):
		}
		return true, nil
	}

	// Escalate: audit message, event, terminal failure.
	task.Status = models.TaskStatusFailed
	task.Reason = rec.Reason
	r.appendMessage("", "", models.MessageEscalation,
		fmt.Sprintf("task %q failed after %d attempts: %s", task.Title, rec.Attempt, rec.Reason),
		map[string]string{"task_id": task.ID, "failure_kind": string(rec.Kind)})
	r.publish(Event{
		Type: EventEscalation, TeamID: r.team.ID, TaskID: task.ID,
		Message: rec.Reason, Error: stepErr, Timestamp: r.now().UTC(),
	})
	return false, nil
}

// reviewTask runs the manager review and reports the verdict.
func (r *teamRunner) reviewTask(ctx context.Context, task *models.Task) (models.ReviewVerdict, error) {
	manager := r.registry.Manager()
	managerID := ""
	if manager != nil {
		managerID = manager.ID
	}

	decision, err := r.review.Evaluate(ctx, r.team.ID, managerID, task)
	if err != nil && !errors.Is(err, ErrRevisionsExhausted) {
		if ctx.Err() != nil {
			return "", context.Canceled
		}
		// The review call itself failed. Treat like a step failure.
		retry, rerr := r.handleStepFailure(ctx, task, err)
		if rerr != nil {
			return "", rerr
		}
		if retry {
			return r.reviewTask(ctx, task)
		}
		return models.VerdictReject, nil
	}

	if decision != nil {
		r.publish(Event{
			Type: EventReviewDecided, TeamID: r.team.ID, TaskID: task.ID,
			Verdict: decision.Verdict, Message: decision.Feedback, Timestamp: r.now().UTC(),
		})
	}
	if errors.Is(err, ErrRevisionsExhausted) {
		return models.VerdictReject, nil
	}
	if decision.Verdict == models.VerdictRevise {
		r.pendingFeedback[task.ID] = decision.Feedback
	}
	return decision.Verdict, nil
}

// resolveSuccess persists an approved task and releases its worker.
func (r *teamRunner) resolveSuccess(task *models.Task) error {
	r.recovery.OnSuccess(task.ID)
	if err := r.releaseWorker(task); err != nil {
		return err
	}
	if err := r.persistTask(task); err != nil {
		return err
	}
	r.publish(Event{
		Type: EventTaskStatusChanged, TeamID: r.team.ID, TaskID: task.ID,
		Status: string(task.Status), Timestamp: r.now().UTC(),
	})
	r.signal()
	return nil
}

// resolveFailure persists a failed task, releases its worker, and
// propagates critical failures up the tree.
func (r *teamRunner) resolveFailure(task *models.Task) error {
	if task.CompletedAt == nil {
		now := r.now().UTC()
		task.CompletedAt = &now
	}
	if err := r.releaseWorker(task); err != nil {
		return err
	}
	if err := r.persistTask(task); err != nil {
		return err
	}
	r.publish(Event{
		Type: EventTaskStatusChanged, TeamID: r.team.ID, TaskID: task.ID,
		Status: string(task.Status), Message: task.Reason, Timestamp: r.now().UTC(),
	})

	for _, failed := range r.tree.PropagateFailure(task.ID) {
		if failed.CompletedAt == nil {
			now := r.now().UTC()
			failed.CompletedAt = &now
		}
		if err := r.persistTask(failed); err != nil {
			return err
		}
		r.publish(Event{
			Type: EventTaskStatusChanged, TeamID: r.team.ID, TaskID: failed.ID,
			Status: string(failed.Status), Message: failed.Reason, Timestamp: r.now().UTC(),
		})
	}
	r.signal()
	return nil
}

// releaseWorker returns the task's worker to the pool, if one is assigned.
func (r *teamRunner) releaseWorker(task *models.Task) error {
	if task.AssignedTo == "" {
		return nil
	}
	worker := r.registry.Get(task.AssignedTo)
	if worker == nil {
		return nil
	}
	if err := r.registry.Release(worker.ID); err != nil {
		debugLog("[runner %s] release worker %s: %v", r.team.ID, worker.ID, err)
		return nil
	}
	if err := r.st.UpdateMember(worker); err != nil {
		return fmt.Errorf("persist member %s: %w", worker.ID, err)
	}
	return nil
}

// finish moves the team to its terminal status.
func (r *teamRunner) finish(failed bool) error {
	status := models.TeamStatusCompleted
	if failed {
		status = models.TeamStatusFailed
		if r.team.Reason == "" {
			r.team.Reason = "critical task failed"
		}
	}
	return r.transitionTeam(status)
}

// cancel fails the team at the current checkpoint boundary.
func (r *teamRunner) cancel() error {
	if r.team.Reason == "" {
		r.team.Reason = "cancelled"
	}
	return r.transitionTeam(models.TeamStatusFailed)
}

func (r *teamRunner) transitionTeam(next models.TeamStatus) error {
	if !r.team.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: team %s %s -> %s", ErrInvalidTransition, r.team.ID, r.team.Status, next)
	}
	r.team.Status = next
	if next.Terminal() && r.team.CompletedAt == nil {
		now := r.now().UTC()
		r.team.CompletedAt = &now
	}
	if err := r.st.UpdateTeam(r.team); err != nil {
		return fmt.Errorf("persist team %s: %w", r.team.ID, err)
	}
	r.publish(Event{
		Type: EventTeamStatusChanged, TeamID: r.team.ID,
		Status: string(next), Message: r.team.Reason, Timestamp: r.now().UTC(),
	})
	return nil
}

func (r *teamRunner) transitionTask(task *models.Task, next models.TaskStatus) error {
	if !task.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: task %s %s -> %s", ErrInvalidTransition, task.ID, task.Status, next)
	}
	task.Status = next
	return nil
}

func (r *teamRunner) persistTask(task *models.Task) error {
	if err := r.st.UpdateTask(task); err != nil {
		return fmt.Errorf("persist task %s: %w", task.ID, err)
	}
	return nil
}

// appendMessage records an audit message. Best effort.
func (r *teamRunner) appendMessage(from, to string, msgType models.MessageType, content string, metadata map[string]string) {
	msg := &models.Message{
		ID:         uuid.New().String(),
		TeamID:     r.team.ID,
		FromMember: from,
		ToMember:   to,
		Type:       msgType,
		Content:    content,
		Metadata:   metadata,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.st.AppendMessage(msg); err != nil {
		debugLog("[runner %s] append %s message failed: %v", r.team.ID, msgType, err)
		return
	}
	r.publish(Event{
		Type: EventMessageAppended, TeamID: r.team.ID,
		Message: content, Timestamp: r.now().UTC(),
	})
}

func (r *teamRunner) publish(event Event) {
	if r.bus != nil {
		r.bus.Publish(event)
	}
}

// recordStepCost records the step's cost against the budget, keyed by the
// provider request ID so a crash-retry of the same step never double-counts.
func (r *teamRunner) recordStepCost(task *models.Task, result *models.StepResult) {
	if result.Cost == 0 && result.RequestID == "" {
		return
	}
	entry := &models.CostEntry{
		ID:        uuid.New().String(),
		TeamID:    r.team.ID,
		TaskID:    task.ID,
		RequestID: result.RequestID,
		Category:  models.CostExecution,
		Provider:  result.Provider,
		Model:     result.Model,
		Amount:    result.Cost,
		Units:     result.InputTokens + result.OutputTokens,
		CreatedAt: r.now().UTC(),
	}
	if err := r.budget.Record(entry); err != nil {
		debugLog("[runner %s] record step cost for task %s failed: %v", r.team.ID, task.ID, err)
	}
}
