package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spectralhq/ghostcrew/internal/store"
	"github.com/spectralhq/ghostcrew/pkg/models"
)

// Engine runs agent teams. Teams execute fully in parallel, each on its own
// runner goroutine; the engine owns the shared store, the event bus, and
// the capability implementations.
type Engine struct {
	st         store.Store
	decomposer Decomposer
	executor   Executor
	reviewer   Reviewer
	bus        *EventBus
	logger     *DebugLogger
	now        func() time.Time

	runnerCfg   RunnerConfig
	maxAttempts int
	backoff     ExponentialBackoff

	mu      sync.RWMutex
	runners map[string]*runnerHandle

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// runnerHandle pairs a running team with its cancellation.
type runnerHandle struct {
	runner *teamRunner
	cancel context.CancelFunc
}

// NewEngine creates an engine over the given store and capabilities.
func NewEngine(st store.Store, decomposer Decomposer, executor Executor, reviewer Reviewer, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		st:          st,
		decomposer:  decomposer,
		executor:    executor,
		reviewer:    reviewer,
		bus:         NewEventBus(o.eventBuffer),
		logger:      o.logger,
		now:         o.now,
		runnerCfg:   o.runnerCfg,
		maxAttempts: o.maxAttempts,
		backoff:     o.backoff,
		runners:     make(map[string]*runnerHandle),
		ctx:         ctx,
		cancel:      cancel,
	}
	SetPackageLogger(e.logger)
	return e
}

// CreateTeam persists a new team in pending with the given goal and
// optional budget limit in USD.
func (e *Engine) CreateTeam(goal string, budgetLimit *float64) (*models.Team, error) {
	if goal == "" {
		return nil, fmt.Errorf("team goal must not be empty")
	}
	if budgetLimit != nil && *budgetLimit <= 0 {
		return nil, fmt.Errorf("budget limit must be positive, got %v", *budgetLimit)
	}

	team := &models.Team{
		ID:          uuid.New().String(),
		Goal:        goal,
		Status:      models.TeamStatusPending,
		BudgetLimit: budgetLimit,
		CreatedAt:   e.now().UTC(),
	}
	if err := e.st.CreateTeam(team); err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}
	e.logger.Log("[engine] created team %s: %q", team.ID, goal)
	return team, nil
}

// StartTeam forms the team (analysis, roster, task tree) and launches its
// runner. The team must be pending.
func (e *Engine) StartTeam(ctx context.Context, teamID string) error {
	team, err := e.st.GetTeam(teamID)
	if err != nil {
		return fmt.Errorf("load team %s: %w", teamID, err)
	}
	if team == nil {
		return fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}

	if err := e.transitionTeam(team, models.TeamStatusForming); err != nil {
		return err
	}

	registry, tree, err := e.formTeam(ctx, team)
	if err != nil {
		// Forming failed before any work ran; the team fails loudly.
		team.Reason = err.Error()
		if terr := e.transitionTeam(team, models.TeamStatusFailed); terr != nil {
			e.logger.Log("[engine] team %s failed during forming and could not persist: %v", teamID, terr)
		}
		return fmt.Errorf("form team %s: %w", teamID, err)
	}

	now := e.now().UTC()
	team.StartedAt = &now
	if err := e.transitionTeam(team, models.TeamStatusActive); err != nil {
		return err
	}

	return e.launch(team, registry, tree)
}

// formTeam runs the decomposition capability: goal analysis, worker roster,
// and the task tree, all persisted before execution begins. Forming calls
// go through the same budget gate and cost ledger as execution and review.
func (e *Engine) formTeam(ctx context.Context, team *models.Team) (*Registry, *TaskTree, error) {
	budget, err := NewBudgetEnforcer(team.ID, team.BudgetLimit, e.st)
	if err != nil {
		return nil, nil, err
	}

	if check := budget.Check(0); check.Verdict == BudgetExceeded {
		return nil, nil, fmt.Errorf("%w: spend %.4f against limit", ErrBudgetExceeded, check.Spend)
	}
	analysis, usage, err := e.decomposer.Analyze(ctx, team.Goal)
	e.recordFormingCost(budget, models.CostAnalysis, usage)
	if err != nil {
		return nil, nil, fmt.Errorf("analyze goal: %w", err)
	}

	if check := budget.Check(0); check.Verdict == BudgetExceeded {
		return nil, nil, fmt.Errorf("%w: spend %.4f against limit", ErrBudgetExceeded, check.Spend)
	}
	specs, usage, err := e.decomposer.FormTeamSpecs(ctx, analysis)
	e.recordFormingCost(budget, models.CostAnalysis, usage)
	if err != nil {
		return nil, nil, fmt.Errorf("form team specs: %w", err)
	}
	if len(specs) < models.MinWorkers || len(specs) > models.MaxWorkers {
		return nil, nil, fmt.Errorf("%w: capability produced %d specs", ErrInvalidTeamSize, len(specs))
	}

	registry := NewRegistry(team.ID, e.now)
	manager, workers, err := registry.BuildRoster(specs)
	if err != nil {
		return nil, nil, err
	}
	if err := e.st.CreateMember(manager); err != nil {
		return nil, nil, fmt.Errorf("persist manager: %w", err)
	}
	for _, w := range workers {
		if err := e.st.CreateMember(w); err != nil {
			return nil, nil, fmt.Errorf("persist worker: %w", err)
		}
	}

	if check := budget.Check(0); check.Verdict == BudgetExceeded {
		return nil, nil, fmt.Errorf("%w: spend %.4f against limit", ErrBudgetExceeded, check.Spend)
	}
	taskSpecs, usage, err := e.decomposer.Decompose(ctx, team.Goal, analysis, specs)
	e.recordFormingCost(budget, models.CostDecomposition, usage)
	if err != nil {
		return nil, nil, fmt.Errorf("decompose goal: %w", err)
	}

	tree := NewTaskTree(team.ID)
	created := make([]*models.Task, len(taskSpecs))
	base := e.now().UTC()
	for i, spec := range taskSpecs {
		task := &models.Task{
			ID:                 uuid.New().String(),
			TeamID:             team.ID,
			Title:              spec.Title,
			Description:        spec.Description,
			AcceptanceCriteria: spec.AcceptanceCriteria,
			Specialization:     spec.Specialization,
			Status:             models.TaskStatusPending,
			MaxRevisions:       models.DefaultMaxRevisions,
			Critical:           spec.Critical,
			Input:              spec.Input,
			// Preserve spec order under a second-resolution clock.
			CreatedAt: base.Add(time.Duration(i) * time.Microsecond),
		}
		if spec.ParentIndex >= 0 {
			if spec.ParentIndex >= i {
				return nil, nil, fmt.Errorf("%w: task %d references parent %d", ErrInvalidParent, i, spec.ParentIndex)
			}
			task.ParentID = created[spec.ParentIndex].ID
		}
		if err := tree.AddTask(task); err != nil {
			return nil, nil, err
		}
		if err := e.st.CreateTask(task); err != nil {
			return nil, nil, fmt.Errorf("persist task: %w", err)
		}
		created[i] = task
	}

	e.logger.Log("[engine] team %s formed: %d workers, %d tasks", team.ID, len(workers), tree.Size())
	return registry, tree, nil
}

// recordFormingCost ledgers one forming-phase call, keyed by the provider
// request ID so a re-run of a failed forming phase never double-counts.
func (e *Engine) recordFormingCost(budget *BudgetEnforcer, category models.CostCategory, usage *models.CallUsage) {
	if usage == nil || (usage.Cost == 0 && usage.RequestID == "") {
		return
	}
	entry := &models.CostEntry{
		ID:        uuid.New().String(),
		RequestID: usage.RequestID,
		Category:  category,
		Provider:  usage.Provider,
		Model:     usage.Model,
		Amount:    usage.Cost,
		Units:     usage.InputTokens + usage.OutputTokens,
		CreatedAt: e.now().UTC(),
	}
	if err := budget.Record(entry); err != nil {
		e.logger.Log("[engine] record forming cost for team %s failed: %v", budget.teamID, err)
	}
}

// ResumeTeam rebuilds a previously active team from the store and relaunches
// its runner. In-flight tasks restart from their latest checkpoint.
func (e *Engine) ResumeTeam(teamID string) error {
	team, err := e.st.GetTeam(teamID)
	if err != nil {
		return fmt.Errorf("load team %s: %w", teamID, err)
	}
	if team == nil {
		return fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}
	if team.Status != models.TeamStatusActive {
		return fmt.Errorf("team %s is %s, only active teams resume", teamID, team.Status)
	}

	members, err := e.st.ListMembersByTeam(teamID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	registry := NewRegistry(teamID, e.now)
	memberPtrs := make([]*models.Member, len(members))
	for i := range members {
		memberPtrs[i] = &members[i]
	}
	if err := registry.Restore(memberPtrs); err != nil {
		return err
	}

	tasks, err := e.st.ListTasksByTeam(teamID)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	tree := NewTaskTree(teamID)
	for i := range tasks {
		task := &tasks[i]
		// Work that was mid-flight when the process died rewinds to
		// pending; its checkpoints carry the real progress. The held
		// worker is released so workload matches reality.
		switch task.Status {
		case models.TaskStatusAssigned, models.TaskStatusInProgress,
			models.TaskStatusReview, models.TaskStatusRevisionRequested:
			if task.AssignedTo != "" {
				if m := registry.Get(task.AssignedTo); m != nil && m.CurrentWorkload > 0 {
					if err := registry.Release(m.ID); err == nil {
						if err := e.st.UpdateMember(m); err != nil {
							return fmt.Errorf("persist member %s: %w", m.ID, err)
						}
					}
				}
				task.AssignedTo = ""
			}
			task.Status = models.TaskStatusPending
			if err := e.st.UpdateTask(task); err != nil {
				return fmt.Errorf("persist task %s: %w", task.ID, err)
			}
		}
		if err := tree.AddTask(task); err != nil {
			return err
		}
	}

	e.logger.Log("[engine] resuming team %s with %d tasks", teamID, tree.Size())
	return e.launch(team, registry, tree)
}

// launch starts the team's runner goroutine.
func (e *Engine) launch(team *models.Team, registry *Registry, tree *TaskTree) error {
	budget, err := NewBudgetEnforcer(team.ID, team.BudgetLimit, e.st)
	if err != nil {
		return err
	}
	checkpoints := NewCheckpointManager(e.st, e.now)
	recovery := NewRecoveryManager(e.maxAttempts, e.backoff)
	review := NewReviewLoop(e.reviewer, e.st, budget, e.now)

	runner := newTeamRunner(team, tree, registry, budget, checkpoints, recovery,
		review, e.executor, e.st, e.bus, e.now, e.runnerCfg)

	runCtx, cancel := context.WithCancel(e.ctx)

	e.mu.Lock()
	if _, exists := e.runners[team.ID]; exists {
		e.mu.Unlock()
		cancel()
		return fmt.Errorf("team %s is already running", team.ID)
	}
	e.runners[team.ID] = &runnerHandle{runner: runner, cancel: cancel}
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()

		if err := runner.Run(runCtx); err != nil {
			e.logger.Log("[engine] runner for team %s failed: %v", team.ID, err)
		}

		e.mu.Lock()
		delete(e.runners, team.ID)
		e.mu.Unlock()
	}()
	return nil
}

// CancelTeam stops a running team. In-flight work aborts at the next
// checkpoint boundary and the team lands in failed with a cancelled reason.
func (e *Engine) CancelTeam(teamID string) error {
	e.mu.RLock()
	handle, ok := e.runners[teamID]
	e.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s is not running", ErrTeamNotFound, teamID)
	}
	handle.runner.team.Reason = "cancelled by operator"
	handle.cancel()
	return nil
}

// Running reports whether the team has an active runner.
func (e *Engine) Running(teamID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.runners[teamID]
	return ok
}

// Wait blocks until every runner has exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Stop cancels every runner, waits for them, and closes the event bus.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	e.bus.Close()
}

// Subscribe registers an event feed. Events are at-least-once and lossy
// under backpressure; the store holds the durable record.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	return e.bus.Subscribe()
}

// DroppedEventCount returns the number of events dropped across subscribers.
func (e *Engine) DroppedEventCount() uint64 {
	return e.bus.DroppedCount()
}

// Team returns a team by ID.
func (e *Engine) Team(teamID string) (*models.Team, error) {
	team, err := e.st.GetTeam(teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}
	return team, nil
}

// Teams lists teams, optionally filtered by status.
func (e *Engine) Teams(status *models.TeamStatus) ([]models.Team, error) {
	return e.st.ListTeams(status)
}

// Tasks lists a team's tasks in creation order.
func (e *Engine) Tasks(teamID string) ([]models.Task, error) {
	return e.st.ListTasksByTeam(teamID)
}

// Members lists a team's roster.
func (e *Engine) Members(teamID string) ([]models.Member, error) {
	return e.st.ListMembersByTeam(teamID)
}

// CheckpointHistory returns a task's checkpoint trail in step order.
func (e *Engine) CheckpointHistory(taskID string) ([]models.Checkpoint, error) {
	return e.st.ListCheckpointsByTask(taskID)
}

// Audit returns a team's message trail, filtered by type and time range.
func (e *Engine) Audit(teamID string, filter store.MessageFilter) ([]models.Message, error) {
	return e.st.ListMessagesByTeam(teamID, filter)
}

// Spend returns a team's recorded spend in USD.
func (e *Engine) Spend(teamID string) (float64, error) {
	return e.st.TeamSpend(teamID)
}

// CostBreakdown returns a team's spend grouped by category, provider, and model.
func (e *Engine) CostBreakdown(teamID string) ([]store.CostAggregate, error) {
	return e.st.CostBreakdown(teamID)
}

// ArchiveTeam moves a terminal team to archived.
func (e *Engine) ArchiveTeam(teamID string) error {
	team, err := e.Team(teamID)
	if err != nil {
		return err
	}
	return e.transitionTeam(team, models.TeamStatusArchived)
}

func (e *Engine) transitionTeam(team *models.Team, next models.TeamStatus) error {
	if !team.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: team %s %s -> %s", ErrInvalidTransition, team.ID, team.Status, next)
	}
	team.Status = next
	if next.Terminal() && team.CompletedAt == nil {
		now := e.now().UTC()
		team.CompletedAt = &now
	}
	if err := e.st.UpdateTeam(team); err != nil {
		return fmt.Errorf("persist team %s: %w", team.ID, err)
	}
	e.bus.Publish(Event{
		Type: EventTeamStatusChanged, TeamID: team.ID,
		Status: string(next), Message: team.Reason, Timestamp: e.now().UTC(),
	})
	return nil
}
