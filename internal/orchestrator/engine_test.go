package orchestrator

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/spectralhq/ghostcrew/internal/store"
	"github.com/spectralhq/ghostcrew/pkg/models"
)

func TestEngine_CreateTeamValidation(t *testing.T) {
	db := setupTestStore(t)
	e := newTestEngine(t, db, newFakeDecomposer(), newFakeExecutor(), newFakeReviewer())

	if _, err := e.CreateTeam("", nil); err == nil {
		t.Error("expected error for empty goal")
	}
	zero := 0.0
	if _, err := e.CreateTeam("goal", &zero); err == nil {
		t.Error("expected error for non-positive budget")
	}
	negative := -5.0
	if _, err := e.CreateTeam("goal", &negative); err == nil {
		t.Error("expected error for negative budget")
	}

	team, err := e.CreateTeam("ship the release", nil)
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	if team.Status != models.TeamStatusPending {
		t.Errorf("expected pending, got %s", team.Status)
	}
}

func TestEngine_StartTeamNotFound(t *testing.T) {
	db := setupTestStore(t)
	e := newTestEngine(t, db, newFakeDecomposer(), newFakeExecutor(), newFakeReviewer())

	if err := e.StartTeam(context.Background(), "missing"); !errors.Is(err, ErrTeamNotFound) {
		t.Errorf("expected ErrTeamNotFound, got %v", err)
	}
}

func TestEngine_FormingFailureFailsTeam(t *testing.T) {
	db := setupTestStore(t)
	dec := newFakeDecomposer()
	dec.analyzeErr = errors.New("model unavailable")
	e := newTestEngine(t, db, dec, newFakeExecutor(), newFakeReviewer())

	team, err := e.CreateTeam("goal", nil)
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	if err := e.StartTeam(context.Background(), team.ID); err == nil {
		t.Fatal("expected StartTeam to fail when analysis fails")
	}

	final, err := e.Team(team.ID)
	if err != nil {
		t.Fatalf("Team failed: %v", err)
	}
	if final.Status != models.TeamStatusFailed {
		t.Errorf("expected failed, got %s", final.Status)
	}
	if !strings.Contains(final.Reason, "model unavailable") {
		t.Errorf("expected reason to carry the forming error, got %q", final.Reason)
	}
}

func TestEngine_SingleTaskMissionCompletes(t *testing.T) {
	db := setupTestStore(t)
	exec := newFakeExecutor()
	e := newTestEngine(t, db, newFakeDecomposer(), exec, newFakeReviewer())

	team := runTeam(t, e, "write the report", nil)
	if team.Status != models.TeamStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", team.Status, team.Reason)
	}
	if team.StartedAt == nil || team.CompletedAt == nil {
		t.Error("expected started and completed timestamps")
	}

	tasks, err := e.Tasks(team.ID)
	if err != nil {
		t.Fatalf("Tasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	task := tasks[0]
	if task.Status != models.TaskStatusCompleted {
		t.Errorf("expected task completed, got %s", task.Status)
	}
	if task.Output == "" {
		t.Error("expected task output to be recorded")
	}

	members, err := e.Members(team.ID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 4 {
		t.Errorf("expected manager plus 3 workers, got %d members", len(members))
	}

	history, err := e.CheckpointHistory(task.ID)
	if err != nil {
		t.Fatalf("CheckpointHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected 1 checkpoint, got %d", len(history))
	}

	spend, err := e.Spend(team.ID)
	if err != nil {
		t.Fatalf("Spend failed: %v", err)
	}
	if spend != exec.cost {
		t.Errorf("expected spend %f, got %f", exec.cost, spend)
	}

	msgs, err := e.Audit(team.ID, store.MessageFilter{Type: models.MessageAssignment})
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("expected 1 assignment message, got %d", len(msgs))
	}
}

func TestEngine_TreeExecutesChildrenBeforeParent(t *testing.T) {
	db := setupTestStore(t)
	dec := newFakeDecomposer()
	dec.tasks = []models.TaskSpec{
		{Title: "integrate", Specialization: "Builder", ParentIndex: -1, Critical: true},
		{Title: "research", Specialization: "Researcher", ParentIndex: 0, Critical: true},
		{Title: "draft", Specialization: "Writer", ParentIndex: 0, Critical: false},
	}
	exec := newFakeExecutor()
	e := newTestEngine(t, db, dec, exec, newFakeReviewer())

	team := runTeam(t, e, "multi-step mission", nil)
	if team.Status != models.TeamStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", team.Status, team.Reason)
	}

	tasks, err := e.Tasks(team.ID)
	if err != nil {
		t.Fatalf("Tasks failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.Status != models.TaskStatusCompleted {
			t.Errorf("task %q: expected completed, got %s", task.Title, task.Status)
		}
	}

	// The parent consumed its children's results, so it ran last.
	exec.mu.Lock()
	parentOrderOK := exec.progress["integrate"] == 1 && exec.progress["research"] == 1 && exec.progress["draft"] == 1
	exec.mu.Unlock()
	if !parentOrderOK {
		t.Error("expected every task to execute exactly once")
	}
}

func TestEngine_BudgetExceededFailsTeam(t *testing.T) {
	db := setupTestStore(t)
	exec := newFakeExecutor()
	exec.estimate = 1.0
	e := newTestEngine(t, db, newFakeDecomposer(), exec, newFakeReviewer())

	events, unsub := e.Subscribe()
	defer unsub()

	limit := 0.5
	team := runTeam(t, e, "expensive mission", &limit)
	if team.Status != models.TeamStatusFailed {
		t.Fatalf("expected failed, got %s", team.Status)
	}
	if team.Reason != ErrBudgetExceeded.Error() {
		t.Errorf("expected budget-exceeded reason, got %q", team.Reason)
	}
	if exec.callCount() != 0 {
		t.Errorf("expected no execution past the budget gate, got %d calls", exec.callCount())
	}

	// The runner has exited, so the event is already buffered.
	sawExceeded := false
	for !sawExceeded {
		select {
		case ev := <-events:
			if ev.Type == EventBudgetExceeded {
				sawExceeded = true
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for budget exceeded event")
		}
	}
}

func TestEngine_FormingCostsAreLedgered(t *testing.T) {
	db := setupTestStore(t)
	dec := newFakeDecomposer()
	dec.callCost = 0.05
	exec := newFakeExecutor()
	e := newTestEngine(t, db, dec, exec, newFakeReviewer())

	team := runTeam(t, e, "costed mission", nil)
	if team.Status != models.TeamStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", team.Status, team.Reason)
	}

	breakdown, err := e.CostBreakdown(team.ID)
	if err != nil {
		t.Fatalf("CostBreakdown failed: %v", err)
	}
	byCategory := make(map[models.CostCategory]float64)
	for _, row := range breakdown {
		byCategory[row.Category] += row.Amount
	}
	// Analyze and FormTeamSpecs both land under analysis.
	if got := byCategory[models.CostAnalysis]; math.Abs(got-0.10) > 1e-9 {
		t.Errorf("expected analysis spend 0.10, got %f", got)
	}
	if got := byCategory[models.CostDecomposition]; math.Abs(got-0.05) > 1e-9 {
		t.Errorf("expected decomposition spend 0.05, got %f", got)
	}
	if got := byCategory[models.CostExecution]; math.Abs(got-exec.cost) > 1e-9 {
		t.Errorf("expected execution spend %f, got %f", exec.cost, got)
	}
}

func TestEngine_FormingBudgetGateFailsTeam(t *testing.T) {
	db := setupTestStore(t)
	dec := newFakeDecomposer()
	dec.callCost = 0.05
	exec := newFakeExecutor()
	e := newTestEngine(t, db, dec, exec, newFakeReviewer())

	limit := 0.08
	team, err := e.CreateTeam("over-budget forming", &limit)
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	if err := e.StartTeam(context.Background(), team.ID); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded from forming, got %v", err)
	}

	final, err := e.Team(team.ID)
	if err != nil {
		t.Fatalf("Team failed: %v", err)
	}
	if final.Status != models.TeamStatusFailed {
		t.Errorf("expected failed, got %s", final.Status)
	}
	if exec.callCount() != 0 {
		t.Errorf("expected no execution calls, got %d", exec.callCount())
	}
}

func TestEngine_CriticalFailureFailsTeam(t *testing.T) {
	db := setupTestStore(t)
	exec := newFakeExecutor()
	// An unrecoverable failure escalates without retries.
	exec.failures["root"] = unrecoverableErr()
	e := newTestEngine(t, db, newFakeDecomposer(), exec, newFakeReviewer())

	team := runTeam(t, e, "doomed mission", nil)
	if team.Status != models.TeamStatusFailed {
		t.Fatalf("expected failed, got %s", team.Status)
	}
	if team.Reason != "critical task failed" {
		t.Errorf("unexpected reason %q", team.Reason)
	}
	if exec.callCount() != 1 {
		t.Errorf("expected 1 call before escalation, got %d", exec.callCount())
	}

	msgs, err := e.Audit(team.ID, store.MessageFilter{Type: models.MessageEscalation})
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("expected 1 escalation message, got %d", len(msgs))
	}
}

func TestEngine_NonCriticalFailureIsPruned(t *testing.T) {
	db := setupTestStore(t)
	dec := newFakeDecomposer()
	dec.tasks = []models.TaskSpec{
		{Title: "root", Specialization: "Builder", ParentIndex: -1, Critical: true},
		{Title: "flaky", Specialization: "Researcher", ParentIndex: 0, Critical: false},
	}
	exec := newFakeExecutor()
	exec.failures["flaky"] = unrecoverableErr()
	e := newTestEngine(t, db, dec, exec, newFakeReviewer())

	team := runTeam(t, e, "resilient mission", nil)
	if team.Status != models.TeamStatusCompleted {
		t.Fatalf("expected completed despite branch failure, got %s (%s)", team.Status, team.Reason)
	}

	tasks, err := e.Tasks(team.ID)
	if err != nil {
		t.Fatalf("Tasks failed: %v", err)
	}
	byTitle := make(map[string]models.Task)
	for _, task := range tasks {
		byTitle[task.Title] = task
	}
	if byTitle["flaky"].Status != models.TaskStatusFailed {
		t.Errorf("expected flaky failed, got %s", byTitle["flaky"].Status)
	}
	if byTitle["root"].Status != models.TaskStatusCompleted {
		t.Errorf("expected root completed, got %s", byTitle["root"].Status)
	}
}

func TestEngine_CriticalFailureInNonCriticalBranchIsAbsorbed(t *testing.T) {
	db := setupTestStore(t)
	dec := newFakeDecomposer()
	dec.tasks = []models.TaskSpec{
		{Title: "deliver", Specialization: "Builder", ParentIndex: -1, Critical: true},
		{Title: "sidequest", Specialization: "Writer", ParentIndex: -1, Critical: false},
		{Title: "dig", Specialization: "Researcher", ParentIndex: 1, Critical: true},
	}
	exec := newFakeExecutor()
	exec.failures["dig"] = unrecoverableErr()
	e := newTestEngine(t, db, dec, exec, newFakeReviewer())

	team := runTeam(t, e, "branching mission", nil)
	if team.Status != models.TeamStatusCompleted {
		t.Fatalf("expected completed despite the absorbed failure, got %s (%s)", team.Status, team.Reason)
	}

	tasks, err := e.Tasks(team.ID)
	if err != nil {
		t.Fatalf("Tasks failed: %v", err)
	}
	byTitle := make(map[string]models.Task)
	for _, task := range tasks {
		byTitle[task.Title] = task
	}
	// The critical failure fails its own branch root and stops there.
	if byTitle["dig"].Status != models.TaskStatusFailed {
		t.Errorf("expected dig failed, got %s", byTitle["dig"].Status)
	}
	if byTitle["sidequest"].Status != models.TaskStatusFailed {
		t.Errorf("expected sidequest failed, got %s", byTitle["sidequest"].Status)
	}
	if byTitle["deliver"].Status != models.TaskStatusCompleted {
		t.Errorf("expected deliver completed, got %s", byTitle["deliver"].Status)
	}
}

func TestEngine_TransientFailureRetriesThenSucceeds(t *testing.T) {
	db := setupTestStore(t)
	exec := newFakeExecutor()
	exec.failures["root"] = transientErr()
	exec.failUntil["root"] = 2
	e := newTestEngine(t, db, newFakeDecomposer(), exec, newFakeReviewer())

	team := runTeam(t, e, "bumpy mission", nil)
	if team.Status != models.TeamStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", team.Status, team.Reason)
	}
	if exec.callCount() != 3 {
		t.Errorf("expected 2 failures plus 1 success, got %d calls", exec.callCount())
	}
}

func TestEngine_MalformedResponseRetriesThenSucceeds(t *testing.T) {
	db := setupTestStore(t)
	exec := newFakeExecutor()
	exec.failures["root"] = malformedErr()
	exec.failUntil["root"] = 1
	e := newTestEngine(t, db, newFakeDecomposer(), exec, newFakeReviewer())

	team := runTeam(t, e, "garbled mission", nil)
	if team.Status != models.TeamStatusCompleted {
		t.Fatalf("expected completed after a garbled step, got %s (%s)", team.Status, team.Reason)
	}
	if exec.callCount() != 2 {
		t.Errorf("expected 1 failure plus 1 success, got %d calls", exec.callCount())
	}
}

func TestEngine_RevisionLoop(t *testing.T) {
	db := setupTestStore(t)
	rev := newFakeReviewer()
	rev.verdicts["root"] = []models.ReviewVerdict{models.VerdictRevise}
	exec := newFakeExecutor()
	e := newTestEngine(t, db, newFakeDecomposer(), exec, rev)

	team := runTeam(t, e, "revised mission", nil)
	if team.Status != models.TeamStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", team.Status, team.Reason)
	}

	tasks, err := e.Tasks(team.ID)
	if err != nil {
		t.Fatalf("Tasks failed: %v", err)
	}
	if tasks[0].RevisionCount != 1 {
		t.Errorf("expected 1 revision, got %d", tasks[0].RevisionCount)
	}
	if exec.callCount() != 2 {
		t.Errorf("expected 2 execution rounds, got %d", exec.callCount())
	}

	// The revision round saw the manager's feedback in its context.
	exec.mu.Lock()
	lastCtx := exec.lastAccumulated["root"]
	exec.mu.Unlock()
	if !strings.Contains(lastCtx, "needs work") {
		t.Errorf("expected feedback in revision context, got %q", lastCtx)
	}

	msgs, err := e.Audit(team.ID, store.MessageFilter{Type: models.MessageReviewFeedback})
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("expected 1 feedback message, got %d", len(msgs))
	}
}

func TestEngine_RevisionsExhaustedFailsTask(t *testing.T) {
	db := setupTestStore(t)
	rev := newFakeReviewer()
	rev.verdicts["root"] = []models.ReviewVerdict{
		models.VerdictRevise, models.VerdictRevise, models.VerdictRevise, models.VerdictRevise,
	}
	e := newTestEngine(t, db, newFakeDecomposer(), newFakeExecutor(), rev)

	team := runTeam(t, e, "unsalvageable mission", nil)
	if team.Status != models.TeamStatusFailed {
		t.Fatalf("expected failed, got %s", team.Status)
	}

	tasks, err := e.Tasks(team.ID)
	if err != nil {
		t.Fatalf("Tasks failed: %v", err)
	}
	task := tasks[0]
	if task.Status != models.TaskStatusFailed {
		t.Errorf("expected task failed, got %s", task.Status)
	}
	if task.RevisionCount != models.DefaultMaxRevisions {
		t.Errorf("expected revision count at the bound, got %d", task.RevisionCount)
	}
	if !strings.Contains(task.Reason, "revisions exhausted") {
		t.Errorf("unexpected reason %q", task.Reason)
	}
}

func TestEngine_CancelTeam(t *testing.T) {
	db := setupTestStore(t)
	exec := newFakeExecutor()
	// Park the only task until cancellation so the cancel lands mid-flight.
	exec.blockTasks["root"] = true
	e := newTestEngine(t, db, newFakeDecomposer(), exec, newFakeReviewer())

	team, err := e.CreateTeam("long mission", nil)
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	if err := e.StartTeam(context.Background(), team.ID); err != nil {
		t.Fatalf("StartTeam failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !e.Running(team.ID) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := e.CancelTeam(team.ID); err != nil {
		t.Fatalf("CancelTeam failed: %v", err)
	}
	e.Wait()

	final, err := e.Team(team.ID)
	if err != nil {
		t.Fatalf("Team failed: %v", err)
	}
	if final.Status != models.TeamStatusFailed {
		t.Errorf("expected failed after cancel, got %s", final.Status)
	}
	if final.Reason != "cancelled by operator" {
		t.Errorf("unexpected reason %q", final.Reason)
	}
	if e.Running(team.ID) {
		t.Error("expected runner to be gone after cancel")
	}

	if err := e.CancelTeam(team.ID); !errors.Is(err, ErrTeamNotFound) {
		t.Errorf("expected ErrTeamNotFound for stopped team, got %v", err)
	}
}

func TestEngine_ArchiveTeam(t *testing.T) {
	db := setupTestStore(t)
	e := newTestEngine(t, db, newFakeDecomposer(), newFakeExecutor(), newFakeReviewer())

	team := runTeam(t, e, "short mission", nil)
	if err := e.ArchiveTeam(team.ID); err != nil {
		t.Fatalf("ArchiveTeam failed: %v", err)
	}
	archived, err := e.Team(team.ID)
	if err != nil {
		t.Fatalf("Team failed: %v", err)
	}
	if archived.Status != models.TeamStatusArchived {
		t.Errorf("expected archived, got %s", archived.Status)
	}

	// Archiving twice is an invalid transition.
	if err := e.ArchiveTeam(team.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestEngine_ResumeFromCheckpoint(t *testing.T) {
	db := setupTestStore(t)

	// Seed the aftermath of a crashed run: an active team whose task died
	// mid-flight with one step already durable.
	now := time.Now().UTC()
	team := &models.Team{
		ID:        "team-resume",
		Goal:      "finish the mission",
		Status:    models.TeamStatusActive,
		CreatedAt: now,
		StartedAt: &now,
	}
	if err := db.CreateTeam(team); err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}

	manager := &models.Member{
		ID: "mgr-1", TeamID: team.ID, Role: models.RoleManager, Specialization: "Manager",
		Status: models.MemberStatusActive, MaxConcurrentTasks: 3, JoinedAt: now,
	}
	if err := db.CreateMember(manager); err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}
	workers := []*models.Member{
		{ID: "w-1", TeamID: team.ID, Role: models.RoleWorker, Specialization: "Builder",
			Status: models.MemberStatusActive, MaxConcurrentTasks: 2, CurrentWorkload: 1, JoinedAt: now},
		{ID: "w-2", TeamID: team.ID, Role: models.RoleWorker, Specialization: "Researcher",
			Status: models.MemberStatusIdle, MaxConcurrentTasks: 2, JoinedAt: now.Add(time.Microsecond)},
		{ID: "w-3", TeamID: team.ID, Role: models.RoleWorker, Specialization: "Writer",
			Status: models.MemberStatusIdle, MaxConcurrentTasks: 2, JoinedAt: now.Add(2 * time.Microsecond)},
	}
	for _, w := range workers {
		if err := db.CreateMember(w); err != nil {
			t.Fatalf("CreateMember failed: %v", err)
		}
	}

	doneAt := now.Add(-time.Minute)
	finished := &models.Task{
		ID: "task-done", TeamID: team.ID, Title: "done already", Specialization: "Researcher",
		Status: models.TaskStatusCompleted, MaxRevisions: models.DefaultMaxRevisions,
		Critical: true, Output: "earlier output", CreatedAt: now.Add(-2 * time.Minute), CompletedAt: &doneAt,
	}
	interrupted := &models.Task{
		ID: "task-midflight", TeamID: team.ID, Title: "interrupted", Specialization: "Builder",
		Status: models.TaskStatusInProgress, AssignedTo: "w-1", AssignedBy: "mgr-1",
		MaxRevisions: models.DefaultMaxRevisions, Critical: true, CreatedAt: now.Add(-time.Minute),
	}
	for _, task := range []*models.Task{finished, interrupted} {
		if err := db.CreateTask(task); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	if err := db.CreateCheckpoint(&models.Checkpoint{
		ID: "cp-0", TaskID: interrupted.ID, StepNumber: 0,
		StepOutput: "partial", AccumulatedContext: "progress from before the crash",
		CreatedAt: now.Add(-30 * time.Second),
	}); err != nil {
		t.Fatalf("CreateCheckpoint failed: %v", err)
	}

	exec := newFakeExecutor()
	e := newTestEngine(t, db, newFakeDecomposer(), exec, newFakeReviewer())
	if err := e.ResumeTeam(team.ID); err != nil {
		t.Fatalf("ResumeTeam failed: %v", err)
	}
	e.Wait()

	final, err := e.Team(team.ID)
	if err != nil {
		t.Fatalf("Team failed: %v", err)
	}
	if final.Status != models.TeamStatusCompleted {
		t.Fatalf("expected completed after resume, got %s (%s)", final.Status, final.Reason)
	}

	// The interrupted task resumed from its checkpoint, not from scratch.
	exec.mu.Lock()
	resumedCtx := exec.lastAccumulated["interrupted"]
	calls := exec.calls
	exec.mu.Unlock()
	if !strings.Contains(resumedCtx, "progress from before the crash") {
		t.Errorf("expected resumed context to carry checkpoint state, got %q", resumedCtx)
	}
	if calls != 1 {
		t.Errorf("expected 1 execution (the completed task stays done), got %d", calls)
	}

	history, err := e.CheckpointHistory(interrupted.ID)
	if err != nil {
		t.Fatalf("CheckpointHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected 2 checkpoints after resume, got %d", len(history))
	}

	// The stale workload the crash left behind was released.
	members, err := e.Members(team.ID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	for _, m := range members {
		if m.CurrentWorkload != 0 {
			t.Errorf("member %s: expected workload 0 after resume, got %d", m.ID, m.CurrentWorkload)
		}
	}
}

func TestEngine_ResumeRequiresActiveTeam(t *testing.T) {
	db := setupTestStore(t)
	e := newTestEngine(t, db, newFakeDecomposer(), newFakeExecutor(), newFakeReviewer())

	team := runTeam(t, e, "finished mission", nil)
	if err := e.ResumeTeam(team.ID); err == nil {
		t.Error("expected error resuming a completed team")
	}
	if err := e.ResumeTeam("missing"); !errors.Is(err, ErrTeamNotFound) {
		t.Errorf("expected ErrTeamNotFound, got %v", err)
	}
}

func TestEngine_CostIdempotencyAcrossRetries(t *testing.T) {
	db := setupTestStore(t)
	seedTeamRow(t, db, "team-1")
	seedTaskRow(t, db, "team-1", "task-1")

	limit := 10.0
	budget, err := NewBudgetEnforcer("team-1", &limit, db)
	if err != nil {
		t.Fatalf("NewBudgetEnforcer failed: %v", err)
	}

	// Recording the same provider request twice only lands once durably.
	if err := budget.Record(costEntry("team-1", "req-dup", 1.0)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := budget.Record(costEntry("team-1", "req-dup", 1.0)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	durable, err := db.TeamSpend("team-1")
	if err != nil {
		t.Fatalf("TeamSpend failed: %v", err)
	}
	if durable != 1.0 {
		t.Errorf("expected durable spend 1.0, got %f", durable)
	}
}
