package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spectralhq/ghostcrew/internal/llm"
	"github.com/spectralhq/ghostcrew/internal/store"
	"github.com/spectralhq/ghostcrew/pkg/models"
)

// setupTestStore creates a migrated SQLite store in a temp dir.
func setupTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedTeamRow inserts a minimal team so rows with foreign keys can follow.
func seedTeamRow(t *testing.T, db *store.DB, id string) *models.Team {
	t.Helper()
	team := &models.Team{
		ID:        id,
		Goal:      "test goal",
		Status:    models.TeamStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.CreateTeam(team); err != nil {
		t.Fatalf("failed to seed team: %v", err)
	}
	return team
}

// seedTaskRow inserts a minimal pending task under the team.
func seedTaskRow(t *testing.T, db *store.DB, teamID, id string) *models.Task {
	t.Helper()
	task := &models.Task{
		ID:           id,
		TeamID:       teamID,
		Title:        "task " + id,
		Status:       models.TaskStatusPending,
		MaxRevisions: models.DefaultMaxRevisions,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("failed to seed task: %v", err)
	}
	return task
}

// fakeDecomposer returns canned analysis, rosters, and task trees. A
// non-zero callCost attaches provider usage to every forming call.
type fakeDecomposer struct {
	specs []models.WorkerSpec
	tasks []models.TaskSpec

	callCost   float64
	analyzeErr error
}

func newFakeDecomposer() *fakeDecomposer {
	return &fakeDecomposer{
		specs: []models.WorkerSpec{
			{Specialization: "Researcher", MaxConcurrentTasks: 2},
			{Specialization: "Builder", MaxConcurrentTasks: 2},
			{Specialization: "Writer", MaxConcurrentTasks: 2},
		},
		tasks: []models.TaskSpec{
			{Title: "root", Specialization: "Builder", ParentIndex: -1, Critical: true},
		},
	}
}

func (d *fakeDecomposer) usage(requestID string) *models.CallUsage {
	if d.callCost == 0 {
		return nil
	}
	return &models.CallUsage{
		RequestID:    requestID,
		Provider:     "fake",
		Model:        "fake-model",
		InputTokens:  10,
		OutputTokens: 20,
		Cost:         d.callCost,
	}
}

func (d *fakeDecomposer) Analyze(ctx context.Context, goal string) (*models.GoalAnalysis, *models.CallUsage, error) {
	if d.analyzeErr != nil {
		return nil, nil, d.analyzeErr
	}
	return &models.GoalAnalysis{
		CoreObjective:           "objective: " + goal,
		RequiredSpecializations: []string{"Researcher", "Builder", "Writer"},
	}, d.usage("req-analyze"), nil
}

func (d *fakeDecomposer) FormTeamSpecs(ctx context.Context, analysis *models.GoalAnalysis) ([]models.WorkerSpec, *models.CallUsage, error) {
	return d.specs, d.usage("req-specs"), nil
}

func (d *fakeDecomposer) Decompose(ctx context.Context, goal string, analysis *models.GoalAnalysis, workers []models.WorkerSpec) ([]models.TaskSpec, *models.CallUsage, error) {
	return d.tasks, d.usage("req-decompose"), nil
}

// transientErr is a retryable provider failure.
func transientErr() error {
	return &llm.CallError{Provider: "anthropic", Model: "fake-model", StatusCode: 529, Err: errors.New("overloaded")}
}

// unrecoverableErr is a provider failure that escalates immediately.
func unrecoverableErr() error {
	return &llm.CallError{Provider: "anthropic", Model: "fake-model", StatusCode: 400, Err: errors.New("invalid request")}
}

// malformedErr is an unparseable model response, retryable like any other
// flaky step.
func malformedErr() error {
	return fmt.Errorf("parse step response: %w", llm.ErrMalformedOutput)
}

// fakeExecutor completes each step immediately unless a task title is
// scripted to fail with a given error.
type fakeExecutor struct {
	mu       sync.Mutex
	calls    int
	cost     float64
	estimate float64
	// failures maps task title to the error its steps return. A positive
	// failUntil lets the task succeed after that many failures.
	failures  map[string]error
	failUntil map[string]int
	failed    map[string]int
	// stepsPerTask makes a task take multiple steps before done.
	stepsPerTask map[string]int
	progress     map[string]int
	// lastAccumulated records the context each task last executed with.
	lastAccumulated map[string]string
	// blockTasks holds task titles whose steps park until the context ends.
	blockTasks map[string]bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		cost:            0.001,
		estimate:        0.001,
		failures:        make(map[string]error),
		failUntil:       make(map[string]int),
		failed:          make(map[string]int),
		stepsPerTask:    make(map[string]int),
		progress:        make(map[string]int),
		lastAccumulated: make(map[string]string),
		blockTasks:      make(map[string]bool),
	}
}

func (e *fakeExecutor) ExecuteStep(ctx context.Context, task *models.Task, accumulated string, attempt int) (*models.StepResult, error) {
	e.mu.Lock()
	blocked := e.blockTasks[task.Title]
	e.mu.Unlock()
	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.lastAccumulated[task.Title] = accumulated

	if failErr, ok := e.failures[task.Title]; ok {
		until := e.failUntil[task.Title]
		if until == 0 || e.failed[task.Title] < until {
			e.failed[task.Title]++
			return nil, failErr
		}
	}

	e.progress[task.Title]++
	needed := e.stepsPerTask[task.Title]
	if needed == 0 {
		needed = 1
	}
	done := e.progress[task.Title] >= needed

	return &models.StepResult{
		Output:             fmt.Sprintf("output of %s step %d", task.Title, e.progress[task.Title]),
		AccumulatedContext: fmt.Sprintf("%s\nstep %d done", accumulated, e.progress[task.Title]),
		Done:               done,
		RequestID:          fmt.Sprintf("req-%s-%d", task.ID, e.progress[task.Title]),
		Provider:           "fake",
		Model:              "fake-model",
		InputTokens:        10,
		OutputTokens:       20,
		Cost:               e.cost,
	}, nil
}

func (e *fakeExecutor) EstimateStepCost(task *models.Task, accumulated string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.estimate
}

func (e *fakeExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// fakeReviewer returns scripted verdicts per task title, approving by default.
type fakeReviewer struct {
	mu sync.Mutex
	// verdicts holds the remaining verdict sequence per task title.
	verdicts map[string][]models.ReviewVerdict
	err      error
}

func newFakeReviewer() *fakeReviewer {
	return &fakeReviewer{verdicts: make(map[string][]models.ReviewVerdict)}
}

func (r *fakeReviewer) Review(ctx context.Context, task *models.Task, output string) (*models.ReviewDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}

	verdict := models.VerdictApprove
	if queue := r.verdicts[task.Title]; len(queue) > 0 {
		verdict = queue[0]
		r.verdicts[task.Title] = queue[1:]
	}

	decision := &models.ReviewDecision{
		Verdict:   verdict,
		RequestID: fmt.Sprintf("review-%s-%d", task.ID, task.RevisionCount),
		Provider:  "fake",
		Model:     "fake-model",
	}
	if verdict != models.VerdictApprove {
		decision.Feedback = "needs work"
	}
	return decision, nil
}

// newTestEngine wires an engine with fast retries over a temp store.
func newTestEngine(t *testing.T, db *store.DB, dec *fakeDecomposer, exec *fakeExecutor, rev *fakeReviewer) *Engine {
	t.Helper()
	e := NewEngine(db, dec, exec, rev,
		WithMaxAttempts(3),
		WithBackoff(ExponentialBackoff{Base: time.Millisecond, Max: 5 * time.Millisecond}),
		WithRunnerConfig(RunnerConfig{StepTimeout: 5 * time.Second, MaxStepsPerTask: 10}),
	)
	t.Cleanup(e.Stop)
	return e
}

// runTeam creates, starts, and waits out one team.
func runTeam(t *testing.T, e *Engine, goal string, limit *float64) *models.Team {
	t.Helper()
	team, err := e.CreateTeam(goal, limit)
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}
	if err := e.StartTeam(context.Background(), team.ID); err != nil {
		t.Fatalf("StartTeam failed: %v", err)
	}
	e.Wait()

	final, err := e.Team(team.ID)
	if err != nil {
		t.Fatalf("Team lookup failed: %v", err)
	}
	return final
}
