package orchestrator

import (
	"context"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

// Decomposer turns a goal into a structured plan: an analysis, a worker
// roster, and a task tree. Each call also reports its provider usage so the
// forming phase is charged against the team budget like any other call.
type Decomposer interface {
	Analyze(ctx context.Context, goal string) (*models.GoalAnalysis, *models.CallUsage, error)
	FormTeamSpecs(ctx context.Context, analysis *models.GoalAnalysis) ([]models.WorkerSpec, *models.CallUsage, error)
	Decompose(ctx context.Context, goal string, analysis *models.GoalAnalysis, workers []models.WorkerSpec) ([]models.TaskSpec, *models.CallUsage, error)
}

// Executor runs one step of a task from the accumulated context of its
// latest checkpoint. attempt is the retry attempt for the step, 0 first;
// implementations may use it for provider routing.
type Executor interface {
	ExecuteStep(ctx context.Context, task *models.Task, accumulated string, attempt int) (*models.StepResult, error)
	EstimateStepCost(task *models.Task, accumulated string) float64
}

// Reviewer makes the manager decision on a task's submitted output.
type Reviewer interface {
	Review(ctx context.Context, task *models.Task, output string) (*models.ReviewDecision, error)
}
