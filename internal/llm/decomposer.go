package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

// Decomposer analyzes goals, designs worker rosters, and produces task trees.
// Every method also returns the provider usage for the call so the forming
// phase lands in the cost ledger alongside execution and review.
type Decomposer struct {
	router *Router
}

// NewDecomposer creates a Decomposer over the given provider router.
func NewDecomposer(router *Router) *Decomposer {
	return &Decomposer{router: router}
}

// Analyze produces the structured understanding of a goal.
func (d *Decomposer) Analyze(ctx context.Context, goal string) (*models.GoalAnalysis, *models.CallUsage, error) {
	client := d.router.Pick(0)
	prompt := fmt.Sprintf(analysisPrompt, goal)

	var analysis models.GoalAnalysis
	res, err := client.completeJSON(ctx, analysisSystem, prompt, &analysis)
	if err != nil {
		return nil, callUsage(res), fmt.Errorf("analyze goal: %w", err)
	}
	if analysis.CoreObjective == "" {
		return nil, callUsage(res), fmt.Errorf("%w: analysis missing core objective", ErrMalformedOutput)
	}
	return &analysis, callUsage(res), nil
}

// FormTeamSpecs designs the worker roster for an analyzed goal.
func (d *Decomposer) FormTeamSpecs(ctx context.Context, analysis *models.GoalAnalysis) ([]models.WorkerSpec, *models.CallUsage, error) {
	client := d.router.Pick(0)
	prompt := fmt.Sprintf(teamSpecsPrompt,
		models.MinWorkers, models.MaxWorkers,
		analysis.CoreObjective,
		bulletList(analysis.RequiredSpecializations))

	var specs []models.WorkerSpec
	res, err := client.completeJSON(ctx, analysisSystem, prompt, &specs)
	if err != nil {
		return nil, callUsage(res), fmt.Errorf("form team specs: %w", err)
	}
	if len(specs) < models.MinWorkers || len(specs) > models.MaxWorkers {
		return nil, callUsage(res), fmt.Errorf("%w: got %d worker specs, want %d-%d",
			ErrMalformedOutput, len(specs), models.MinWorkers, models.MaxWorkers)
	}
	for i, spec := range specs {
		if spec.Specialization == "" {
			return nil, callUsage(res), fmt.Errorf("%w: worker spec %d missing specialization", ErrMalformedOutput, i)
		}
	}
	return specs, callUsage(res), nil
}

// Decompose produces the task tree for a goal given the worker roster.
func (d *Decomposer) Decompose(ctx context.Context, goal string, analysis *models.GoalAnalysis, workers []models.WorkerSpec) ([]models.TaskSpec, *models.CallUsage, error) {
	client := d.router.Pick(0)

	specializations := make([]string, len(workers))
	for i, w := range workers {
		specializations[i] = w.Specialization
	}
	prompt := fmt.Sprintf(decomposePrompt, goal, analysis.CoreObjective, bulletList(specializations))

	var tasks []models.TaskSpec
	res, err := client.completeJSON(ctx, analysisSystem, prompt, &tasks)
	if err != nil {
		return nil, callUsage(res), fmt.Errorf("decompose goal: %w", err)
	}
	if len(tasks) == 0 {
		return nil, callUsage(res), fmt.Errorf("%w: empty task list", ErrMalformedOutput)
	}
	for i, task := range tasks {
		if task.Title == "" {
			return nil, callUsage(res), fmt.Errorf("%w: task %d missing title", ErrMalformedOutput, i)
		}
		// Parents must precede children so the tree builds in one pass.
		if task.ParentIndex < -1 || task.ParentIndex >= i {
			return nil, callUsage(res), fmt.Errorf("%w: task %d has invalid parent index %d", ErrMalformedOutput, i, task.ParentIndex)
		}
	}
	return tasks, callUsage(res), nil
}

// callUsage converts a call result into the exported usage record.
func callUsage(res *callResult) *models.CallUsage {
	if res == nil {
		return nil
	}
	return &models.CallUsage{
		RequestID:    res.RequestID,
		Provider:     res.Provider,
		Model:        res.Model,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		Cost:         res.Cost,
	}
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- (none given)"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
