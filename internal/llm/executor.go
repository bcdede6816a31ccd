package llm

import (
	"context"
	"fmt"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

// Executor runs single task steps through the provider router. The attempt
// number from the recovery manager steers provider selection.
type Executor struct {
	router *Router
}

// NewExecutor creates an Executor over the given provider router.
func NewExecutor(router *Router) *Executor {
	return &Executor{router: router}
}

// stepResponse is the JSON structure the model returns for one step.
type stepResponse struct {
	Output             string `json:"output"`
	AccumulatedContext string `json:"accumulated_context"`
	Done               bool   `json:"done"`
}

// ExecuteStep runs one step of the task given the accumulated context from
// the latest checkpoint. attempt is the retry attempt for this step, 0 first.
func (e *Executor) ExecuteStep(ctx context.Context, task *models.Task, accumulated string, attempt int) (*models.StepResult, error) {
	client := e.router.Pick(attempt)

	carried := accumulated
	if carried == "" {
		carried = task.Input
	}
	prompt := fmt.Sprintf(executePrompt,
		task.Title, task.Description,
		bulletList(task.AcceptanceCriteria),
		carried)

	var step stepResponse
	res, err := client.completeJSON(ctx, executeSystem, prompt, &step)
	if err != nil {
		return nil, fmt.Errorf("execute step for task %s: %w", task.ID, err)
	}
	if step.AccumulatedContext == "" {
		return nil, fmt.Errorf("%w: step for task %s missing accumulated context", ErrMalformedOutput, task.ID)
	}

	return &models.StepResult{
		Output:             step.Output,
		AccumulatedContext: step.AccumulatedContext,
		Done:               step.Done,
		RequestID:          res.RequestID,
		Provider:           res.Provider,
		Model:              res.Model,
		InputTokens:        res.InputTokens,
		OutputTokens:       res.OutputTokens,
		Cost:               res.Cost,
	}, nil
}

// EstimateStepCost predicts the USD cost of the next step for budget checks.
// It assumes the full output window is used, which errs on the safe side.
func (e *Executor) EstimateStepCost(task *models.Task, accumulated string) float64 {
	client := e.router.Pick(0)
	// Rough input sizing: one token per 4 characters of prompt material.
	inputChars := len(task.Title) + len(task.Description) + len(accumulated) + len(executePrompt)
	inputTokens := int64(inputChars / 4)
	return client.pricing.Cost(string(client.Model()), inputTokens, defaultMaxTokens)
}
