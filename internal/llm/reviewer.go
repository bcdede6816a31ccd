package llm

import (
	"context"
	"fmt"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

// Reviewer makes manager review decisions on submitted task output.
type Reviewer struct {
	router *Router
}

// NewReviewer creates a Reviewer over the given provider router.
func NewReviewer(router *Router) *Reviewer {
	return &Reviewer{router: router}
}

// reviewResponse is the JSON structure the model returns for a review.
type reviewResponse struct {
	Verdict  string `json:"verdict"`
	Feedback string `json:"feedback"`
}

// Review judges the task's submitted output against its acceptance criteria.
func (r *Reviewer) Review(ctx context.Context, task *models.Task, output string) (*models.ReviewDecision, error) {
	client := r.router.Pick(0)
	prompt := fmt.Sprintf(reviewPrompt,
		task.Title, task.Description,
		bulletList(task.AcceptanceCriteria),
		output)

	var review reviewResponse
	res, err := client.completeJSON(ctx, reviewSystem, prompt, &review)
	if err != nil {
		return nil, fmt.Errorf("review task %s: %w", task.ID, err)
	}

	verdict := models.ReviewVerdict(review.Verdict)
	if !verdict.Valid() {
		return nil, fmt.Errorf("%w: unknown review verdict %q", ErrMalformedOutput, review.Verdict)
	}
	if verdict != models.VerdictApprove && review.Feedback == "" {
		return nil, fmt.Errorf("%w: %s verdict without feedback", ErrMalformedOutput, verdict)
	}

	return &models.ReviewDecision{
		Verdict:      verdict,
		Feedback:     review.Feedback,
		RequestID:    res.RequestID,
		Provider:     res.Provider,
		Model:        res.Model,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		Cost:         res.Cost,
	}, nil
}
