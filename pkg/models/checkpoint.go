package models

import "time"

// Checkpoint is an immutable snapshot of one task's execution progress at a
// given step. Step numbers per task are contiguous starting at 0, and the
// checkpoint set for a task is append-only.
//
// AccumulatedContext is cumulative, not incremental: resuming from the
// latest checkpoint never requires replaying earlier ones.
type Checkpoint struct {
	// ID is the unique identifier for this checkpoint.
	ID string `json:"id"`
	// TaskID is the task this checkpoint belongs to.
	TaskID string `json:"task_id"`
	// StepNumber is the zero-based, contiguous step index within the task.
	StepNumber int `json:"step_number"`
	// StepOutput is the output produced at this step.
	StepOutput string `json:"step_output"`
	// AccumulatedContext is the full execution context as of this step.
	AccumulatedContext string `json:"accumulated_context"`
	// InputTokens is the number of input tokens consumed by this step.
	InputTokens int64 `json:"input_tokens"`
	// OutputTokens is the number of output tokens produced by this step.
	OutputTokens int64 `json:"output_tokens"`
	// Cost is the monetary cost of this step in USD.
	Cost float64 `json:"cost"`
	// CreatedAt is when the checkpoint was recorded.
	CreatedAt time.Time `json:"created_at"`
}
