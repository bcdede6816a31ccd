package models

// StepResult is the outcome of one execution step for a task.
type StepResult struct {
	// Output is the step's output payload.
	Output string `json:"output"`
	// AccumulatedContext is the full cumulative context after this step,
	// sufficient on its own to resume from.
	AccumulatedContext string `json:"accumulated_context"`
	// Done reports whether the task needs no further steps.
	Done bool `json:"done"`
	// RequestID identifies the provider request that produced this step.
	// It doubles as the idempotency key for cost recording.
	RequestID string `json:"request_id,omitempty"`
	// Provider is the provider that served the request.
	Provider string `json:"provider,omitempty"`
	// Model is the model that served the request.
	Model string `json:"model,omitempty"`
	// InputTokens is the input token count for the step.
	InputTokens int64 `json:"input_tokens"`
	// OutputTokens is the output token count for the step.
	OutputTokens int64 `json:"output_tokens"`
	// Cost is the estimated USD cost of the step.
	Cost float64 `json:"cost"`
}

// CallUsage is the provider accounting for a capability call whose payload
// carries no cost fields of its own, such as the forming-phase calls.
type CallUsage struct {
	// RequestID identifies the provider request; it doubles as the
	// idempotency key for cost recording.
	RequestID string `json:"request_id,omitempty"`
	// Provider is the provider that served the request.
	Provider string `json:"provider,omitempty"`
	// Model is the model that served the request.
	Model string `json:"model,omitempty"`
	// InputTokens is the input token count for the call.
	InputTokens int64 `json:"input_tokens"`
	// OutputTokens is the output token count for the call.
	OutputTokens int64 `json:"output_tokens"`
	// Cost is the estimated USD cost of the call.
	Cost float64 `json:"cost"`
}

// ReviewVerdict is the manager's decision on submitted task output.
type ReviewVerdict string

const (
	// VerdictApprove accepts the output and completes the task.
	VerdictApprove ReviewVerdict = "approve"
	// VerdictRevise sends the task back with feedback.
	VerdictRevise ReviewVerdict = "revise"
	// VerdictReject fails the task outright.
	VerdictReject ReviewVerdict = "reject"
)

// Valid returns true if the verdict is a known value.
func (v ReviewVerdict) Valid() bool {
	switch v {
	case VerdictApprove, VerdictRevise, VerdictReject:
		return true
	default:
		return false
	}
}

// ReviewDecision is the full result of a manager review.
type ReviewDecision struct {
	// Verdict is the decision.
	Verdict ReviewVerdict `json:"verdict"`
	// Feedback explains a revise or reject verdict.
	Feedback string `json:"feedback,omitempty"`
	// RequestID identifies the provider request behind the review.
	RequestID string `json:"request_id,omitempty"`
	// Provider is the provider that served the request.
	Provider string `json:"provider,omitempty"`
	// Model is the model that served the request.
	Model string `json:"model,omitempty"`
	// InputTokens is the input token count for the review call.
	InputTokens int64 `json:"input_tokens"`
	// OutputTokens is the output token count for the review call.
	OutputTokens int64 `json:"output_tokens"`
	// Cost is the estimated USD cost of the review call.
	Cost float64 `json:"cost"`
}
