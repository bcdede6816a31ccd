package models

// GoalAnalysis is the decomposition capability's understanding of a goal.
type GoalAnalysis struct {
	// CoreObjective is the distilled statement of what the goal requires.
	CoreObjective string `json:"core_objective"`
	// Subtasks sketches the major pieces of work identified.
	Subtasks []string `json:"subtasks"`
	// RequiredSpecializations lists the worker specializations needed.
	RequiredSpecializations []string `json:"required_specializations"`
	// PotentialBlockers lists risks that may stall the mission.
	PotentialBlockers []string `json:"potential_blockers,omitempty"`
	// SuccessCriteria lists how mission success will be judged.
	SuccessCriteria []string `json:"success_criteria,omitempty"`
}

// WorkerSpec describes one worker the decomposition capability wants
// materialized. A team requires between MinWorkers and MaxWorkers specs.
type WorkerSpec struct {
	// Specialization is the worker's area of expertise.
	Specialization string `json:"specialization"`
	// Skills lists concrete capabilities within the specialization.
	Skills []string `json:"skills,omitempty"`
	// Responsibilities lists what the worker is accountable for.
	Responsibilities []string `json:"responsibilities,omitempty"`
	// MaxConcurrentTasks is the worker's assignment capacity. Zero means
	// the registry default applies.
	MaxConcurrentTasks int `json:"max_concurrent_tasks,omitempty"`
}

// Team-size bounds for worker specs. The 3-5 range is a hard business
// invariant, not a soft default.
const (
	MinWorkers = 3
	MaxWorkers = 5
)

// TaskSpec describes one task the decomposition capability produced.
// Children reference their parent by index into the returned slice, since
// IDs are not allocated until the tasks are persisted.
type TaskSpec struct {
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// AcceptanceCriteria defines the ordered criteria for completion.
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	// Specialization names the worker specialization required.
	Specialization string `json:"specialization"`
	// ParentIndex is the index of the parent spec in the returned slice,
	// or -1 for a root task.
	ParentIndex int `json:"parent_index"`
	// Critical marks the task as being on the mission's critical path.
	Critical bool `json:"critical"`
	// Input is the task's input payload.
	Input string `json:"input,omitempty"`
}
