package orchestrator

import (
	"fmt"
	"sync"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

// TaskTree holds a team's hierarchical task decomposition and answers
// readiness questions. A task is ready when it is pending and every child
// is resolved. Children run before their parents; the parent consumes the
// children's results.
type TaskTree struct {
	mu     sync.RWMutex
	teamID string
	tasks  map[string]*models.Task
	// children maps a parent task ID to its child IDs in creation order.
	children map[string][]string
	// order preserves insertion order for stable scheduling.
	order []string
}

// NewTaskTree creates an empty tree for a team.
func NewTaskTree(teamID string) *TaskTree {
	return &TaskTree{
		teamID:   teamID,
		tasks:    make(map[string]*models.Task),
		children: make(map[string][]string),
	}
}

// AddTask inserts a task. The parent, when set, must already be in the tree
// and belong to the same team.
func (t *TaskTree) AddTask(task *models.Task) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if task.TeamID != t.teamID {
		return fmt.Errorf("%w: task %s belongs to team %s, tree is for %s",
			ErrInvalidParent, task.ID, task.TeamID, t.teamID)
	}
	if _, exists := t.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already in tree", task.ID)
	}
	if task.ParentID != "" {
		parent, ok := t.tasks[task.ParentID]
		if !ok {
			return fmt.Errorf("%w: parent %s not found for task %s", ErrInvalidParent, task.ParentID, task.ID)
		}
		if parent.TeamID != task.TeamID {
			return fmt.Errorf("%w: parent %s belongs to a different team", ErrInvalidParent, task.ParentID)
		}
		t.children[task.ParentID] = append(t.children[task.ParentID], task.ID)
	}

	t.tasks[task.ID] = task
	t.order = append(t.order, task.ID)
	return nil
}

// GetTask returns a task by ID, or nil.
func (t *TaskTree) GetTask(id string) *models.Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tasks[id]
}

// Tasks returns all tasks in creation order.
func (t *TaskTree) Tasks() []*models.Task {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*models.Task, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.tasks[id])
	}
	return out
}

// Size returns the number of tasks in the tree.
func (t *TaskTree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tasks)
}

// ReadyTasks returns the tasks that can be scheduled right now, in creation
// order: pending tasks whose children are all resolved.
func (t *TaskTree) ReadyTasks() []*models.Task {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ready []*models.Task
	for _, id := range t.order {
		task := t.tasks[id]
		if task.Status != models.TaskStatusPending {
			continue
		}
		if t.childrenResolvedLocked(id) {
			ready = append(ready, task)
		}
	}
	return ready
}

// childrenResolvedLocked reports whether every child of the task is
// resolved: completed, or failed off the critical path. Caller holds t.mu.
func (t *TaskTree) childrenResolvedLocked(id string) bool {
	for _, childID := range t.children[id] {
		child := t.tasks[childID]
		switch child.Status {
		case models.TaskStatusCompleted:
		case models.TaskStatusFailed:
			if child.Critical {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// PropagateFailure handles a task entering the failed state. A failed
// critical task fails its ancestors up the tree; a non-critical failure
// prunes only its own branch. Returns the ancestor tasks that were failed,
// outermost last, so the caller can persist and announce them.
func (t *TaskTree) PropagateFailure(taskID string) []*models.Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	if !ok || !task.Critical {
		return nil
	}

	var failed []*models.Task
	for parentID := task.ParentID; parentID != ""; {
		parent, ok := t.tasks[parentID]
		if !ok || parent.Status.Terminal() {
			break
		}
		debugLog("[tree] critical failure of %s fails ancestor %s", taskID, parentID)
		parent.Status = models.TaskStatusFailed
		parent.Reason = fmt.Sprintf("critical subtask %s failed", taskID)
		failed = append(failed, parent)

		if !parent.Critical {
			// The chain stops where the path stops being critical.
			break
		}
		parentID = parent.ParentID
	}
	return failed
}

// Roots returns the root tasks in creation order.
func (t *TaskTree) Roots() []*models.Task {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var roots []*models.Task
	for _, id := range t.order {
		if t.tasks[id].ParentID == "" {
			roots = append(roots, t.tasks[id])
		}
	}
	return roots
}

// Outcome reports whether all work is finished and whether it succeeded.
// done is true when every root is terminal. failed is true only when a
// critical root has failed: deeper critical failures either propagate to a
// root through PropagateFailure or are absorbed by a non-critical ancestor,
// and an absorbed failure leaves the rest of the mission runnable.
func (t *TaskTree) Outcome() (done, failed bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	done = true
	for _, id := range t.order {
		task := t.tasks[id]
		if task.ParentID != "" {
			continue
		}
		if task.Status == models.TaskStatusFailed && task.Critical {
			failed = true
		}
		if !task.Status.Terminal() {
			done = false
		}
	}
	// A fatal failure resolves the run even if unrelated roots are open.
	if failed {
		done = true
	}
	return done, failed
}
