package orchestrator

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

// DefaultMaxConcurrentTasks applies when a worker spec leaves capacity unset.
const DefaultMaxConcurrentTasks = 2

// Registry tracks a team's members and their workload. All mutations go
// through Assign and Release so workload and status never drift apart.
type Registry struct {
	mu      sync.RWMutex
	teamID  string
	members map[string]*models.Member
	// order preserves join order for deterministic tie-breaking.
	order []string
	now   func() time.Time
}

// NewRegistry creates an empty member registry for a team.
func NewRegistry(teamID string, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		teamID:  teamID,
		members: make(map[string]*models.Member),
		now:     now,
	}
}

// BuildRoster materializes a manager and one worker per spec. The roster
// must have between 3 and 5 workers; anything else is ErrInvalidTeamSize.
func (r *Registry) BuildRoster(specs []models.WorkerSpec) (*models.Member, []*models.Member, error) {
	if len(specs) < models.MinWorkers || len(specs) > models.MaxWorkers {
		return nil, nil, fmt.Errorf("%w: got %d worker specs", ErrInvalidTeamSize, len(specs))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	manager := &models.Member{
		ID:                 uuid.New().String(),
		TeamID:             r.teamID,
		Role:               models.RoleManager,
		Specialization:     "Manager",
		Status:             models.MemberStatusActive,
		MaxConcurrentTasks: len(specs), // a manager can review one task per worker
		JoinedAt:           now,
	}
	r.addLocked(manager)

	workers := make([]*models.Member, 0, len(specs))
	for i, spec := range specs {
		capacity := spec.MaxConcurrentTasks
		if capacity <= 0 {
			capacity = DefaultMaxConcurrentTasks
		}
		worker := &models.Member{
			ID:                 uuid.New().String(),
			TeamID:             r.teamID,
			Role:               models.RoleWorker,
			Specialization:     spec.Specialization,
			Skills:             spec.Skills,
			Status:             models.MemberStatusIdle,
			MaxConcurrentTasks: capacity,
			// Stagger join times so tie-breaking stays stable.
			JoinedAt: now.Add(time.Duration(i) * time.Microsecond),
		}
		r.addLocked(worker)
		workers = append(workers, worker)
	}
	return manager, workers, nil
}

// Restore loads existing members into the registry, e.g. when resuming a
// team from the store.
func (r *Registry) Restore(members []*models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range members {
		if m.TeamID != r.teamID {
			return fmt.Errorf("member %s belongs to team %s, registry is for %s", m.ID, m.TeamID, r.teamID)
		}
		r.addLocked(m)
	}
	return nil
}

func (r *Registry) addLocked(m *models.Member) {
	r.members[m.ID] = m
	r.order = append(r.order, m.ID)
}

// Get returns a member by ID, or nil.
func (r *Registry) Get(id string) *models.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[id]
}

// Manager returns the team's manager, or nil if the roster is empty.
func (r *Registry) Manager() *models.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if r.members[id].Role == models.RoleManager {
			return r.members[id]
		}
	}
	return nil
}

// Members returns all members in join order.
func (r *Registry) Members() []*models.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Member, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.members[id])
	}
	return out
}

// FindEligibleWorker picks the worker for a specialization: idle or active,
// with spare capacity. Capacity wins over the status flag; a nominally busy
// worker that has room still qualifies. Ties break by lowest workload, then
// earliest join time. Returns ErrNoEligibleWorker when nobody fits.
func (r *Registry) FindEligibleWorker(specialization string) (*models.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []*models.Member
	for _, id := range r.order {
		m := r.members[id]
		if m.Role != models.RoleWorker || m.Status == models.MemberStatusOffline {
			continue
		}
		if !m.HasCapacity() {
			continue
		}
		if specialization != "" && m.Specialization != specialization {
			continue
		}
		candidates = append(candidates, m)
	}

	if len(candidates) == 0 && specialization != "" {
		// Fall back to any available worker when the exact specialization
		// has no capacity.
		for _, id := range r.order {
			m := r.members[id]
			if m.Role == models.RoleWorker && m.Status != models.MemberStatusOffline && m.HasCapacity() {
				candidates = append(candidates, m)
			}
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: specialization %q", ErrNoEligibleWorker, specialization)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CurrentWorkload != candidates[j].CurrentWorkload {
			return candidates[i].CurrentWorkload < candidates[j].CurrentWorkload
		}
		return candidates[i].JoinedAt.Before(candidates[j].JoinedAt)
	})
	return candidates[0], nil
}

// Assign increments the worker's workload and flips status to busy when it
// hits capacity. ErrCapacityExceeded guards against double assignment.
func (r *Registry) Assign(memberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[memberID]
	if !ok {
		return fmt.Errorf("member %s not found", memberID)
	}
	if m.CurrentWorkload >= m.MaxConcurrentTasks {
		return fmt.Errorf("%w: member %s at %d/%d", ErrCapacityExceeded, memberID, m.CurrentWorkload, m.MaxConcurrentTasks)
	}

	m.CurrentWorkload++
	if m.CurrentWorkload >= m.MaxConcurrentTasks {
		m.Status = models.MemberStatusBusy
	} else {
		m.Status = models.MemberStatusActive
	}
	return nil
}

// Release decrements the worker's workload and restores idle status at zero.
func (r *Registry) Release(memberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[memberID]
	if !ok {
		return fmt.Errorf("member %s not found", memberID)
	}
	if m.CurrentWorkload <= 0 {
		return fmt.Errorf("member %s has no assignments to release", memberID)
	}

	m.CurrentWorkload--
	if m.CurrentWorkload == 0 {
		m.Status = models.MemberStatusIdle
	} else {
		m.Status = models.MemberStatusActive
	}
	return nil
}
