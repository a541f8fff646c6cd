package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"hubgraph/reconcile"
	"hubgraph/types"
)

// ErrJobNotFound is returned for unknown job ids
var ErrJobNotFound = errors.New("job not found")

// ErrJobExists is returned when registering a job id twice
var ErrJobExists = errors.New("job already registered")

const defaultMaxLogs = 50

// Manager is the registry of reconciliation jobs with thread-safe access. It implements
// reconcile.Sink so loops report straight into it.
type Manager struct {
	mu sync.RWMutex

	jobs    map[string]*job
	maxLogs int
	now     func() time.Time
}

type job struct {
	id        string
	hubID     string
	target    int
	loop      *reconcile.Loop
	createdAt time.Time

	snapshot *types.PoolSnapshot
	result   *reconcile.Result
	logs     []types.LogEntry
}

// NewManager creates an empty job registry
func NewManager() *Manager {
	return &Manager{
		jobs:    make(map[string]*job),
		maxLogs: defaultMaxLogs, // Keep last 50 log entries per job
		now:     time.Now,
	}
}

// Register adds a job before its loop is started
func (m *Manager) Register(loop *reconcile.Loop) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := loop.JobID()
	if _, ok := m.jobs[id]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, id)
	}

	session := loop.Session()
	j := &job{
		id:        id,
		hubID:     session.HubID(),
		target:    session.Target(),
		loop:      loop,
		createdAt: m.now(),
	}
	m.jobs[id] = j
	m.appendLog(j, fmt.Sprintf("Job created for hub %s, waiting for %d items", j.hubID, j.target))
	return nil
}

// Observe records the latest pool snapshot of a job (reconcile.Sink)
func (m *Manager) Observe(jobID string, snap types.PoolSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return
	}
	prev := 0
	if j.snapshot != nil {
		prev = j.snapshot.Filled
	}
	j.snapshot = &snap
	if snap.Filled != prev {
		m.appendLog(j, fmt.Sprintf("Filled %d/%d slots", snap.Filled, snap.Size))
	}
}

// Terminated records a job's final result (reconcile.Sink)
func (m *Manager) Terminated(jobID string, res reconcile.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return
	}
	snap := res.Snapshot
	j.snapshot = &snap
	j.result = &res

	if res.Err != nil {
		m.appendLog(j, fmt.Sprintf("Stopped early after %d polls: %v", res.Ticks, res.Err))
	} else {
		m.appendLog(j, fmt.Sprintf("Complete after %d polls", res.Ticks))
	}
}

// AddLog adds a log entry to a job (thread-safe)
func (m *Manager) AddLog(jobID, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if j, ok := m.jobs[jobID]; ok {
		m.appendLog(j, message)
	}
}

// appendLog must be called with the lock held
func (m *Manager) appendLog(j *job, message string) {
	j.logs = append(j.logs, types.LogEntry{Timestamp: m.now(), Message: message})
	if len(j.logs) > m.maxLogs {
		j.logs = j.logs[len(j.logs)-m.maxLogs:]
	}
}

// GetStatus returns a snapshot of one job (thread-safe)
func (m *Manager) GetStatus(jobID string) (types.JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return types.JobStatus{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return j.status(), nil
}

// List returns all jobs, oldest first
func (m *Manager) List() []types.JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.JobStatus, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.status())
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].JobID < out[b].JobID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// Cancel signals a job's stop token. Cancelling a finished job is a no-op.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if j.result == nil {
		m.appendLog(j, "Stop requested")
	}
	j.loop.Stop()
	return nil
}

// Loops returns the loops of all jobs that have not terminated yet
func (m *Manager) Loops() []*reconcile.Loop {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*reconcile.Loop
	for _, j := range m.jobs {
		if j.result == nil {
			out = append(out, j.loop)
		}
	}
	return out
}

// Purge removes terminated jobs that finished more than olderThan ago and returns how many
// were removed
func (m *Manager) Purge(olderThan time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-olderThan)
	removed := 0
	for id, j := range m.jobs {
		if j.result != nil && j.result.FinishedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of registered jobs
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// status must be called with the lock held
func (j *job) status() types.JobStatus {
	st := types.JobStatus{
		JobID:     j.id,
		HubID:     j.hubID,
		Target:    j.target,
		State:     j.loop.State(),
		Ticks:     j.loop.Ticks(),
		CreatedAt: j.createdAt,
		Logs:      append([]types.LogEntry{}, j.logs...), // Copy slice
	}

	snap := j.snapshot
	if snap == nil {
		// nothing observed yet: report the pre-allocated empty slots
		s := j.loop.Session().Snapshot()
		snap = &s
	}
	st.Snapshot = snap

	if j.result != nil {
		st.State = types.StateTerminated
		st.Outcome = j.result.Outcome
		st.Ticks = j.result.Ticks
		finished := j.result.FinishedAt
		st.FinishedAt = &finished
		if j.result.Err != nil {
			st.Error = j.result.Err.Error()
		}
	}
	return st
}
