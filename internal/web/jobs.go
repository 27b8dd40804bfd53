package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Job is one background run (import or drain) with its captured log lines.
type Job struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	State      JobState   `json:"state"`
	Error      string     `json:"error,omitempty"`
	Result     any        `json:"result,omitempty"`
	Logs       []string   `json:"logs"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

const jobLogCap = 500

// JobManager runs background jobs and retains their state in memory.
// State survives for the process lifetime only.
type JobManager struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	baseCtx context.Context
}

func NewJobManager(baseCtx context.Context) *JobManager {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &JobManager{jobs: make(map[string]*Job), baseCtx: baseCtx}
}

// Start launches run in a goroutine and returns a snapshot of the job.
// The run callback receives a log function that appends to the job's
// captured lines, capped at jobLogCap. The runner mutates the stored job
// under the manager lock, so callers must not hold a live pointer.
func (m *JobManager) Start(kind string, run func(ctx context.Context, log func(string)) (any, error)) Job {
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		State:     JobQueued,
		CreatedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.jobs[job.ID] = job
	snapshot := copyJob(job)
	m.mu.Unlock()

	go func() {
		m.setState(job.ID, JobRunning, "", nil)
		result, err := run(m.baseCtx, func(line string) { m.appendLog(job.ID, line) })
		if err != nil {
			m.setState(job.ID, JobFailed, err.Error(), nil)
			return
		}
		m.setState(job.ID, JobDone, "", result)
	}()

	return snapshot
}

// Get returns a copy of the job so callers never race the runner.
func (m *JobManager) Get(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return copyJob(job), true
}

func (m *JobManager) setState(id string, state JobState, errMessage string, result any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	job.State = state
	job.Error = errMessage
	if result != nil {
		job.Result = result
	}
	if state == JobDone || state == JobFailed {
		now := time.Now().UTC()
		job.FinishedAt = &now
	}
}

func (m *JobManager) appendLog(id, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	job.Logs = append(job.Logs, line)
	if len(job.Logs) > jobLogCap {
		job.Logs = job.Logs[len(job.Logs)-jobLogCap:]
	}
}

func copyJob(job *Job) Job {
	out := *job
	out.Logs = append([]string(nil), job.Logs...)
	return out
}
