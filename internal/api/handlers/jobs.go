package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/profitmonk/high-intent-signals/internal/montecarlo"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
	"github.com/profitmonk/high-intent-signals/pkg/redis"
)

// JobStatus is the lifecycle of an asynchronous run
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Job is the public state of an asynchronous Monte Carlo run
type Job struct {
	ID         uuid.UUID  `json:"run_id"`
	Kind       string     `json:"kind"`
	Strategy   string     `json:"strategy"`
	Status     JobStatus  `json:"status"`
	Completed  int        `json:"completed"`
	Total      int        `json:"total"`
	Saved      bool       `json:"saved"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	summary *montecarlo.Summary
	cancel  context.CancelFunc
}

// Done reports whether the job reached a terminal state
func (j *Job) Done() bool {
	return j.Status != JobRunning
}

// DefaultJobRetention is how long a finished job stays in memory.
// Redis keeps the status longer (TTLDaily); the summary lives only here.
const DefaultJobRetention = time.Hour

// JobStore tracks in-process asynchronous runs and mirrors their status to Redis
// ⭐ SSOT: 비동기 실행 상태는 여기서만
type JobStore struct {
	mu        sync.RWMutex
	jobs      map[uuid.UUID]*Job
	cache     *redis.Cache // optional
	logger    *logger.Logger
	retention time.Duration
	now       func() time.Time
}

// JobStoreOption configures a JobStore
type JobStoreOption func(*JobStore)

// WithRetention sets how long finished jobs are kept in memory
func WithRetention(d time.Duration) JobStoreOption {
	return func(s *JobStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewJobStore creates a store; cache may be nil
func NewJobStore(cache *redis.Cache, log *logger.Logger, opts ...JobStoreOption) *JobStore {
	if log == nil {
		log = logger.Nop()
	}
	s := &JobStore{
		jobs:      make(map[uuid.UUID]*Job),
		cache:     cache,
		logger:    log,
		retention: DefaultJobRetention,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers a running job
func (s *JobStore) Start(kind, strategy string, cancel context.CancelFunc) Job {
	job := &Job{
		ID:        uuid.New(),
		Kind:      kind,
		Strategy:  strategy,
		Status:    JobRunning,
		StartedAt: s.now(),
		cancel:    cancel,
	}

	s.mu.Lock()
	s.pruneLocked()
	s.jobs[job.ID] = job
	snapshot := *job
	s.mu.Unlock()

	s.mirror(snapshot)
	return snapshot
}

// Progress updates the completion counters
func (s *JobStore) Progress(id uuid.UUID, completed, total int) (Job, bool) {
	return s.update(id, func(j *Job) {
		j.Completed, j.Total = completed, total
	})
}

// Finish records the terminal state of a job
func (s *JobStore) Finish(id uuid.UUID, summary *montecarlo.Summary, saved bool, err error) (Job, bool) {
	return s.update(id, func(j *Job) {
		now := s.now()
		j.FinishedAt = &now
		j.summary = summary
		j.Saved = saved
		j.cancel = nil
		switch {
		case err == nil:
			j.Status = JobCompleted
		case j.Status == JobCanceled || errors.Is(err, context.Canceled):
			j.Status = JobCanceled
			j.Error = err.Error()
		default:
			j.Status = JobFailed
			j.Error = err.Error()
		}
	})
}

// Cancel stops a running job
func (s *JobStore) Cancel(id uuid.UUID) (Job, bool) {
	var cancel context.CancelFunc
	job, ok := s.update(id, func(j *Job) {
		if j.Done() {
			return
		}
		cancel = j.cancel
		j.Status = JobCanceled
	})
	if cancel != nil {
		cancel()
	}
	return job, ok
}

// CancelAll stops every running job (server shutdown)
func (s *JobStore) CancelAll() {
	s.mu.RLock()
	ids := make([]uuid.UUID, 0, len(s.jobs))
	for id, j := range s.jobs {
		if !j.Done() {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.Cancel(id)
	}
}

// Get returns a job snapshot. Unknown ids fall back to the Redis mirror.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (Job, bool) {
	s.mu.RLock()
	j, ok := s.jobs[id]
	var snapshot Job
	if ok {
		snapshot = *j
	}
	s.mu.RUnlock()
	if ok {
		return snapshot, true
	}

	if s.cache == nil {
		return Job{}, false
	}
	var cached Job
	found, err := s.cache.Get(ctx, redis.RunStatusKey(id.String()), &cached)
	if err != nil {
		s.logger.WithError(err).Warn("Run status cache read failed")
	}
	return cached, found
}

// Summary returns the finished summary of a job held in memory
func (s *JobStore) Summary(id uuid.UUID) (*montecarlo.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok || j.summary == nil {
		return nil, false
	}
	return j.summary, true
}

// Len returns the number of jobs held in memory
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// pruneLocked drops finished jobs older than the retention window.
// 호출자가 s.mu 쓰기 잠금을 보유해야 함
func (s *JobStore) pruneLocked() {
	cutoff := s.now().Add(-s.retention)
	for id, j := range s.jobs {
		if j.Done() && j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

func (s *JobStore) update(id uuid.UUID, fn func(*Job)) (Job, bool) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return Job{}, false
	}
	fn(j)
	snapshot := *j
	s.mu.Unlock()

	s.mirror(snapshot)
	return snapshot, true
}

func (s *JobStore) mirror(job Job) {
	if s.cache == nil {
		return
	}
	ttl := redis.TTLShort
	if job.Done() {
		ttl = redis.TTLDaily
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, redis.RunStatusKey(job.ID.String()), job, ttl); err != nil {
		s.logger.WithError(err).Warn("Run status cache write failed")
	}
}
