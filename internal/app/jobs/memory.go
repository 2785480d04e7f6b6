package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// MemoryStore is the default in-process job store. Records expire after ttl
// and a background sweep purges them together with their idempotency index
// entries once a minute.
type MemoryStore struct {
	mu          sync.RWMutex
	jobs        map[string]*models.Job
	idempotency map[string]string // idempotency key -> requestID
	ttl         time.Duration
	// staleRunning is the heartbeat silence after which a RUNNING job is
	// failed by the sweep, so a crashed worker never leaves a poller hanging.
	staleRunning time.Duration
	logger       *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

const (
	sweepInterval       = time.Minute
	defaultStaleRunning = 90 * time.Second
)

func NewMemoryStore(ttl time.Duration, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MemoryStore{
		jobs:         make(map[string]*models.Job),
		idempotency:  make(map[string]string),
		ttl:          ttl,
		staleRunning: defaultStaleRunning,
		logger:       logger,
		stopCh:       make(chan struct{}),
		now:          time.Now,
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) Create(_ context.Context, requestID string, opts CreateOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[requestID]; exists {
		// Duplicate create is silent: the first writer wins.
		s.logger.Debug("job already exists, ignoring create", zap.String("request_id", requestID))
		return nil
	}

	now := s.now()
	job := &models.Job{
		RequestID:      requestID,
		SessionID:      opts.SessionID,
		Query:          opts.Query,
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		OwnerUserID:    opts.OwnerUserID,
		OwnerSessionID: opts.OwnerSessionID,
		IdempotencyKey: opts.IdempotencyKey,
	}
	s.jobs[requestID] = job
	if opts.IdempotencyKey != "" {
		s.idempotency[opts.IdempotencyKey] = requestID
	}
	return nil
}

func (s *MemoryStore) SetStatus(_ context.Context, requestID string, status models.JobStatus, progress *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.liveJobLocked(requestID)
	if job == nil {
		s.logger.Warn("setStatus on unknown job", zap.String("request_id", requestID))
		return nil
	}
	if job.Status.IsTerminal() {
		s.logger.Warn("setStatus on terminal job ignored",
			zap.String("request_id", requestID),
			zap.String("status", string(job.Status)))
		return nil
	}

	job.Status = status
	if progress != nil && *progress > job.Progress {
		job.Progress = *progress
	}
	if status.IsTerminal() {
		job.Progress = models.ProgressDone
	}
	job.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) UpdateHeartbeat(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.liveJobLocked(requestID)
	if job == nil {
		s.logger.Warn("heartbeat on unknown job", zap.String("request_id", requestID))
		return nil
	}
	// Heartbeats only make sense while the job is actively running.
	if job.Status != models.StatusRunning {
		return nil
	}
	job.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) SetResult(_ context.Context, requestID string, result *models.SearchResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.liveJobLocked(requestID)
	if job == nil {
		s.logger.Warn("setResult on unknown job", zap.String("request_id", requestID))
		return nil
	}
	job.Result = result
	job.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) SetError(_ context.Context, requestID, code, message, errorType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.liveJobLocked(requestID)
	if job == nil {
		s.logger.Warn("setError on unknown job", zap.String("request_id", requestID))
		return nil
	}
	if job.Status.IsTerminal() {
		return nil
	}
	job.Error = &models.JobError{Code: code, Message: message, ErrorType: errorType}
	job.Status = models.StatusDoneFailed
	job.Progress = models.ProgressDone
	job.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) SetStopped(_ context.Context, requestID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.liveJobLocked(requestID)
	if job == nil || job.Status.IsTerminal() {
		return nil
	}
	job.Error = &models.JobError{Code: "STOPPED", Message: reason, ErrorType: models.ErrTypeSearchFailed}
	job.Status = models.StatusDoneStopped
	job.Progress = models.ProgressDone
	job.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, requestID string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.liveJobLocked(requestID)
	if job == nil {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) GetStatus(ctx context.Context, requestID string) (*models.Job, error) {
	return s.GetJob(ctx, requestID)
}

func (s *MemoryStore) GetResult(_ context.Context, requestID string) (*models.SearchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.liveJobLocked(requestID)
	if job == nil {
		return nil, nil
	}
	return job.Result, nil
}

func (s *MemoryStore) FindByIdempotencyKey(_ context.Context, key string, freshWindow time.Duration) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requestID, ok := s.idempotency[key]
	if !ok {
		return nil, nil
	}
	job := s.liveJobLocked(requestID)
	if job == nil {
		delete(s.idempotency, key)
		return nil, nil
	}

	switch {
	// PENDING dedups alongside RUNNING: a job sits in PENDING between create
	// and the worker's first status write, and a resubmission racing through
	// that gap must reuse it rather than spawn a duplicate pipeline run.
	case job.Status == models.StatusRunning || job.Status == models.StatusPending:
		cp := *job
		return &cp, nil
	case job.Status == models.StatusDoneSuccess && s.now().Sub(job.UpdatedAt) <= freshWindow:
		cp := *job
		return &cp, nil
	default:
		// A stale or failed terminal job no longer deduplicates.
		delete(s.idempotency, key)
		return nil, nil
	}
}

func (s *MemoryStore) SetCandidatePool(_ context.Context, requestID string, pool *models.CandidatePool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.liveJobLocked(requestID)
	if job == nil {
		s.logger.Warn("setCandidatePool on unknown job", zap.String("request_id", requestID))
		return nil
	}
	job.CandidatePool = pool
	return nil
}

func (s *MemoryStore) GetCandidatePool(_ context.Context, requestID, sessionID string) (*models.CandidatePool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.liveJobLocked(requestID)
	if job == nil {
		return nil, nil
	}
	if job.SessionID != sessionID {
		// Ownership check: another session asking for this pool is rejected
		// quietly. This is the IDOR guard.
		s.logger.Warn("candidate pool ownership mismatch",
			zap.String("request_id", requestID))
		return nil, nil
	}
	return job.CandidatePool, nil
}

func (s *MemoryStore) GetRunningJobs(_ context.Context) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var running []*models.Job
	now := s.now()
	for _, job := range s.jobs {
		if now.Sub(job.CreatedAt) >= s.ttl {
			continue
		}
		if job.Status == models.StatusRunning {
			cp := *job
			running = append(running, &cp)
		}
	}
	return running, nil
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// liveJobLocked returns the job if present and unexpired, purging it lazily
// otherwise. Caller must hold the lock.
func (s *MemoryStore) liveJobLocked(requestID string) *models.Job {
	job, ok := s.jobs[requestID]
	if !ok {
		return nil
	}
	if s.now().Sub(job.CreatedAt) >= s.ttl {
		s.purgeLocked(requestID, job)
		return nil
	}
	return job
}

func (s *MemoryStore) purgeLocked(requestID string, job *models.Job) {
	delete(s.jobs, requestID)
	if job.IdempotencyKey != "" {
		if mapped, ok := s.idempotency[job.IdempotencyKey]; ok && mapped == requestID {
			delete(s.idempotency, job.IdempotencyKey)
		}
	}
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce()
		case <-s.stopCh:
			return
		}
	}
}

// sweepOnce purges expired jobs and fails RUNNING jobs whose heartbeat went
// silent past the stale threshold.
func (s *MemoryStore) sweepOnce() {
	s.mu.Lock()
	now := s.now()
	expired, stale := 0, 0
	for id, job := range s.jobs {
		if now.Sub(job.CreatedAt) >= s.ttl {
			s.purgeLocked(id, job)
			expired++
			continue
		}
		if job.Status == models.StatusRunning && s.staleRunning > 0 && now.Sub(job.UpdatedAt) >= s.staleRunning {
			job.Error = &models.JobError{
				Code:      "STALE_RUNNING",
				Message:   "search worker stopped responding",
				ErrorType: models.ErrTypeSearchFailed,
			}
			job.Status = models.StatusDoneFailed
			job.Progress = models.ProgressDone
			job.UpdatedAt = now
			stale++
		}
	}
	remaining := len(s.jobs)
	s.mu.Unlock()
	if expired > 0 || stale > 0 {
		s.logger.Info("job store sweep",
			zap.Int("expired", expired),
			zap.Int("stale_running_failed", stale),
			zap.Int("remaining", remaining))
	}
}
