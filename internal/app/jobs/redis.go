package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// RedisStore persists jobs under search:job:{requestId} and idempotency
// pointers under search:idempotency:{key}. Every key carries the configured
// TTL at write time; Redis expiry stands in for the in-memory sweep.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

const (
	jobKeyPrefix         = "search:job:"
	idempotencyKeyPrefix = "search:idempotency:"
	scanPageSize         = 100
)

func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger}, nil
}

func (s *RedisStore) jobKey(requestID string) string { return jobKeyPrefix + requestID }

func (s *RedisStore) Create(ctx context.Context, requestID string, opts CreateOptions) error {
	now := time.Now()
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
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	// SETNX keeps the first writer on duplicate requestIds.
	created, err := s.client.SetNX(ctx, s.jobKey(requestID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	if !created {
		s.logger.Debug("job already exists, ignoring create", zap.String("request_id", requestID))
		return nil
	}
	if opts.IdempotencyKey != "" {
		if err := s.client.Set(ctx, idempotencyKeyPrefix+opts.IdempotencyKey, requestID, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to write idempotency pointer: %w", err)
		}
	}
	return nil
}

// mutate is the single-key read-modify-write every writer goes through.
func (s *RedisStore) mutate(ctx context.Context, requestID, op string, fn func(*models.Job) bool) error {
	job, err := s.load(ctx, requestID)
	if err != nil {
		return err
	}
	if job == nil {
		s.logger.Warn(op+" on unknown job", zap.String("request_id", requestID))
		return nil
	}
	if !fn(job) {
		return nil
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.client.Set(ctx, s.jobKey(requestID), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to write job: %w", err)
	}
	return nil
}

func (s *RedisStore) SetStatus(ctx context.Context, requestID string, status models.JobStatus, progress *int) error {
	return s.mutate(ctx, requestID, "setStatus", func(job *models.Job) bool {
		if job.Status.IsTerminal() {
			return false
		}
		job.Status = status
		if progress != nil && *progress > job.Progress {
			job.Progress = *progress
		}
		if status.IsTerminal() {
			job.Progress = models.ProgressDone
		}
		job.UpdatedAt = time.Now()
		return true
	})
}

func (s *RedisStore) UpdateHeartbeat(ctx context.Context, requestID string) error {
	return s.mutate(ctx, requestID, "heartbeat", func(job *models.Job) bool {
		if job.Status != models.StatusRunning {
			return false
		}
		job.UpdatedAt = time.Now()
		return true
	})
}

func (s *RedisStore) SetResult(ctx context.Context, requestID string, result *models.SearchResponse) error {
	return s.mutate(ctx, requestID, "setResult", func(job *models.Job) bool {
		job.Result = result
		job.UpdatedAt = time.Now()
		return true
	})
}

func (s *RedisStore) SetError(ctx context.Context, requestID, code, message, errorType string) error {
	return s.mutate(ctx, requestID, "setError", func(job *models.Job) bool {
		if job.Status.IsTerminal() {
			return false
		}
		job.Error = &models.JobError{Code: code, Message: message, ErrorType: errorType}
		job.Status = models.StatusDoneFailed
		job.Progress = models.ProgressDone
		job.UpdatedAt = time.Now()
		return true
	})
}

func (s *RedisStore) SetStopped(ctx context.Context, requestID, reason string) error {
	return s.mutate(ctx, requestID, "setStopped", func(job *models.Job) bool {
		if job.Status.IsTerminal() {
			return false
		}
		job.Error = &models.JobError{Code: "STOPPED", Message: reason, ErrorType: models.ErrTypeSearchFailed}
		job.Status = models.StatusDoneStopped
		job.Progress = models.ProgressDone
		job.UpdatedAt = time.Now()
		return true
	})
}

func (s *RedisStore) load(ctx context.Context, requestID string) (*models.Job, error) {
	data, err := s.client.Get(ctx, s.jobKey(requestID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (s *RedisStore) GetJob(ctx context.Context, requestID string) (*models.Job, error) {
	return s.load(ctx, requestID)
}

func (s *RedisStore) GetStatus(ctx context.Context, requestID string) (*models.Job, error) {
	return s.load(ctx, requestID)
}

func (s *RedisStore) GetResult(ctx context.Context, requestID string) (*models.SearchResponse, error) {
	job, err := s.load(ctx, requestID)
	if err != nil || job == nil {
		return nil, err
	}
	return job.Result, nil
}

func (s *RedisStore) FindByIdempotencyKey(ctx context.Context, key string, freshWindow time.Duration) (*models.Job, error) {
	requestID, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency pointer: %w", err)
	}

	job, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		_ = s.client.Del(ctx, idempotencyKeyPrefix+key).Err()
		return nil, nil
	}

	switch {
	// PENDING dedups alongside RUNNING: the create-to-first-status-write gap
	// must not let a racing resubmission spawn a duplicate pipeline run.
	case job.Status == models.StatusRunning || job.Status == models.StatusPending:
		return job, nil
	case job.Status == models.StatusDoneSuccess && time.Since(job.UpdatedAt) <= freshWindow:
		return job, nil
	default:
		_ = s.client.Del(ctx, idempotencyKeyPrefix+key).Err()
		return nil, nil
	}
}

func (s *RedisStore) SetCandidatePool(ctx context.Context, requestID string, pool *models.CandidatePool) error {
	return s.mutate(ctx, requestID, "setCandidatePool", func(job *models.Job) bool {
		job.CandidatePool = pool
		return true
	})
}

func (s *RedisStore) GetCandidatePool(ctx context.Context, requestID, sessionID string) (*models.CandidatePool, error) {
	job, err := s.load(ctx, requestID)
	if err != nil || job == nil {
		return nil, err
	}
	if job.SessionID != sessionID {
		s.logger.Warn("candidate pool ownership mismatch", zap.String("request_id", requestID))
		return nil, nil
	}
	return job.CandidatePool, nil
}

// GetRunningJobs walks the job keyspace with a cursor scan; a blocking KEYS
// enumeration is never issued.
func (s *RedisStore) GetRunningJobs(ctx context.Context) ([]*models.Job, error) {
	var running []*models.Job
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, jobKeyPrefix+"*", scanPageSize).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan jobs: %w", err)
		}
		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}
			var job models.Job
			if err := json.Unmarshal(data, &job); err != nil {
				continue
			}
			if job.Status == models.StatusRunning {
				running = append(running, &job)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return running, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
