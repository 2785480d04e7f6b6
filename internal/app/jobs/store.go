package jobs

import (
	"context"
	"time"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// CreateOptions carries the initial fields recorded when a job is created.
type CreateOptions struct {
	SessionID      string
	Query          string
	OwnerUserID    string
	OwnerSessionID string
	IdempotencyKey string
}

// Store is the ownership-tagged, TTL-bounded record of in-flight and
// completed search jobs. It is the only mutable state shared across
// requests.
//
// Write semantics: operations on an unknown or expired requestId log a
// warning and return nil; they never fail the pipeline. Backend errors from
// the persistent implementation do propagate. Progress is monotonic: the
// writer stores max(existing, new). Terminal statuses are final.
type Store interface {
	Create(ctx context.Context, requestID string, opts CreateOptions) error
	SetStatus(ctx context.Context, requestID string, status models.JobStatus, progress *int) error
	UpdateHeartbeat(ctx context.Context, requestID string) error
	SetResult(ctx context.Context, requestID string, result *models.SearchResponse) error
	SetError(ctx context.Context, requestID, code, message, errorType string) error

	// SetStopped marks a still-running job DONE_STOPPED, recording why. A
	// terminal job is left untouched.
	SetStopped(ctx context.Context, requestID, reason string) error

	// Getters return (nil, nil) for unknown or TTL-expired records; the TTL
	// check is performed on read and lazily purges.
	GetJob(ctx context.Context, requestID string) (*models.Job, error)
	GetStatus(ctx context.Context, requestID string) (*models.Job, error)
	GetResult(ctx context.Context, requestID string) (*models.SearchResponse, error)

	// FindByIdempotencyKey returns the job iff it is RUNNING (any age within
	// TTL) or DONE_SUCCESS with updatedAt inside freshWindow. Stale index
	// entries are purged.
	FindByIdempotencyKey(ctx context.Context, key string, freshWindow time.Duration) (*models.Job, error)

	// SetCandidatePool attaches the raw provider fetch to the job.
	// GetCandidatePool verifies ownership: a sessionID mismatch returns nil
	// and is logged, never raised.
	SetCandidatePool(ctx context.Context, requestID string, pool *models.CandidatePool) error
	GetCandidatePool(ctx context.Context, requestID, sessionID string) (*models.CandidatePool, error)

	// GetRunningJobs enumerates RUNNING jobs, for the shutdown sweep.
	GetRunningJobs(ctx context.Context) ([]*models.Job, error)

	Close() error
}

// IntPtr is a small helper for optional progress arguments.
func IntPtr(v int) *int { return &v }
