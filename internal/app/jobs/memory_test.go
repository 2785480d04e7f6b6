package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

func newTestStore(t *testing.T) (*MemoryStore, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(10*time.Minute, zap.NewNop())
	s.now = func() time.Time { return now }
	t.Cleanup(func() { _ = s.Close() })
	return s, &now
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1", Query: "pizza"}))

	job, err := s.GetJob(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.StatusPending, job.Status)
	assert.Equal(t, "pizza", job.Query)
	assert.Equal(t, 0, job.Progress)
}

func TestDuplicateCreateIsSilent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1", Query: "first"}))
	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s2", Query: "second"}))

	job, err := s.GetJob(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "first", job.Query)
}

func TestProgressMonotonic(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1"}))

	require.NoError(t, s.SetStatus(ctx, "r1", models.StatusRunning, IntPtr(40)))
	require.NoError(t, s.SetStatus(ctx, "r1", models.StatusRunning, IntPtr(25)))

	job, _ := s.GetJob(ctx, "r1")
	assert.Equal(t, 40, job.Progress, "progress must never decrease")

	require.NoError(t, s.SetStatus(ctx, "r1", models.StatusRunning, IntPtr(60)))
	job, _ = s.GetJob(ctx, "r1")
	assert.Equal(t, 60, job.Progress)
}

func TestTerminalStatusIsFinal(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1"}))

	require.NoError(t, s.SetStatus(ctx, "r1", models.StatusDoneSuccess, nil))
	job, _ := s.GetJob(ctx, "r1")
	assert.Equal(t, 100, job.Progress, "terminal transition pins progress to 100")

	require.NoError(t, s.SetStatus(ctx, "r1", models.StatusRunning, IntPtr(50)))
	job, _ = s.GetJob(ctx, "r1")
	assert.Equal(t, models.StatusDoneSuccess, job.Status)
	assert.Equal(t, 100, job.Progress)
}

func TestSetErrorTransitionsToFailed(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1"}))

	require.NoError(t, s.SetError(ctx, "r1", "E_SEARCH", "search failed", models.ErrTypeSearchFailed))

	job, _ := s.GetJob(ctx, "r1")
	assert.Equal(t, models.StatusDoneFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, models.ErrTypeSearchFailed, job.Error.ErrorType)
}

func TestSetStoppedTransitionsRunningJob(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1"}))
	require.NoError(t, s.SetStatus(ctx, "r1", models.StatusRunning, IntPtr(40)))

	require.NoError(t, s.SetStopped(ctx, "r1", "server_shutdown"))

	job, _ := s.GetJob(ctx, "r1")
	assert.Equal(t, models.StatusDoneStopped, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.Error)
	assert.Equal(t, "server_shutdown", job.Error.Message)

	// A job that already finished keeps its status.
	require.NoError(t, s.Create(ctx, "r2", CreateOptions{SessionID: "s1"}))
	require.NoError(t, s.SetStatus(ctx, "r2", models.StatusDoneSuccess, nil))
	require.NoError(t, s.SetStopped(ctx, "r2", "server_shutdown"))
	job, _ = s.GetJob(ctx, "r2")
	assert.Equal(t, models.StatusDoneSuccess, job.Status)
}

func TestTTLVisibility(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1"}))

	*now = now.Add(9 * time.Minute)
	job, err := s.GetJob(ctx, "r1")
	require.NoError(t, err)
	assert.NotNil(t, job, "record is visible inside the TTL window")

	*now = now.Add(2 * time.Minute)
	job, err = s.GetJob(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, job, "record is invisible at or after TTL")

	result, err := s.GetResult(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestWritesToUnknownJobDoNotRaise(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.SetStatus(ctx, "missing", models.StatusRunning, IntPtr(40)))
	assert.NoError(t, s.UpdateHeartbeat(ctx, "missing"))
	assert.NoError(t, s.SetResult(ctx, "missing", &models.SearchResponse{}))
	assert.NoError(t, s.SetError(ctx, "missing", "E", "m", models.ErrTypeSearchFailed))
}

func TestHeartbeatOnlyTouchesRunning(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1"}))

	created, _ := s.GetJob(ctx, "r1")
	*now = now.Add(30 * time.Second)

	// PENDING: heartbeat is a no-op.
	require.NoError(t, s.UpdateHeartbeat(ctx, "r1"))
	job, _ := s.GetJob(ctx, "r1")
	assert.Equal(t, created.UpdatedAt, job.UpdatedAt)

	require.NoError(t, s.SetStatus(ctx, "r1", models.StatusRunning, nil))
	*now = now.Add(30 * time.Second)
	require.NoError(t, s.UpdateHeartbeat(ctx, "r1"))
	job, _ = s.GetJob(ctx, "r1")
	assert.Equal(t, *now, job.UpdatedAt)
}

func TestFindByIdempotencyKey(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()
	fresh := 5 * time.Second

	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1", IdempotencyKey: "k1"}))
	require.NoError(t, s.SetStatus(ctx, "r1", models.StatusRunning, nil))

	job, err := s.FindByIdempotencyKey(ctx, "k1", fresh)
	require.NoError(t, err)
	require.NotNil(t, job, "RUNNING job deduplicates at any age within TTL")
	assert.Equal(t, "r1", job.RequestID)

	// Completed recently: still deduplicates.
	require.NoError(t, s.SetStatus(ctx, "r1", models.StatusDoneSuccess, nil))
	*now = now.Add(3 * time.Second)
	job, err = s.FindByIdempotencyKey(ctx, "k1", fresh)
	require.NoError(t, err)
	assert.NotNil(t, job)

	// Outside the freshness window: stale index entry is purged.
	*now = now.Add(10 * time.Second)
	job, err = s.FindByIdempotencyKey(ctx, "k1", fresh)
	require.NoError(t, err)
	assert.Nil(t, job)
	_, indexed := s.idempotency["k1"]
	assert.False(t, indexed)
}

func TestFindByIdempotencyKeyPendingJobDedups(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// No status write yet: the job is still PENDING, mid-way between create
	// and the worker picking it up. A resubmission must reuse it.
	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1", IdempotencyKey: "k1"}))

	job, err := s.FindByIdempotencyKey(ctx, "k1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "r1", job.RequestID)
	assert.Equal(t, models.StatusPending, job.Status)
}

func TestFindByIdempotencyKeyFailedJobDoesNotDedup(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1", IdempotencyKey: "k1"}))
	require.NoError(t, s.SetError(ctx, "r1", "E", "boom", models.ErrTypeSearchFailed))

	job, err := s.FindByIdempotencyKey(ctx, "k1", 5*time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestCandidatePoolOwnership(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1"}))

	pool := &models.CandidatePool{
		Candidates: []models.PlaceResult{{ID: "p1", Name: "Falafel Gina"}},
		Route:      models.RouteTextSearch,
	}
	require.NoError(t, s.SetCandidatePool(ctx, "r1", pool))

	got, err := s.GetCandidatePool(ctx, "r1", "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "p1", got.Candidates[0].ID)

	// Another session must not see the pool.
	got, err = s.GetCandidatePool(ctx, "r1", "s2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetRunningJobs(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1"}))
	require.NoError(t, s.Create(ctx, "r2", CreateOptions{SessionID: "s1"}))
	require.NoError(t, s.Create(ctx, "r3", CreateOptions{SessionID: "s1"}))
	require.NoError(t, s.SetStatus(ctx, "r1", models.StatusRunning, nil))
	require.NoError(t, s.SetStatus(ctx, "r2", models.StatusRunning, nil))
	require.NoError(t, s.SetStatus(ctx, "r3", models.StatusDoneSuccess, nil))

	running, err := s.GetRunningJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, running, 2)
}

func TestSweepFailsStaleRunningJobs(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1"}))
	require.NoError(t, s.Create(ctx, "r2", CreateOptions{SessionID: "s1"}))
	require.NoError(t, s.SetStatus(ctx, "r1", models.StatusRunning, nil))
	require.NoError(t, s.SetStatus(ctx, "r2", models.StatusRunning, nil))

	// r2 keeps heartbeating, r1 goes silent.
	*now = now.Add(defaultStaleRunning)
	require.NoError(t, s.UpdateHeartbeat(ctx, "r2"))
	s.sweepOnce()

	job, _ := s.GetJob(ctx, "r1")
	assert.Equal(t, models.StatusDoneFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "STALE_RUNNING", job.Error.Code)
	assert.Equal(t, 100, job.Progress)

	job, _ = s.GetJob(ctx, "r2")
	assert.Equal(t, models.StatusRunning, job.Status)
}

func TestExpiredIdempotencyEntrySweep(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "r1", CreateOptions{SessionID: "s1", IdempotencyKey: "k1"}))

	*now = now.Add(11 * time.Minute)
	job, err := s.FindByIdempotencyKey(ctx, "k1", 5*time.Second)
	require.NoError(t, err)
	assert.Nil(t, job, "expired job does not deduplicate")
	_, indexed := s.idempotency["k1"]
	assert.False(t, indexed, "index entry is purged with the record")
}
