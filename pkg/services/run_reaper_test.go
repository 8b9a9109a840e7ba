package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

func TestStaleRunReaper_Sweep(t *testing.T) {
	repo := newMockRunRepository()
	audit := &mockAuditService{}
	cfg := testDataToolsConfig()

	stale := &models.Run{Kind: models.RunKindComparison, LeftEnvironment: "dev", RightEnvironment: "prod"}
	require.NoError(t, repo.Create(context.Background(), stale))
	repo.markStarted(stale.ID, time.Now())

	reaper := NewStaleRunReaper(repo, audit, cfg, zap.NewNop())

	n, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a fresh run is not stale")
	assert.Empty(t, audit.recorded())

	reaper.now = func() time.Time { return time.Now().Add(cfg.StaleAfter() + time.Minute) }

	n, err = reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	run, err := repo.Get(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusError, run.Status)
	assert.Equal(t, "run timed out: still pending after 2m0s", *run.ErrorMessage)
	assert.Equal(t, []string{models.AuditActionStaleRunsExpired}, audit.recorded())
	assert.Equal(t, []string{stale.ID.String()}, audit.details[0]["run_ids"])
}

func TestStaleRunReaper_SweepQueuedRunsUseQueueWait(t *testing.T) {
	repo := newMockRunRepository()
	audit := &mockAuditService{}
	cfg := testDataToolsConfig()

	ctx := context.Background()
	queued := &models.Run{Kind: models.RunKindComparison, LeftEnvironment: "dev", RightEnvironment: "prod"}
	started := &models.Run{Kind: models.RunKindValidation, LeftEnvironment: "dev", RightEnvironment: "dev"}
	require.NoError(t, repo.Create(ctx, queued))
	require.NoError(t, repo.Create(ctx, started))
	repo.markStarted(started.ID, time.Now())

	reaper := NewStaleRunReaper(repo, audit, cfg, zap.NewNop())

	// Past run_timeout plus grace but inside max_queue_wait: only the started run is stale.
	reaper.now = func() time.Time { return time.Now().Add(cfg.StaleAfter() + time.Minute) }
	n, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.RunStatusPending, repo.status(queued.ID))
	assert.Equal(t, models.RunStatusError, repo.status(started.ID))

	reaper.now = func() time.Time { return time.Now().Add(cfg.MaxQueueWait + time.Minute) }
	n, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	run, err := repo.Get(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusError, run.Status)
	assert.Equal(t, "run expired: not started within 1h0m0s", *run.ErrorMessage)
}

func TestStaleRunReaper_StartRejectsBadSchedule(t *testing.T) {
	cfg := testDataToolsConfig()
	cfg.StaleSweepSchedule = "every now and then"

	reaper := NewStaleRunReaper(newMockRunRepository(), &mockAuditService{}, cfg, zap.NewNop())
	assert.Error(t, reaper.Start())
}

func TestStaleRunReaper_StartStop(t *testing.T) {
	reaper := NewStaleRunReaper(newMockRunRepository(), &mockAuditService{}, testDataToolsConfig(), zap.NewNop())
	require.NoError(t, reaper.Start())
	reaper.Stop()
}
