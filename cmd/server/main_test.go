package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/infrastructure/config"
	"github.com/iho/goportfolio/internal/infrastructure/scheduler"
)

type stubRunner struct {
	calls int
	err   error
}

func (s *stubRunner) RunAgainstLatestSnapshot(context.Context) (*domain.ReconciliationRun, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ReconciliationRun{ID: "run-1"}, nil
}

func TestReconTolerance(t *testing.T) {
	tol, err := reconTolerance(&config.Config{ReconQuantityTolerance: 0, ReconValueTolerancePercent: 1.5})
	require.NoError(t, err)

	assert.True(t, tol.QuantityAbs.IsZero())
	assert.Equal(t, "1.5", tol.ValuePercent.String())

	_, err = reconTolerance(&config.Config{ReconValueTolerancePercent: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidTolerance)
}

func TestPositionConfig(t *testing.T) {
	cfg := positionConfig(&config.Config{
		XIRRMaxIterations:    50,
		XIRRTolerance:        1e-8,
		XIRRInitialGuess:     0.05,
		PortfolioConcurrency: 8,
		BaseCurrency:         "PLN",
	})

	assert.Equal(t, 50, cfg.XIRR.MaxIterations)
	assert.Equal(t, 1e-8, cfg.XIRR.Tolerance)
	assert.Equal(t, 0.05, cfg.XIRR.InitialGuess)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "PLN", cfg.BaseCurrency)
}

func TestNewRateLimiter(t *testing.T) {
	assert.Nil(t, newRateLimiter(&config.Config{RateLimitRPS: 0}))
	assert.NotNil(t, newRateLimiter(&config.Config{RateLimitRPS: 5, RateLimitBurst: 0}))
}

func TestRegisterJobs(t *testing.T) {
	runner := &stubRunner{}
	limiter := newRateLimiter(&config.Config{RateLimitRPS: 5, RateLimitBurst: 5})

	t.Run("valid schedule", func(t *testing.T) {
		sched := scheduler.New(zerolog.Nop(), time.Second)
		err := registerJobs(sched, &config.Config{ReconSchedule: "@daily"}, runner, limiter)
		assert.NoError(t, err)
	})

	t.Run("invalid schedule", func(t *testing.T) {
		sched := scheduler.New(zerolog.Nop(), time.Second)
		err := registerJobs(sched, &config.Config{ReconSchedule: "every day"}, runner, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RECON_SCHEDULE")
	})

	t.Run("nothing to schedule", func(t *testing.T) {
		sched := scheduler.New(zerolog.Nop(), time.Second)
		assert.NoError(t, registerJobs(sched, &config.Config{}, runner, nil))
	})
}

func TestReconcileLatest(t *testing.T) {
	ctx := context.Background()

	runner := &stubRunner{}
	require.NoError(t, reconcileLatest(runner)(ctx))
	assert.Equal(t, 1, runner.calls)

	runner = &stubRunner{err: domain.ErrSnapshotNotFound}
	assert.NoError(t, reconcileLatest(runner)(ctx))

	boom := errors.New("connection refused")
	runner = &stubRunner{err: boom}
	assert.ErrorIs(t, reconcileLatest(runner)(ctx), boom)
}
