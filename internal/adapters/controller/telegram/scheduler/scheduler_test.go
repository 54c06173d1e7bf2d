package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Badsnus/mediashare-bot/internal/domain/common/errorz"
	"github.com/Badsnus/mediashare-bot/internal/domain/service"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingReconciler struct {
	runs atomic.Int32
	err  error
}

func (r *countingReconciler) Run(context.Context) (service.Summary, error) {
	r.runs.Add(1)
	return service.Summary{}, r.err
}

type countingStats struct {
	runs atomic.Int32
}

func (s *countingStats) Update(context.Context) error {
	s.runs.Add(1)
	return nil
}

func testLogger() *types.Logger {
	return &types.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func TestScheduler_StartRunsReconciliation(t *testing.T) {
	r := &countingReconciler{}
	s, err := New(r, nil, testLogger(), Options{ReconcileSchedule: "@every 1h"})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.runs.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_StatsJob(t *testing.T) {
	s, err := New(&countingReconciler{}, &countingStats{}, testLogger(), Options{
		ReconcileSchedule: "@every 12h",
		StatsSchedule:     "@every 12h",
	})
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	_, err := New(&countingReconciler{}, nil, testLogger(), Options{ReconcileSchedule: "every now and then"})
	assert.Error(t, err)
}

func TestScheduler_CycleInProgressIsNotAnError(t *testing.T) {
	r := &countingReconciler{err: errorz.ErrCycleInProgress}
	s, err := New(r, nil, testLogger(), Options{ReconcileSchedule: "@every 1h"})
	require.NoError(t, err)

	s.reconcile()
	assert.EqualValues(t, 1, r.runs.Load())
}
