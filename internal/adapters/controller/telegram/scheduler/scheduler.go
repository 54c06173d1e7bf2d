package scheduler

import (
	"context"
	"errors"

	"github.com/Badsnus/mediashare-bot/internal/domain/common/errorz"
	"github.com/Badsnus/mediashare-bot/internal/domain/service"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	"github.com/robfig/cron/v3"
)

type reconciler interface {
	Run(ctx context.Context) (service.Summary, error)
}

type statsUpdater interface {
	Update(ctx context.Context) error
}

type Options struct {
	ReconcileSchedule string
	// StatsSchedule enables the stats job when not empty
	StatsSchedule string
}

// Scheduler runs the reconciliation loop and the library stats job on cron schedules
type Scheduler struct {
	cron       *cron.Cron
	reconciler reconciler
	stats      statsUpdater
	logger     *types.Logger
}

func New(reconciler reconciler, stats statsUpdater, logger *types.Logger, opts Options) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger}))),
		reconciler: reconciler,
		stats:      stats,
		logger:     logger,
	}

	if _, err := s.cron.AddFunc(opts.ReconcileSchedule, s.reconcile); err != nil {
		return nil, err
	}
	if opts.StatsSchedule != "" && stats != nil {
		if _, err := s.cron.AddFunc(opts.StatsSchedule, s.updateStats); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start runs the first reconciliation right away and then follows the schedule
func (s *Scheduler) Start() {
	s.logger.Infof("Starting scheduler (jobs=%d)", len(s.cron.Entries()))
	go s.reconcile()
	s.cron.Start()
}

// Stop waits for the running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) reconcile() {
	_, err := s.reconciler.Run(context.Background())
	switch {
	case errors.Is(err, errorz.ErrCycleInProgress):
		s.logger.Warn("Reconciliation skipped, previous cycle is still running")
	case err != nil:
		s.logger.Errorf("Reconciliation failed: %v", err)
	}
}

func (s *Scheduler) updateStats() {
	_ = s.stats.Update(context.Background())
}

// cronLogger adapts the zap logger to cron.Logger
type cronLogger struct {
	logger *types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
