package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Badsnus/mediashare-bot/internal/domain/common/errorz"
	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
	"github.com/Badsnus/mediashare-bot/internal/domain/plans"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
)

const (
	stepRemoveFriend = "remove_friend"
	stepCancelInvite = "cancel_invite"
)

type reconcileEntitlementStorage interface {
	GetActive(ctx context.Context) ([]entity.Entitlement, error)
	Archive(ctx context.Context, id uint, status entity.ShareStatus) error
	PushNotification(ctx context.Context, id uint, day int) (bool, error)
}

type accessRevoker interface {
	Remove(ctx context.Context, email string) error
	CancelInvite(ctx context.Context, email string) error
}

// notifier delivers layout texts (by key) to users and to the operator
type notifier interface {
	DirectMessage(ctx context.Context, userID int64, key string, data interface{}) error
	NotifyOperator(ctx context.Context, key string, data interface{})
	RevokeRole(ctx context.Context, userID int64, roleID int64) error
}

type expiryMailer interface {
	SendExpiredNotice(to string, planName string) error
}

type journal interface {
	Record(ctx context.Context, entry entity.JournalEntry) error
}

type cycleObserver interface {
	ObserveCycle(summary Summary, duration time.Duration)
}

// Summary is the outcome of one reconciliation cycle
type Summary struct {
	Total         int
	Expired       int
	Removed       int
	Warned        int
	Unprovisioned int
	Failures      int
}

// RecordNotice is the data passed to the notification texts of a single record
type RecordNotice struct {
	UserID int64
	Email  string
	Plan   string
	Days   int
	Error  string
}

type ReconcilerOptions struct {
	WarnDays []int
	Now      func() time.Time
	Mailer   expiryMailer
	Journal  journal
	Observer cycleObserver
}

// ReconcilerService periodically re-checks entitlements, warns users about the upcoming expiration
// and revokes access from expired ones.
type ReconcilerService struct {
	storage  reconcileEntitlementStorage
	access   accessRevoker
	notifier notifier
	catalog  *plans.Catalog
	logger   *types.Logger

	warnDays []int
	now      func() time.Time
	mailer   expiryMailer
	journal  journal
	observer cycleObserver

	running sync.Mutex
}

func NewReconcilerService(
	storage reconcileEntitlementStorage,
	access accessRevoker,
	notifier notifier,
	catalog *plans.Catalog,
	logger *types.Logger,
	opts ReconcilerOptions,
) *ReconcilerService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WarnDays == nil {
		opts.WarnDays = []int{5, 3, 1}
	}

	return &ReconcilerService{
		storage:  storage,
		access:   access,
		notifier: notifier,
		catalog:  catalog,
		logger:   logger,
		warnDays: opts.WarnDays,
		now:      opts.Now,
		mailer:   opts.Mailer,
		journal:  opts.Journal,
		observer: opts.Observer,
	}
}

// Run executes one reconciliation cycle. It always runs to completion;
// a failure on one record never stops processing of the others.
func (s *ReconcilerService) Run(ctx context.Context) (Summary, error) {
	if !s.running.TryLock() {
		return Summary{}, errorz.ErrCycleInProgress
	}
	defer s.running.Unlock()

	started := time.Now()
	s.logger.Info("Running subscription reconciliation cycle")

	records, err := s.storage.GetActive(ctx)
	if err != nil {
		s.logger.Errorf("failed to load entitlements: %v", err)
		s.notifier.NotifyOperator(ctx, "operator_reconcile_failed", RecordNotice{Error: err.Error()})
		return Summary{}, fmt.Errorf("load entitlements: %w", err)
	}

	summary := Summary{Total: len(records)}
	for _, record := range records {
		s.reconcileRecord(ctx, record, &summary)
	}

	s.logger.Infof(
		"Reconciliation cycle completed (total=%d, expired=%d, removed=%d, warned=%d, failures=%d)",
		summary.Total, summary.Expired, summary.Removed, summary.Warned, summary.Failures,
	)
	s.notifier.NotifyOperator(ctx, "operator_reconcile_summary", summary)
	if s.observer != nil {
		s.observer.ObserveCycle(summary, time.Since(started))
	}

	return summary, nil
}

func (s *ReconcilerService) reconcileRecord(ctx context.Context, record entity.Entitlement, summary *Summary) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("(user: %d) panic while reconciling entitlement %d: %v", record.UserID, record.ID, r)
			summary.Failures++
		}
	}()

	decision := Evaluate(record, s.now(), s.warnDays)
	s.logger.Debugf("(user: %d) entitlement %d is %s (remaining_days=%d)", record.UserID, record.ID, decision.State, decision.RemainingDays)

	switch decision.State {
	case StateExpired:
		summary.Expired++
		removed, failures := s.expire(ctx, record)
		if removed {
			summary.Removed++
		}
		summary.Failures += failures
	case StateWarnDue:
		warned, failures := s.warn(ctx, record, decision.RemainingDays)
		if warned {
			summary.Warned++
		}
		summary.Failures += failures
	case StateUnprovisioned:
		summary.Unprovisioned++
	}
}

// expire revokes access of an expired entitlement. removed reports whether the media share was revoked.
func (s *ReconcilerService) expire(ctx context.Context, record entity.Entitlement) (removed bool, failures int) {
	notice := RecordNotice{UserID: record.UserID, Email: record.Email, Plan: record.Plan()}
	s.logger.Infof("(user: %d) entitlement expired (plan=%s)", record.UserID, notice.Plan)
	s.notifier.NotifyOperator(ctx, "operator_subscription_expired", notice)

	outcome := RunFallback(ctx,
		FallbackStep{Name: stepRemoveFriend, Do: func(ctx context.Context) error { return s.access.Remove(ctx, record.Email) }},
		FallbackStep{Name: stepCancelInvite, Do: func(ctx context.Context) error { return s.access.CancelInvite(ctx, record.Email) }},
	)
	if err := outcome.Err(); err != nil {
		failures++
		s.logger.Errorf("(user: %d) failed to revoke media access: %v", record.UserID, err)
		s.notifier.NotifyOperator(ctx, "operator_revoke_failed", withError(notice, err))
		s.record(ctx, record, entity.JournalRevokeFailed, err.Error())
	} else {
		removed = true
		s.logger.Infof("(user: %d) media access revoked (step=%s)", record.UserID, outcome.Succeeded)
	}

	if err := s.storage.Archive(ctx, record.ID, entity.ShareLeftService); err != nil {
		failures++
		s.logger.Errorf("(user: %d) failed to archive entitlement %d: %v", record.UserID, record.ID, err)
		s.notifier.NotifyOperator(ctx, "operator_archive_failed", withError(notice, err))
	}

	if err := s.revokeRole(ctx, record); err != nil {
		failures++
		s.logger.Errorf("(user: %d) failed to revoke role: %v", record.UserID, err)
		s.notifier.NotifyOperator(ctx, "operator_role_failed", withError(notice, err))
	}

	if err := s.notifier.DirectMessage(ctx, record.UserID, "subscription_expired", notice); err != nil {
		failures++
		s.logger.Errorf("(user: %d) failed to send expiration message: %v", record.UserID, err)
		s.notifier.NotifyOperator(ctx, "operator_dm_failed", withError(notice, err))
	}

	if s.mailer != nil && record.Email != "" {
		if err := s.mailer.SendExpiredNotice(record.Email, notice.Plan); err != nil {
			s.logger.Errorf("(user: %d) failed to send expiration email: %v", record.UserID, err)
		}
	}

	s.record(ctx, record, entity.JournalExpired, "")
	return removed, failures
}

func (s *ReconcilerService) revokeRole(ctx context.Context, record entity.Entitlement) error {
	plan, ok := s.catalog.ByName(record.Plan())
	if !ok {
		return fmt.Errorf("plan %q: %w", record.Plan(), errorz.ErrRoleNotFound)
	}
	return s.notifier.RevokeRole(ctx, record.UserID, plan.RoleID)
}

// warn marks the threshold as sent and notifies the user. warned reports whether a new marker was stored.
func (s *ReconcilerService) warn(ctx context.Context, record entity.Entitlement, days int) (warned bool, failures int) {
	notice := RecordNotice{UserID: record.UserID, Email: record.Email, Plan: record.Plan(), Days: days}

	pushed, err := s.storage.PushNotification(ctx, record.ID, days)
	if err != nil {
		s.logger.Errorf("(user: %d) failed to store notification marker %d: %v", record.UserID, days, err)
		return false, 1
	}
	if !pushed {
		return false, 0
	}

	s.logger.Infof("(user: %d) sending expiration warning (remaining_days=%d)", record.UserID, days)
	if err = s.notifier.DirectMessage(ctx, record.UserID, "subscription_expiring", notice); err != nil {
		failures++
		s.logger.Errorf("(user: %d) failed to send expiration warning: %v", record.UserID, err)
		s.notifier.NotifyOperator(ctx, "operator_dm_failed", withError(notice, err))
	}

	s.record(ctx, record, entity.JournalWarned, fmt.Sprintf("%d days", days))
	return true, failures
}

func (s *ReconcilerService) record(ctx context.Context, record entity.Entitlement, event entity.JournalEvent, detail string) {
	if s.journal == nil {
		return
	}
	err := s.journal.Record(ctx, entity.JournalEntry{
		UserID:   record.UserID,
		Email:    record.Email,
		PlanName: record.Plan(),
		Event:    event,
		Detail:   detail,
	})
	if err != nil {
		s.logger.Warnf("(user: %d) failed to write journal entry %s: %v", record.UserID, event, err)
	}
}

func withError(notice RecordNotice, err error) RecordNotice {
	notice.Error = err.Error()
	return notice
}
