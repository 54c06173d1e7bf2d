package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Badsnus/mediashare-bot/internal/domain/common/errorz"
	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
	"github.com/Badsnus/mediashare-bot/internal/domain/plans"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type entitlementStorage interface {
	GetByUserID(ctx context.Context, userID int64) (*entity.Entitlement, error)
	GetByEmail(ctx context.Context, email string) (*entity.Entitlement, error)
	GetActive(ctx context.Context) ([]entity.Entitlement, error)
	CountActive(ctx context.Context) (int64, error)
	CreateWithinCapacity(ctx context.Context, entitlement *entity.Entitlement, capacity int64) (*entity.Entitlement, error)
	Update(ctx context.Context, entitlement *entity.Entitlement) (*entity.Entitlement, error)
	Delete(ctx context.Context, id uint) error
	Archive(ctx context.Context, id uint, status entity.ShareStatus) error
}

type paymentStorage interface {
	GetActiveUnpaid(ctx context.Context, userID int64) (*entity.Payment, error)
	Create(ctx context.Context, payment *entity.Payment) (*entity.Payment, error)
	MarkPaid(ctx context.Context, id uint) error
	DeleteByInvoice(ctx context.Context, userID int64, invoiceID string) error
	DeleteActiveByUserID(ctx context.Context, userID int64) (int64, error)
}

type invoiceGateway interface {
	CreateCustomer(ctx context.Context, email string) (string, error)
	CreateInvoiceItem(ctx context.Context, customerID, priceRef string) error
	FinalizeInvoice(ctx context.Context, customerID string) (entity.Invoice, error)
	InvoiceStatus(ctx context.Context, invoiceID string) (entity.InvoiceStatus, error)
	VoidInvoice(ctx context.Context, invoiceID string) error
}

type accessGranter interface {
	accessRevoker
	InvitePlan(ctx context.Context, email string, plan plans.Plan) error
}

type roleNotifier interface {
	notifier
	GrantRole(ctx context.Context, userID int64, roleID int64) error
}

// PendingInvoiceError is returned when the user tries to open a second invoice
type PendingInvoiceError struct {
	Payment entity.Payment
}

func (e *PendingInvoiceError) Error() string {
	return fmt.Sprintf("pending invoice %s for plan %s", e.Payment.InvoiceID, e.Payment.PlanName)
}

func (e *PendingInvoiceError) Unwrap() error {
	return errorz.ErrPendingInvoiceExists
}

// Status is the subscription summary shown to the user
type Status struct {
	Plan          string
	Email         string
	ExpiresAt     *time.Time
	RemainingDays int
	ShareStatus   entity.ShareStatus
}

// Completion is the result of a confirmed payment
type Completion struct {
	Entitlement *entity.Entitlement
	Renewed     bool
}

type ReinviteSummary struct {
	Total   int
	Invited int
	Skipped int
	Failed  int
}

type SubscriptionOptions struct {
	Capacity  int64
	GrantDays int
	Now       func() time.Time
	Journal   journal
}

type SubscriptionService struct {
	entitlements entitlementStorage
	payments     paymentStorage
	gateway      invoiceGateway
	access       accessGranter
	notifier     roleNotifier
	catalog      *plans.Catalog
	logger       *types.Logger

	capacity  int64
	grantDays int
	now       func() time.Time
	journal   journal
}

func NewSubscriptionService(
	entitlements entitlementStorage,
	payments paymentStorage,
	gateway invoiceGateway,
	access accessGranter,
	notifier roleNotifier,
	catalog *plans.Catalog,
	logger *types.Logger,
	opts SubscriptionOptions,
) *SubscriptionService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GrantDays == 0 {
		opts.GrantDays = 30
	}
	if opts.Capacity == 0 {
		opts.Capacity = 100
	}

	return &SubscriptionService{
		entitlements: entitlements,
		payments:     payments,
		gateway:      gateway,
		access:       access,
		notifier:     notifier,
		catalog:      catalog,
		logger:       logger,
		capacity:     opts.Capacity,
		grantDays:    opts.GrantDays,
		now:          opts.Now,
		journal:      opts.Journal,
	}
}

// StartPurchase issues the first invoice of a new subscriber.
// It is rejected without any state change if the user is already subscribed or all seats are taken.
func (s *SubscriptionService) StartPurchase(ctx context.Context, userID int64, email, planName string) (*entity.Payment, error) {
	plan, ok := s.catalog.ByName(planName)
	if !ok {
		return nil, fmt.Errorf("plan %q: %w", planName, errorz.ErrPlanNotFound)
	}

	if _, err := s.entitlements.GetByUserID(ctx, userID); err == nil {
		return nil, errorz.ErrAlreadySubscribed
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if _, err := s.entitlements.GetByEmail(ctx, email); err == nil {
		return nil, errorz.ErrAlreadySubscribed
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	active, err := s.entitlements.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	if active >= s.capacity {
		s.logger.Infof("(user: %d) purchase rejected, capacity reached (%d/%d)", userID, active, s.capacity)
		return nil, errorz.ErrCapacityReached
	}

	return s.Donate(ctx, userID, email, plan.Name, plan.OnetimePriceRef)
}

// Donate creates and finalizes an invoice for the plan and stores it as the user's actionable invoice.
// A user holds at most one unpaid invoice: a second attempt returns *PendingInvoiceError.
func (s *SubscriptionService) Donate(ctx context.Context, userID int64, email, planName, priceRef string) (*entity.Payment, error) {
	existing, err := s.payments.GetActiveUnpaid(ctx, userID)
	if err == nil {
		return existing, &PendingInvoiceError{Payment: *existing}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	customerID, err := s.gateway.CreateCustomer(ctx, email)
	if err != nil {
		return nil, err
	}
	if err = s.gateway.CreateInvoiceItem(ctx, customerID, priceRef); err != nil {
		return nil, err
	}
	invoice, err := s.gateway.FinalizeInvoice(ctx, customerID)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.Create(ctx, &entity.Payment{
		UserID:     userID,
		Email:      email,
		InvoiceID:  invoice.ID,
		InvoiceURL: invoice.HostedURL,
		Active:     true,
		PlanName:   planName,
		PlanRef:    priceRef,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("(user: %d) invoice issued (invoice_id=%s, plan=%s)", userID, invoice.ID, planName)
	return payment, nil
}

// AddTime issues a renewal invoice for the plan the user already holds.
func (s *SubscriptionService) AddTime(ctx context.Context, userID int64) (*entity.Payment, error) {
	record, err := s.activeRecord(ctx, userID)
	if err != nil {
		return nil, err
	}

	plan, ok := s.catalog.ByName(record.Plan())
	if !ok {
		return nil, fmt.Errorf("plan %q: %w", record.Plan(), errorz.ErrPlanNotFound)
	}
	priceRef := plan.OnetimePriceRef
	if record.PlanRef != nil && *record.PlanRef != "" {
		priceRef = *record.PlanRef
	}

	return s.Donate(ctx, userID, record.Email, plan.Name, priceRef)
}

// CompletePayment provisions or renews the entitlement once the gateway reports the invoice as paid.
func (s *SubscriptionService) CompletePayment(ctx context.Context, userID int64) (Completion, error) {
	payment, err := s.pendingPayment(ctx, userID)
	if err != nil {
		return Completion{}, err
	}

	status, err := s.gateway.InvoiceStatus(ctx, payment.InvoiceID)
	if err != nil {
		return Completion{}, err
	}
	if status != entity.InvoicePaid {
		return Completion{}, errorz.ErrInvoiceNotPaid
	}

	record, err := s.entitlements.GetByEmail(ctx, payment.Email)
	switch {
	case err == nil:
		if err = s.markPaid(ctx, payment); err != nil {
			return Completion{}, err
		}
		return s.renew(ctx, record, payment)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.provision(ctx, payment)
	default:
		return Completion{}, err
	}
}

func (s *SubscriptionService) markPaid(ctx context.Context, payment *entity.Payment) error {
	if err := s.payments.MarkPaid(ctx, payment.ID); err != nil {
		return err
	}
	s.logger.Infof("(user: %d) invoice paid (invoice_id=%s)", payment.UserID, payment.InvoiceID)
	return nil
}

func (s *SubscriptionService) renew(ctx context.Context, record *entity.Entitlement, payment *entity.Payment) (Completion, error) {
	record.Renew(s.now(), s.grantDays)
	if record.PlanName == nil {
		record.PlanName = &payment.PlanName
		record.PlanRef = &payment.PlanRef
	}

	record, err := s.entitlements.Update(ctx, record)
	if err != nil {
		return Completion{}, err
	}

	s.logger.Infof("(user: %d) entitlement renewed until %s", record.UserID, record.ExpiresAt.Format(time.RFC3339))
	s.record(ctx, *record, entity.JournalRenewed, fmt.Sprintf("%d days", s.grantDays))
	return Completion{Entitlement: record, Renewed: true}, nil
}

func (s *SubscriptionService) provision(ctx context.Context, payment *entity.Payment) (Completion, error) {
	plan, ok := s.catalog.ByName(payment.PlanName)
	if !ok {
		return Completion{}, fmt.Errorf("plan %q: %w", payment.PlanName, errorz.ErrPlanNotFound)
	}

	expiresAt := s.now().Add(time.Duration(s.grantDays) * day)
	record, err := s.entitlements.CreateWithinCapacity(ctx, &entity.Entitlement{
		UserID:            payment.UserID,
		Email:             payment.Email,
		PlanName:          &plan.Name,
		PlanRef:           &payment.PlanRef,
		ExpiresAt:         &expiresAt,
		SentNotifications: pq.Int64Array{},
		ShareStatus:       entity.SharePending,
	}, s.capacity)
	if err != nil {
		notice := RecordNotice{UserID: payment.UserID, Email: payment.Email, Plan: plan.Name, Error: err.Error()}
		s.notifier.NotifyOperator(ctx, "operator_provision_failed", notice)
		return Completion{}, err
	}

	// the payment stays active until the seat is taken, so a rejected completion can be retried
	if err = s.markPaid(ctx, payment); err != nil {
		if errDelete := s.entitlements.Delete(ctx, record.ID); errDelete != nil {
			s.logger.Errorf("(user: %d) failed to roll back entitlement %d: %v", record.UserID, record.ID, errDelete)
		}
		return Completion{}, err
	}
	s.record(ctx, *record, entity.JournalCreated, fmt.Sprintf("%d days", s.grantDays))

	// the record is kept on failure so that the user can retry with /migrate
	if err = s.access.InvitePlan(ctx, record.Email, plan); err != nil {
		s.logger.Errorf("(user: %d) failed to invite to media server: %v", record.UserID, err)
		notice := RecordNotice{UserID: record.UserID, Email: record.Email, Plan: plan.Name, Error: err.Error()}
		s.notifier.NotifyOperator(ctx, "operator_provision_failed", notice)
		return Completion{Entitlement: record}, err
	}

	record.ShareStatus = entity.ShareActive
	if _, err = s.entitlements.Update(ctx, record); err != nil {
		s.logger.Errorf("(user: %d) failed to update share status: %v", record.UserID, err)
	}

	if err = s.notifier.GrantRole(ctx, record.UserID, plan.RoleID); err != nil {
		s.logger.Errorf("(user: %d) failed to grant role: %v", record.UserID, err)
		notice := RecordNotice{UserID: record.UserID, Email: record.Email, Plan: plan.Name, Error: err.Error()}
		s.notifier.NotifyOperator(ctx, "operator_role_failed", notice)
	}

	s.logger.Infof("(user: %d) entitlement created (plan=%s)", record.UserID, plan.Name)
	return Completion{Entitlement: record}, nil
}

// CancelPayment voids the pending invoice of the user unless it has been paid already.
func (s *SubscriptionService) CancelPayment(ctx context.Context, userID int64) error {
	payment, err := s.pendingPayment(ctx, userID)
	if err != nil {
		return err
	}

	status, err := s.gateway.InvoiceStatus(ctx, payment.InvoiceID)
	if err != nil {
		return err
	}
	if status == entity.InvoicePaid {
		return errorz.ErrInvoiceAlreadyPaid
	}

	if err = s.gateway.VoidInvoice(ctx, payment.InvoiceID); err != nil {
		return err
	}
	if err = s.payments.DeleteByInvoice(ctx, userID, payment.InvoiceID); err != nil {
		return err
	}

	s.logger.Infof("(user: %d) invoice cancelled (invoice_id=%s)", userID, payment.InvoiceID)
	return nil
}

func (s *SubscriptionService) Status(ctx context.Context, userID int64) (Status, error) {
	record, err := s.activeRecord(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return s.status(record), nil
}

func (s *SubscriptionService) status(record *entity.Entitlement) Status {
	status := Status{
		Plan:        record.Plan(),
		Email:       record.Email,
		ExpiresAt:   record.ExpiresAt,
		ShareStatus: record.ShareStatus,
	}
	if record.ExpiresAt != nil {
		status.RemainingDays = RemainingDays(*record.ExpiresAt, s.now())
	}
	return status
}

// Migrate re-sends the media server invite and grants the plan role again.
func (s *SubscriptionService) Migrate(ctx context.Context, userID int64) (Status, error) {
	record, err := s.activeRecord(ctx, userID)
	if err != nil {
		return Status{}, err
	}

	plan, ok := s.catalog.ByName(record.Plan())
	if !ok {
		return Status{}, fmt.Errorf("plan %q: %w", record.Plan(), errorz.ErrPlanNotFound)
	}

	if err = s.access.InvitePlan(ctx, record.Email, plan); err != nil {
		return Status{}, err
	}
	if err = s.notifier.GrantRole(ctx, record.UserID, plan.RoleID); err != nil {
		return Status{}, err
	}

	if record.ShareStatus != entity.ShareActive {
		record.ShareStatus = entity.ShareActive
		if _, err = s.entitlements.Update(ctx, record); err != nil {
			s.logger.Errorf("(user: %d) failed to update share status: %v", userID, err)
		}
	}

	s.logger.Infof("(user: %d) account migrated (plan=%s)", userID, plan.Name)
	return s.status(record), nil
}

// Remove revokes access of the user and archives the entitlement as removed manually.
// The record is archived even if some of the external calls fail.
func (s *SubscriptionService) Remove(ctx context.Context, userID int64) error {
	record, err := s.activeRecord(ctx, userID)
	if err != nil {
		return err
	}

	var errs []error
	outcome := RunFallback(ctx,
		FallbackStep{Name: stepRemoveFriend, Do: func(ctx context.Context) error { return s.access.Remove(ctx, record.Email) }},
		FallbackStep{Name: stepCancelInvite, Do: func(ctx context.Context) error { return s.access.CancelInvite(ctx, record.Email) }},
	)
	if err = outcome.Err(); err != nil {
		errs = append(errs, err)
	}

	if err = s.entitlements.Archive(ctx, record.ID, entity.ShareRemovedManually); err != nil {
		errs = append(errs, err)
	}

	if plan, ok := s.catalog.ByName(record.Plan()); ok {
		if err = s.notifier.RevokeRole(ctx, userID, plan.RoleID); err != nil {
			errs = append(errs, err)
		}
	} else {
		errs = append(errs, fmt.Errorf("plan %q: %w", record.Plan(), errorz.ErrRoleNotFound))
	}

	s.logger.Infof("(user: %d) entitlement removed manually (errors=%d)", userID, len(errs))
	s.record(ctx, *record, entity.JournalRemovedManually, "")
	return errors.Join(errs...)
}

// CancelPendingInvoice voids and deletes the actionable invoices of the user. Entitlements are not touched.
func (s *SubscriptionService) CancelPendingInvoice(ctx context.Context, userID int64) (int64, error) {
	payment, err := s.pendingPayment(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err = s.gateway.VoidInvoice(ctx, payment.InvoiceID); err != nil {
		s.logger.Warnf("(user: %d) failed to void invoice %s: %v", userID, payment.InvoiceID, err)
	}

	deleted, err := s.payments.DeleteActiveByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Infof("(user: %d) pending invoices deleted by admin (count=%d)", userID, deleted)
	return deleted, nil
}

// Reinvite re-sends the media server invite for every active entitlement with a known plan.
func (s *SubscriptionService) Reinvite(ctx context.Context) (ReinviteSummary, error) {
	records, err := s.entitlements.GetActive(ctx)
	if err != nil {
		return ReinviteSummary{}, err
	}

	summary := ReinviteSummary{Total: len(records)}
	for _, record := range records {
		plan, ok := s.catalog.ByName(record.Plan())
		if !ok {
			summary.Skipped++
			s.logger.Warnf("(user: %d) reinvite skipped, unknown plan %q", record.UserID, record.Plan())
			continue
		}
		if err = s.access.InvitePlan(ctx, record.Email, plan); err != nil {
			summary.Failed++
			s.logger.Errorf("(user: %d) reinvite failed: %v", record.UserID, err)
			continue
		}
		summary.Invited++
	}

	s.logger.Infof("Reinvite completed (total=%d, invited=%d, skipped=%d, failed=%d)",
		summary.Total, summary.Invited, summary.Skipped, summary.Failed)
	return summary, nil
}

func (s *SubscriptionService) activeRecord(ctx context.Context, userID int64) (*entity.Entitlement, error) {
	record, err := s.entitlements.GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errorz.ErrNotSubscribed
	}
	return record, err
}

func (s *SubscriptionService) pendingPayment(ctx context.Context, userID int64) (*entity.Payment, error) {
	payment, err := s.payments.GetActiveUnpaid(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errorz.ErrNoPendingInvoice
	}
	return payment, err
}

func (s *SubscriptionService) record(ctx context.Context, record entity.Entitlement, event entity.JournalEvent, detail string) {
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
