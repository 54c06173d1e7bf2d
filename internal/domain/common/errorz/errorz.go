package errorz

import "errors"

var (
	ErrInvalidCallbackData = errors.New("invalid callback data")
	ErrForbidden           = errors.New("forbidden")

	ErrCapacityReached      = errors.New("capacity reached")
	ErrAlreadySubscribed    = errors.New("user already has an entitlement")
	ErrNotSubscribed        = errors.New("user has no entitlement")
	ErrPendingInvoiceExists = errors.New("pending invoice already exists")
	ErrNoPendingInvoice     = errors.New("no pending invoice")
	ErrInvoiceNotPaid       = errors.New("invoice is not paid yet")
	ErrInvoiceAlreadyPaid   = errors.New("invoice is already paid")

	ErrPlanNotFound   = errors.New("plan not found")
	ErrRoleNotFound   = errors.New("role not found")
	ErrMemberNotFound = errors.New("member not found")

	ErrAllFallbacksFailed = errors.New("all fallback steps failed")
	ErrCycleInProgress    = errors.New("reconciliation cycle already in progress")
)
