package service

import (
	"slices"
	"time"

	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
)

const day = 24 * time.Hour

type LifecycleState int

const (
	StateCurrent LifecycleState = iota
	StateWarnDue
	StateExpired
	// StateUnprovisioned is a record without expiration (not paid yet or a legacy lifetime grant)
	StateUnprovisioned
)

func (s LifecycleState) String() string {
	switch s {
	case StateCurrent:
		return "current"
	case StateWarnDue:
		return "warn_due"
	case StateExpired:
		return "expired"
	case StateUnprovisioned:
		return "unprovisioned"
	default:
		return "unknown"
	}
}

type Decision struct {
	State         LifecycleState
	RemainingDays int
}

// RemainingDays is ceil((expiresAt - now) / 1 day). It is <= 0 once expiresAt <= now.
func RemainingDays(expiresAt, now time.Time) int {
	left := expiresAt.Sub(now)
	days := left / day
	if left%day > 0 {
		days++
	}
	return int(days)
}

// Evaluate computes the lifecycle state of an entitlement at now.
// A record is warn-due when the remaining days hit one of warnDays that was not notified yet.
func Evaluate(e entity.Entitlement, now time.Time, warnDays []int) Decision {
	if e.ExpiresAt == nil {
		return Decision{State: StateUnprovisioned}
	}

	remaining := RemainingDays(*e.ExpiresAt, now)
	if !e.ExpiresAt.After(now) {
		return Decision{State: StateExpired, RemainingDays: remaining}
	}

	if slices.Contains(warnDays, remaining) && !e.Notified(remaining) {
		return Decision{State: StateWarnDue, RemainingDays: remaining}
	}
	return Decision{State: StateCurrent, RemainingDays: remaining}
}
