package entity

import (
	"slices"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type ShareStatus string

const (
	SharePending         ShareStatus = "pending"
	ShareAccepted        ShareStatus = "accepted"
	ShareRejected        ShareStatus = "rejected"
	ShareActive          ShareStatus = "active"
	ShareRemovedManually ShareStatus = "removed_manually"
	ShareLeftService     ShareStatus = "left_service"
)

// Entitlement is a user's right to the shared libraries until ExpiresAt.
//
// A nil ExpiresAt means the record is not provisioned yet (or is a legacy lifetime grant).
// Archived records are kept for history and never count as a granted seat.
type Entitlement struct {
	gorm.Model
	UserID            int64         `gorm:"not null;index"`
	Email             string        `gorm:"not null;index"`
	PlanName          *string       `gorm:"default:null"`
	PlanRef           *string       `gorm:"default:null"`
	ExpiresAt         *time.Time    `gorm:"default:null"`
	SentNotifications pq.Int64Array `gorm:"type:integer[];not null;default:'{}'"`
	Archived          bool          `gorm:"not null;default:false;index"`
	ShareStatus       ShareStatus   `gorm:"not null;default:'pending'"`
}

// Notified reports whether the warning for the given day threshold was already sent.
func (e *Entitlement) Notified(day int) bool {
	return slices.Contains(e.SentNotifications, int64(day))
}

// Renew extends the expiration by exactly days and clears the sent warnings.
// Only an unprovisioned record (no expiration) is extended from now.
func (e *Entitlement) Renew(now time.Time, days int) {
	base := now
	if e.ExpiresAt != nil {
		base = *e.ExpiresAt
	}
	expiresAt := base.Add(time.Duration(days) * 24 * time.Hour)
	e.ExpiresAt = &expiresAt
	e.SentNotifications = pq.Int64Array{}
}

func (e *Entitlement) Plan() string {
	if e.PlanName == nil {
		return ""
	}
	return *e.PlanName
}
