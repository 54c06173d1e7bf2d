package entity

import "time"

type JournalEvent string

const (
	JournalCreated         JournalEvent = "created"
	JournalRenewed         JournalEvent = "renewed"
	JournalWarned          JournalEvent = "warned"
	JournalExpired         JournalEvent = "expired"
	JournalRemovedManually JournalEvent = "removed_manually"
	JournalRevokeFailed    JournalEvent = "revoke_failed"
)

// JournalEntry is a single lifecycle event kept in the history journal
type JournalEntry struct {
	ID       string       `bson:"_id"`
	UserID   int64        `bson:"user_id"`
	Email    string       `bson:"email"`
	PlanName string       `bson:"plan_name"`
	Event    JournalEvent `bson:"event"`
	Detail   string       `bson:"detail,omitempty"`
	At       time.Time    `bson:"at"`
}
