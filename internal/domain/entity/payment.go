package entity

import "gorm.io/gorm"

// Payment is an invoice issued to a user for a plan.
// At most one active record exists per user; paid records are never active.
type Payment struct {
	gorm.Model
	UserID     int64  `gorm:"not null;index"`
	Email      string `gorm:"not null"`
	InvoiceID  string `gorm:"not null;uniqueIndex"`
	Paid       bool   `gorm:"not null;default:false"`
	InvoiceURL string
	Active     bool   `gorm:"not null;default:true;index"`
	PlanName   string `gorm:"not null"`
	PlanRef    string `gorm:"not null"`
}
