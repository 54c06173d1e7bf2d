package postgres

import (
	"context"

	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
	"gorm.io/gorm"
)

type PaymentStorage struct {
	db *gorm.DB
}

func NewPaymentStorage(db *gorm.DB) *PaymentStorage {
	return &PaymentStorage{
		db: db,
	}
}

// GetActiveUnpaid returns the current actionable invoice of the user.
func (s *PaymentStorage) GetActiveUnpaid(ctx context.Context, userID int64) (*entity.Payment, error) {
	var payment entity.Payment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ? AND paid = ?", userID, true, false).
		Order("created_at DESC").
		First(&payment).Error
	return &payment, err
}

func (s *PaymentStorage) Create(ctx context.Context, payment *entity.Payment) (*entity.Payment, error) {
	err := s.db.WithContext(ctx).Create(payment).Error
	return payment, err
}

func (s *PaymentStorage) MarkPaid(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).
		Model(&entity.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"paid":   true,
			"active": false,
		}).Error
}

func (s *PaymentStorage) DeleteByInvoice(ctx context.Context, userID int64, invoiceID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND invoice_id = ?", userID, invoiceID).
		Delete(&entity.Payment{}).Error
}

// DeleteActiveByUserID removes every unpaid actionable invoice record of the user.
func (s *PaymentStorage) DeleteActiveByUserID(ctx context.Context, userID int64) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ? AND paid = ?", userID, true, false).
		Delete(&entity.Payment{})
	return res.RowsAffected, res.Error
}
