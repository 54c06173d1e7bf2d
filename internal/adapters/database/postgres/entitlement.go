package postgres

import (
	"context"

	"github.com/Badsnus/mediashare-bot/internal/domain/common/errorz"
	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
	"gorm.io/gorm"
)

type EntitlementStorage struct {
	db *gorm.DB
}

func NewEntitlementStorage(db *gorm.DB) *EntitlementStorage {
	return &EntitlementStorage{
		db: db,
	}
}

// GetByUserID returns the non-archived entitlement of the user.
func (s *EntitlementStorage) GetByUserID(ctx context.Context, userID int64) (*entity.Entitlement, error) {
	var entitlement entity.Entitlement
	err := s.db.WithContext(ctx).Where("user_id = ? AND archived = ?", userID, false).First(&entitlement).Error
	return &entitlement, err
}

// GetByEmail returns the non-archived entitlement bound to the contact address.
func (s *EntitlementStorage) GetByEmail(ctx context.Context, email string) (*entity.Entitlement, error) {
	var entitlement entity.Entitlement
	err := s.db.WithContext(ctx).Where("email = ? AND archived = ?", email, false).First(&entitlement).Error
	return &entitlement, err
}

// GetActive returns all non-archived entitlements in a single query.
func (s *EntitlementStorage) GetActive(ctx context.Context) ([]entity.Entitlement, error) {
	var entitlements []entity.Entitlement
	err := s.db.WithContext(ctx).Where("archived = ?", false).Order("id").Find(&entitlements).Error
	return entitlements, err
}

func (s *EntitlementStorage) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entity.Entitlement{}).Where("archived = ?", false).Count(&count).Error
	return count, err
}

// CreateWithinCapacity creates the entitlement unless the seat capacity is reached
// or the user (by id or email) already holds a non-archived entitlement.
// The table is locked in SHARE ROW EXCLUSIVE mode for the transaction, so concurrent
// creators are serialized and the count cannot go stale before the insert.
// Nothing is written when ErrCapacityReached or ErrAlreadySubscribed is returned.
func (s *EntitlementStorage) CreateWithinCapacity(ctx context.Context, entitlement *entity.Entitlement, capacity int64) (*entity.Entitlement, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("LOCK TABLE entitlements IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
			return err
		}

		var active int64
		if err := tx.Model(&entity.Entitlement{}).Where("archived = ?", false).Count(&active).Error; err != nil {
			return err
		}
		if active >= capacity {
			return errorz.ErrCapacityReached
		}

		var existing int64
		if err := tx.Model(&entity.Entitlement{}).
			Where("(user_id = ? OR email = ?) AND archived = ?", entitlement.UserID, entitlement.Email, false).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errorz.ErrAlreadySubscribed
		}

		return tx.Create(entitlement).Error
	})

	return entitlement, err
}

func (s *EntitlementStorage) Update(ctx context.Context, entitlement *entity.Entitlement) (*entity.Entitlement, error) {
	err := s.db.WithContext(ctx).Save(entitlement).Error
	return entitlement, err
}

func (s *EntitlementStorage) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&entity.Entitlement{}, id).Error
}

// Archive excludes the entitlement from seat accounting and keeps the row for history.
func (s *EntitlementStorage) Archive(ctx context.Context, id uint, status entity.ShareStatus) error {
	return s.db.WithContext(ctx).
		Model(&entity.Entitlement{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"archived":     true,
			"share_status": status,
		}).Error
}

// PushNotification appends day to sent_notifications of a single row:
//
//	UPDATE entitlements SET sent_notifications = array_append(sent_notifications, $day)
//	WHERE id = $id AND NOT ($day = ANY(sent_notifications))
//
// The check and the append are one statement, so two cycles can never push the same marker.
// It reports false if the marker was already present.
func (s *EntitlementStorage) PushNotification(ctx context.Context, id uint, day int) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&entity.Entitlement{}).
		Where("id = ? AND NOT (? = ANY(sent_notifications))", id, day).
		Update("sent_notifications", gorm.Expr("array_append(sent_notifications, ?)", day))
	return res.RowsAffected > 0, res.Error
}
