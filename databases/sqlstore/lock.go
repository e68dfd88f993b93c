package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linesmerrill/lapor-sampah-api/models"
)

func newID() string {
	return uuid.NewString()
}

// TryAcquireLock takes the named lease if it is free, expired or already held by owner
func (s *Store) TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	acquired := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lock models.SchedulerLock
		err := tx.First(&lock, "name = ?", name).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = tx.Create(&models.SchedulerLock{Name: name, Owner: owner, ExpiresAt: now.Add(ttl)}).Error
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil
			}
			acquired = err == nil
			return err
		}
		if err != nil {
			return err
		}
		if lock.Owner != owner && lock.ExpiresAt.After(now) {
			return nil
		}
		res := tx.Model(&models.SchedulerLock{}).
			Where("name = ? AND owner = ?", name, lock.Owner).
			Updates(map[string]interface{}{"owner": owner, "expires_at": now.Add(ttl)})
		acquired = res.RowsAffected == 1
		return res.Error
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// ReleaseLock gives the lease back if owner still holds it
func (s *Store) ReleaseLock(ctx context.Context, name, owner string) error {
	return s.DB.WithContext(ctx).Delete(&models.SchedulerLock{}, "name = ? AND owner = ?", name, owner).Error
}
