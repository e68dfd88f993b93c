package models

import "time"

// SchedulerLock is a lease held by one instance while it runs a background job
type SchedulerLock struct {
	Name      string    `bson:"_id" gorm:"primaryKey;size:64"`
	Owner     string    `bson:"owner" gorm:"size:128;not null"`
	ExpiresAt time.Time `bson:"expiresAt"`
}
