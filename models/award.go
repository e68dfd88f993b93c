package models

import "time"

// PointAward is one ledger entry crediting a submitter for a verified report.
// ReportID is unique: a report can be rewarded at most once.
type PointAward struct {
	ReportID  string    `json:"reportId" bson:"_id" gorm:"primaryKey;size:64"`
	UserID    string    `json:"userId" bson:"userId" gorm:"size:64;index;not null"`
	Points    int64     `json:"points" bson:"points"`
	AwardedBy string    `json:"awardedBy" bson:"awardedBy"`
	AwardedAt time.Time `json:"awardedAt" bson:"awardedAt"`
}
