package models

import (
	"strings"
	"time"
)

// Category is the waste category of a report
type Category string

// Categories a report can be filed under
const (
	CategoryOrganic     Category = "Organic"
	CategoryPlastic     Category = "Plastic"
	CategoryHazardous   Category = "Hazardous"
	CategoryIllegalDump Category = "IllegalDump"
)

// Categories lists every valid category in display order
var Categories = []Category{CategoryOrganic, CategoryPlastic, CategoryHazardous, CategoryIllegalDump}

var categoryAliases = map[string]Category{
	"organic":      CategoryOrganic,
	"organik":      CategoryOrganic,
	"plastic":      CategoryPlastic,
	"plastik":      CategoryPlastic,
	"hazardous":    CategoryHazardous,
	"b3":           CategoryHazardous,
	"illegaldump":  CategoryIllegalDump,
	"illegal_dump": CategoryIllegalDump,
	"liar":         CategoryIllegalDump,
}

// ParseCategory resolves a category code or one of the resident-facing labels
// (Organik, Plastik, B3, Liar). The lookup is case-insensitive.
func ParseCategory(s string) (Category, bool) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryOrganic, CategoryPlastic, CategoryHazardous, CategoryIllegalDump:
		return true
	}
	return false
}

// Status is the moderation status of a report
type Status string

// Report statuses, in lifecycle order
const (
	StatusPending  Status = "Pending"
	StatusVerified Status = "Verified"
	StatusResolved Status = "Resolved"
)

// ParseStatus resolves a status name, case-insensitive
func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{StatusPending, StatusVerified, StatusResolved} {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, true
		}
	}
	return "", false
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
// Only Pending->Verified and Verified->Resolved exist; Resolved is terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusVerified
	case StatusVerified:
		return to == StatusResolved
	}
	return false
}

// Location is a latitude/longitude pair in decimal degrees
type Location struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Valid reports whether the coordinates are within range
func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Report is a resident-submitted waste dump record
type Report struct {
	ID          string     `json:"id" bson:"_id" gorm:"primaryKey;size:64"`
	SubmitterID string     `json:"submitterId" bson:"submitterId" gorm:"size:64;index;not null"`
	ImageRef    string     `json:"imageRef" bson:"imageRef" gorm:"not null"`
	ImageKey    string     `json:"-" bson:"imageKey" gorm:"size:255;index"`
	Category    Category   `json:"category" bson:"category" gorm:"size:32;not null"`
	Description string     `json:"description,omitempty" bson:"description,omitempty"`
	Location    Location   `json:"location" bson:"location" gorm:"embedded"`
	Status      Status     `json:"status" bson:"status" gorm:"size:16;index;not null"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt" gorm:"index"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
	VerifiedAt  *time.Time `json:"verifiedAt,omitempty" bson:"verifiedAt,omitempty"`
	VerifiedBy  string     `json:"verifiedBy,omitempty" bson:"verifiedBy,omitempty" gorm:"size:64"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
	ResolvedBy  string     `json:"resolvedBy,omitempty" bson:"resolvedBy,omitempty" gorm:"size:64"`
}

// Submitter is the slice of a profile shown next to a report on the moderator listing
type Submitter struct {
	FullName string `json:"fullName" bson:"fullName"`
	Username string `json:"username,omitempty" bson:"username,omitempty"`
}

// ReportWithSubmitter is a report joined with its submitter's profile. Submitter is nil
// when the join was not available.
type ReportWithSubmitter struct {
	Report    `bson:",inline"`
	Submitter *Submitter `json:"submitter" bson:"submitter,omitempty"`
}

// ReportFilter narrows report listings. Zero values mean "no constraint".
type ReportFilter struct {
	Status      Status
	SubmitterID string
	Limit       int
	Page        int
}

// ReportStats holds dashboard counters
type ReportStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Verified int64 `json:"verified"`
	Resolved int64 `json:"resolved"`
	Mine     int64 `json:"mine"`
}
