package models

import "time"

// EventType names a report lifecycle event
type EventType string

// Report lifecycle events
const (
	EventReportSubmitted EventType = "report.submitted"
	EventReportVerified  EventType = "report.verified"
	EventReportResolved  EventType = "report.resolved"
	EventReportDeleted   EventType = "report.deleted"
)

// ReportEvent is broadcast after a lifecycle change has been committed
type ReportEvent struct {
	Type    EventType `json:"type"`
	Report  Report    `json:"report"`
	ActorID string    `json:"actorId"`
	Points  int64     `json:"points,omitempty"`
	At      time.Time `json:"at"`
}
