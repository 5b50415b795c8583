package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResourceKind classifies a schedulable resource by provenance.
type ResourceKind string

const (
	KindUnknown   ResourceKind = "unknown"
	KindPlan      ResourceKind = "plan"
	KindRecurring ResourceKind = "recurring"
	KindCustom    ResourceKind = "custom"
)

// Locked reports whether resources of this kind follow 1-of-1 semantics and
// must stay within the trip range.
func (k ResourceKind) Locked() bool {
	return k == KindPlan || k == KindRecurring
}

// Candidate is a schedulable unit not yet placed on the calendar.
// Candidates are never persisted; they are derived on every read.
type Candidate struct {
	ID              string       `json:"id"`
	Kind            ResourceKind `json:"kind"`
	Type            ActivityType `json:"type"`
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	DurationMinutes int          `json:"durationMinutes"`
	FixedDate       *time.Time   `json:"fixedDate,omitempty"`
	LocationID      *uuid.UUID   `json:"locationId,omitempty"`
	Location        string       `json:"location,omitempty"`
	Color           string       `json:"color"`
	PlanItemID      *string      `json:"planItemId,omitempty"`
	// Time and EndTime carry a preferred placement for recurring cards
	// (e.g. the booked lunch hour). Empty when there is no preference.
	Time    string `json:"time,omitempty"`
	EndTime string `json:"endTime,omitempty"`
}

// CustomTemplate is a saved ad-hoc activity a group can place repeatedly.
type CustomTemplate struct {
	ID              uuid.UUID
	GroupID         uuid.UUID
	Type            ActivityType
	Title           string
	Description     string
	DurationMinutes int
	Color           string
	CreatedAt       time.Time
}
