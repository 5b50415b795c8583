package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConflictCode identifies the scheduling rule a placement violates.
type ConflictCode string

const (
	ConflictGroupTime        ConflictCode = "GROUP_TIME_CONFLICT"
	ConflictCapacity         ConflictCode = "CAPACITY"
	ConflictBlockedWeekday   ConflictCode = "BLOCKED_WEEKDAY"
	ConflictGroupType        ConflictCode = "GROUP_TYPE"
	ConflictLocationInactive ConflictCode = "LOCATION_INACTIVE"
)

// Conflict is a single rule hit for a placement.
type Conflict struct {
	Code    ConflictCode `json:"code"`
	Message string       `json:"message"`
}

// ConflictReport groups the conflicts of one imported assignment.
type ConflictReport struct {
	Index      int            `json:"index"`
	GroupID    uuid.UUID      `json:"groupId"`
	Date       string         `json:"date"`
	TimeSlot   string         `json:"timeSlot"`
	LocationID *uuid.UUID     `json:"locationId,omitempty"`
	Reasons    []ConflictCode `json:"reasons"`
	Message    string         `json:"message"`
}

// SnapshotStatus tracks whether a snapshot can still be rolled back.
type SnapshotStatus string

const (
	SnapshotApplied    SnapshotStatus = "applied"
	SnapshotRolledBack SnapshotStatus = "rolled_back"
)

// Snapshot captures the activities of a set of groups inside a date window
// before an import touched them.
type Snapshot struct {
	Token      string
	GroupIDs   []uuid.UUID
	StartDate  time.Time
	EndDate    time.Time
	Activities []Activity
	Status     SnapshotStatus
	CreatedAt  time.Time
}
