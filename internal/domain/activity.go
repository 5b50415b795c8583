package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityType is the kind of calendar entry.
type ActivityType string

const (
	ActivityVisit     ActivityType = "visit"
	ActivityMeal      ActivityType = "meal"
	ActivityTransport ActivityType = "transport"
	ActivityCustom    ActivityType = "activity"
	ActivityRest      ActivityType = "rest"
	ActivityFree      ActivityType = "free"
)

// Activity is a candidate placed at a specific date and time for a group.
// ID is uuid.Nil until the activity has been persisted.
// StartTime and EndTime are "HH:mm" clock times on Date.
type Activity struct {
	ID             uuid.UUID    `json:"id"`
	GroupID        uuid.UUID    `json:"groupId"`
	Date           time.Time    `json:"date"`
	StartTime      string       `json:"startTime"`
	EndTime        string       `json:"endTime"`
	Type           ActivityType `json:"type"`
	ResourceID     string       `json:"resourceId,omitempty"`
	LocationID     *uuid.UUID   `json:"locationId,omitempty"`
	Title          string       `json:"title"`
	Location       string       `json:"location,omitempty"`
	Description    string       `json:"description,omitempty"`
	Color          string       `json:"color,omitempty"`
	PlanItemID     *string      `json:"planItemId,omitempty"`
	IsFromResource bool         `json:"isFromResource"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// AtLocation reports whether the activity is bound to location id.
func (a Activity) AtLocation(id uuid.UUID) bool {
	return a.LocationID != nil && *a.LocationID == id
}
