// Package domain contains the core data types for the trip planner.
// This package depends only on uuid and is imported by every other
// internal package (engines, repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// GroupType distinguishes the school level of a travelling group.
type GroupType string

const (
	GroupPrimary   GroupType = "primary"
	GroupSecondary GroupType = "secondary"
)

// Valid reports whether t is one of the known group types.
func (t GroupType) Valid() bool {
	return t == GroupPrimary || t == GroupSecondary
}

// Group is a school party with a fixed trip date range.
// A group owns its activities and the sources of its must-visit set.
type Group struct {
	ID        uuid.UUID
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Headcount int
	Type      GroupType

	// Revision increases on every schedule mutation. Batch saves must
	// present the revision they were based on.
	Revision int64

	// Must-visit sources in priority order; the first non-empty one wins.
	Synced    []SyncedLocation
	Template  *PlanTemplate
	ManualIDs []uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether day falls inside the trip range, inclusive.
func (g Group) Contains(day time.Time) bool {
	d := DateOnly(day)
	return !d.Before(DateOnly(g.StartDate)) && !d.After(DateOnly(g.EndDate))
}

// Days returns every date of the trip in order.
func (g Group) Days() []time.Time {
	var days []time.Time
	for d := DateOnly(g.StartDate); !d.After(DateOnly(g.EndDate)); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// SyncedLocation is one entry of the itinerary designer's must-visit list.
// SyncID is empty for entries created before the designer assigned ids.
type SyncedLocation struct {
	SyncID          string    `json:"syncId,omitempty"`
	LocationID      uuid.UUID `json:"locationId"`
	Title           string    `json:"title,omitempty"`
	DurationMinutes int       `json:"durationMinutes,omitempty"`
}

// PlanTemplate is a reusable must-visit list linked to groups.
type PlanTemplate struct {
	ID    uuid.UUID
	Name  string
	Items []PlanTemplateItem
}

// PlanTemplateItem is one location of a plan template.
type PlanTemplateItem struct {
	ID              uuid.UUID
	LocationID      uuid.UUID
	DurationMinutes int
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
