package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// TargetGroups restricts which group types a location accepts.
type TargetGroups string

const (
	TargetAll       TargetGroups = "all"
	TargetPrimary   TargetGroups = "primary"
	TargetSecondary TargetGroups = "secondary"
)

// Valid reports whether t is one of the known target values.
func (t TargetGroups) Valid() bool {
	return t == TargetAll || t == TargetPrimary || t == TargetSecondary
}

// Accepts reports whether a group of type gt may visit.
// An empty target is treated as "all".
func (t TargetGroups) Accepts(gt GroupType) bool {
	return t == "" || t == TargetAll || string(t) == string(gt)
}

// Location is a venue groups can be scheduled into.
// Capacity of zero means unlimited.
type Location struct {
	ID              uuid.UUID
	Name            string
	Address         string
	Capacity        int
	BlockedWeekdays []time.Weekday
	TargetGroups    TargetGroups
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BlockedOn reports whether the location is closed on the weekday of day.
func (l Location) BlockedOn(day time.Time) bool {
	return slices.Contains(l.BlockedWeekdays, day.Weekday())
}
