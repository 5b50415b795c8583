package domain

import "github.com/google/uuid"

// MealKey names one of the daily meal slots.
type MealKey string

const (
	Breakfast MealKey = "breakfast"
	Lunch     MealKey = "lunch"
	Dinner    MealKey = "dinner"
)

// MealKeys lists the meal slots in the order they occur during a day.
var MealKeys = []MealKey{Breakfast, Lunch, Dinner}

// LogisticsDay holds one day of a group's logistics arrangements.
// Date is kept as stored ("YYYY-MM-DD") so rows with malformed dates can be
// skipped during pool derivation instead of failing the whole read.
type LogisticsDay struct {
	GroupID uuid.UUID        `json:"groupId"`
	Date    string           `json:"date"`
	Meals   map[MealKey]Meal `json:"meals,omitempty"`
	Pickup  *Transfer        `json:"pickup,omitempty"`
	Dropoff *Transfer        `json:"dropoff,omitempty"`
}

// Meal is a booked meal slot. A meal with an empty Place is unfilled.
type Meal struct {
	Place     string `json:"place,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	Disabled  bool   `json:"disabled,omitempty"`
}

// Transfer is a pickup or dropoff arrangement.
type Transfer struct {
	Place     string `json:"place,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	Disabled  bool   `json:"disabled,omitempty"`
}
