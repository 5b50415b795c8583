// Package resource classifies and builds the opaque resource identifiers
// carried on activities.
//
// An identifier records where an activity came from:
//
//	plan-<locationId>                      must-visit location
//	plan-sync-<syncId>                     must-visit entry from the itinerary designer
//	daily:<YYYY-MM-DD>:<category>[:<sub>]  date-pinned logistics card
//	custom:<16 hex digits>                 ad-hoc activity
//
// Anything else is unknown. Classification never fails.
package resource

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/timeslot"
)

const (
	PlanPrefix       = "plan-"
	SyncedPlanPrefix = "plan-sync-"
	RecurringPrefix  = "daily:"
	CustomPrefix     = "custom:"
)

// Category is the logistics category of a recurring resource.
type Category string

const (
	CategoryMeal    Category = "meal"
	CategoryPickup  Category = "pickup"
	CategoryDropoff Category = "dropoff"
)

func (c Category) valid() bool {
	return c == CategoryMeal || c == CategoryPickup || c == CategoryDropoff
}

// RecurringKey is the decoded form of a recurring resource id.
type RecurringKey struct {
	Date     string
	Category Category
	Subkey   string
}

// Day returns the pinned date.
func (k RecurringKey) Day() time.Time {
	d, _ := timeslot.ParseDate(k.Date)
	return d
}

// Identity is the tagged decoding of a resource id. Only the fields that
// belong to Kind are set.
type Identity struct {
	Kind domain.ResourceKind
	// Ref is the location id (plan) or sync id (synced plan).
	Ref       string
	Synced    bool
	Recurring RecurringKey
	Hash      string
}

// LocationID returns the location a non-synced plan id refers to.
func (id Identity) LocationID() (uuid.UUID, bool) {
	if id.Kind != domain.KindPlan || id.Synced {
		return uuid.Nil, false
	}
	loc, err := uuid.Parse(id.Ref)
	if err != nil {
		return uuid.Nil, false
	}
	return loc, true
}

// FixedDate returns the date a resource is pinned to, if any.
func (id Identity) FixedDate() (time.Time, bool) {
	if id.Kind != domain.KindRecurring {
		return time.Time{}, false
	}
	return id.Recurring.Day(), true
}

var (
	subkeyPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)
	hashPattern   = regexp.MustCompile(`^[0-9a-f]{16}$`)
)

// Classify decodes id by prefix.
func Classify(id string) Identity {
	switch {
	case strings.HasPrefix(id, SyncedPlanPrefix):
		ref := strings.TrimPrefix(id, SyncedPlanPrefix)
		if ref == "" {
			break
		}
		return Identity{Kind: domain.KindPlan, Ref: ref, Synced: true}
	case strings.HasPrefix(id, PlanPrefix):
		ref := strings.TrimPrefix(id, PlanPrefix)
		if ref == "" {
			break
		}
		return Identity{Kind: domain.KindPlan, Ref: ref}
	case strings.HasPrefix(id, RecurringPrefix):
		if k, ok := ParseRecurringID(id); ok {
			return Identity{Kind: domain.KindRecurring, Recurring: k}
		}
	case strings.HasPrefix(id, CustomPrefix):
		h := strings.TrimPrefix(id, CustomPrefix)
		if hashPattern.MatchString(h) {
			return Identity{Kind: domain.KindCustom, Hash: h}
		}
	}
	return Identity{Kind: domain.KindUnknown}
}

// KindOf is shorthand for Classify(id).Kind.
func KindOf(id string) domain.ResourceKind {
	return Classify(id).Kind
}

// PlanID builds the id of a must-visit location.
func PlanID(locationID uuid.UUID) string {
	return PlanPrefix + locationID.String()
}

// SyncedPlanID builds the id of a designer-synced must-visit entry.
func SyncedPlanID(syncID string) string {
	return SyncedPlanPrefix + syncID
}

// BuildRecurringID encodes k. It is the exact inverse of ParseRecurringID
// for well-formed keys.
func BuildRecurringID(k RecurringKey) string {
	id := RecurringPrefix + k.Date + ":" + string(k.Category)
	if k.Subkey != "" {
		id += ":" + k.Subkey
	}
	return id
}

// ParseRecurringID decodes a recurring id. It reports false for anything
// that would not rebuild to the same string.
func ParseRecurringID(id string) (RecurringKey, bool) {
	rest, ok := strings.CutPrefix(id, RecurringPrefix)
	if !ok {
		return RecurringKey{}, false
	}
	parts := strings.Split(rest, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return RecurringKey{}, false
	}
	d, ok := timeslot.ParseDate(parts[0])
	if !ok || timeslot.FormatDate(d) != parts[0] {
		return RecurringKey{}, false
	}
	k := RecurringKey{Date: parts[0], Category: Category(parts[1])}
	if !k.Category.valid() {
		return RecurringKey{}, false
	}
	if len(parts) == 3 {
		if !subkeyPattern.MatchString(parts[2]) {
			return RecurringKey{}, false
		}
		k.Subkey = parts[2]
	}
	return k, true
}

// SynthesizeCustomID derives a stable id for an ad-hoc activity so that
// semantically identical activities collapse to one pool entry across
// reloads without a stored id. Titles are compared case-insensitively with
// surrounding and repeated whitespace ignored.
func SynthesizeCustomID(typ domain.ActivityType, title string, durationMinutes int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(title)), " ")
	fingerprint := string(typ) + "\x1f" + normalized + "\x1f" + strconv.Itoa(durationMinutes)
	return fmt.Sprintf("%s%016x", CustomPrefix, xxh3.HashString(fingerprint))
}
