package pool

import (
	"github.com/google/uuid"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/resource"
)

// Source names where a group's must-visit set came from.
type Source string

const (
	SourceNone     Source = "none"
	SourceSynced   Source = "synced"
	SourceTemplate Source = "template"
	SourceManual   Source = "manual"
)

// MustVisitEntry is one resolved must-visit location.
type MustVisitEntry struct {
	ResourceID      string
	LocationID      uuid.UUID
	Title           string
	DurationMinutes int
	PlanItemID      *string
}

// ResolveMustVisit returns the group's must-visit entries from the first
// non-empty source: designer-synced list, then linked plan template, then
// the manually curated id list. Entries that reference nothing are dropped.
func ResolveMustVisit(g domain.Group) ([]MustVisitEntry, Source) {
	if entries := fromSynced(g.Synced); len(entries) > 0 {
		return entries, SourceSynced
	}
	if g.Template != nil {
		if entries := fromTemplate(*g.Template); len(entries) > 0 {
			return entries, SourceTemplate
		}
	}
	if entries := fromManual(g.ManualIDs); len(entries) > 0 {
		return entries, SourceManual
	}
	return nil, SourceNone
}

// HasMustVisit reports whether any must-visit source of g is non-empty.
func HasMustVisit(g domain.Group) bool {
	_, src := ResolveMustVisit(g)
	return src != SourceNone
}

func fromSynced(list []domain.SyncedLocation) []MustVisitEntry {
	var out []MustVisitEntry
	for _, s := range list {
		e := MustVisitEntry{
			LocationID:      s.LocationID,
			Title:           s.Title,
			DurationMinutes: s.DurationMinutes,
		}
		switch {
		case s.SyncID != "":
			syncID := s.SyncID
			e.ResourceID = resource.SyncedPlanID(syncID)
			e.PlanItemID = &syncID
		case s.LocationID != uuid.Nil:
			e.ResourceID = resource.PlanID(s.LocationID)
		default:
			continue
		}
		out = append(out, e)
	}
	return out
}

func fromTemplate(t domain.PlanTemplate) []MustVisitEntry {
	var out []MustVisitEntry
	for _, item := range t.Items {
		if item.LocationID == uuid.Nil {
			continue
		}
		itemID := item.ID.String()
		out = append(out, MustVisitEntry{
			ResourceID:      resource.PlanID(item.LocationID),
			LocationID:      item.LocationID,
			DurationMinutes: item.DurationMinutes,
			PlanItemID:      &itemID,
		})
	}
	return out
}

func fromManual(ids []uuid.UUID) []MustVisitEntry {
	var out []MustVisitEntry
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		out = append(out, MustVisitEntry{ResourceID: resource.PlanID(id), LocationID: id})
	}
	return out
}
