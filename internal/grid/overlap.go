package grid

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/timeslot"
)

// Cluster is a maximal run of activities of one group on one day whose
// [start, end) intervals chain together by intersection.
type Cluster struct {
	GroupID    uuid.UUID         `json:"groupId"`
	Date       string            `json:"date"`
	Start      string            `json:"startTime"`
	End        string            `json:"endTime"`
	Activities []domain.Activity `json:"activities"`
}

type span struct {
	a          domain.Activity
	start, end int
}

// Overlaps reports every overlap cluster per group and day. Three mutually
// overlapping activities yield one cluster of three, not three pairs.
// Activities with malformed or inverted times are ignored.
func Overlaps(activities []domain.Activity) []Cluster {
	type dayKey struct {
		group uuid.UUID
		date  string
	}
	byDay := lo.GroupBy(activities, func(a domain.Activity) dayKey {
		return dayKey{group: a.GroupID, date: timeslot.FormatDate(a.Date)}
	})
	keys := lo.Keys(byDay)
	slices.SortFunc(keys, func(x, y dayKey) int {
		if c := cmp.Compare(x.group.String(), y.group.String()); c != 0 {
			return c
		}
		return cmp.Compare(x.date, y.date)
	})

	var out []Cluster
	for _, k := range keys {
		for _, run := range clusters(byDay[k]) {
			out = append(out, Cluster{
				GroupID:    k.group,
				Date:       k.date,
				Start:      timeslot.FormatMinutes(run[0].start),
				End:        timeslot.FormatMinutes(lo.MaxBy(run, func(x, y span) bool { return x.end > y.end }).end),
				Activities: lo.Map(run, func(s span, _ int) domain.Activity { return s.a }),
			})
		}
	}
	return out
}

func clusters(activities []domain.Activity) [][]span {
	var spans []span
	for _, a := range activities {
		s, okS := timeslot.ToMinutes(a.StartTime)
		e, okE := timeslot.ToMinutes(a.EndTime)
		if !okS || !okE || e <= s {
			continue
		}
		spans = append(spans, span{a: a, start: s, end: e})
	}
	slices.SortFunc(spans, func(x, y span) int {
		if c := cmp.Compare(x.start, y.start); c != 0 {
			return c
		}
		if c := cmp.Compare(x.end, y.end); c != 0 {
			return c
		}
		return cmp.Compare(x.a.ID.String(), y.a.ID.String())
	})

	var out [][]span
	var run []span
	reach := -1
	for _, s := range spans {
		if len(run) > 0 && s.start < reach {
			run = append(run, s)
			reach = max(reach, s.end)
			continue
		}
		if len(run) > 1 {
			out = append(out, run)
		}
		run = []span{s}
		reach = s.end
	}
	if len(run) > 1 {
		out = append(out, run)
	}
	return out
}
