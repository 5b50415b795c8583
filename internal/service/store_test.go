package service_test

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/repo"
	"github.com/pkordes/tripplanner/internal/resource"
)

// ---- in-memory store -------------------------------------------------------

// memData is the full state of memStore. clone gives a transaction its own
// copy; commit swaps it in.
type memData struct {
	groups     map[uuid.UUID]domain.Group
	locations  map[uuid.UUID]domain.Location
	templates  map[uuid.UUID]domain.PlanTemplate
	activities map[uuid.UUID]domain.Activity
	logistics  map[string]domain.LogisticsDay
	customs    map[uuid.UUID]domain.CustomTemplate
	snapshots  map[string]domain.Snapshot
}

func (d *memData) clone() *memData {
	return &memData{
		groups:     maps.Clone(d.groups),
		locations:  maps.Clone(d.locations),
		templates:  maps.Clone(d.templates),
		activities: maps.Clone(d.activities),
		logistics:  maps.Clone(d.logistics),
		customs:    maps.Clone(d.customs),
		snapshots:  maps.Clone(d.snapshots),
	}
}

// memStore is a test double for every repository plus repo.TxRunner.
// Transactions work on a clone that replaces the live data only when the
// callback succeeds.
type memStore struct {
	data *memData
	// commits counts successful transactions.
	commits int
}

func newMemStore() *memStore {
	return &memStore{data: &memData{
		groups:     map[uuid.UUID]domain.Group{},
		locations:  map[uuid.UUID]domain.Location{},
		templates:  map[uuid.UUID]domain.PlanTemplate{},
		activities: map[uuid.UUID]domain.Activity{},
		logistics:  map[string]domain.LogisticsDay{},
		customs:    map[uuid.UUID]domain.CustomTemplate{},
		snapshots:  map[string]domain.Snapshot{},
	}}
}

// Set returns repositories reading and writing the live data.
func (s *memStore) Set() repo.Set {
	return setOn(func() *memData { return s.data })
}

func (s *memStore) InTx(ctx context.Context, fn func(repo.Set) error) error {
	work := s.data.clone()
	if err := fn(setOn(func() *memData { return work })); err != nil {
		return err
	}
	s.data = work
	s.commits++
	return nil
}

var _ repo.TxRunner = (*memStore)(nil)

func setOn(d func() *memData) repo.Set {
	return repo.Set{
		Groups:          memGroups{d},
		Locations:       memLocations{d},
		PlanTemplates:   memPlanTemplates{d},
		Activities:      memActivities{d},
		Logistics:       memLogistics{d},
		CustomTemplates: memCustoms{d},
		Snapshots:       memSnapshots{d},
	}
}

// activities returns every stored activity ordered by group, date and start.
func (s *memStore) activities() []domain.Activity {
	return sortedActivities(slices.Collect(maps.Values(s.data.activities)))
}

func sortedActivities(acts []domain.Activity) []domain.Activity {
	slices.SortFunc(acts, func(a, b domain.Activity) int {
		return cmp.Or(
			strings.Compare(a.GroupID.String(), b.GroupID.String()),
			a.Date.Compare(b.Date),
			strings.Compare(a.StartTime, b.StartTime),
			strings.Compare(a.ID.String(), b.ID.String()),
		)
	})
	return acts
}

// ---- groups ----------------------------------------------------------------

type memGroups struct{ d func() *memData }

func (m memGroups) Create(_ context.Context, g domain.Group) (domain.Group, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	m.d().groups[g.ID] = g
	return g, nil
}

func (m memGroups) GetByID(_ context.Context, id uuid.UUID) (domain.Group, error) {
	g, ok := m.d().groups[id]
	if !ok {
		return domain.Group{}, fmt.Errorf("memGroups.GetByID: %w", domain.ErrNotFound)
	}
	return g, nil
}

func (m memGroups) List(_ context.Context) ([]domain.Group, error) {
	return slices.SortedFunc(maps.Values(m.d().groups), func(a, b domain.Group) int {
		return strings.Compare(a.Name, b.Name)
	}), nil
}

func (m memGroups) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Group, int64, error) {
	all, _ := m.List(ctx)
	start := min(p.Offset(), len(all))
	end := min(start+p.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (m memGroups) ListByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Group, error) {
	var out []domain.Group
	for _, id := range ids {
		if g, ok := m.d().groups[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m memGroups) UpdateMustVisit(_ context.Context, g domain.Group) (domain.Group, error) {
	if _, ok := m.d().groups[g.ID]; !ok {
		return domain.Group{}, domain.ErrNotFound
	}
	m.d().groups[g.ID] = g
	return g, nil
}

func (m memGroups) BumpRevision(_ context.Context, id uuid.UUID, expected *int64) (int64, error) {
	g, ok := m.d().groups[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if expected != nil && *expected != g.Revision {
		return 0, fmt.Errorf("memGroups.BumpRevision: %w", domain.ErrConcurrency)
	}
	g.Revision++
	m.d().groups[id] = g
	return g.Revision, nil
}

func (m memGroups) LockForUpdate(context.Context, []uuid.UUID) error { return nil }

// ---- locations and plan templates -------------------------------------------

type memLocations struct{ d func() *memData }

func (m memLocations) Create(_ context.Context, l domain.Location) (domain.Location, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	m.d().locations[l.ID] = l
	return l, nil
}

func (m memLocations) GetByID(_ context.Context, id uuid.UUID) (domain.Location, error) {
	l, ok := m.d().locations[id]
	if !ok {
		return domain.Location{}, domain.ErrNotFound
	}
	return l, nil
}

func (m memLocations) List(_ context.Context) ([]domain.Location, error) {
	return slices.SortedFunc(maps.Values(m.d().locations), func(a, b domain.Location) int {
		return strings.Compare(a.Name, b.Name)
	}), nil
}

type memPlanTemplates struct{ d func() *memData }

func (m memPlanTemplates) Create(_ context.Context, t domain.PlanTemplate) (domain.PlanTemplate, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.d().templates[t.ID] = t
	return t, nil
}

func (m memPlanTemplates) GetByID(_ context.Context, id uuid.UUID) (domain.PlanTemplate, error) {
	t, ok := m.d().templates[id]
	if !ok {
		return domain.PlanTemplate{}, domain.ErrNotFound
	}
	return t, nil
}

// ---- activities ------------------------------------------------------------

type memActivities struct{ d func() *memData }

// checkUnique mirrors the partial unique index on locked resources.
func (m memActivities) checkUnique(a domain.Activity) error {
	if !resource.KindOf(a.ResourceID).Locked() {
		return nil
	}
	for _, other := range m.d().activities {
		if other.ID != a.ID && other.GroupID == a.GroupID && other.ResourceID == a.ResourceID {
			return fmt.Errorf("memActivities: %w: duplicate resource %s", domain.ErrConflict, a.ResourceID)
		}
	}
	return nil
}

func (m memActivities) Create(_ context.Context, a domain.Activity) (domain.Activity, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if err := m.checkUnique(a); err != nil {
		return domain.Activity{}, err
	}
	m.d().activities[a.ID] = a
	return a, nil
}

func (m memActivities) GetByID(_ context.Context, groupID, id uuid.UUID) (domain.Activity, error) {
	a, ok := m.d().activities[id]
	if !ok || a.GroupID != groupID {
		return domain.Activity{}, domain.ErrNotFound
	}
	return a, nil
}

func (m memActivities) Update(_ context.Context, a domain.Activity) (domain.Activity, error) {
	old, ok := m.d().activities[a.ID]
	if !ok || old.GroupID != a.GroupID {
		return domain.Activity{}, domain.ErrNotFound
	}
	m.d().activities[a.ID] = a
	return a, nil
}

func (m memActivities) Delete(_ context.Context, groupID, id uuid.UUID) error {
	a, ok := m.d().activities[id]
	if !ok || a.GroupID != groupID {
		return domain.ErrNotFound
	}
	delete(m.d().activities, id)
	return nil
}

func (m memActivities) filter(keep func(domain.Activity) bool) []domain.Activity {
	var out []domain.Activity
	for _, a := range m.d().activities {
		if keep(a) {
			out = append(out, a)
		}
	}
	return sortedActivities(out)
}

func inRange(day, start, end time.Time) bool {
	return !day.Before(start) && !day.After(end)
}

func (m memActivities) ListByGroup(_ context.Context, groupID uuid.UUID) ([]domain.Activity, error) {
	return m.filter(func(a domain.Activity) bool { return a.GroupID == groupID }), nil
}

func (m memActivities) ListByDateRange(_ context.Context, start, end time.Time) ([]domain.Activity, error) {
	return m.filter(func(a domain.Activity) bool { return inRange(a.Date, start, end) }), nil
}

func (m memActivities) ListWindow(_ context.Context, groupIDs []uuid.UUID, start, end time.Time) ([]domain.Activity, error) {
	return m.filter(func(a domain.Activity) bool {
		return slices.Contains(groupIDs, a.GroupID) && inRange(a.Date, start, end)
	}), nil
}

func (m memActivities) DeleteWindow(ctx context.Context, groupIDs []uuid.UUID, start, end time.Time) (int64, error) {
	doomed, _ := m.ListWindow(ctx, groupIDs, start, end)
	for _, a := range doomed {
		delete(m.d().activities, a.ID)
	}
	return int64(len(doomed)), nil
}

func (m memActivities) DeleteByGroup(ctx context.Context, groupID uuid.UUID) (int64, error) {
	doomed, _ := m.ListByGroup(ctx, groupID)
	for _, a := range doomed {
		delete(m.d().activities, a.ID)
	}
	return int64(len(doomed)), nil
}

func (m memActivities) InsertMany(ctx context.Context, activities []domain.Activity) (int64, error) {
	for _, a := range activities {
		if _, err := m.Create(ctx, a); err != nil {
			return 0, err
		}
	}
	return int64(len(activities)), nil
}

// ---- logistics and custom templates -----------------------------------------

type memLogistics struct{ d func() *memData }

func (m memLogistics) Upsert(_ context.Context, day domain.LogisticsDay) (domain.LogisticsDay, error) {
	m.d().logistics[day.GroupID.String()+"/"+day.Date] = day
	return day, nil
}

func (m memLogistics) ListByGroup(_ context.Context, groupID uuid.UUID) ([]domain.LogisticsDay, error) {
	var out []domain.LogisticsDay
	for _, d := range m.d().logistics {
		if d.GroupID == groupID {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b domain.LogisticsDay) int { return strings.Compare(a.Date, b.Date) })
	return out, nil
}

type memCustoms struct{ d func() *memData }

func (m memCustoms) Create(_ context.Context, t domain.CustomTemplate) (domain.CustomTemplate, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.d().customs[t.ID] = t
	return t, nil
}

func (m memCustoms) ListByGroup(_ context.Context, groupID uuid.UUID) ([]domain.CustomTemplate, error) {
	var out []domain.CustomTemplate
	for _, t := range m.d().customs {
		if t.GroupID == groupID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b domain.CustomTemplate) int { return strings.Compare(a.Title, b.Title) })
	return out, nil
}

func (m memCustoms) Delete(_ context.Context, groupID, id uuid.UUID) error {
	t, ok := m.d().customs[id]
	if !ok || t.GroupID != groupID {
		return domain.ErrNotFound
	}
	delete(m.d().customs, id)
	return nil
}

// ---- snapshots -------------------------------------------------------------

type memSnapshots struct{ d func() *memData }

func (m memSnapshots) Create(_ context.Context, s domain.Snapshot) error {
	if s.Status == "" {
		s.Status = domain.SnapshotApplied
	}
	s.Activities = slices.Clone(s.Activities)
	m.d().snapshots[s.Token] = s
	return nil
}

func (m memSnapshots) GetForUpdate(_ context.Context, token string) (domain.Snapshot, error) {
	s, ok := m.d().snapshots[token]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("memSnapshots.GetForUpdate: %w", domain.ErrNotFound)
	}
	return s, nil
}

func (m memSnapshots) SupersededBy(_ context.Context, s domain.Snapshot) (string, error) {
	var later []string
	for token, other := range m.d().snapshots {
		if token <= s.Token || other.Status != domain.SnapshotApplied {
			continue
		}
		shared := slices.ContainsFunc(other.GroupIDs, func(id uuid.UUID) bool { return slices.Contains(s.GroupIDs, id) })
		overlap := !other.StartDate.After(s.EndDate) && !other.EndDate.Before(s.StartDate)
		if shared && overlap {
			later = append(later, token)
		}
	}
	if len(later) == 0 {
		return "", nil
	}
	return slices.Min(later), nil
}

func (m memSnapshots) MarkRolledBack(_ context.Context, token string) error {
	s, ok := m.d().snapshots[token]
	if !ok {
		return domain.ErrNotFound
	}
	if s.Status != domain.SnapshotApplied {
		return domain.ErrConcurrency
	}
	s.Status = domain.SnapshotRolledBack
	m.d().snapshots[token] = s
	return nil
}

// ---- fixtures --------------------------------------------------------------

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// seedGroup stores a group whose trip spans start..end.
func (s *memStore) seedGroup(name string, typ domain.GroupType, headcount int, start, end string) domain.Group {
	g := domain.Group{
		ID:        uuid.New(),
		Name:      name,
		Type:      typ,
		Headcount: headcount,
		StartDate: day(start),
		EndDate:   day(end),
	}
	s.data.groups[g.ID] = g
	return g
}

func (s *memStore) seedLocation(name string, capacity int) domain.Location {
	l := domain.Location{ID: uuid.New(), Name: name, Capacity: capacity, TargetGroups: domain.TargetAll, Active: true}
	s.data.locations[l.ID] = l
	return l
}

func (s *memStore) seedActivity(a domain.Activity) domain.Activity {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Title == "" {
		a.Title = "Seeded"
	}
	if a.Type == "" {
		a.Type = domain.ActivityCustom
	}
	s.data.activities[a.ID] = a
	return a
}

func (s *memStore) setManual(g domain.Group, ids ...uuid.UUID) domain.Group {
	g.ManualIDs = ids
	s.data.groups[g.ID] = g
	return g
}
