package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/grid"
	"github.com/pkordes/tripplanner/internal/resource"
	"github.com/pkordes/tripplanner/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScheduleService(s *memStore) *service.ScheduleService {
	return service.NewScheduleService(s, s.Set(), grid.DefaultConfig(), nil, discardLogger())
}

func newPoolService(s *memStore) *service.PoolService {
	return service.NewPoolService(s.Set(), nil, discardLogger())
}

func lunchOn(s *memStore, g domain.Group, date string) string {
	s.data.logistics[g.ID.String()+"/"+date] = domain.LogisticsDay{
		GroupID: g.ID,
		Date:    date,
		Meals: map[domain.MealKey]domain.Meal{
			domain.Lunch: {Place: "Harbour Cafe", StartTime: "12:00", EndTime: "13:00"},
		},
	}
	return resource.BuildRecurringID(resource.RecurringKey{Date: date, Category: resource.CategoryMeal, Subkey: string(domain.Lunch)})
}

// ---- Assign ----------------------------------------------------------------

func TestScheduleService_Assign_PinnedMealOnWrongDay(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")
	mealID := lunchOn(store, g, "2025-09-02")
	svc := newScheduleService(store)

	_, err := svc.Assign(context.Background(), g.ID, mealID, day("2025-09-01"), "12:00")

	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, store.activities())
	assert.Zero(t, store.commits)

	p, err := newPoolService(store).Get(context.Background(), g.ID)
	require.NoError(t, err)
	_, available := p.Find(mealID)
	assert.True(t, available, "rejected candidate must stay available")
}

func TestScheduleService_Assign_UsesPreferredTime(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")
	mealID := lunchOn(store, g, "2025-09-02")
	svc := newScheduleService(store)

	got, err := svc.Assign(context.Background(), g.ID, mealID, day("2025-09-02"), "")

	require.NoError(t, err)
	assert.Equal(t, "12:00", got.Activity.StartTime)
	assert.Equal(t, "13:00", got.Activity.EndTime)
	assert.Equal(t, mealID, got.Activity.ResourceID)
	assert.Equal(t, int64(1), got.Revision)
	assert.Empty(t, got.Conflicts)

	p, err := newPoolService(store).Get(context.Background(), g.ID)
	require.NoError(t, err)
	placed, ok := p.FindPlaced(mealID)
	require.True(t, ok)
	assert.Equal(t, got.Activity.ID, placed.ActivityID)
}

func TestScheduleService_Assign_LockedCandidateOnlyOnce(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")
	mealID := lunchOn(store, g, "2025-09-02")
	svc := newScheduleService(store)

	_, err := svc.Assign(context.Background(), g.ID, mealID, day("2025-09-02"), "12:00")
	require.NoError(t, err)
	_, err = svc.Assign(context.Background(), g.ID, mealID, day("2025-09-02"), "18:00")

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Len(t, store.activities(), 1)
}

func TestScheduleService_Assign_UnknownCandidate(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")

	_, err := newScheduleService(store).Assign(context.Background(), g.ID, "plan-"+uuid.NewString(), day("2025-09-01"), "10:00")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScheduleService_Assign_ReportsLocationConflicts(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 11, "2025-09-01", "2025-09-03")
	loc := store.seedLocation("Museum", 10)
	loc.BlockedWeekdays = []time.Weekday{time.Wednesday}
	store.data.locations[loc.ID] = loc
	store.setManual(g, loc.ID)
	svc := newScheduleService(store)

	monday, err := svc.Assign(context.Background(), g.ID, resource.PlanID(loc.ID), day("2025-09-01"), "10:00")
	require.NoError(t, err)
	assert.Equal(t, []domain.ConflictCode{domain.ConflictCapacity}, codes(monday.Conflicts))

	wednesday, err := svc.Move(context.Background(), g.ID, monday.Activity.ID, day("2025-09-03"), "10:00")
	require.NoError(t, err)
	assert.Contains(t, codes(wednesday.Conflicts), domain.ConflictBlockedWeekday)
	assert.Equal(t, int64(2), wednesday.Revision)
}

func codes(cs []domain.Conflict) []domain.ConflictCode {
	out := make([]domain.ConflictCode, len(cs))
	for i, c := range cs {
		out[i] = c.Code
	}
	return out
}

// ---- CreateCustom ----------------------------------------------------------

func TestScheduleService_CreateCustom_SynthesizesID(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")
	svc := newScheduleService(store)

	got, err := svc.CreateCustom(context.Background(), g.ID, service.CustomActivity{
		Title:           "  Beach games ",
		DurationMinutes: 90,
		Date:            day("2025-09-02"),
		StartTime:       "15:00",
	})

	require.NoError(t, err)
	assert.Equal(t, resource.SynthesizeCustomID(domain.ActivityCustom, "Beach games", 90), got.Activity.ResourceID)
	assert.Equal(t, "16:30", got.Activity.EndTime)
	assert.Equal(t, "Beach games", got.Activity.Title)
}

func TestScheduleService_CreateCustom_TitleRequired(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")

	_, err := newScheduleService(store).CreateCustom(context.Background(), g.ID, service.CustomActivity{
		Title: "   ", Date: day("2025-09-02"), StartTime: "15:00",
	})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, store.activities())
}

// ---- Move / Resize / Delete ------------------------------------------------

func TestScheduleService_Move_NotOnBoard(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")
	other := store.seedGroup("Year 10", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")
	a := store.seedActivity(domain.Activity{GroupID: other.ID, Date: day("2025-09-01"), StartTime: "09:00", EndTime: "10:00"})

	_, err := newScheduleService(store).Move(context.Background(), g.ID, a.ID, day("2025-09-02"), "09:00")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScheduleService_Resize(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")
	a := store.seedActivity(domain.Activity{GroupID: g.ID, Date: day("2025-09-01"), StartTime: "09:00", EndTime: "10:00"})
	svc := newScheduleService(store)

	got, err := svc.Resize(context.Background(), g.ID, a.ID, "11:30")
	require.NoError(t, err)
	assert.Equal(t, "11:30", got.Activity.EndTime)
	assert.Equal(t, "11:30", store.data.activities[a.ID].EndTime)

	_, err = svc.Resize(context.Background(), g.ID, a.ID, "08:00")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestScheduleService_Delete_ReturnsToPool(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")
	mealID := lunchOn(store, g, "2025-09-02")
	svc := newScheduleService(store)
	placed, err := svc.Assign(context.Background(), g.ID, mealID, day("2025-09-02"), "")
	require.NoError(t, err)

	rev, err := svc.Delete(context.Background(), g.ID, placed.Activity.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)
	p, err := newPoolService(store).Get(context.Background(), g.ID)
	require.NoError(t, err)
	_, available := p.Find(mealID)
	assert.True(t, available)
}

// ---- SaveBatch -------------------------------------------------------------

func TestScheduleService_SaveBatch_ReplacesCalendar(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")
	store.seedActivity(domain.Activity{GroupID: g.ID, Date: day("2025-09-01"), StartTime: "09:00", EndTime: "10:00"})
	svc := newScheduleService(store)

	got, err := svc.SaveBatch(context.Background(), g.ID, 0, []domain.Activity{
		{Date: day("2025-09-02"), StartTime: "9:00", EndTime: "10:00", Title: "Walk", Type: domain.ActivityCustom},
		{Date: day("2025-09-02"), StartTime: "09:30", EndTime: "10:30", Title: "Swim", Type: domain.ActivityCustom},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Revision)
	assert.Equal(t, 2, got.Saved)
	require.Len(t, got.Conflicts, 2, "both overlapping activities are reported")
	assert.Equal(t, []domain.ConflictCode{domain.ConflictGroupTime}, got.Conflicts[0].Reasons)

	acts := store.activities()
	require.Len(t, acts, 2)
	assert.Equal(t, "09:00", acts[0].StartTime)
	assert.Equal(t, g.ID, acts[0].GroupID)
}

func TestScheduleService_SaveBatch_StaleRevision(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")
	g.Revision = 4
	store.data.groups[g.ID] = g
	existing := store.seedActivity(domain.Activity{GroupID: g.ID, Date: day("2025-09-01"), StartTime: "09:00", EndTime: "10:00"})

	_, err := newScheduleService(store).SaveBatch(context.Background(), g.ID, 3, nil)

	assert.ErrorIs(t, err, domain.ErrConcurrency)
	assert.Equal(t, []domain.Activity{existing}, store.activities())
	assert.Equal(t, int64(4), store.data.groups[g.ID].Revision)
}

func TestScheduleService_SaveBatch_InvalidActivity(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")

	_, err := newScheduleService(store).SaveBatch(context.Background(), g.ID, 0, []domain.Activity{
		{Date: day("2025-09-02"), StartTime: "11:00", EndTime: "10:00", Title: "Backwards"},
	})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, store.commits)
}

// ---- Check / Overlaps ------------------------------------------------------

func TestScheduleService_Check_IgnoresMovedActivity(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")
	a := store.seedActivity(domain.Activity{GroupID: g.ID, Date: day("2025-09-01"), StartTime: "09:00", EndTime: "10:00"})
	svc := newScheduleService(store)

	req := service.CheckRequest{GroupID: g.ID, Date: day("2025-09-01"), StartTime: "09:30", EndTime: "10:30"}
	cs, err := svc.Check(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []domain.ConflictCode{domain.ConflictGroupTime}, codes(cs))

	req.ActivityID = &a.ID
	cs, err = svc.Check(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestScheduleService_Check_BadTimes(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")

	_, err := newScheduleService(store).Check(context.Background(), service.CheckRequest{
		GroupID: g.ID, Date: day("2025-09-01"), StartTime: "10:00", EndTime: "10:00",
	})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestScheduleService_Overlaps(t *testing.T) {
	store := newMemStore()
	g := store.seedGroup("Year 9", domain.GroupPrimary, 20, "2025-09-01", "2025-09-03")
	store.seedActivity(domain.Activity{GroupID: g.ID, Date: day("2025-09-01"), StartTime: "09:00", EndTime: "10:00"})
	store.seedActivity(domain.Activity{GroupID: g.ID, Date: day("2025-09-01"), StartTime: "09:30", EndTime: "11:00"})
	store.seedActivity(domain.Activity{GroupID: g.ID, Date: day("2025-09-01"), StartTime: "14:00", EndTime: "15:00"})

	clusters, err := newScheduleService(store).Overlaps(context.Background(), g.ID)

	require.NoError(t, err)
	require.Len(t, clusters, 1)
}
