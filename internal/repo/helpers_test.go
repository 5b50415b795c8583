package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/repo"
	"github.com/pkordes/tripplanner/testutil"
)

// newTestSet returns every repository bound to one rolled-back transaction.
func newTestSet(t *testing.T) repo.Set {
	t.Helper()
	return repo.NewSet(testutil.NewTx(t))
}

func day(d int) time.Time {
	return time.Date(2025, 9, d, 0, 0, 0, 0, time.UTC)
}

func createGroup(t *testing.T, s repo.Set, name string) domain.Group {
	t.Helper()
	g, err := s.Groups.Create(context.Background(), domain.Group{
		Name:      name,
		StartDate: day(1),
		EndDate:   day(3),
		Headcount: 12,
		Type:      domain.GroupPrimary,
	})
	require.NoError(t, err)
	return g
}

func createLocation(t *testing.T, s repo.Set, name string) domain.Location {
	t.Helper()
	l, err := s.Locations.Create(context.Background(), domain.Location{
		Name:            name,
		Capacity:        40,
		BlockedWeekdays: []time.Weekday{time.Monday},
		Active:          true,
	})
	require.NoError(t, err)
	return l
}
