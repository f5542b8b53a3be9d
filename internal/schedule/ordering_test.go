package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/ontrak/internal/domain"
)

func activity(id string, start string, position int) domain.Activity {
	tod, err := domain.ParseTimeOfDay(start)
	if err != nil {
		panic(err)
	}
	return domain.Activity{ID: id, TemplateID: "tpl", Day: 1, Position: position, Name: id, StartTime: tod, DurationMin: 30}
}

func TestCanonicalOrdersByStartThenPosition(t *testing.T) {
	day := []domain.Activity{
		activity("c", "11:00", 2),
		activity("a", "09:00", 0),
		activity("b2", "10:00", 4),
		activity("b1", "10:00", 3),
	}

	ordered := Canonical(day)
	ids := make([]string, 0, len(ordered))
	for _, a := range ordered {
		ids = append(ids, a.ID)
	}
	require.Equal(t, []string{"a", "b1", "b2", "c"}, ids)

	// Input order is untouched.
	require.Equal(t, "c", day[0].ID)
}

func TestFirstAndLast(t *testing.T) {
	require.Nil(t, First(nil))
	require.Nil(t, Last(nil))

	day := []domain.Activity{
		activity("late", "15:00", 1),
		activity("early", "08:00", 0),
	}
	require.Equal(t, "early", First(day).ID)
	require.Equal(t, "late", Last(day).ID)
}

func TestNextAfterSkipsTieSiblings(t *testing.T) {
	day := []domain.Activity{
		activity("a", "09:00", 0),
		activity("b1", "10:00", 1),
		activity("b2", "10:00", 2),
		activity("c", "11:00", 3),
	}

	next := NextAfter(day, day[0])
	require.Equal(t, "b1", next.ID)

	// Both members of the 10:00 rank advance straight to 11:00.
	require.Equal(t, "c", NextAfter(day, day[1]).ID)
	require.Equal(t, "c", NextAfter(day, day[2]).ID)

	require.Nil(t, NextAfter(day, day[3]))
}

func TestPreviousBeforeReturnsFirstOfPriorRank(t *testing.T) {
	day := []domain.Activity{
		activity("a", "09:00", 0),
		activity("b1", "10:00", 1),
		activity("b2", "10:00", 2),
		activity("c", "11:00", 3),
	}

	require.Nil(t, PreviousBefore(day, day[0]))
	require.Equal(t, "a", PreviousBefore(day, day[1]).ID)
	require.Equal(t, "a", PreviousBefore(day, day[2]).ID)
	require.Equal(t, "b1", PreviousBefore(day, day[3]).ID)
}

type staticLister struct {
	activities []domain.Activity
}

func (s staticLister) ListActivitiesForDay(ctx context.Context, templateID string, day int) ([]domain.Activity, error) {
	return s.activities, nil
}

func TestOrderingQueries(t *testing.T) {
	lister := staticLister{activities: []domain.Activity{
		activity("second", "10:00", 1),
		activity("first", "09:00", 0),
	}}
	ordering := NewOrdering(lister)

	first, err := ordering.FirstOfDay(context.Background(), "tpl", 1)
	require.NoError(t, err)
	require.Equal(t, "first", first.ID)

	day, err := ordering.DayActivities(context.Background(), "tpl", 1)
	require.NoError(t, err)
	require.Equal(t, "first", day[0].ID)
	require.Equal(t, "second", day[1].ID)
}
