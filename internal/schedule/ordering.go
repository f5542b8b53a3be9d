// Package schedule implements the canonical ordering of a day-group and
// the first/next/previous queries the progression engine sequences with.
package schedule

import (
	"context"
	"sort"

	"example.com/ontrak/internal/domain"
)

// Canonical returns a sorted copy of the day's activities, ascending by
// start time with (position, id) as the stable secondary keys. Two
// activities sharing a start time keep their insertion order.
func Canonical(activities []domain.Activity) []domain.Activity {
	out := make([]domain.Activity, len(activities))
	copy(out, activities)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// First returns the first activity in canonical order, or nil for an
// empty day.
func First(activities []domain.Activity) *domain.Activity {
	ordered := Canonical(activities)
	if len(ordered) == 0 {
		return nil
	}
	first := ordered[0]
	return &first
}

// Last returns the final activity in canonical order, or nil for an
// empty day.
func Last(activities []domain.Activity) *domain.Activity {
	ordered := Canonical(activities)
	if len(ordered) == 0 {
		return nil
	}
	last := ordered[len(ordered)-1]
	return &last
}

// NextAfter returns the activity with the smallest start time strictly
// greater than current's. Activities sharing current's start time form a
// single rank: advancing never lands on a tie-sibling. Among candidates
// that tie with each other, the first in canonical order wins.
func NextAfter(activities []domain.Activity, current domain.Activity) *domain.Activity {
	for _, a := range Canonical(activities) {
		if a.StartTime > current.StartTime {
			next := a
			return &next
		}
	}
	return nil
}

// PreviousBefore is the mirror of NextAfter: the largest start time
// strictly smaller than current's, represented by the first activity of
// that rank in canonical order.
func PreviousBefore(activities []domain.Activity, current domain.Activity) *domain.Activity {
	var prev *domain.Activity
	for _, a := range Canonical(activities) {
		if a.StartTime >= current.StartTime {
			break
		}
		if prev == nil || a.StartTime > prev.StartTime {
			candidate := a
			prev = &candidate
		}
	}
	return prev
}

// DayLister is the slice of the storage contract the ordering service
// consults.
type DayLister interface {
	ListActivitiesForDay(ctx context.Context, templateID string, day int) ([]domain.Activity, error)
}

// Ordering answers day-group queries against stored activities.
type Ordering struct {
	store DayLister
}

// NewOrdering constructs an Ordering over the given store.
func NewOrdering(store DayLister) Ordering {
	return Ordering{store: store}
}

// DayActivities returns the day-group in canonical order.
func (o Ordering) DayActivities(ctx context.Context, templateID string, day int) ([]domain.Activity, error) {
	activities, err := o.store.ListActivitiesForDay(ctx, templateID, day)
	if err != nil {
		return nil, err
	}
	return Canonical(activities), nil
}

// FirstOfDay returns the day's first activity, or nil for an empty day.
func (o Ordering) FirstOfDay(ctx context.Context, templateID string, day int) (*domain.Activity, error) {
	activities, err := o.store.ListActivitiesForDay(ctx, templateID, day)
	if err != nil {
		return nil, err
	}
	return First(activities), nil
}
