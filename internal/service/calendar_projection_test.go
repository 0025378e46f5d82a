package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
)

func calendarFixture() []models.EnrolledCourseClasses {
	courseA := &models.Course{ID: "course-a", Title: "Go Foundations"}
	courseB := &models.Course{ID: "course-b", Title: "SQL Deep Dive"}
	return []models.EnrolledCourseClasses{
		{
			Course: courseA,
			Classes: []models.ScheduledClass{
				{
					ID: "a-2", CourseID: "course-a", Title: "Interfaces",
					StartTime: time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC),
					EndTime:   time.Date(2026, 3, 11, 19, 0, 0, 0, time.UTC),
					Status:    models.ClassStatusScheduled,
				},
				{
					ID: "a-1", CourseID: "course-a", Title: "Basics",
					StartTime: time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC),
					EndTime:   time.Date(2026, 3, 9, 19, 0, 0, 0, time.UTC),
					Status:    models.ClassStatusCompleted,
				},
				{
					ID: "a-3", CourseID: "course-a", Title: "Dropped",
					StartTime: time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC),
					EndTime:   time.Date(2026, 3, 12, 19, 0, 0, 0, time.UTC),
					Status:    models.ClassStatusCancelled,
				},
			},
		},
		{
			Course: courseB,
			Classes: []models.ScheduledClass{
				{
					ID: "b-1", CourseID: "course-b", Title: "Joins",
					StartTime: time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC),
					EndTime:   time.Date(2026, 3, 11, 19, 30, 0, 0, time.UTC),
					Status:    models.ClassStatusScheduled,
				},
				{
					ID: "b-2", CourseID: "course-b", Title: "Indexes",
					StartTime: time.Date(2026, 3, 16, 18, 0, 0, 0, time.UTC),
					EndTime:   time.Date(2026, 3, 16, 19, 0, 0, 0, time.UTC),
					Status:    models.ClassStatusScheduled,
				},
			},
		},
	}
}

func TestProjectCalendarOrdersAndDropsCancelled(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	events := ProjectCalendar(calendarFixture(), now, 15*time.Minute)

	require.Len(t, events, 4)
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ClassID)
	}
	// Equal start times tie-break on class id.
	assert.Equal(t, []string{"a-1", "a-2", "b-1", "b-2"}, ids)
	assert.Equal(t, "Go Foundations", events[0].CourseTitle)
	assert.Equal(t, "SQL Deep Dive", events[2].CourseTitle)
}

func TestProjectCalendarIsPure(t *testing.T) {
	inputs := calendarFixture()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	first := ProjectCalendar(inputs, now, 15*time.Minute)
	second := ProjectCalendar(inputs, now, 15*time.Minute)
	assert.Equal(t, first, second)

	// Inputs must come through untouched, including slice order.
	assert.Equal(t, "a-2", inputs[0].Classes[0].ID)
	assert.Equal(t, models.ClassStatusCancelled, inputs[0].Classes[2].Status)
}

func TestProjectCalendarEvaluatesClockFields(t *testing.T) {
	during := time.Date(2026, 3, 11, 18, 10, 0, 0, time.UTC)
	events := ProjectCalendar(calendarFixture(), during, 15*time.Minute)

	byID := make(map[string]models.CalendarEvent)
	for _, e := range events {
		byID[e.ClassID] = e
	}
	assert.Equal(t, models.ClassStatusLive, byID["a-2"].Status)
	assert.True(t, byID["a-2"].Joinable)
	assert.Equal(t, models.ClassStatusScheduled, byID["b-2"].Status)
	assert.False(t, byID["b-2"].Joinable)
}

func TestBucketByWeekGroupsWeekdays(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	events := ProjectCalendar(calendarFixture(), now, 15*time.Minute)

	week := BucketByWeek(events, now)
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), week.WeekStart)

	// Mar 9 2026 is the Monday and Mar 11 the Wednesday of that week.
	require.Len(t, week.Days[1], 1)
	assert.Equal(t, "a-1", week.Days[1][0].ClassID)
	require.Len(t, week.Days[3], 2)
	assert.Equal(t, "a-2", week.Days[3][0].ClassID)
	assert.Equal(t, "b-1", week.Days[3][1].ClassID)
	assert.Empty(t, week.Days[0])
	assert.Empty(t, week.Days[6])

	// b-2 on Mar 16 belongs to the following week.
	for _, day := range week.Days {
		for _, event := range day {
			assert.NotEqual(t, "b-2", event.ClassID)
		}
	}
}

func TestBucketByWeeksSundayStart(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	events := ProjectCalendar(calendarFixture(), now, 15*time.Minute)
	buckets := BucketByWeeks(events)

	// Mar 9-11 2026 fall in the week of Sunday Mar 8; Mar 16 in the next.
	require.Len(t, buckets, 2)
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), buckets[0].WeekStart)
	assert.Len(t, buckets[0].Events, 3)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), buckets[1].WeekStart)
	assert.Len(t, buckets[1].Events, 1)
}

func TestUpcomingEventsAndNextEvent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	events := ProjectCalendar(calendarFixture(), now, 15*time.Minute)

	upcoming := UpcomingEvents(events, now, 2)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "a-2", upcoming[0].ClassID)
	assert.Equal(t, "b-1", upcoming[1].ClassID)

	next := NextEvent(events, now)
	require.NotNil(t, next)
	assert.Equal(t, "a-2", next.ClassID)

	// An event starting exactly now is no longer upcoming, but it is still
	// the next pointer.
	atStart := time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC)
	fromStart := UpcomingEvents(events, atStart, 5)
	require.Len(t, fromStart, 1)
	assert.Equal(t, "b-2", fromStart[0].ClassID)
	nextAtStart := NextEvent(events, atStart)
	require.NotNil(t, nextAtStart)
	assert.Equal(t, "a-2", nextAtStart.ClassID)

	afterAll := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, NextEvent(events, afterAll))
	assert.Empty(t, UpcomingEvents(events, afterAll, 5))
}
