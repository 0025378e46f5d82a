package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
	appErrors "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/errors"
)

func patternCourse() *models.Course {
	return &models.Course{ID: "course-1", Title: "Go Foundations", InstructorID: "inst-1", InstructorName: "Ada", MaxStudents: 30}
}

func TestExpandPatternWeekly(t *testing.T) {
	classes, err := ExpandPattern(models.CourseSchedulePattern{
		CourseID:        "course-1",
		Weekdays:        []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		StartHour:       18,
		DurationMinutes: 90,
		StartDate:       time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		TotalClasses:    5,
	}, patternCourse())
	require.NoError(t, err)
	require.Len(t, classes, 5)

	assert.Equal(t, time.Date(2026, 3, 16, 18, 0, 0, 0, time.UTC), classes[0].StartTime)
	assert.Equal(t, time.Date(2026, 3, 18, 18, 0, 0, 0, time.UTC), classes[1].StartTime)
	assert.Equal(t, time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC), classes[2].StartTime)
	assert.Equal(t, time.Date(2026, 3, 23, 18, 0, 0, 0, time.UTC), classes[3].StartTime)

	for _, class := range classes {
		assert.Equal(t, "course-1", class.CourseID)
		assert.Equal(t, models.ClassStatusScheduled, class.Status)
		assert.Equal(t, 30, class.MaxStudents)
		assert.Equal(t, class.StartTime.Add(90*time.Minute), class.EndTime)
		assert.Contains(t, class.Title, "Session")
	}
}

func TestExpandPatternTimezone(t *testing.T) {
	classes, err := ExpandPattern(models.CourseSchedulePattern{
		CourseID:        "course-1",
		Weekdays:        []time.Weekday{time.Tuesday},
		StartHour:       9,
		StartMinute:     30,
		DurationMinutes: 60,
		Timezone:        "Asia/Kolkata",
		StartDate:       time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC),
		TotalClasses:    1,
	}, patternCourse())
	require.NoError(t, err)
	require.Len(t, classes, 1)
	// 09:30 IST is 04:00 UTC.
	assert.Equal(t, time.Date(2026, 3, 17, 4, 0, 0, 0, time.UTC), classes[0].StartTime)
}

func TestExpandPatternEndDateBound(t *testing.T) {
	classes, err := ExpandPattern(models.CourseSchedulePattern{
		CourseID:        "course-1",
		Weekdays:        []time.Weekday{time.Monday},
		StartHour:       18,
		DurationMinutes: 60,
		StartDate:       time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}, patternCourse())
	require.NoError(t, err)
	// Mondays Mar 16, 23, 30.
	require.Len(t, classes, 3)
}

func TestExpandPatternBiweekly(t *testing.T) {
	classes, err := ExpandPattern(models.CourseSchedulePattern{
		CourseID:        "course-1",
		Weekdays:        []time.Weekday{time.Monday},
		StartHour:       18,
		DurationMinutes: 60,
		StartDate:       time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		TotalClasses:    3,
		Frequency:       FrequencyBiweekly,
	}, patternCourse())
	require.NoError(t, err)
	require.Len(t, classes, 3)
	assert.Equal(t, time.Date(2026, 3, 16, 18, 0, 0, 0, time.UTC), classes[0].StartTime)
	assert.Equal(t, time.Date(2026, 3, 30, 18, 0, 0, 0, time.UTC), classes[1].StartTime)
	assert.Equal(t, time.Date(2026, 4, 13, 18, 0, 0, 0, time.UTC), classes[2].StartTime)
}

func TestExpandPatternValidation(t *testing.T) {
	course := patternCourse()

	_, err := ExpandPattern(models.CourseSchedulePattern{DurationMinutes: 60, TotalClasses: 1}, course)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = ExpandPattern(models.CourseSchedulePattern{
		Weekdays: []time.Weekday{time.Monday}, DurationMinutes: 60, TotalClasses: 1, Timezone: "Mars/Olympus",
	}, course)
	require.Error(t, err)

	_, err = ExpandPattern(models.CourseSchedulePattern{
		Weekdays: []time.Weekday{time.Monday}, DurationMinutes: 60,
	}, course)
	require.Error(t, err, "needs total_classes or end_date")
}
