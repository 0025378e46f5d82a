package service

import (
	"fmt"
	"time"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
	appErrors "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/errors"
)

// Recurrence frequencies accepted by schedule patterns.
const (
	FrequencyWeekly   = "WEEKLY"
	FrequencyBiweekly = "BIWEEKLY"
)

const maxGeneratedClasses = 500

// ExpandPattern turns a recurrence pattern into concrete class instances for
// the course. Generation stops at TotalClasses when set, otherwise at
// EndDate. Times are computed in the pattern's timezone and stored in UTC.
func ExpandPattern(pattern models.CourseSchedulePattern, course *models.Course) ([]models.ScheduledClass, error) {
	if len(pattern.Weekdays) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pattern requires at least one weekday")
	}
	if pattern.DurationMinutes <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pattern requires a positive duration")
	}
	if pattern.TotalClasses <= 0 && pattern.EndDate.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pattern requires total_classes or end_date")
	}
	if pattern.TotalClasses > maxGeneratedClasses {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("pattern exceeds %d classes", maxGeneratedClasses))
	}

	loc := time.UTC
	if pattern.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(pattern.Timezone)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown timezone "+pattern.Timezone)
		}
	}

	weekdays := make(map[time.Weekday]bool, len(pattern.Weekdays))
	for _, d := range pattern.Weekdays {
		weekdays[d] = true
	}

	frequency := pattern.Frequency
	if frequency == "" {
		frequency = FrequencyWeekly
	}
	if frequency != FrequencyWeekly && frequency != FrequencyBiweekly {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown frequency "+frequency)
	}

	start := pattern.StartDate.In(loc)
	anchor := startOfWeek(start)
	duration := time.Duration(pattern.DurationMinutes) * time.Minute

	var classes []models.ScheduledClass
	for day := start; ; day = day.AddDate(0, 0, 1) {
		if pattern.TotalClasses > 0 && len(classes) >= pattern.TotalClasses {
			break
		}
		if !pattern.EndDate.IsZero() && day.After(pattern.EndDate.In(loc)) {
			break
		}
		if len(classes) >= maxGeneratedClasses {
			break
		}
		if !weekdays[day.Weekday()] {
			continue
		}
		if frequency == FrequencyBiweekly {
			weeks := int(startOfWeek(day).Sub(anchor).Hours() / (24 * 7))
			if weeks%2 != 0 {
				continue
			}
		}

		startTime := time.Date(day.Year(), day.Month(), day.Day(), pattern.StartHour, pattern.StartMinute, 0, 0, loc)
		classes = append(classes, models.ScheduledClass{
			CourseID:        course.ID,
			Title:           fmt.Sprintf("%s - Session %d", course.Title, len(classes)+1),
			InstructorID:    course.InstructorID,
			InstructorName:  course.InstructorName,
			StartTime:       startTime.UTC(),
			EndTime:         startTime.Add(duration).UTC(),
			DurationMinutes: pattern.DurationMinutes,
			Platform:        models.PlatformCustom,
			Status:          models.ClassStatusScheduled,
			MaxStudents:     course.MaxStudents,
			Version:         1,
		})
	}
	return classes, nil
}

// startOfWeek truncates to the preceding Sunday at midnight.
func startOfWeek(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}
