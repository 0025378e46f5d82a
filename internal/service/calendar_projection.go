package service

import (
	"sort"
	"time"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
)

// WeekBucket groups calendar events by the Sunday-start week that contains
// them.
type WeekBucket struct {
	WeekStart time.Time              `json:"week_start"`
	Events    []models.CalendarEvent `json:"events"`
}

// ProjectCalendar flattens a learner's enrolled courses and their classes
// into a single chronological event list. Pure: the output depends only on
// the inputs, cancelled classes are dropped, and status and joinability are
// evaluated at the supplied instant.
func ProjectCalendar(inputs []models.EnrolledCourseClasses, now time.Time, joinWindow time.Duration) []models.CalendarEvent {
	var events []models.CalendarEvent
	for _, input := range inputs {
		courseTitle := ""
		if input.Course != nil {
			courseTitle = input.Course.Title
		}
		for i := range input.Classes {
			class := &input.Classes[i]
			if class.Status == models.ClassStatusCancelled {
				continue
			}
			events = append(events, models.CalendarEvent{
				ClassID:        class.ID,
				CourseID:       class.CourseID,
				CourseTitle:    courseTitle,
				Title:          class.Title,
				InstructorName: class.InstructorName,
				StartTime:      class.StartTime,
				EndTime:        class.EndTime,
				MeetingURL:     class.MeetingURL,
				Platform:       class.Platform,
				Status:         class.EffectiveStatus(now),
				Joinable:       class.Joinable(now, joinWindow),
			})
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].ClassID < events[j].ClassID
		}
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events
}

// WeekView is one Sunday-start week with events grouped per weekday,
// index 0 (Sunday) through 6 (Saturday).
type WeekView struct {
	WeekStart time.Time                 `json:"week_start"`
	Days      [7][]models.CalendarEvent `json:"days"`
}

// BucketByWeek selects the Sunday-start week containing referenceDate and
// groups its events by weekday. Events outside that week are dropped.
func BucketByWeek(events []models.CalendarEvent, referenceDate time.Time) WeekView {
	weekStart := startOfWeek(referenceDate)
	weekEnd := weekStart.AddDate(0, 0, 7)
	view := WeekView{WeekStart: weekStart}
	for _, event := range events {
		if event.StartTime.Before(weekStart) || !event.StartTime.Before(weekEnd) {
			continue
		}
		day := int(event.StartTime.Weekday())
		view.Days[day] = append(view.Days[day], event)
	}
	return view
}

// BucketByWeeks groups an already-sorted event list into Sunday-start weeks,
// in chronological week order. Empty weeks produce no bucket.
func BucketByWeeks(events []models.CalendarEvent) []WeekBucket {
	var buckets []WeekBucket
	byWeek := make(map[time.Time]int)
	for _, event := range events {
		week := startOfWeek(event.StartTime)
		idx, ok := byWeek[week]
		if !ok {
			buckets = append(buckets, WeekBucket{WeekStart: week})
			idx = len(buckets) - 1
			byWeek[week] = idx
		}
		buckets[idx].Events = append(buckets[idx].Events, event)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].WeekStart.Before(buckets[j].WeekStart)
	})
	return buckets
}

// UpcomingEvents returns at most limit events starting strictly after now.
func UpcomingEvents(events []models.CalendarEvent, now time.Time, limit int) []models.CalendarEvent {
	upcoming := make([]models.CalendarEvent, 0, limit)
	for _, event := range events {
		if !event.StartTime.After(now) {
			continue
		}
		upcoming = append(upcoming, event)
		if limit > 0 && len(upcoming) >= limit {
			break
		}
	}
	return upcoming
}

// NextEvent returns the earliest event starting at or after now, or nil.
func NextEvent(events []models.CalendarEvent, now time.Time) *models.CalendarEvent {
	for i := range events {
		if !events[i].StartTime.Before(now) {
			next := events[i]
			return &next
		}
	}
	return nil
}
