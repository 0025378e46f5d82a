package models

import "time"

// CourseSchedulePattern is a recurrence template from which concrete
// ScheduledClass instances are generated: "every Mon/Wed/Fri at 18:00 for 12
// sessions" expands into 12 records.
type CourseSchedulePattern struct {
	CourseID        string         `json:"course_id"`
	Weekdays        []time.Weekday `json:"weekdays"`
	StartHour       int            `json:"start_hour"`
	StartMinute     int            `json:"start_minute"`
	DurationMinutes int            `json:"duration_minutes"`
	Timezone        string         `json:"timezone"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
	TotalClasses    int            `json:"total_classes"`
	Frequency       string         `json:"frequency,omitempty"`
}
