package models

import "time"

// CalendarEvent is a scheduled class projected into a learner's calendar,
// tagged with its owning course. Status carries the effective status at
// projection time.
type CalendarEvent struct {
	ClassID        string          `json:"class_id"`
	CourseID       string          `json:"course_id"`
	CourseTitle    string          `json:"course_title"`
	Title          string          `json:"title"`
	InstructorName string          `json:"instructor_name"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	MeetingURL     string          `json:"meeting_url,omitempty"`
	Platform       MeetingPlatform `json:"platform"`
	Status         ClassStatus     `json:"status"`
	Joinable       bool            `json:"joinable"`
}

// EnrolledCourseClasses pairs a course with its scheduled classes, the input
// shape for calendar projection.
type EnrolledCourseClasses struct {
	Course  *Course
	Classes []ScheduledClass
}
