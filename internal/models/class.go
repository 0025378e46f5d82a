package models

import "time"

// ClassStatus is the stored lifecycle state of a scheduled class.
type ClassStatus string

// Class lifecycle: SCHEDULED -> LIVE -> COMPLETED, with SCHEDULED -> CANCELLED
// as the only side branch. COMPLETED and CANCELLED are terminal.
const (
	ClassStatusScheduled ClassStatus = "SCHEDULED"
	ClassStatusLive      ClassStatus = "LIVE"
	ClassStatusCompleted ClassStatus = "COMPLETED"
	ClassStatusCancelled ClassStatus = "CANCELLED"
)

// Valid reports whether the value is a known status.
func (s ClassStatus) Valid() bool {
	switch s {
	case ClassStatusScheduled, ClassStatusLive, ClassStatusCompleted, ClassStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s ClassStatus) Terminal() bool {
	return s == ClassStatusCompleted || s == ClassStatusCancelled
}

// CanTransitionTo enforces the class status state machine.
func (s ClassStatus) CanTransitionTo(next ClassStatus) bool {
	switch s {
	case ClassStatusScheduled:
		return next == ClassStatusLive || next == ClassStatusCancelled
	case ClassStatusLive:
		return next == ClassStatusCompleted
	default:
		return false
	}
}

// MeetingPlatform tags where a live class is hosted.
type MeetingPlatform string

const (
	PlatformZoom   MeetingPlatform = "ZOOM"
	PlatformMeet   MeetingPlatform = "MEET"
	PlatformTeams  MeetingPlatform = "TEAMS"
	PlatformCustom MeetingPlatform = "CUSTOM"
)

// Valid reports whether the value is a known platform.
func (p MeetingPlatform) Valid() bool {
	switch p {
	case PlatformZoom, PlatformMeet, PlatformTeams, PlatformCustom:
		return true
	}
	return false
}

// ScheduledClass is one concrete live-session instance belonging to a course.
// EnrolledCount is guarded by an atomic conditional increment against
// MaxStudents (0 means unbounded); Version backs compare-and-swap updates.
type ScheduledClass struct {
	ID              string          `db:"id" json:"id"`
	CourseID        string          `db:"course_id" json:"course_id"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description,omitempty"`
	InstructorID    string          `db:"instructor_id" json:"instructor_id"`
	InstructorName  string          `db:"instructor_name" json:"instructor_name"`
	StartTime       time.Time       `db:"start_time" json:"start_time"`
	EndTime         time.Time       `db:"end_time" json:"end_time"`
	DurationMinutes int             `db:"duration_minutes" json:"duration_minutes"`
	MeetingURL      string          `db:"meeting_url" json:"meeting_url,omitempty"`
	Platform        MeetingPlatform `db:"platform" json:"platform"`
	Status          ClassStatus     `db:"status" json:"status"`
	MaxStudents     int             `db:"max_students" json:"max_students"`
	EnrolledCount   int             `db:"enrolled_count" json:"enrolled_count"`
	Version         int             `db:"version" json:"version"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// EffectiveStatus derives the display status from the stored status plus the
// clock: a SCHEDULED class whose window contains now presents as LIVE.
// Terminal statuses pass through unchanged.
func (c *ScheduledClass) EffectiveStatus(now time.Time) ClassStatus {
	if c.Status.Terminal() {
		return c.Status
	}
	if c.Status == ClassStatusScheduled && !now.Before(c.StartTime) && now.Before(c.EndTime) {
		return ClassStatusLive
	}
	return c.Status
}

// Joinable reports whether a learner may open the meeting link: the join
// window opens `window` before start and closes when the class is terminal.
func (c *ScheduledClass) Joinable(now time.Time, window time.Duration) bool {
	if c.Status.Terminal() {
		return false
	}
	return !now.Before(c.StartTime.Add(-window))
}

// ClassFilter captures query parameters for listing scheduled classes.
type ClassFilter struct {
	CourseID     string
	InstructorID string
	Status       ClassStatus
	From         *time.Time
	Page         int
	PageSize     int
}
