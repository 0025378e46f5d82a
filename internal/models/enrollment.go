package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. COMPLETED records persist for certificates.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment links one learner to one course. At most one non-cancelled
// record may exist per (user, course) pair.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	UserID           string           `db:"user_id" json:"user_id"`
	CourseID         string           `db:"course_id" json:"course_id"`
	EnrolledAt       time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt      *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	LessonsCompleted int              `db:"lessons_completed" json:"lessons_completed"`
	ClassesAttended  int              `db:"classes_attended" json:"classes_attended"`
	LastActivity     *time.Time       `db:"last_activity" json:"last_activity,omitempty"`
	PaymentRef       *string          `db:"payment_ref" json:"payment_ref,omitempty"`
	Status           EnrollmentStatus `db:"status" json:"status"`
}

// ProgressSummary is the derived read-time aggregate of a learner's
// completion state for one course. It is computed, never persisted.
type ProgressSummary struct {
	OverallProgress  float64 `json:"overall_progress"`
	LessonsCompleted int     `json:"lessons_completed"`
	TotalLessons     int     `json:"total_lessons"`
	ClassesAttended  int     `json:"classes_attended"`
	TotalClasses     int     `json:"total_classes"`
}

// ComputeProgress derives the overall percentage as the unweighted mean of
// the lesson-completion and class-attendance ratios. A dimension with a zero
// total is excluded rather than counted as zero.
func ComputeProgress(lessonsCompleted, totalLessons, classesAttended, totalClasses int) ProgressSummary {
	summary := ProgressSummary{
		LessonsCompleted: lessonsCompleted,
		TotalLessons:     totalLessons,
		ClassesAttended:  classesAttended,
		TotalClasses:     totalClasses,
	}

	var sum float64
	var dims int
	if totalLessons > 0 {
		ratio := float64(lessonsCompleted) / float64(totalLessons)
		if ratio > 1 {
			ratio = 1
		}
		sum += ratio
		dims++
	}
	if totalClasses > 0 {
		ratio := float64(classesAttended) / float64(totalClasses)
		if ratio > 1 {
			ratio = 1
		}
		sum += ratio
		dims++
	}
	if dims > 0 {
		summary.OverallProgress = sum / float64(dims) * 100
	}
	return summary
}

// Complete reports whether progress has reached 100 percent.
func (p ProgressSummary) Complete() bool {
	return p.OverallProgress >= 100
}

// ProgressEventKind distinguishes progress event types.
type ProgressEventKind string

const (
	ProgressLessonCompleted ProgressEventKind = "LESSON_COMPLETED"
	ProgressClassAttended   ProgressEventKind = "CLASS_ATTENDED"
)

// Valid reports whether the value is a known event kind.
func (k ProgressEventKind) Valid() bool {
	return k == ProgressLessonCompleted || k == ProgressClassAttended
}

// ProgressEvent is an idempotency record: the caller-supplied EventID
// deduplicates replays so counters are never double-incremented.
type ProgressEvent struct {
	EventID    string            `db:"event_id" json:"event_id"`
	UserID     string            `db:"user_id" json:"user_id"`
	CourseID   string            `db:"course_id" json:"course_id"`
	Kind       ProgressEventKind `db:"kind" json:"kind"`
	RecordedAt time.Time         `db:"recorded_at" json:"recorded_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	UserID   string
	CourseID string
	Status   EnrollmentStatus
	Page     int
	PageSize int
}
