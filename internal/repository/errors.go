package repository

import "errors"

// Sentinel errors surfaced by write predicates. The service layer maps them
// onto typed API errors.
var (
	// ErrSeatUnavailable means the conditional seat increment matched no row:
	// the class is at max_students.
	ErrSeatUnavailable = errors.New("no seats available")

	// ErrCourseFull means the course-level capacity predicate matched no row.
	ErrCourseFull = errors.New("course is full")

	// ErrDuplicateEnrollment means an active enrollment already exists for
	// the (user, course) pair.
	ErrDuplicateEnrollment = errors.New("enrollment already exists")
)
