package models

import "time"

// Course is a published learning offering owning lessons and live classes.
type Course struct {
	ID             string    `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	Description    string    `db:"description" json:"description"`
	InstructorID   string    `db:"instructor_id" json:"instructor_id"`
	InstructorName string    `db:"instructor_name" json:"instructor_name"`
	Category       string    `db:"category" json:"category"`
	PriceCents     int64     `db:"price_cents" json:"price_cents"`
	TotalLessons   int       `db:"total_lessons" json:"total_lessons"`
	MaxStudents    int       `db:"max_students" json:"max_students"`
	EnrolledCount  int       `db:"enrolled_count" json:"enrolled_count"`
	Published      bool      `db:"published" json:"published"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Free reports whether enrollment requires no payment.
func (c *Course) Free() bool {
	return c.PriceCents == 0
}

// CourseFilter captures catalog query parameters.
type CourseFilter struct {
	InstructorID string
	Category     string
	Search       string
	Published    *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
