package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
)

// EnrollmentRepository handles persistence of enrollments and their
// idempotent progress events.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, user_id, course_id, enrolled_at, completed_at,
        lessons_completed, classes_attended, last_activity, payment_ref, status`

// Create inserts an enrollment and claims a course seat in one transaction.
// The uniqueness check and the capacity check are both predicates on the
// writes themselves, so concurrent enrollments cannot race past either.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE courses SET enrolled_count = enrolled_count + 1, updated_at = $2
         WHERE id = $1 AND published = true AND (max_students = 0 OR enrolled_count < max_students)`,
		enrollment.CourseID, time.Now().UTC())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("claim course seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("claim course seat result: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return ErrCourseFull
	}

	// Partial unique index on (user_id, course_id) WHERE status <> 'CANCELLED'
	// backs the conflict target.
	res, err = tx.NamedExecContext(ctx,
		`INSERT INTO enrollments (id, user_id, course_id, enrolled_at, completed_at,
         lessons_completed, classes_attended, last_activity, payment_ref, status)
         VALUES (:id, :user_id, :course_id, :enrolled_at, :completed_at,
         :lessons_completed, :classes_attended, :last_activity, :payment_ref, :status)
         ON CONFLICT (user_id, course_id) WHERE status <> 'CANCELLED' DO NOTHING`, enrollment)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert enrollment: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert enrollment result: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return ErrDuplicateEnrollment
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindActive returns the non-cancelled enrollment for a (user, course) pair.
func (r *EnrollmentRepository) FindActive(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE user_id = $1 AND course_id = $2 AND status <> $3`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID, courseID, models.EnrollmentStatusCancelled); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByUser returns a learner's non-cancelled enrollments, newest first.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE user_id = $1 AND status <> $2 ORDER BY enrolled_at DESC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, userID, models.EnrollmentStatusCancelled); err != nil {
		return nil, fmt.Errorf("list user enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByCourse returns enrollments in a course, filtered by status when set.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string, status models.EnrollmentStatus) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE course_id = $1`, enrollmentColumns)
	args := []interface{}{courseID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY enrolled_at ASC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}

// InsertProgressEvent records an idempotency event. The returned bool is
// false when the event id was seen before, in which case the caller must not
// apply the increment again.
func (r *EnrollmentRepository) InsertProgressEvent(ctx context.Context, event *models.ProgressEvent) (bool, error) {
	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now().UTC()
	}
	res, err := r.db.NamedExecContext(ctx,
		`INSERT INTO progress_events (event_id, user_id, course_id, kind, recorded_at)
         VALUES (:event_id, :user_id, :course_id, :kind, :recorded_at)
         ON CONFLICT (event_id) DO NOTHING`, event)
	if err != nil {
		return false, fmt.Errorf("insert progress event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert progress event result: %w", err)
	}
	return affected > 0, nil
}

// IncrementProgress bumps the counter for the event kind and stamps last
// activity. Only ACTIVE enrollments accept progress.
func (r *EnrollmentRepository) IncrementProgress(ctx context.Context, enrollmentID string, kind models.ProgressEventKind, at time.Time) error {
	column := "lessons_completed"
	if kind == models.ProgressClassAttended {
		column = "classes_attended"
	}
	query := fmt.Sprintf(`UPDATE enrollments SET %s = %s + 1, last_activity = $2
        WHERE id = $1 AND status = $3`, column, column)
	res, err := r.db.ExecContext(ctx, query, enrollmentID, at, models.EnrollmentStatusActive)
	if err != nil {
		return fmt.Errorf("increment progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment progress result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkCompleted transitions an ACTIVE enrollment to COMPLETED.
func (r *EnrollmentRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE enrollments SET status = $2, completed_at = $3 WHERE id = $1 AND status = $4`,
		id, models.EnrollmentStatusCompleted, at, models.EnrollmentStatusActive)
	if err != nil {
		return fmt.Errorf("mark enrollment completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark enrollment completed result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Cancel marks an enrollment CANCELLED and releases the course seat in one
// transaction. The record is kept for auditing.
func (r *EnrollmentRepository) Cancel(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancellation: %w", err)
	}

	var courseID string
	err = tx.GetContext(ctx, &courseID,
		`UPDATE enrollments SET status = $2 WHERE id = $1 AND status = $3 RETURNING course_id`,
		id, models.EnrollmentStatusCancelled, models.EnrollmentStatusActive)
	if err != nil {
		_ = tx.Rollback()
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("cancel enrollment: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE courses SET enrolled_count = GREATEST(enrolled_count - 1, 0), updated_at = $2 WHERE id = $1`,
		courseID, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("release course seat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancellation: %w", err)
	}
	return nil
}

// CountByStatus returns enrollment counts grouped by status, for metrics.
func (r *EnrollmentRepository) CountByStatus(ctx context.Context) (map[models.EnrollmentStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT status, COUNT(*) FROM enrollments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.EnrollmentStatus]int)
	for rows.Next() {
		var status models.EnrollmentStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan enrollment count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollment counts: %w", err)
	}
	return counts, nil
}
