package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
)

// ClassRepository handles persistence of scheduled classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classColumns = `id, course_id, title, description, instructor_id, instructor_name,
        start_time, end_time, duration_minutes, meeting_url, platform, status,
        max_students, enrolled_count, version, created_at, updated_at`

// Create persists a new scheduled class.
func (r *ClassRepository) Create(ctx context.Context, class *models.ScheduledClass) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	if class.Status == "" {
		class.Status = models.ClassStatusScheduled
	}
	if class.Version == 0 {
		class.Version = 1
	}
	const query = `INSERT INTO scheduled_classes (id, course_id, title, description, instructor_id, instructor_name,
        start_time, end_time, duration_minutes, meeting_url, platform, status, max_students, enrolled_count, version, created_at, updated_at)
        VALUES (:id, :course_id, :title, :description, :instructor_id, :instructor_name,
        :start_time, :end_time, :duration_minutes, :meeting_url, :platform, :status, :max_students, :enrolled_count, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create scheduled class: %w", err)
	}
	return nil
}

// BulkCreate persists generated classes in a single transaction, so pattern
// expansion is all-or-nothing.
func (r *ClassRepository) BulkCreate(ctx context.Context, classes []models.ScheduledClass) error {
	if len(classes) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create: %w", err)
	}
	const query = `INSERT INTO scheduled_classes (id, course_id, title, description, instructor_id, instructor_name,
        start_time, end_time, duration_minutes, meeting_url, platform, status, max_students, enrolled_count, version, created_at, updated_at)
        VALUES (:id, :course_id, :title, :description, :instructor_id, :instructor_name,
        :start_time, :end_time, :duration_minutes, :meeting_url, :platform, :status, :max_students, :enrolled_count, :version, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range classes {
		if classes[i].ID == "" {
			classes[i].ID = uuid.NewString()
		}
		if classes[i].CreatedAt.IsZero() {
			classes[i].CreatedAt = now
		}
		classes[i].UpdatedAt = now
		if classes[i].Status == "" {
			classes[i].Status = models.ClassStatusScheduled
		}
		if classes[i].Version == 0 {
			classes[i].Version = 1
		}
		if _, err := tx.NamedExecContext(ctx, query, classes[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("bulk create class: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create: %w", err)
	}
	return nil
}

// FindByID returns a scheduled class by its ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ScheduledClass, error) {
	query := fmt.Sprintf(`SELECT %s FROM scheduled_classes WHERE id = $1`, classColumns)
	var class models.ScheduledClass
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// UpdateWithVersion applies the full record guarded by compare-and-swap on
// the version column. sql.ErrNoRows is returned when no row matched: either
// the id is unknown or the version moved.
func (r *ClassRepository) UpdateWithVersion(ctx context.Context, class *models.ScheduledClass) error {
	const query = `UPDATE scheduled_classes SET title = $3, description = $4, start_time = $5, end_time = $6,
        duration_minutes = $7, meeting_url = $8, platform = $9, status = $10, max_students = $11,
        version = version + 1, updated_at = $12
        WHERE id = $1 AND version = $2`
	res, err := r.db.ExecContext(ctx, query, class.ID, class.Version, class.Title, class.Description,
		class.StartTime, class.EndTime, class.DurationMinutes, class.MeetingURL, class.Platform,
		class.Status, class.MaxStudents, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update scheduled class: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update scheduled class result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	class.Version++
	return nil
}

// ListByCourse returns every class of a course ordered by start time then id.
func (r *ClassRepository) ListByCourse(ctx context.Context, courseID string) ([]models.ScheduledClass, error) {
	query := fmt.Sprintf(`SELECT %s FROM scheduled_classes WHERE course_id = $1 ORDER BY start_time ASC, id ASC`, classColumns)
	var classes []models.ScheduledClass
	if err := r.db.SelectContext(ctx, &classes, query, courseID); err != nil {
		return nil, fmt.Errorf("list course classes: %w", err)
	}
	return classes, nil
}

// ListByCourses returns classes for multiple courses in one round trip.
func (r *ClassRepository) ListByCourses(ctx context.Context, courseIDs []string) ([]models.ScheduledClass, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM scheduled_classes WHERE course_id = ANY($1) ORDER BY start_time ASC, id ASC`, classColumns)
	var classes []models.ScheduledClass
	if err := r.db.SelectContext(ctx, &classes, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("list classes for courses: %w", err)
	}
	return classes, nil
}

// ListUpcoming returns classes with start_time >= from, ascending. Snapshot
// semantics: callers needing freshness subscribe to the class feed instead.
func (r *ClassRepository) ListUpcoming(ctx context.Context, courseID string, from time.Time) ([]models.ScheduledClass, error) {
	query := fmt.Sprintf(`SELECT %s FROM scheduled_classes WHERE course_id = $1 AND start_time >= $2 ORDER BY start_time ASC, id ASC`, classColumns)
	var classes []models.ScheduledClass
	if err := r.db.SelectContext(ctx, &classes, query, courseID, from); err != nil {
		return nil, fmt.Errorf("list upcoming classes: %w", err)
	}
	return classes, nil
}

// ListByInstructor returns classes taught by the given instructor.
func (r *ClassRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.ScheduledClass, error) {
	query := fmt.Sprintf(`SELECT %s FROM scheduled_classes WHERE instructor_id = $1 ORDER BY start_time ASC, id ASC`, classColumns)
	var classes []models.ScheduledClass
	if err := r.db.SelectContext(ctx, &classes, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor classes: %w", err)
	}
	return classes, nil
}

// ReserveSeat registers a participant with an atomic conditional increment:
// the UPDATE predicate enforces the seat bound, never read-check-write.
// Returns false when the learner already holds a seat.
func (r *ClassRepository) ReserveSeat(ctx context.Context, classID, userID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin seat reservation: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO class_participants (class_id, user_id, joined_at) VALUES ($1, $2, $3)
         ON CONFLICT (class_id, user_id) DO NOTHING`, classID, userID, time.Now().UTC())
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("insert participant: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("insert participant result: %w", err)
	}
	if inserted == 0 {
		_ = tx.Rollback()
		return false, nil
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE scheduled_classes SET enrolled_count = enrolled_count + 1, updated_at = $2
         WHERE id = $1 AND (max_students = 0 OR enrolled_count < max_students)`, classID, time.Now().UTC())
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("reserve seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("reserve seat result: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return false, ErrSeatUnavailable
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seat reservation: %w", err)
	}
	return true, nil
}

// Participants returns the learner ids holding a seat in the class.
func (r *ClassRepository) Participants(ctx context.Context, classID string) ([]string, error) {
	var userIDs []string
	if err := r.db.SelectContext(ctx, &userIDs,
		`SELECT user_id FROM class_participants WHERE class_id = $1 ORDER BY joined_at ASC`, classID); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return userIDs, nil
}

// PromoteDue advances stored statuses to match the clock: SCHEDULED classes
// whose window opened become LIVE, LIVE classes whose window closed become
// COMPLETED. Returns the distinct course ids touched so feeds can republish.
func (r *ClassRepository) PromoteDue(ctx context.Context, now time.Time) ([]string, error) {
	seen := make(map[string]struct{})
	var courseIDs []string
	collect := func(rows *sqlx.Rows) error {
		defer rows.Close()
		for rows.Next() {
			var courseID string
			if err := rows.Scan(&courseID); err != nil {
				return err
			}
			if _, ok := seen[courseID]; !ok {
				seen[courseID] = struct{}{}
				courseIDs = append(courseIDs, courseID)
			}
		}
		return rows.Err()
	}

	rows, err := r.db.QueryxContext(ctx,
		`UPDATE scheduled_classes SET status = $1, version = version + 1, updated_at = $3
         WHERE status = $2 AND start_time <= $3 RETURNING course_id`,
		models.ClassStatusLive, models.ClassStatusScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("promote scheduled to live: %w", err)
	}
	if err := collect(rows); err != nil {
		return nil, fmt.Errorf("scan promoted classes: %w", err)
	}

	rows, err = r.db.QueryxContext(ctx,
		`UPDATE scheduled_classes SET status = $1, version = version + 1, updated_at = $3
         WHERE status = $2 AND end_time <= $3 RETURNING course_id`,
		models.ClassStatusCompleted, models.ClassStatusLive, now)
	if err != nil {
		return nil, fmt.Errorf("promote live to completed: %w", err)
	}
	if err := collect(rows); err != nil {
		return nil, fmt.Errorf("scan completed classes: %w", err)
	}

	return courseIDs, nil
}

// CountPlanned returns the number of non-cancelled classes for each course.
func (r *ClassRepository) CountPlanned(ctx context.Context, courseIDs []string) (map[string]int, error) {
	if len(courseIDs) == 0 {
		return map[string]int{}, nil
	}
	rows, err := r.db.QueryxContext(ctx,
		`SELECT course_id, COUNT(*) FROM scheduled_classes
         WHERE course_id = ANY($1) AND status <> $2 GROUP BY course_id`,
		pq.Array(courseIDs), models.ClassStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("count planned classes: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int, len(courseIDs))
	for rows.Next() {
		var courseID string
		var count int
		if err := rows.Scan(&courseID, &count); err != nil {
			return nil, fmt.Errorf("scan class count: %w", err)
		}
		counts[courseID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate class counts: %w", err)
	}
	return counts, nil
}

// Delete hard-removes a class. Restricted by the service layer to classes
// that never went live; cancellation is the normal path.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_classes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled class: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scheduled class result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
