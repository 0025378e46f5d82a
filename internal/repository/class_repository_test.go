package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
)

func newClassRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestClassRepositoryReserveSeat(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO class_participants").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE scheduled_classes SET enrolled_count = enrolled_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reserved, err := repo.ReserveSeat(context.Background(), "class-1", "user-1")
	require.NoError(t, err)
	require.True(t, reserved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryReserveSeatFull(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO class_participants").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE scheduled_classes SET enrolled_count = enrolled_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.ReserveSeat(context.Background(), "class-1", "user-1")
	require.ErrorIs(t, err, ErrSeatUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryReserveSeatAlreadyHeld(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO class_participants").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	reserved, err := repo.ReserveSeat(context.Background(), "class-1", "user-1")
	require.NoError(t, err)
	require.False(t, reserved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUpdateWithVersionConflict(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec("UPDATE scheduled_classes SET title").
		WillReturnResult(sqlmock.NewResult(0, 0))

	class := &models.ScheduledClass{ID: "class-1", Version: 3, Status: models.ClassStatusScheduled}
	err := repo.UpdateWithVersion(context.Background(), class)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.Equal(t, 3, class.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUpdateWithVersionBumps(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec("UPDATE scheduled_classes SET title").
		WillReturnResult(sqlmock.NewResult(0, 1))

	class := &models.ScheduledClass{ID: "class-1", Version: 3, Status: models.ClassStatusScheduled}
	require.NoError(t, repo.UpdateWithVersion(context.Background(), class))
	require.Equal(t, 4, class.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryPromoteDue(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	mock.ExpectQuery("UPDATE scheduled_classes SET status").
		WithArgs(models.ClassStatusLive, models.ClassStatusScheduled, now).
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("course-1").AddRow("course-2").AddRow("course-1"))
	mock.ExpectQuery("UPDATE scheduled_classes SET status").
		WithArgs(models.ClassStatusCompleted, models.ClassStatusLive, now).
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("course-2"))

	courseIDs, err := repo.PromoteDue(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, []string{"course-1", "course-2"}, courseIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryBulkCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newClassRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scheduled_classes").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO scheduled_classes").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	classes := []models.ScheduledClass{
		{CourseID: "course-1", Title: "Session 1"},
		{CourseID: "course-1", Title: "Session 2"},
	}
	err := repo.BulkCreate(context.Background(), classes)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
