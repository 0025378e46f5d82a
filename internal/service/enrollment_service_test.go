package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/repository"
	appErrors "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/errors"
)

type mockEnrollmentStore struct {
	enrollments map[string]*models.Enrollment
	events      map[string]bool
	createErr   error
	completed   []string
	cancelled   []string
}

func newMockEnrollmentStore() *mockEnrollmentStore {
	return &mockEnrollmentStore{
		enrollments: make(map[string]*models.Enrollment),
		events:      make(map[string]bool),
	}
}

func (m *mockEnrollmentStore) key(userID, courseID string) string { return userID + "/" + courseID }

func (m *mockEnrollmentStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	key := m.key(enrollment.UserID, enrollment.CourseID)
	if existing, ok := m.enrollments[key]; ok && existing.Status != models.EnrollmentStatusCancelled {
		return repository.ErrDuplicateEnrollment
	}
	if enrollment.ID == "" {
		enrollment.ID = "enr-" + key
	}
	copied := *enrollment
	m.enrollments[key] = &copied
	return nil
}

func (m *mockEnrollmentStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	for _, e := range m.enrollments {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) FindActive(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[m.key(userID, courseID)]; ok && e.Status != models.EnrollmentStatusCancelled {
		copied := *e
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) ListByUser(ctx context.Context, userID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.UserID == userID && e.Status != models.EnrollmentStatusCancelled {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockEnrollmentStore) InsertProgressEvent(ctx context.Context, event *models.ProgressEvent) (bool, error) {
	if m.events[event.EventID] {
		return false, nil
	}
	m.events[event.EventID] = true
	return true, nil
}

func (m *mockEnrollmentStore) IncrementProgress(ctx context.Context, enrollmentID string, kind models.ProgressEventKind, at time.Time) error {
	for _, e := range m.enrollments {
		if e.ID == enrollmentID && e.Status == models.EnrollmentStatusActive {
			switch kind {
			case models.ProgressLessonCompleted:
				e.LessonsCompleted++
			case models.ProgressClassAttended:
				e.ClassesAttended++
			}
			e.LastActivity = &at
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockEnrollmentStore) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	for _, e := range m.enrollments {
		if e.ID == id && e.Status == models.EnrollmentStatusActive {
			e.Status = models.EnrollmentStatusCompleted
			e.CompletedAt = &at
			m.completed = append(m.completed, id)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockEnrollmentStore) Cancel(ctx context.Context, id string) error {
	for _, e := range m.enrollments {
		if e.ID == id && e.Status == models.EnrollmentStatusActive {
			e.Status = models.EnrollmentStatusCancelled
			m.cancelled = append(m.cancelled, id)
			return nil
		}
	}
	return sql.ErrNoRows
}

type mockCatalog struct {
	courses map[string]models.Course
}

func (m *mockCatalog) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := m.courses[id]; ok {
		return &course, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCatalog) FindByIDs(ctx context.Context, ids []string) (map[string]models.Course, error) {
	out := make(map[string]models.Course)
	for _, id := range ids {
		if course, ok := m.courses[id]; ok {
			out[id] = course
		}
	}
	return out, nil
}

type mockClassCounter struct {
	counts  map[string]int
	classes []models.ScheduledClass
}

func (m *mockClassCounter) CountPlanned(ctx context.Context, courseIDs []string) (map[string]int, error) {
	return m.counts, nil
}

func (m *mockClassCounter) ListByCourses(ctx context.Context, courseIDs []string) ([]models.ScheduledClass, error) {
	return m.classes, nil
}

type mockCertIssuer struct {
	issued []string
}

func (m *mockCertIssuer) EnqueueIssue(userID, courseID string) error {
	m.issued = append(m.issued, userID+"/"+courseID)
	return nil
}

func newEnrollmentFixture() (*EnrollmentService, *mockEnrollmentStore, *mockCatalog, *mockClassCounter, *mockCertIssuer) {
	store := newMockEnrollmentStore()
	catalog := &mockCatalog{courses: map[string]models.Course{
		"course-free": {ID: "course-free", Title: "Intro", Published: true, TotalLessons: 2},
		"course-paid": {ID: "course-paid", Title: "Pro", Published: true, PriceCents: 4900, TotalLessons: 1},
		"course-drft": {ID: "course-drft", Title: "Draft"},
	}}
	counter := &mockClassCounter{counts: map[string]int{"course-free": 2, "course-paid": 0}}
	certs := &mockCertIssuer{}
	svc := NewEnrollmentService(store, catalog, counter, certs, false, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc, store, catalog, counter, certs
}

func TestEnrollFreeCourse(t *testing.T) {
	svc, store, _, _, _ := newEnrollmentFixture()

	enrollment, err := svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-free"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.NotNil(t, store.enrollments["user-1/course-free"])
}

func TestEnrollDuplicateRejected(t *testing.T) {
	svc, _, _, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-free"})
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-free"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)
}

func TestEnrollUnpublishedCourse(t *testing.T) {
	svc, _, _, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-drft"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseNotPublished.Code, appErrors.FromError(err).Code)
}

func TestEnrollPaidCourseRequiresPayment(t *testing.T) {
	svc, _, _, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-paid"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPaymentRequired.Code, appErrors.FromError(err).Code)

	enrollment, err := svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-paid", PaymentRef: "pay_123"})
	require.NoError(t, err)
	require.NotNil(t, enrollment.PaymentRef)
	assert.Equal(t, "pay_123", *enrollment.PaymentRef)
}

func TestEnrollCourseFull(t *testing.T) {
	svc, store, _, _, _ := newEnrollmentFixture()
	store.createErr = repository.ErrCourseFull

	_, err := svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-free"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSeatLimitReached.Code, appErrors.FromError(err).Code)
}

func TestRecordProgressIdempotent(t *testing.T) {
	svc, store, _, _, _ := newEnrollmentFixture()
	_, err := svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-free"})
	require.NoError(t, err)

	req := ProgressEventRequest{EventID: "evt-1", CourseID: "course-free", Kind: string(models.ProgressLessonCompleted)}
	first, err := svc.RecordProgress(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, 1, first.LessonsCompleted)

	// Same event id replayed: absorbed, counter unchanged.
	second, err := svc.RecordProgress(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, 1, second.LessonsCompleted)
	assert.Equal(t, 1, store.enrollments["user-1/course-free"].LessonsCompleted)
}

func TestRecordProgressCompletionIssuesCertificate(t *testing.T) {
	svc, store, _, counter, certs := newEnrollmentFixture()
	counter.counts = map[string]int{"course-paid": 0}

	_, err := svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-paid", PaymentRef: "pay_1"})
	require.NoError(t, err)

	// course-paid has one lesson and no planned classes, so one event completes it.
	summary, err := svc.RecordProgress(context.Background(), "user-1", ProgressEventRequest{
		EventID: "evt-done", CourseID: "course-paid", Kind: string(models.ProgressLessonCompleted),
	})
	require.NoError(t, err)
	assert.True(t, summary.Complete())
	assert.Equal(t, []string{"enr-user-1/course-paid"}, store.completed)
	assert.Equal(t, []string{"user-1/course-paid"}, certs.issued)
}

func TestRecordProgressUnknownKind(t *testing.T) {
	svc, _, _, _, _ := newEnrollmentFixture()
	_, err := svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-free"})
	require.NoError(t, err)

	_, err = svc.RecordProgress(context.Background(), "user-1", ProgressEventRequest{
		EventID: "evt-1", CourseID: "course-free", Kind: "QUIZ_PASSED",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUnenrollCancelsActiveEnrollment(t *testing.T) {
	svc, store, _, _, _ := newEnrollmentFixture()
	_, err := svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-free"})
	require.NoError(t, err)

	require.NoError(t, svc.Unenroll(context.Background(), "user-1", "course-free"))
	assert.Len(t, store.cancelled, 1)

	err = svc.Unenroll(context.Background(), "user-1", "course-free")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMyCoursesJoinsProgress(t *testing.T) {
	svc, _, _, _, _ := newEnrollmentFixture()
	_, err := svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-free"})
	require.NoError(t, err)
	_, err = svc.RecordProgress(context.Background(), "user-1", ProgressEventRequest{
		EventID: "evt-1", CourseID: "course-free", Kind: string(models.ProgressLessonCompleted),
	})
	require.NoError(t, err)

	courses, err := svc.MyCourses(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.NotNil(t, courses[0].Course)
	assert.Equal(t, "Intro", courses[0].Course.Title)
	// One of two lessons, zero of two classes: (0.5 + 0) / 2.
	assert.InDelta(t, 25, courses[0].Progress.OverallProgress, 0.001)
}

func TestMyCoursesNextClass(t *testing.T) {
	svc, _, _, counter, _ := newEnrollmentFixture()
	_, err := svc.Enroll(context.Background(), "user-1", EnrollRequest{CourseID: "course-free"})
	require.NoError(t, err)

	day := func(d, h int) time.Time { return time.Date(2026, 3, d, h, 0, 0, 0, time.UTC) }
	counter.classes = []models.ScheduledClass{
		{ID: "cls-done", CourseID: "course-free", Status: models.ClassStatusCompleted, StartTime: day(9, 18), EndTime: day(9, 19)},
		{ID: "cls-cxl", CourseID: "course-free", Status: models.ClassStatusCancelled, StartTime: day(10, 18), EndTime: day(10, 19)},
		{ID: "cls-next", CourseID: "course-free", Status: models.ClassStatusScheduled, StartTime: day(10, 18), EndTime: day(10, 19)},
		{ID: "cls-later", CourseID: "course-free", Status: models.ClassStatusScheduled, StartTime: day(11, 18), EndTime: day(11, 19)},
	}

	courses, err := svc.MyCourses(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.NotNil(t, courses[0].NextClass)
	assert.Equal(t, "cls-next", courses[0].NextClass.ID)
	require.Len(t, courses[0].UpcomingClasses, 1)
	assert.Equal(t, "cls-later", courses[0].UpcomingClasses[0].ID)
	assert.Empty(t, courses[0].Error)
}
