package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/repository"
	appErrors "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/errors"
)

type mockClassStore struct {
	classes      map[string]models.ScheduledClass
	seatErr      error
	seatReserved bool
	participants map[string][]string
	versionClash bool
	nextID       int
}

func newMockClassStore() *mockClassStore {
	return &mockClassStore{
		classes:      make(map[string]models.ScheduledClass),
		participants: make(map[string][]string),
		seatReserved: true,
	}
}

func (m *mockClassStore) Create(ctx context.Context, class *models.ScheduledClass) error {
	m.nextID++
	if class.ID == "" {
		class.ID = "class-" + string(rune('0'+m.nextID))
	}
	if class.Version == 0 {
		class.Version = 1
	}
	m.classes[class.ID] = *class
	return nil
}

func (m *mockClassStore) BulkCreate(ctx context.Context, classes []models.ScheduledClass) error {
	for i := range classes {
		if err := m.Create(ctx, &classes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockClassStore) FindByID(ctx context.Context, id string) (*models.ScheduledClass, error) {
	if class, ok := m.classes[id]; ok {
		return &class, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassStore) UpdateWithVersion(ctx context.Context, class *models.ScheduledClass) error {
	stored, ok := m.classes[class.ID]
	if !ok || m.versionClash || stored.Version != class.Version {
		return sql.ErrNoRows
	}
	class.Version++
	m.classes[class.ID] = *class
	return nil
}

func (m *mockClassStore) ListByCourse(ctx context.Context, courseID string) ([]models.ScheduledClass, error) {
	var out []models.ScheduledClass
	for _, class := range m.classes {
		if class.CourseID == courseID {
			out = append(out, class)
		}
	}
	sortClasses(out)
	return out, nil
}

func (m *mockClassStore) ListByInstructor(ctx context.Context, instructorID string) ([]models.ScheduledClass, error) {
	var out []models.ScheduledClass
	for _, class := range m.classes {
		if class.InstructorID == instructorID {
			out = append(out, class)
		}
	}
	sortClasses(out)
	return out, nil
}

func (m *mockClassStore) ListUpcoming(ctx context.Context, courseID string, from time.Time) ([]models.ScheduledClass, error) {
	var out []models.ScheduledClass
	for _, class := range m.classes {
		if class.CourseID == courseID && !class.StartTime.Before(from) {
			out = append(out, class)
		}
	}
	sortClasses(out)
	return out, nil
}

func (m *mockClassStore) ReserveSeat(ctx context.Context, classID, userID string) (bool, error) {
	if m.seatErr != nil {
		return false, m.seatErr
	}
	if m.seatReserved {
		m.participants[classID] = append(m.participants[classID], userID)
	}
	return m.seatReserved, nil
}

func (m *mockClassStore) Participants(ctx context.Context, classID string) ([]string, error) {
	return m.participants[classID], nil
}

func (m *mockClassStore) Delete(ctx context.Context, id string) error {
	if _, ok := m.classes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.classes, id)
	return nil
}

func sortClasses(classes []models.ScheduledClass) {
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].StartTime.Equal(classes[j].StartTime) {
			return classes[i].ID < classes[j].ID
		}
		return classes[i].StartTime.Before(classes[j].StartTime)
	})
}

type mockCourseReader struct {
	courses map[string]models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := m.courses[id]; ok {
		return &course, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentChecker struct {
	active map[string]bool
}

func (m *mockEnrollmentChecker) FindActive(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	if m.active[userID+"/"+courseID] {
		return &models.Enrollment{UserID: userID, CourseID: courseID, Status: models.EnrollmentStatusActive}, nil
	}
	return nil, sql.ErrNoRows
}

type mockUserReader struct {
	users map[string]models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return &user, nil
	}
	return nil, sql.ErrNoRows
}

type mockFeed struct {
	notified []string
}

func (m *mockFeed) Notify(ctx context.Context, courseID string) {
	m.notified = append(m.notified, courseID)
}

func newScheduleFixture() (*ScheduleService, *mockClassStore, *mockFeed, *mockEnrollmentChecker) {
	store := newMockClassStore()
	feed := &mockFeed{}
	enrollments := &mockEnrollmentChecker{active: map[string]bool{}}
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Title: "Go Foundations", InstructorID: "inst-1", InstructorName: "Ada", Published: true},
	}}
	users := &mockUserReader{users: map[string]models.User{}}
	svc := NewScheduleService(store, courses, enrollments, users, feed, 15*time.Minute, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc, store, feed, enrollments
}

func TestScheduleServiceCreateThenListUpcoming(t *testing.T) {
	svc, _, feed, _ := newScheduleFixture()

	created, err := svc.Create(context.Background(), "inst-1", CreateClassRequest{
		CourseID:        "course-1",
		Title:           "Interfaces",
		StartTime:       "2026-03-11T18:00:00Z",
		DurationMinutes: 60,
		Platform:        "MEET",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, models.ClassStatusScheduled, created.Status)
	assert.Equal(t, []string{"course-1"}, feed.notified)

	upcoming, err := svc.ListUpcoming(context.Background(), "course-1", 10)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, created.ID, upcoming[0].ID)
}

func TestScheduleServiceCreateRejectsNonOwner(t *testing.T) {
	svc, _, _, _ := newScheduleFixture()

	_, err := svc.Create(context.Background(), "inst-2", CreateClassRequest{
		CourseID:        "course-1",
		Title:           "Interfaces",
		StartTime:       "2026-03-11T18:00:00Z",
		DurationMinutes: 60,
		Platform:        "MEET",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceListUpcomingSkipsCancelledAndPast(t *testing.T) {
	svc, store, _, _ := newScheduleFixture()
	base := time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC)
	store.classes["past"] = models.ScheduledClass{ID: "past", CourseID: "course-1", StartTime: base.AddDate(0, 0, -7), Status: models.ClassStatusCompleted}
	store.classes["cancelled"] = models.ScheduledClass{ID: "cancelled", CourseID: "course-1", StartTime: base, Status: models.ClassStatusCancelled}
	store.classes["next"] = models.ScheduledClass{ID: "next", CourseID: "course-1", StartTime: base.AddDate(0, 0, 1), Status: models.ClassStatusScheduled}

	upcoming, err := svc.ListUpcoming(context.Background(), "course-1", 10)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "next", upcoming[0].ID)
}

func TestScheduleServiceDeleteOnlyBeforeLive(t *testing.T) {
	svc, store, feed, _ := newScheduleFixture()
	base := time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC)
	store.classes["held"] = models.ScheduledClass{ID: "held", CourseID: "course-1", StartTime: base, Status: models.ClassStatusLive}
	store.classes["draft"] = models.ScheduledClass{ID: "draft", CourseID: "course-1", StartTime: base, Status: models.ClassStatusScheduled}

	err := svc.Delete(context.Background(), "held")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Contains(t, store.classes, "held")

	require.NoError(t, svc.Delete(context.Background(), "draft"))
	assert.NotContains(t, store.classes, "draft")
	assert.Contains(t, feed.notified, "course-1")
}

func TestScheduleServiceTransitionMatrixEnforced(t *testing.T) {
	svc, store, feed, _ := newScheduleFixture()
	store.classes["class-1"] = models.ScheduledClass{
		ID: "class-1", CourseID: "course-1", InstructorID: "inst-1",
		Status: models.ClassStatusScheduled, Version: 1,
	}

	_, err := svc.Transition(context.Background(), "inst-1", "class-1", models.ClassStatusCompleted)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)

	view, err := svc.Transition(context.Background(), "inst-1", "class-1", models.ClassStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.ClassStatusCancelled, view.Status)
	assert.Contains(t, feed.notified, "course-1")

	_, err = svc.Transition(context.Background(), "inst-1", "class-1", models.ClassStatusLive)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceUpdateVersionConflict(t *testing.T) {
	svc, store, _, _ := newScheduleFixture()
	store.classes["class-1"] = models.ScheduledClass{
		ID: "class-1", CourseID: "course-1", InstructorID: "inst-1",
		Status: models.ClassStatusScheduled, Version: 2,
	}

	_, err := svc.Update(context.Background(), "inst-1", "class-1", UpdateClassRequest{
		Title:           "Moved",
		StartTime:       "2026-03-12T18:00:00Z",
		DurationMinutes: 60,
		Platform:        "ZOOM",
		Version:         1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrVersionConflict.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceJoinFlow(t *testing.T) {
	svc, store, _, enrollments := newScheduleFixture()
	store.classes["class-1"] = models.ScheduledClass{
		ID: "class-1", CourseID: "course-1", InstructorID: "inst-1",
		StartTime:  time.Date(2026, 3, 10, 12, 5, 0, 0, time.UTC),
		EndTime:    time.Date(2026, 3, 10, 13, 5, 0, 0, time.UTC),
		MeetingURL: "https://meet.example/abc",
		Platform:   models.PlatformMeet,
		Status:     models.ClassStatusScheduled,
		Version:    1,
	}

	_, err := svc.Join(context.Background(), "user-1", "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	enrollments.active["user-1/course-1"] = true
	resp, err := svc.Join(context.Background(), "user-1", "class-1")
	require.NoError(t, err)
	assert.Equal(t, "https://meet.example/abc", resp.MeetingURL)
}

func TestScheduleServiceJoinOutsideWindow(t *testing.T) {
	svc, store, _, enrollments := newScheduleFixture()
	enrollments.active["user-1/course-1"] = true
	store.classes["class-1"] = models.ScheduledClass{
		ID: "class-1", CourseID: "course-1",
		StartTime: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
		Status:    models.ClassStatusScheduled,
	}

	_, err := svc.Join(context.Background(), "user-1", "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrClassNotJoinable.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceJoinSeatLimit(t *testing.T) {
	svc, store, _, enrollments := newScheduleFixture()
	enrollments.active["user-1/course-1"] = true
	store.seatErr = repository.ErrSeatUnavailable
	store.classes["class-1"] = models.ScheduledClass{
		ID: "class-1", CourseID: "course-1",
		StartTime: time.Date(2026, 3, 10, 12, 5, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 10, 13, 5, 0, 0, time.UTC),
		Status:    models.ClassStatusScheduled,
	}

	_, err := svc.Join(context.Background(), "user-1", "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSeatLimitReached.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceGenerateFromPattern(t *testing.T) {
	svc, _, feed, _ := newScheduleFixture()

	classes, err := svc.GenerateFromPattern(context.Background(), "inst-1", models.CourseSchedulePattern{
		CourseID:        "course-1",
		Weekdays:        []time.Weekday{time.Monday, time.Wednesday},
		StartHour:       18,
		DurationMinutes: 60,
		StartDate:       time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		TotalClasses:    4,
	})
	require.NoError(t, err)
	require.Len(t, classes, 4)
	assert.Equal(t, time.Date(2026, 3, 16, 18, 0, 0, 0, time.UTC), classes[0].StartTime)
	assert.Equal(t, time.Date(2026, 3, 18, 18, 0, 0, 0, time.UTC), classes[1].StartTime)
	assert.Contains(t, feed.notified, "course-1")

	upcoming, err := svc.ListUpcoming(context.Background(), "course-1", 10)
	require.NoError(t, err)
	assert.Len(t, upcoming, 4)
}
