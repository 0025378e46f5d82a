package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
	appErrors "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/errors"
)

type enrollmentLister interface {
	ListByUser(ctx context.Context, userID string) ([]models.Enrollment, error)
}

type classLister interface {
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.ScheduledClass, error)
}

type calendarCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CalendarResponse is the full calendar payload for one learner.
type CalendarResponse struct {
	Events    []models.CalendarEvent `json:"events"`
	Week      WeekView               `json:"week"`
	Weeks     []WeekBucket           `json:"weeks"`
	NextClass *models.CalendarEvent  `json:"next_class,omitempty"`
}

// CalendarService assembles per-learner calendars from enrollments and
// course schedules. Gathering hits the store; projection itself is pure.
type CalendarService struct {
	enrollments enrollmentLister
	courses     courseCatalog
	classes     classLister
	cache       calendarCache
	logger      *zap.Logger
	joinWindow  time.Duration
	cacheTTL    time.Duration
	now         func() time.Time
}

// NewCalendarService constructs CalendarService. cache may be nil.
func NewCalendarService(enrollments enrollmentLister, courses courseCatalog, classes classLister, cache calendarCache, joinWindow, cacheTTL time.Duration, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if joinWindow <= 0 {
		joinWindow = 15 * time.Minute
	}
	return &CalendarService{
		enrollments: enrollments,
		courses:     courses,
		classes:     classes,
		cache:       cache,
		logger:      logger,
		joinWindow:  joinWindow,
		cacheTTL:    cacheTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Calendar returns the learner's projected calendar with week buckets and
// the next class pointer.
func (s *CalendarService) Calendar(ctx context.Context, userID string) (*CalendarResponse, error) {
	events, err := s.events(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &CalendarResponse{
		Events:    events,
		Week:      BucketByWeek(events, now),
		Weeks:     BucketByWeeks(events),
		NextClass: NextEvent(events, now),
	}, nil
}

// Upcoming returns the learner's next classes across all enrolled courses.
func (s *CalendarService) Upcoming(ctx context.Context, userID string, limit int) ([]models.CalendarEvent, error) {
	events, err := s.events(ctx, userID)
	if err != nil {
		return nil, err
	}
	return UpcomingEvents(events, s.now(), limit), nil
}

// events gathers inputs and projects. The raw class set is cached per
// learner; effective status and joinability are recomputed on every call
// because they depend on the clock.
func (s *CalendarService) events(ctx context.Context, userID string) ([]models.CalendarEvent, error) {
	var inputs []models.EnrolledCourseClasses

	cacheKey := fmt.Sprintf("calendar:inputs:%s", userID)
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &inputs); err == nil {
			return ProjectCalendar(inputs, s.now(), s.joinWindow), nil
		}
	}

	enrollments, err := s.enrollments.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if len(enrollments) == 0 {
		return []models.CalendarEvent{}, nil
	}

	courseIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		courseIDs = append(courseIDs, e.CourseID)
	}
	courses, err := s.courses.FindByIDs(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	classes, err := s.classes.ListByCourses(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}

	classesByCourse := make(map[string][]models.ScheduledClass, len(courseIDs))
	for _, class := range classes {
		classesByCourse[class.CourseID] = append(classesByCourse[class.CourseID], class)
	}
	for _, courseID := range courseIDs {
		input := models.EnrolledCourseClasses{Classes: classesByCourse[courseID]}
		if course, ok := courses[courseID]; ok {
			c := course
			input.Course = &c
		}
		inputs = append(inputs, input)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, inputs, s.cacheTTL); err != nil {
			s.logger.Warn("cache calendar inputs failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return ProjectCalendar(inputs, s.now(), s.joinWindow), nil
}
