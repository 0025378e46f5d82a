package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/repository"
	appErrors "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/errors"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/retry"
)

type enrollmentStore interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindActive(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	ListByUser(ctx context.Context, userID string) ([]models.Enrollment, error)
	InsertProgressEvent(ctx context.Context, event *models.ProgressEvent) (bool, error)
	IncrementProgress(ctx context.Context, enrollmentID string, kind models.ProgressEventKind, at time.Time) error
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	Cancel(ctx context.Context, id string) error
}

type courseCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Course, error)
}

type classCounter interface {
	CountPlanned(ctx context.Context, courseIDs []string) (map[string]int, error)
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.ScheduledClass, error)
}

type certificateIssuer interface {
	EnqueueIssue(userID, courseID string) error
}

// EnrollRequest is the enrollment creation payload.
type EnrollRequest struct {
	CourseID   string `json:"course_id" validate:"required"`
	PaymentRef string `json:"payment_ref"`
}

// ProgressEventRequest records one unit of learner progress. EventID is the
// caller-supplied idempotency key: replays with the same id are absorbed.
type ProgressEventRequest struct {
	EventID  string `json:"event_id" validate:"required"`
	CourseID string `json:"course_id" validate:"required"`
	Kind     string `json:"kind" validate:"required"`
}

// EnrolledCourse pairs an enrollment with its course, derived progress and
// the course's next live classes. A course that failed to resolve carries an
// Error instead of failing the whole listing.
type EnrolledCourse struct {
	Enrollment      models.Enrollment       `json:"enrollment"`
	Course          *models.Course          `json:"course,omitempty"`
	Progress        models.ProgressSummary  `json:"progress"`
	NextClass       *models.ScheduledClass  `json:"next_class,omitempty"`
	UpcomingClasses []models.ScheduledClass `json:"upcoming_classes,omitempty"`
	Error           string                  `json:"error,omitempty"`
}

// maxUpcomingPerCourse bounds the classes listed after NextClass.
const maxUpcomingPerCourse = 5

// EnrollmentService owns the learner-course relationship: enrollment with
// payment and capacity rules, idempotent progress accrual, and completion.
type EnrollmentService struct {
	enrollments   enrollmentStore
	courses       courseCatalog
	classes       classCounter
	certificates  certificateIssuer
	validator     *validator.Validate
	logger        *zap.Logger
	metrics       *MetricsService
	paymentBypass bool
	now           func() time.Time
}

// NewEnrollmentService constructs EnrollmentService. certificates may be nil
// when certificate issuance is disabled.
func NewEnrollmentService(enrollments enrollmentStore, courses courseCatalog, classes classCounter, certificates certificateIssuer, paymentBypass bool, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments:   enrollments,
		courses:       courses,
		classes:       classes,
		certificates:  certificates,
		validator:     validate,
		logger:        logger,
		paymentBypass: paymentBypass,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetMetrics attaches Prometheus instrumentation. Optional.
func (s *EnrollmentService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Enroll registers a learner into a course. Paid courses require a payment
// reference; capacity and uniqueness are enforced by the store predicates.
func (s *EnrollmentService) Enroll(ctx context.Context, userID string, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Published {
		return nil, appErrors.Clone(appErrors.ErrCourseNotPublished, "")
	}
	if !course.Free() && req.PaymentRef == "" && !s.paymentBypass {
		return nil, appErrors.Clone(appErrors.ErrPaymentRequired, "")
	}

	enrollment := &models.Enrollment{
		UserID:     userID,
		CourseID:   course.ID,
		EnrolledAt: s.now(),
		Status:     models.EnrollmentStatusActive,
	}
	if req.PaymentRef != "" {
		enrollment.PaymentRef = &req.PaymentRef
	}

	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		switch err {
		case repository.ErrDuplicateEnrollment:
			s.metrics.ObserveEnrollment("duplicate")
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
		case repository.ErrCourseFull:
			s.metrics.ObserveEnrollment("full")
			return nil, appErrors.Clone(appErrors.ErrSeatLimitReached, "course has no seats remaining")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.metrics.ObserveEnrollment("enrolled")
	s.logger.Info("learner enrolled",
		zap.String("user_id", userID),
		zap.String("course_id", course.ID))
	return enrollment, nil
}

// MyCourses returns the learner's enrollments joined with their courses and
// derived progress.
func (s *EnrollmentService) MyCourses(ctx context.Context, userID string) ([]EnrolledCourse, error) {
	enrollments, err := s.enrollments.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if len(enrollments) == 0 {
		return []EnrolledCourse{}, nil
	}

	courseIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		courseIDs = append(courseIDs, e.CourseID)
	}
	courses, err := s.courses.FindByIDs(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	classCounts, err := s.classes.CountPlanned(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}
	classes, err := s.classes.ListByCourses(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	byCourse := make(map[string][]models.ScheduledClass)
	for _, class := range classes {
		byCourse[class.CourseID] = append(byCourse[class.CourseID], class)
	}

	now := s.now()
	result := make([]EnrolledCourse, 0, len(enrollments))
	for _, e := range enrollments {
		entry := EnrolledCourse{Enrollment: e}
		totalLessons := 0
		if course, ok := courses[e.CourseID]; ok {
			c := course
			entry.Course = &c
			totalLessons = course.TotalLessons
		} else {
			entry.Error = "course unavailable"
		}
		entry.Progress = models.ComputeProgress(e.LessonsCompleted, totalLessons, e.ClassesAttended, classCounts[e.CourseID])
		entry.NextClass, entry.UpcomingClasses = nextClasses(byCourse[e.CourseID], now)
		result = append(result, entry)
	}
	return result, nil
}

// nextClasses picks the soonest class still ahead of the learner and up to
// maxUpcomingPerCourse more. Input is ordered by start time then id, so the
// first pending class is the next one.
func nextClasses(classes []models.ScheduledClass, now time.Time) (*models.ScheduledClass, []models.ScheduledClass) {
	var pending []models.ScheduledClass
	for _, class := range classes {
		switch class.EffectiveStatus(now) {
		case models.ClassStatusCompleted, models.ClassStatusCancelled:
			continue
		}
		pending = append(pending, class)
	}
	if len(pending) == 0 {
		return nil, nil
	}
	next := pending[0]
	rest := pending[1:]
	if len(rest) > maxUpcomingPerCourse {
		rest = rest[:maxUpcomingPerCourse]
	}
	return &next, rest
}

// Progress returns the derived progress summary for one enrollment.
func (s *EnrollmentService) Progress(ctx context.Context, userID, courseID string) (*models.ProgressSummary, error) {
	enrollment, err := s.enrollments.FindActive(ctx, userID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	summary, err := s.summarize(ctx, enrollment)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// RecordProgress applies one progress event. Replayed event ids are absorbed
// without incrementing, so the operation is safe to retry. Reaching full
// progress completes the enrollment and queues a certificate.
func (s *EnrollmentService) RecordProgress(ctx context.Context, userID string, req ProgressEventRequest) (*models.ProgressSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	kind := models.ProgressEventKind(req.Kind)
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown progress kind "+req.Kind)
	}

	enrollment, err := s.enrollments.FindActive(ctx, userID, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
	}

	now := s.now()
	applied, err := s.enrollments.InsertProgressEvent(ctx, &models.ProgressEvent{
		EventID:    req.EventID,
		UserID:     userID,
		CourseID:   req.CourseID,
		Kind:       kind,
		RecordedAt: now,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record progress event")
	}
	if applied {
		s.metrics.ObserveProgressEvent("applied")
		// The event row is already committed, so the counter bump must land.
		err := retry.Do(ctx, retry.DefaultConfig, appErrors.IsRetryable, func(ctx context.Context) error {
			return s.enrollments.IncrementProgress(ctx, enrollment.ID, kind, now)
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply progress")
		}
		switch kind {
		case models.ProgressLessonCompleted:
			enrollment.LessonsCompleted++
		case models.ProgressClassAttended:
			enrollment.ClassesAttended++
		}
		enrollment.LastActivity = &now
	} else {
		s.metrics.ObserveProgressEvent("duplicate")
		s.logger.Debug("duplicate progress event absorbed",
			zap.String("event_id", req.EventID),
			zap.String("user_id", userID))
	}

	summary, err := s.summarize(ctx, enrollment)
	if err != nil {
		return nil, err
	}

	if applied && summary.Complete() && enrollment.Status == models.EnrollmentStatusActive {
		if err := s.enrollments.MarkCompleted(ctx, enrollment.ID, now); err != nil && err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete enrollment")
		}
		s.logger.Info("course completed",
			zap.String("user_id", userID),
			zap.String("course_id", req.CourseID))
		if s.certificates != nil {
			if err := s.certificates.EnqueueIssue(userID, req.CourseID); err != nil {
				s.logger.Error("queue certificate issuance failed",
					zap.String("user_id", userID),
					zap.String("course_id", req.CourseID),
					zap.Error(err))
			}
		}
	}
	return summary, nil
}

// Unenroll cancels an active enrollment and releases the course seat.
func (s *EnrollmentService) Unenroll(ctx context.Context, userID, courseID string) error {
	enrollment, err := s.enrollments.FindActive(ctx, userID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
	}
	if err := s.enrollments.Cancel(ctx, enrollment.ID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	return nil
}

func (s *EnrollmentService) summarize(ctx context.Context, enrollment *models.Enrollment) (*models.ProgressSummary, error) {
	course, err := s.courses.FindByID(ctx, enrollment.CourseID)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	totalLessons := 0
	if course != nil {
		totalLessons = course.TotalLessons
	}
	counts, err := s.classes.CountPlanned(ctx, []string{enrollment.CourseID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}
	summary := models.ComputeProgress(enrollment.LessonsCompleted, totalLessons, enrollment.ClassesAttended, counts[enrollment.CourseID])
	return &summary, nil
}
