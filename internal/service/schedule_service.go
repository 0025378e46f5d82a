package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/repository"
	appErrors "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/errors"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/export"
)

type classStore interface {
	Create(ctx context.Context, class *models.ScheduledClass) error
	BulkCreate(ctx context.Context, classes []models.ScheduledClass) error
	FindByID(ctx context.Context, id string) (*models.ScheduledClass, error)
	UpdateWithVersion(ctx context.Context, class *models.ScheduledClass) error
	ListByCourse(ctx context.Context, courseID string) ([]models.ScheduledClass, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.ScheduledClass, error)
	ListUpcoming(ctx context.Context, courseID string, from time.Time) ([]models.ScheduledClass, error)
	ReserveSeat(ctx context.Context, classID, userID string) (bool, error)
	Participants(ctx context.Context, classID string) ([]string, error)
	Delete(ctx context.Context, id string) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentChecker interface {
	FindActive(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
}

type participantReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type feedNotifier interface {
	Notify(ctx context.Context, courseID string)
}

// CreateClassRequest describes a single class creation payload.
type CreateClassRequest struct {
	CourseID        string `json:"course_id" validate:"required"`
	Title           string `json:"title" validate:"required"`
	Description     string `json:"description"`
	StartTime       string `json:"start_time" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0"`
	MeetingURL      string `json:"meeting_url" validate:"omitempty,url"`
	Platform        string `json:"platform" validate:"required"`
	MaxStudents     int    `json:"max_students" validate:"gte=0"`
}

// UpdateClassRequest carries editable fields plus the version the caller
// read. A stale version is rejected rather than silently overwritten.
type UpdateClassRequest struct {
	Title           string `json:"title" validate:"required"`
	Description     string `json:"description"`
	StartTime       string `json:"start_time" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0"`
	MeetingURL      string `json:"meeting_url" validate:"omitempty,url"`
	Platform        string `json:"platform" validate:"required"`
	MaxStudents     int    `json:"max_students" validate:"gte=0"`
	Version         int    `json:"version" validate:"required,gt=0"`
}

// ClassView is a class decorated with clock-derived presentation fields.
type ClassView struct {
	models.ScheduledClass
	EffectiveStatus models.ClassStatus `json:"effective_status"`
	Joinable        bool               `json:"joinable"`
}

// JoinClassResponse hands the learner the meeting link.
type JoinClassResponse struct {
	ClassID    string                 `json:"class_id"`
	MeetingURL string                 `json:"meeting_url"`
	Platform   models.MeetingPlatform `json:"platform"`
}

// ScheduleService owns the live-class lifecycle: creation, pattern
// expansion, guarded updates, status transitions, the join flow, and change
// notifications to the class feed.
type ScheduleService struct {
	classes     classStore
	courses     courseReader
	enrollments enrollmentChecker
	users       participantReader
	feed        feedNotifier
	csv         *export.CSVExporter
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
	joinWindow  time.Duration
	now         func() time.Time
}

// NewScheduleService constructs ScheduleService.
func NewScheduleService(classes classStore, courses courseReader, enrollments enrollmentChecker, users participantReader, feed feedNotifier, joinWindow time.Duration, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if joinWindow <= 0 {
		joinWindow = 15 * time.Minute
	}
	return &ScheduleService{
		classes:     classes,
		courses:     courses,
		enrollments: enrollments,
		users:       users,
		feed:        feed,
		csv:         export.NewCSVExporter(),
		validator:   validate,
		logger:      logger,
		joinWindow:  joinWindow,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetMetrics attaches Prometheus instrumentation. Optional.
func (s *ScheduleService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Create schedules a single class for a course.
func (s *ScheduleService) Create(ctx context.Context, instructorID string, req CreateClassRequest) (*models.ScheduledClass, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	platform := models.MeetingPlatform(req.Platform)
	if !platform.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown platform "+req.Platform)
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be RFC3339")
	}
	if !startTime.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be in the future")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.InstructorID != instructorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor may schedule classes")
	}

	class := &models.ScheduledClass{
		CourseID:        course.ID,
		Title:           req.Title,
		Description:     req.Description,
		InstructorID:    course.InstructorID,
		InstructorName:  course.InstructorName,
		StartTime:       startTime.UTC(),
		EndTime:         startTime.Add(time.Duration(req.DurationMinutes) * time.Minute).UTC(),
		DurationMinutes: req.DurationMinutes,
		MeetingURL:      req.MeetingURL,
		Platform:        platform,
		Status:          models.ClassStatusScheduled,
		MaxStudents:     req.MaxStudents,
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	s.feed.Notify(ctx, class.CourseID)
	s.logger.Info("class scheduled",
		zap.String("class_id", class.ID),
		zap.String("course_id", class.CourseID),
		zap.Time("start_time", class.StartTime))
	return class, nil
}

// GenerateFromPattern expands a recurrence pattern into concrete classes and
// persists them atomically.
func (s *ScheduleService) GenerateFromPattern(ctx context.Context, instructorID string, pattern models.CourseSchedulePattern) ([]models.ScheduledClass, error) {
	course, err := s.courses.FindByID(ctx, pattern.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.InstructorID != instructorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor may schedule classes")
	}

	classes, err := ExpandPattern(pattern, course)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pattern generates no classes")
	}
	if err := s.classes.BulkCreate(ctx, classes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist generated classes")
	}

	s.feed.Notify(ctx, course.ID)
	s.logger.Info("schedule pattern expanded",
		zap.String("course_id", course.ID),
		zap.Int("classes", len(classes)))
	return classes, nil
}

// Get returns a class with its effective status and joinability.
func (s *ScheduleService) Get(ctx context.Context, id string) (*ClassView, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return s.view(class), nil
}

// Update applies editable fields guarded by the version the caller read.
func (s *ScheduleService) Update(ctx context.Context, instructorID, id string, req UpdateClassRequest) (*ClassView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	platform := models.MeetingPlatform(req.Platform)
	if !platform.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown platform "+req.Platform)
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be RFC3339")
	}

	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.InstructorID != instructorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the class instructor may edit it")
	}
	if class.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot edit a completed or cancelled class")
	}

	class.Title = req.Title
	class.Description = req.Description
	class.StartTime = startTime.UTC()
	class.EndTime = startTime.Add(time.Duration(req.DurationMinutes) * time.Minute).UTC()
	class.DurationMinutes = req.DurationMinutes
	class.MeetingURL = req.MeetingURL
	class.Platform = platform
	class.MaxStudents = req.MaxStudents
	class.Version = req.Version

	if err := s.classes.UpdateWithVersion(ctx, class); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrVersionConflict, "class was modified concurrently, re-read and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}

	s.feed.Notify(ctx, class.CourseID)
	return s.view(class), nil
}

// Transition moves a class to the requested status, enforcing the state
// machine. The write is version-guarded so two racing transitions cannot
// both win.
func (s *ScheduleService) Transition(ctx context.Context, instructorID, id string, next models.ClassStatus) (*ClassView, error) {
	if !next.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status "+string(next))
	}

	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.InstructorID != instructorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the class instructor may change its status")
	}
	if !class.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move class from %s to %s", class.Status, next))
	}

	class.Status = next
	if err := s.classes.UpdateWithVersion(ctx, class); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrVersionConflict, "class was modified concurrently, re-read and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition class")
	}

	s.feed.Notify(ctx, class.CourseID)
	s.logger.Info("class status changed",
		zap.String("class_id", class.ID),
		zap.String("status", string(next)))
	return s.view(class), nil
}

// ListByCourse returns every class of a course decorated for display.
func (s *ScheduleService) ListByCourse(ctx context.Context, courseID string) ([]ClassView, error) {
	classes, err := s.classes.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return s.views(classes), nil
}

// ListByInstructor returns an instructor's classes decorated for display.
func (s *ScheduleService) ListByInstructor(ctx context.Context, instructorID string) ([]ClassView, error) {
	classes, err := s.classes.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return s.views(classes), nil
}

// ListUpcoming returns the next classes of a course from now, ascending. The
// result is a point-in-time snapshot; live updates travel through the feed.
func (s *ScheduleService) ListUpcoming(ctx context.Context, courseID string, limit int) ([]ClassView, error) {
	classes, err := s.classes.ListUpcoming(ctx, courseID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upcoming classes")
	}
	views := make([]ClassView, 0, len(classes))
	for i := range classes {
		if classes[i].Status == models.ClassStatusCancelled {
			continue
		}
		views = append(views, *s.view(&classes[i]))
		if limit > 0 && len(views) >= limit {
			break
		}
	}
	return views, nil
}

// Join hands an enrolled learner the meeting link when the join window is
// open, claiming a seat on first join.
func (s *ScheduleService) Join(ctx context.Context, userID, classID string) (*JoinClassResponse, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if _, err := s.enrollments.FindActive(ctx, userID, class.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	if !class.Joinable(s.now(), s.joinWindow) {
		s.metrics.ObserveJoin("window_closed")
		return nil, appErrors.Clone(appErrors.ErrClassNotJoinable, "")
	}

	reserved, err := s.classes.ReserveSeat(ctx, classID, userID)
	if err != nil {
		if err == repository.ErrSeatUnavailable {
			s.metrics.ObserveJoin("full")
			return nil, appErrors.Clone(appErrors.ErrSeatLimitReached, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve seat")
	}
	if reserved {
		s.feed.Notify(ctx, class.CourseID)
	}

	s.metrics.ObserveJoin("joined")
	return &JoinClassResponse{ClassID: class.ID, MeetingURL: class.MeetingURL, Platform: class.Platform}, nil
}

// Delete removes a class permanently. Cancellation is the normal path; hard
// deletion is reserved for classes that never went live.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.Status == models.ClassStatusLive || class.Status == models.ClassStatusCompleted {
		return appErrors.Clone(appErrors.ErrConflict, "classes that went live cannot be deleted")
	}
	if err := s.classes.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.feed.Notify(ctx, class.CourseID)
	return nil
}

// ExportRoster renders the participant list of a class as CSV.
func (s *ScheduleService) ExportRoster(ctx context.Context, instructorID, classID string) ([]byte, string, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.InstructorID != instructorID {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "only the class instructor may export the roster")
	}

	userIDs, err := s.classes.Participants(ctx, classID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
	}

	dataset := export.Dataset{Headers: []string{"user_id", "full_name", "email"}}
	for _, userID := range userIDs {
		row := map[string]string{"user_id": userID}
		if user, err := s.users.FindByID(ctx, userID); err == nil {
			row["full_name"] = user.FullName
			row["email"] = user.Email
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	filename := fmt.Sprintf("roster-%s-%s.csv", class.ID, s.now().Format("20060102"))
	return payload, filename, nil
}

// UpcomingLoader adapts the store for the class feed.
func (s *ScheduleService) UpcomingLoader() FeedLoader {
	return func(ctx context.Context, courseID string) ([]models.ScheduledClass, error) {
		return s.classes.ListUpcoming(ctx, courseID, s.now())
	}
}

func (s *ScheduleService) view(class *models.ScheduledClass) *ClassView {
	now := s.now()
	return &ClassView{
		ScheduledClass:  *class,
		EffectiveStatus: class.EffectiveStatus(now),
		Joinable:        class.Joinable(now, s.joinWindow),
	}
}

func (s *ScheduleService) views(classes []models.ScheduledClass) []ClassView {
	views := make([]ClassView, 0, len(classes))
	for i := range classes {
		views = append(views, *s.view(&classes[i]))
	}
	return views
}
