package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
	appErrors "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/errors"
)

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

type instructorReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateCourseRequest is the course creation payload.
type CreateCourseRequest struct {
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description"`
	Category     string `json:"category" validate:"required"`
	PriceCents   int64  `json:"price_cents" validate:"gte=0"`
	TotalLessons int    `json:"total_lessons" validate:"gte=0"`
	MaxStudents  int    `json:"max_students" validate:"gte=0"`
}

// UpdateCourseRequest carries editable course fields.
type UpdateCourseRequest struct {
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description"`
	Category     string `json:"category" validate:"required"`
	PriceCents   int64  `json:"price_cents" validate:"gte=0"`
	TotalLessons int    `json:"total_lessons" validate:"gte=0"`
	MaxStudents  int    `json:"max_students" validate:"gte=0"`
	Published    bool   `json:"published"`
}

type catalogPage struct {
	Courses []models.Course   `json:"courses"`
	Meta    models.Pagination `json:"meta"`
}

// CourseService manages the catalog. Published listings are served through
// the cache; any write invalidates the whole catalog keyspace.
type CourseService struct {
	courses   courseStore
	users     instructorReader
	cache     catalogCache
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewCourseService constructs CourseService. cache may be nil.
func NewCourseService(courses courseStore, users instructorReader, cache catalogCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, users: users, cache: cache, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// List returns catalog courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	key := catalogKey(filter)
	if s.cache != nil && key != "" {
		var page catalogPage
		if err := s.cache.Get(ctx, key, &page); err == nil {
			return page.Courses, &page.Meta, nil
		}
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}

	if s.cache != nil && key != "" {
		if err := s.cache.Set(ctx, key, catalogPage{Courses: courses, Meta: *pagination}, s.cacheTTL); err != nil {
			s.logger.Warn("cache catalog page failed", zap.Error(err))
		}
	}
	return courses, pagination, nil
}

// Get returns one course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create adds an unpublished course owned by the instructor.
func (s *CourseService) Create(ctx context.Context, instructorID string, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	instructor, err := s.users.FindByID(ctx, instructorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}

	course := &models.Course{
		Title:          req.Title,
		Description:    req.Description,
		InstructorID:   instructor.ID,
		InstructorName: instructor.FullName,
		Category:       req.Category,
		PriceCents:     req.PriceCents,
		TotalLessons:   req.TotalLessons,
		MaxStudents:    req.MaxStudents,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidate(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("instructor_id", instructor.ID))
	return course, nil
}

// Update edits a course. Only the owning instructor or an admin may write.
func (s *CourseService) Update(ctx context.Context, actorID string, actorRole models.UserRole, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actorRole != models.RoleAdmin && course.InstructorID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may edit it")
	}

	course.Title = req.Title
	course.Description = req.Description
	course.Category = req.Category
	course.PriceCents = req.PriceCents
	course.TotalLessons = req.TotalLessons
	course.MaxStudents = req.MaxStudents
	course.Published = req.Published

	if err := s.courses.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidate(ctx)
	return course, nil
}

func (s *CourseService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "catalog:*"); err != nil {
		s.logger.Warn("invalidate catalog cache failed", zap.Error(err))
	}
}

// catalogKey builds a cache key for published-catalog queries only; filtered
// admin or instructor views always hit the store.
func catalogKey(filter models.CourseFilter) string {
	if filter.InstructorID != "" || filter.Search != "" {
		return ""
	}
	if filter.Published == nil || !*filter.Published {
		return ""
	}
	return fmt.Sprintf("catalog:%s:%d:%d:%s:%s", filter.Category, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}
