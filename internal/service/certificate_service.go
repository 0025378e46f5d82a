package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
	appErrors "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/errors"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/export"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/jobs"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/storage"
)

type certificateEnrollmentReader interface {
	FindActive(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
}

type certificateUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type certificateJob struct {
	UserID   string
	CourseID string
}

// CertificateLink is a time-limited download reference.
type CertificateLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CertificateConfig tunes background issuance.
type CertificateConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
}

// CertificateService issues PDF completion certificates in the background
// and serves them through signed URLs. Issuance is queued on completion and
// retried on failure; the rendered file is the durable artifact.
type CertificateService struct {
	enrollments certificateEnrollmentReader
	courses     courseReader
	users       certificateUserReader
	renderer    *export.CertificateRenderer
	store       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	queue       *jobs.Queue
	logger      *zap.Logger
	now         func() time.Time
}

// NewCertificateService constructs the service and its worker queue.
func NewCertificateService(enrollments certificateEnrollmentReader, courses courseReader, users certificateUserReader, store *storage.LocalStorage, signer *storage.SignedURLSigner, cfg CertificateConfig, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CertificateService{
		enrollments: enrollments,
		courses:     courses,
		users:       users,
		renderer:    export.NewCertificateRenderer(),
		store:       store,
		signer:      signer,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue("certificates", s.handle, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *CertificateService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *CertificateService) Stop() {
	s.queue.Stop()
}

// EnqueueIssue queues certificate generation for a completed enrollment.
func (s *CertificateService) EnqueueIssue(userID, courseID string) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "issue_certificate",
		Payload: certificateJob{UserID: userID, CourseID: courseID},
	})
}

// Link returns a signed download URL for the learner's certificate. The
// enrollment must be completed and the file already rendered.
func (s *CertificateService) Link(ctx context.Context, userID, courseID string) (*CertificateLink, error) {
	enrollment, err := s.enrollments.FindActive(ctx, userID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course is not completed")
	}

	filename := certificateFilename(userID, courseID)
	file, err := s.store.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate is still being generated")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open certificate")
	}
	file.Close()

	url, expiresAt, err := s.signer.Generate(userID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign certificate url")
	}
	return &CertificateLink{URL: url, ExpiresAt: expiresAt}, nil
}

// Resolve validates a signed token and opens the underlying certificate.
func (s *CertificateService) Resolve(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link")
	}
	if strings.Contains(relPath, "..") {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download link")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open certificate")
	}
	return file, nil
}

func (s *CertificateService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(certificateJob)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}

	enrollment, err := s.enrollments.FindActive(ctx, payload.UserID, payload.CourseID)
	if err != nil {
		return fmt.Errorf("load enrollment: %w", err)
	}
	if enrollment.Status != models.EnrollmentStatusCompleted {
		// Completion may have been rolled back; drop the job silently.
		s.logger.Warn("skipping certificate for non-completed enrollment",
			zap.String("user_id", payload.UserID),
			zap.String("course_id", payload.CourseID))
		return nil
	}

	user, err := s.users.FindByID(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	course, err := s.courses.FindByID(ctx, payload.CourseID)
	if err != nil {
		return fmt.Errorf("load course: %w", err)
	}

	completedAt := s.now()
	if enrollment.CompletedAt != nil {
		completedAt = *enrollment.CompletedAt
	}
	pdf, err := s.renderer.Render(export.Certificate{
		StudentName:    user.FullName,
		CourseTitle:    course.Title,
		InstructorName: course.InstructorName,
		CompletedAt:    completedAt,
		SerialNumber:   enrollment.ID,
	})
	if err != nil {
		return fmt.Errorf("render certificate: %w", err)
	}

	if _, err := s.store.Save(certificateFilename(payload.UserID, payload.CourseID), pdf); err != nil {
		return fmt.Errorf("store certificate: %w", err)
	}

	s.logger.Info("certificate issued",
		zap.String("user_id", payload.UserID),
		zap.String("course_id", payload.CourseID))
	return nil
}

func certificateFilename(userID, courseID string) string {
	return fmt.Sprintf("certificate-%s-%s.pdf", userID, courseID)
}
