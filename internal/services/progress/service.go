// Package progress applies the access rules to stored enrollments: enrolling,
// evaluating a learner's standing, recording lesson completions and gating
// the exam and certificate.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/pkg/metrics"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// Catalog provides read-only curriculum snapshots.
type Catalog interface {
	CourseSnapshot(ctx context.Context, courseID uuid.UUID) (access.Course, error)
}

// EnrollmentStore persists enrollments. MergeEnrollment must apply the patch
// atomically against the stored set so concurrent merges never lose lessons.
type EnrollmentStore interface {
	GetEnrollment(ctx context.Context, userID, courseID uuid.UUID) (access.Enrollment, error)
	CreateEnrollment(ctx context.Context, req EnrollRequest) (access.Enrollment, error)
	MergeEnrollment(ctx context.Context, userID, courseID uuid.UUID, patch access.MergePatch) (access.MergeResult, error)
}

// AchievementNotifier is told once when a learner completes a course.
type AchievementNotifier interface {
	CourseCompleted(ctx context.Context, userID, courseID uuid.UUID) error
}

// EventPublisher pushes progress changes to connected clients.
type EventPublisher interface {
	PublishProgress(ctx context.Context, userID, courseID uuid.UUID, payload any) error
}

// EnrollRequest describes a new enrollment. EnrolledAt is set by the service.
type EnrollRequest struct {
	UserID           uuid.UUID
	CourseID         uuid.UUID
	EnrolledAt       time.Time
	PaymentMethod    types.PaymentMethod
	AmountPaid       types.Money
	PaymentReference string
}

// Status is a learner's enrollment together with its evaluation.
type Status struct {
	Enrollment access.Enrollment `json:"-"`
	Evaluation access.Evaluation `json:"evaluation"`
}

// CompletionResult reports what a completion request did.
type CompletionResult struct {
	Applied         []uuid.UUID       `json:"applied"`
	Rejected        []uuid.UUID       `json:"rejected"`
	Progress        access.Progress   `json:"progress"`
	BecameCompleted bool              `json:"becameCompleted"`
	Enrollment      access.Enrollment `json:"-"`
}

// ProgressEvent is published after a completion is stored.
type ProgressEvent struct {
	CourseID         uuid.UUID   `json:"courseId"`
	Progress         int         `json:"progress"`
	Completed        bool        `json:"completed"`
	CompletedLessons []uuid.UUID `json:"completedLessons"`
	BecameCompleted  bool        `json:"becameCompleted"`
	At               time.Time   `json:"at"`
}

// Service orchestrates the access rules against storage.
type Service struct {
	catalog   Catalog
	store     EnrollmentStore
	notifier  AchievementNotifier
	publisher EventPublisher
	gate      access.Gate
	now       func() time.Time
	logger    *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone in which drip calendar days are counted.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.gate = access.NewGate(loc) }
}

// WithNotifier sets the achievement collaborator.
func WithNotifier(n AchievementNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithPublisher sets the realtime event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService builds a service. Drip days default to UTC.
func NewService(catalog Catalog, store EnrollmentStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		catalog: catalog,
		store:   store,
		gate:    access.NewGate(time.UTC),
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Gate exposes the configured access rules to read-only callers such as the digest job.
func (s *Service) Gate() access.Gate {
	return s.gate
}

// Enroll creates an enrollment stamped with the current time.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (access.Enrollment, error) {
	if _, err := s.catalog.CourseSnapshot(ctx, req.CourseID); err != nil {
		return access.Enrollment{}, err
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = types.PaymentMethodFree
	}
	req.EnrolledAt = s.now().UTC()

	enrollment, err := s.store.CreateEnrollment(ctx, req)
	if err != nil {
		return access.Enrollment{}, err
	}

	metrics.RecordEnrollment(string(req.PaymentMethod))
	s.logger.InfoContext(ctx, "learner enrolled",
		slog.String("userId", req.UserID.String()),
		slog.String("courseId", req.CourseID.String()),
		slog.String("paymentMethod", string(req.PaymentMethod)))

	return enrollment, nil
}

// Status evaluates a learner's standing at the current time.
func (s *Service) Status(ctx context.Context, userID, courseID uuid.UUID) (Status, error) {
	now := s.now()

	course, enrollment, err := s.load(ctx, userID, courseID)
	if err != nil {
		return Status{}, err
	}

	eval, err := s.gate.Evaluate(course, enrollment, now)
	if err != nil {
		return Status{}, err
	}

	return Status{Enrollment: enrollment, Evaluation: eval}, nil
}

// CompleteLessons validates and records a batch of completions. Ids not in
// the curriculum are reported as rejected; any locked id fails the batch.
func (s *Service) CompleteLessons(ctx context.Context, userID, courseID uuid.UUID, lessonIDs []uuid.UUID) (CompletionResult, error) {
	now := s.now()

	course, enrollment, err := s.load(ctx, userID, courseID)
	if err != nil {
		return CompletionResult{}, err
	}

	plan, err := s.gate.PlanCompletion(course, enrollment, lessonIDs, now)
	if err != nil {
		if errors.Is(err, access.ErrAccessDenied) {
			metrics.RecordAccessDenied("complete")
		}
		return CompletionResult{}, err
	}

	if len(plan.Rejected) > 0 {
		s.logger.DebugContext(ctx, "stale lesson references in completion request",
			slog.String("userId", userID.String()),
			slog.String("courseId", courseID.String()),
			slog.Int("rejected", len(plan.Rejected)))
	}

	result := CompletionResult{
		Applied:    nonNil(plan.Accepted),
		Rejected:   nonNil(plan.Rejected),
		Progress:   access.Progress{Percent: enrollment.Progress, Completed: enrollment.Completed},
		Enrollment: enrollment,
	}
	metrics.RecordCompletion(len(plan.Accepted), len(plan.Rejected))

	if len(plan.Accepted) == 0 {
		return result, nil
	}

	merged, err := s.store.MergeEnrollment(ctx, userID, courseID, access.MergePatch{AddLessons: plan.Accepted, Course: course})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("merge enrollment: %w", err)
	}

	result.Enrollment = merged.Enrollment
	result.Progress = access.Progress{Percent: merged.Enrollment.Progress, Completed: merged.Enrollment.Completed}
	result.BecameCompleted = merged.BecameCompleted

	if merged.BecameCompleted {
		metrics.RecordCourseCompleted()
		s.notifyCompleted(ctx, userID, courseID)
	}
	s.publish(ctx, merged)

	return result, nil
}

// ViewLesson checks that a lesson may be opened now.
func (s *Service) ViewLesson(ctx context.Context, userID, courseID, lessonID uuid.UUID) error {
	now := s.now()

	course, enrollment, err := s.load(ctx, userID, courseID)
	if err != nil {
		return err
	}

	if err := s.gate.CanView(course, enrollment, lessonID, now); err != nil {
		if errors.Is(err, access.ErrAccessDenied) {
			metrics.RecordAccessDenied("view")
		}
		return err
	}
	return nil
}

// CheckExamEligibility returns the enrollment when the learner may sit the
// exam. Completion is judged against the current curriculum.
func (s *Service) CheckExamEligibility(ctx context.Context, userID, courseID uuid.UUID) (access.Enrollment, error) {
	course, enrollment, err := s.load(ctx, userID, courseID)
	if err != nil {
		return access.Enrollment{}, err
	}
	if err := access.ExamEligible(course, enrollment); err != nil {
		metrics.RecordAccessDenied("exam")
		return access.Enrollment{}, err
	}
	return enrollment, nil
}

// CheckCertificateEligibility requires a completed course and a passing exam.
func (s *Service) CheckCertificateEligibility(ctx context.Context, userID, courseID uuid.UUID, passedExam bool) (access.Enrollment, error) {
	course, enrollment, err := s.load(ctx, userID, courseID)
	if err != nil {
		return access.Enrollment{}, err
	}
	if err := access.CertificateEligible(course, enrollment, passedExam); err != nil {
		metrics.RecordAccessDenied("certificate")
		return access.Enrollment{}, err
	}
	return enrollment, nil
}

// load reads the curriculum and the enrollment, with the enrollment's derived
// fields re-evaluated against that curriculum.
func (s *Service) load(ctx context.Context, userID, courseID uuid.UUID) (access.Course, access.Enrollment, error) {
	course, err := s.catalog.CourseSnapshot(ctx, courseID)
	if err != nil {
		return access.Course{}, access.Enrollment{}, err
	}
	enrollment, err := s.enrollment(ctx, userID, courseID)
	if err != nil {
		return access.Course{}, access.Enrollment{}, err
	}
	return course, enrollment.Reevaluate(course), nil
}

func (s *Service) enrollment(ctx context.Context, userID, courseID uuid.UUID) (access.Enrollment, error) {
	enrollment, err := s.store.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, ErrEnrollmentNotFound) {
			return access.Enrollment{}, fmt.Errorf("%w: user %s, course %s", access.ErrNotEnrolled, userID, courseID)
		}
		return access.Enrollment{}, err
	}
	return enrollment, nil
}

// notifyCompleted runs after the merge is stored; failures never undo it.
func (s *Service) notifyCompleted(ctx context.Context, userID, courseID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.CourseCompleted(ctx, userID, courseID); err != nil {
		s.logger.ErrorContext(ctx, "failed to award course completion",
			slog.String("userId", userID.String()),
			slog.String("courseId", courseID.String()),
			slog.String("error", err.Error()))
	}
}

func (s *Service) publish(ctx context.Context, merged access.MergeResult) {
	if s.publisher == nil {
		return
	}
	e := merged.Enrollment
	event := ProgressEvent{
		CourseID:         e.CourseID,
		Progress:         e.Progress,
		Completed:        e.Completed,
		CompletedLessons: e.CompletedLessons.Slice(),
		BecameCompleted:  merged.BecameCompleted,
		At:               s.now().UTC(),
	}
	if err := s.publisher.PublishProgress(ctx, e.UserID, e.CourseID, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish progress event",
			slog.String("userId", e.UserID.String()),
			slog.String("error", err.Error()))
	}
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
