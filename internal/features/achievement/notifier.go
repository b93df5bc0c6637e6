package achievement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/pkg/email"
)

// Notifier grants awards when the progress service reports a completed course
// and optionally congratulates the learner by email.
type Notifier struct {
	db     *gorm.DB
	sender email.Sender
	logger *slog.Logger
	now    func() time.Time
}

// NewNotifier builds a notifier. A nil sender disables the email.
func NewNotifier(db *gorm.DB, sender email.Sender, logger *slog.Logger) *Notifier {
	return &Notifier{db: db, sender: sender, logger: logger, now: time.Now}
}

// CourseCompleted implements progress.AchievementNotifier.
func (n *Notifier) CourseCompleted(ctx context.Context, userID, courseID uuid.UUID) error {
	db := n.db.WithContext(ctx)

	granted, err := Grant(db, userID, courseID, n.now())
	if err != nil {
		return fmt.Errorf("grant awards: %w", err)
	}
	if len(granted) == 0 {
		return nil
	}

	n.logger.InfoContext(ctx, "awards granted",
		slog.String("userId", userID.String()),
		slog.String("courseId", courseID.String()),
		slog.Any("kinds", granted))

	if n.sender != nil {
		n.congratulate(ctx, db, userID, courseID)
	}
	return nil
}

// congratulate is best effort; the awards are already stored.
func (n *Notifier) congratulate(ctx context.Context, db *gorm.DB, userID, courseID uuid.UUID) {
	learner, err := user.Get(db, userID)
	if err != nil {
		n.logger.WarnContext(ctx, "completion email skipped", slog.String("error", err.Error()))
		return
	}
	crs, err := course.Get(db, courseID)
	if err != nil {
		n.logger.WarnContext(ctx, "completion email skipped", slog.String("error", err.Error()))
		return
	}

	if err := n.sender.SendEmail(email.CourseCompleted(learner.Email, learner.FullName, crs.Title)); err != nil {
		n.logger.WarnContext(ctx, "failed to send completion email",
			slog.String("userId", userID.String()),
			slog.String("error", err.Error()))
	}
}
