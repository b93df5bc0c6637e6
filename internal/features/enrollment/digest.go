package enrollment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/internal/services/progress"
	"github.com/mo-amir99/lms-progress-server/pkg/email"
	"github.com/mo-amir99/lms-progress-server/pkg/metrics"
)

const digestBatchSize = 200

// DripDigestJob emails learners when the drip schedule has unlocked lessons
// they have not been told about yet.
type DripDigestJob struct {
	db          *gorm.DB
	catalog     progress.Catalog
	scheduler   access.Scheduler
	sender      email.Sender
	frontendURL string
	now         func() time.Time
	logger      *slog.Logger
}

// NewDripDigestJob creates the digest job. scheduler must use the same zone as the progress service.
func NewDripDigestJob(db *gorm.DB, catalog progress.Catalog, scheduler access.Scheduler, sender email.Sender, frontendURL string, logger *slog.Logger) *DripDigestJob {
	return &DripDigestJob{
		db:          db,
		catalog:     catalog,
		scheduler:   scheduler,
		sender:      sender,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
		logger:      logger,
	}
}

// Name implements jobs.Job.
func (j *DripDigestJob) Name() string { return "drip-digest" }

// Execute implements jobs.Job.
func (j *DripDigestJob) Execute(ctx context.Context) error {
	now := j.now()
	sent, failed := 0, 0

	var batch []Enrollment
	result := j.db.WithContext(ctx).
		Preload("User").
		Preload("Course").
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Where("courses.drip_feed <> ? AND courses.is_active = ? AND enrollments.is_completed = ?", access.DripOff, true, false).
		FindInBatches(&batch, digestBatchSize, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				if err := ctx.Err(); err != nil {
					return err
				}
				ok, err := j.notify(ctx, &batch[i], now)
				if err != nil {
					failed++
					metrics.RecordDigestEmail("failed")
					j.logger.Warn("drip digest failed",
						slog.String("enrollmentId", batch[i].ID.String()),
						slog.String("error", err.Error()))
					continue
				}
				if ok {
					sent++
					metrics.RecordDigestEmail("sent")
				}
			}
			return nil
		})
	if result.Error != nil {
		return fmt.Errorf("scan drip enrollments: %w", result.Error)
	}

	j.logger.Info("drip digest finished", slog.Int("sent", sent), slog.Int("failed", failed))
	return nil
}

// notify sends one digest when the unlocked count moved past the last one
// reported and records the new high-water mark.
func (j *DripDigestJob) notify(ctx context.Context, rec *Enrollment, now time.Time) (bool, error) {
	if rec.User == nil || rec.Course == nil {
		return false, nil
	}

	snapshot, err := j.catalog.CourseSnapshot(ctx, rec.CourseID)
	if err != nil {
		return false, err
	}

	unlocked, err := j.scheduler.UnlockedCount(snapshot, rec.EnrolledAt, now)
	if err != nil {
		return false, err
	}
	// the first lesson is open from enrollment, so there is nothing new to report
	if unlocked <= 1 || unlocked <= rec.NotifiedUnlocked {
		return false, nil
	}

	courseURL := fmt.Sprintf("%s/courses/%s", j.frontendURL, rec.CourseID)
	msg := email.LessonsUnlocked(rec.User.Email, rec.User.FullName, rec.Course.Title, unlocked, snapshot.TotalLessons(), courseURL)
	if err := j.sender.SendEmail(msg); err != nil {
		return false, fmt.Errorf("send digest: %w", err)
	}

	if err := j.db.WithContext(ctx).Model(&Enrollment{}).
		Where("id = ?", rec.ID).
		Update("notified_unlocked", unlocked).Error; err != nil {
		return true, fmt.Errorf("record digest: %w", err)
	}
	rec.NotifiedUnlocked = unlocked
	return true, nil
}
