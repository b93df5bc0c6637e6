// Package exam records final exam attempts. Questions and grading live
// elsewhere; an attempt only carries the submitted score.
package exam

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// Attempt is one sitting of a course's final exam.
type Attempt struct {
	types.BaseModel

	UserID       uuid.UUID  `gorm:"type:uuid;not null;column:user_id;index:idx_exam_attempt_user_course,priority:1" json:"userId"`
	CourseID     uuid.UUID  `gorm:"type:uuid;not null;column:course_id;index:idx_exam_attempt_user_course,priority:2" json:"courseId"`
	StartedAt    time.Time  `gorm:"not null;column:started_at" json:"startedAt"`
	SubmittedAt  *time.Time `gorm:"column:submitted_at" json:"submittedAt,omitempty"`
	Score        *int       `gorm:"type:int" json:"score,omitempty"`
	PassingScore int        `gorm:"type:int;not null;column:passing_score" json:"passingScore"`
	Passed       bool       `gorm:"type:boolean;not null;default:false;column:is_passed" json:"passed"`

	User   *user.User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course *course.Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the default table name.
func (Attempt) TableName() string { return "exam_attempts" }

// Open reports whether the attempt still awaits a submission.
func (a Attempt) Open() bool { return a.SubmittedAt == nil }

// Start opens an attempt, or returns the one already in progress. The
// course's attempt limit counts every attempt, open or submitted.
func Start(db *gorm.DB, crs course.Course, userID uuid.UUID, now time.Time) (Attempt, bool, error) {
	var (
		attempt Attempt
		created bool
	)

	err := db.Transaction(func(tx *gorm.DB) error {
		// serialise starts per learner
		var holder user.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&holder, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("lock learner: %w", err)
		}

		var open Attempt
		err := tx.Where("user_id = ? AND course_id = ? AND submitted_at IS NULL", userID, crs.ID).
			Order("started_at DESC").First(&open).Error
		switch {
		case err == nil:
			attempt = open
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if crs.ExamMaxAttempts > 0 {
			var used int64
			if err := tx.Model(&Attempt{}).Where("user_id = ? AND course_id = ?", userID, crs.ID).Count(&used).Error; err != nil {
				return err
			}
			if used >= int64(crs.ExamMaxAttempts) {
				return ErrAttemptsExhausted
			}
		}

		attempt = Attempt{
			UserID:       userID,
			CourseID:     crs.ID,
			StartedAt:    now.UTC(),
			PassingScore: crs.ExamPassingScore,
		}
		if err := tx.Create(&attempt).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return attempt, created, err
}

// Grade records the score of an open attempt against the passing score fixed
// when it started. Scores come from graders, never from the learner.
func Grade(db *gorm.DB, courseID, attemptID uuid.UUID, score int, now time.Time) (Attempt, error) {
	if score < 0 || score > 100 {
		return Attempt{}, ErrInvalidScore
	}

	var attempt Attempt
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&attempt, "id = ? AND course_id = ?", attemptID, courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttemptNotFound
			}
			return err
		}
		if !attempt.Open() {
			return ErrAlreadySubmitted
		}

		submitted := now.UTC()
		attempt.SubmittedAt = &submitted
		attempt.Score = &score
		attempt.Passed = score >= attempt.PassingScore

		return tx.Model(&Attempt{}).Where("id = ?", attempt.ID).Updates(map[string]interface{}{
			"submitted_at": submitted,
			"score":        score,
			"is_passed":    attempt.Passed,
		}).Error
	})
	if err != nil {
		return Attempt{}, err
	}
	return attempt, nil
}

// LatestPassed returns the most recent passing attempt, or nil if there is none.
func LatestPassed(db *gorm.DB, userID, courseID uuid.UUID) (*Attempt, error) {
	var attempt Attempt
	err := db.Where("user_id = ? AND course_id = ? AND is_passed = ?", userID, courseID, true).
		Order("submitted_at DESC").First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// List returns a learner's attempts for a course, newest first.
func List(db *gorm.DB, userID, courseID uuid.UUID) ([]Attempt, error) {
	var attempts []Attempt
	err := db.Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("started_at DESC").Find(&attempts).Error
	return attempts, err
}
