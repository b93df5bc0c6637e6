package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/internal/services/progress"
	"github.com/mo-amir99/lms-progress-server/pkg/database"
)

// Store persists enrollments with gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a gorm-backed enrollment store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// GetEnrollment loads the record and its completed set.
func (s *Store) GetEnrollment(ctx context.Context, userID, courseID uuid.UUID) (access.Enrollment, error) {
	db := s.db.WithContext(ctx)

	rec, err := find(db, userID, courseID)
	if err != nil {
		return access.Enrollment{}, err
	}

	ids, err := completedIDs(db, rec.ID)
	if err != nil {
		return access.Enrollment{}, err
	}
	return rec.toAccess(ids), nil
}

// CreateEnrollment inserts a record. A second enrollment for the same pair
// fails with progress.ErrAlreadyEnrolled.
func (s *Store) CreateEnrollment(ctx context.Context, req progress.EnrollRequest) (access.Enrollment, error) {
	rec := Enrollment{
		UserID:        req.UserID,
		CourseID:      req.CourseID,
		EnrolledAt:    req.EnrolledAt,
		PaymentMethod: req.PaymentMethod,
		AmountPaid:    req.AmountPaid,
	}
	if req.PaymentReference != "" {
		ref := req.PaymentReference
		rec.PaymentReference = &ref
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return access.Enrollment{}, progress.ErrAlreadyEnrolled
		}
		return access.Enrollment{}, fmt.Errorf("create enrollment: %w", err)
	}
	return rec.toAccess(nil), nil
}

// MergeEnrollment adds lessons to the completed set and rewrites the derived
// fields from the merged set, all under a row lock on the enrollment.
func (s *Store) MergeEnrollment(ctx context.Context, userID, courseID uuid.UUID, patch access.MergePatch) (access.MergeResult, error) {
	var result access.MergeResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Enrollment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&rec, "user_id = ? AND course_id = ?", userID, courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return progress.ErrEnrollmentNotFound
			}
			return err
		}

		if len(patch.AddLessons) > 0 {
			rows := make([]LessonCompletion, 0, len(patch.AddLessons))
			for _, id := range patch.AddLessons {
				rows = append(rows, LessonCompletion{EnrollmentID: rec.ID, LessonID: id})
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return fmt.Errorf("insert completions: %w", err)
			}
		}

		ids, err := completedIDs(tx, rec.ID)
		if err != nil {
			return err
		}
		merged := access.NewLessonSet(ids...)
		derived := patch.Recompute(merged)

		updates := map[string]interface{}{
			"progress":     derived.Percent,
			"is_completed": derived.Completed,
		}
		switch {
		case derived.Completed && !rec.Completed:
			now := s.now().UTC()
			updates["completed_at"] = now
			rec.CompletedAt = &now
		case !derived.Completed:
			updates["completed_at"] = nil
			rec.CompletedAt = nil
		}
		if err := tx.Model(&Enrollment{}).Where("id = ?", rec.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update enrollment: %w", err)
		}

		wasCompleted := rec.Completed
		rec.Progress = derived.Percent
		rec.Completed = derived.Completed

		result = access.MergeResult{
			Enrollment:      rec.toAccess(ids),
			BecameCompleted: !wasCompleted && derived.Completed,
		}
		return nil
	})
	if err != nil {
		return access.MergeResult{}, err
	}
	return result, nil
}

// Delete removes an enrollment with its completions.
func (s *Store) Delete(ctx context.Context, userID, courseID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := find(tx, userID, courseID)
		if err != nil {
			return err
		}
		if err := tx.Where("enrollment_id = ?", rec.ID).Delete(&LessonCompletion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Enrollment{}, "id = ?", rec.ID).Error
	})
}

// ListForUser returns a learner's enrollments with course details.
func (s *Store) ListForUser(ctx context.Context, userID uuid.UUID) ([]Enrollment, error) {
	var records []Enrollment
	err := s.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("enrolled_at DESC").
		Find(&records).Error
	return records, err
}

// Get returns the stored row, including payment details.
func (s *Store) Get(ctx context.Context, userID, courseID uuid.UUID) (Enrollment, error) {
	return find(s.db.WithContext(ctx), userID, courseID)
}

func find(db *gorm.DB, userID, courseID uuid.UUID) (Enrollment, error) {
	var rec Enrollment
	if err := db.First(&rec, "user_id = ? AND course_id = ?", userID, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rec, progress.ErrEnrollmentNotFound
		}
		return rec, err
	}
	return rec, nil
}

func completedIDs(db *gorm.DB, enrollmentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := db.Model(&LessonCompletion{}).Where("enrollment_id = ?", enrollmentID).Pluck("lesson_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("load completions: %w", err)
	}
	return ids, nil
}
