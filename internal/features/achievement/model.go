// Package achievement grants awards when learners complete courses.
package achievement

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// Kind names an award.
type Kind string

const (
	KindCourseCompleted      Kind = "course_completed"
	KindFirstCourseCompleted Kind = "first_course_completed"
)

// Award is granted at most once per learner, course and kind.
type Award struct {
	types.BaseModel

	UserID    uuid.UUID `gorm:"type:uuid;not null;column:user_id;uniqueIndex:idx_award_user_course_kind,priority:1" json:"userId"`
	CourseID  uuid.UUID `gorm:"type:uuid;not null;column:course_id;uniqueIndex:idx_award_user_course_kind,priority:2" json:"courseId"`
	Kind      Kind      `gorm:"type:varchar(40);not null;uniqueIndex:idx_award_user_course_kind,priority:3" json:"kind"`
	AwardedAt time.Time `gorm:"not null;column:awarded_at" json:"awardedAt"`

	User   *user.User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course *course.Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// TableName overrides the default table name.
func (Award) TableName() string { return "awards" }

// Grant records the course completion award, plus the first-course award
// when the learner holds no other completion. It returns the kinds that were
// newly written; repeating a grant writes nothing.
func Grant(db *gorm.DB, userID, courseID uuid.UUID, now time.Time) ([]Kind, error) {
	var granted []Kind

	err := db.Transaction(func(tx *gorm.DB) error {
		// serialise grants per learner so only one course can be the first
		var holder user.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&holder, "id = ?", userID).Error; err != nil {
			return err
		}

		ok, err := insert(tx, Award{UserID: userID, CourseID: courseID, Kind: KindCourseCompleted, AwardedAt: now.UTC()})
		if err != nil {
			return err
		}
		if ok {
			granted = append(granted, KindCourseCompleted)
		}

		var firsts int64
		if err := tx.Model(&Award{}).Where("user_id = ? AND kind = ?", userID, KindFirstCourseCompleted).Count(&firsts).Error; err != nil {
			return err
		}
		if firsts > 0 {
			return nil
		}

		var completions int64
		if err := tx.Model(&Award{}).Where("user_id = ? AND kind = ?", userID, KindCourseCompleted).Count(&completions).Error; err != nil {
			return err
		}
		if completions != 1 {
			return nil
		}

		ok, err = insert(tx, Award{UserID: userID, CourseID: courseID, Kind: KindFirstCourseCompleted, AwardedAt: now.UTC()})
		if err != nil {
			return err
		}
		if ok {
			granted = append(granted, KindFirstCourseCompleted)
		}
		return nil
	})
	return granted, err
}

// ListForUser returns a learner's awards, newest first.
func ListForUser(db *gorm.DB, userID uuid.UUID) ([]Award, error) {
	var awards []Award
	err := db.Preload("Course", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "title") }).
		Where("user_id = ?", userID).
		Order("awarded_at DESC").
		Find(&awards).Error
	return awards, err
}

func insert(tx *gorm.DB, award Award) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&award)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
