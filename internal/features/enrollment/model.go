package enrollment

import (
	"time"

	"github.com/google/uuid"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// Enrollment is a learner's record in one course. Progress and Completed are
// derived from the completion rows and rewritten on every merge.
type Enrollment struct {
	types.BaseModel

	UserID           uuid.UUID           `gorm:"type:uuid;not null;column:user_id;uniqueIndex:idx_enrollment_user_course,priority:1" json:"userId"`
	CourseID         uuid.UUID           `gorm:"type:uuid;not null;column:course_id;uniqueIndex:idx_enrollment_user_course,priority:2;index" json:"courseId"`
	EnrolledAt       time.Time           `gorm:"not null;column:enrolled_at" json:"enrollmentDate"`
	Progress         int                 `gorm:"type:int;not null;default:0" json:"progress"`
	Completed        bool                `gorm:"type:boolean;not null;default:false;column:is_completed;index" json:"completed"`
	CompletedAt      *time.Time          `gorm:"column:completed_at" json:"completedAt,omitempty"`
	PaymentMethod    types.PaymentMethod `gorm:"type:varchar(20);not null;default:'free';column:payment_method" json:"paymentMethod"`
	AmountPaid       types.Money         `gorm:"type:numeric(10,2);not null;default:0;column:amount_paid" json:"amountPaid"`
	PaymentReference *string             `gorm:"type:varchar(255);column:payment_reference" json:"paymentReference,omitempty"`
	NotifiedUnlocked int                 `gorm:"type:int;not null;default:0;column:notified_unlocked" json:"-"`

	User        *user.User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Course      *course.Course     `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
	Completions []LessonCompletion `gorm:"foreignKey:EnrollmentID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the default table name.
func (Enrollment) TableName() string { return "enrollments" }

// LessonCompletion is one member of an enrollment's completed set. The unique
// index makes inserting an existing member a no-op. LessonID is deliberately
// not a foreign key: deleting a lesson leaves a stale row that never counts.
type LessonCompletion struct {
	types.BaseModel

	EnrollmentID uuid.UUID `gorm:"type:uuid;not null;column:enrollment_id;uniqueIndex:idx_completion_enrollment_lesson,priority:1" json:"enrollmentId"`
	LessonID     uuid.UUID `gorm:"type:uuid;not null;column:lesson_id;uniqueIndex:idx_completion_enrollment_lesson,priority:2;index" json:"lessonId"`
}

// TableName overrides the default table name.
func (LessonCompletion) TableName() string { return "lesson_completions" }

// toAccess converts the stored record into the access model.
func (e Enrollment) toAccess(completed []uuid.UUID) access.Enrollment {
	return access.Enrollment{
		UserID:           e.UserID,
		CourseID:         e.CourseID,
		EnrolledAt:       e.EnrolledAt,
		CompletedLessons: access.NewLessonSet(completed...),
		Progress:         e.Progress,
		Completed:        e.Completed,
		PaymentMethod:    string(e.PaymentMethod),
	}
}
