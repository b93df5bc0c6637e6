package course

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/internal/features/lesson"
	"github.com/mo-amir99/lms-progress-server/pkg/pagination"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

const defaultPassingScore = 70

// Course is a sellable curriculum with an optional drip schedule.
type Course struct {
	types.BaseModel

	InstructorID     *uuid.UUID        `gorm:"type:uuid;column:instructor_id;index" json:"instructorId,omitempty"`
	Title            string            `gorm:"type:varchar(120);not null" json:"title"`
	Description      *string           `gorm:"type:varchar(2000)" json:"description,omitempty"`
	DripFeed         access.DripPolicy `gorm:"type:varchar(10);not null;default:'off';column:drip_feed" json:"dripFeed"`
	Price            types.Money       `gorm:"type:numeric(10,2);not null;default:0" json:"price"`
	Active           bool              `gorm:"type:boolean;not null;default:true;column:is_active;index" json:"isActive"`
	ExamPassingScore int               `gorm:"type:int;not null;default:70;column:exam_passing_score" json:"examPassingScore"`
	ExamMaxAttempts  int               `gorm:"type:int;not null;default:0;column:exam_max_attempts" json:"examMaxAttempts"`

	Modules []Module `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"modules,omitempty"`
}

// TableName overrides the default table name.
func (Course) TableName() string { return "courses" }

// IsFree reports whether enrolling needs no payment.
func (c Course) IsFree() bool { return c.Price.IsZero() }

// Module is an ordered group of lessons.
type Module struct {
	types.BaseModel

	CourseID  uuid.UUID `gorm:"type:uuid;not null;column:course_id;index" json:"courseId"`
	Title     string    `gorm:"type:varchar(120);not null" json:"title"`
	SortOrder int       `gorm:"type:int;not null;default:0;column:sort_order" json:"order"`

	Lessons []lesson.Lesson `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"lessons,omitempty"`
}

// TableName overrides the default table name.
func (Module) TableName() string { return "modules" }

// Snapshot flattens the curriculum into the shape the access rules use.
// Modules and lessons must already be in curriculum order.
func (c Course) Snapshot() access.Course {
	snapshot := access.Course{
		ID:       c.ID,
		DripFeed: c.DripFeed,
		Modules:  make([]access.Module, 0, len(c.Modules)),
	}
	for _, m := range c.Modules {
		mod := access.Module{ID: m.ID, Title: m.Title, Lessons: make([]access.Lesson, 0, len(m.Lessons))}
		for _, l := range m.Lessons {
			mod.Lessons = append(mod.Lessons, access.Lesson{ID: l.ID, Title: l.Title})
		}
		snapshot.Modules = append(snapshot.Modules, mod)
	}
	return snapshot
}

// ListFilters defines course query filters.
type ListFilters struct {
	Keyword      string
	ActiveOnly   bool
	InstructorID *uuid.UUID
}

// CreateInput carries data for creating a new course.
type CreateInput struct {
	InstructorID     *uuid.UUID
	Title            string
	Description      *string
	DripFeed         string
	Price            *types.Money
	Active           *bool
	ExamPassingScore *int
	ExamMaxAttempts  *int
}

// UpdateInput captures mutable course fields.
type UpdateInput struct {
	Title            *string
	Description      *string
	DripFeed         *string
	Price            *types.Money
	Active           *bool
	ExamPassingScore *int
	ExamMaxAttempts  *int
}

// List retrieves paginated courses without their curriculum.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]Course, int64, error) {
	query := db.Model(&Course{})

	if filters.Keyword != "" {
		keyword := "%" + strings.ToLower(filters.Keyword) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", keyword, keyword)
	}
	if filters.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filters.InstructorID != nil {
		query = query.Where("instructor_id = ?", *filters.InstructorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var courses []Course
	if err := query.Order("created_at DESC").Scopes(params.Scope).Find(&courses).Error; err != nil {
		return nil, 0, err
	}

	return courses, total, nil
}

// Get loads a course without its curriculum.
func Get(db *gorm.DB, id uuid.UUID) (Course, error) {
	var course Course
	if err := db.First(&course, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return course, ErrCourseNotFound
		}
		return course, err
	}
	return course, nil
}

// GetWithCurriculum loads a course with modules and lessons in curriculum order.
func GetWithCurriculum(db *gorm.DB, id uuid.UUID) (Course, error) {
	var course Course
	err := db.
		Preload("Modules", func(tx *gorm.DB) *gorm.DB { return tx.Scopes(lesson.OrderScope) }).
		Preload("Modules.Lessons", func(tx *gorm.DB) *gorm.DB { return tx.Scopes(lesson.OrderScope) }).
		First(&course, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return course, ErrCourseNotFound
		}
		return course, err
	}
	return course, nil
}

// Create inserts a new course.
func Create(db *gorm.DB, input CreateInput) (Course, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Course{}, ErrTitleRequired
	}

	drip, err := access.ParseDripPolicy(input.DripFeed)
	if err != nil {
		return Course{}, err
	}

	course := Course{
		InstructorID:     input.InstructorID,
		Title:            title,
		Description:      trimStringPtr(input.Description),
		DripFeed:         drip,
		Active:           true,
		ExamPassingScore: defaultPassingScore,
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return Course{}, ErrNegativePrice
		}
		course.Price = *input.Price
	}
	if input.Active != nil {
		course.Active = *input.Active
	}
	if input.ExamPassingScore != nil {
		course.ExamPassingScore = *input.ExamPassingScore
	}
	if input.ExamMaxAttempts != nil {
		course.ExamMaxAttempts = *input.ExamMaxAttempts
	}
	if err := validateExamRules(course.ExamPassingScore, course.ExamMaxAttempts); err != nil {
		return Course{}, err
	}

	// Select every column so an explicit false for Active is not replaced by the default.
	if err := db.Select("*").Create(&course).Error; err != nil {
		return Course{}, err
	}
	return course, nil
}

// Update modifies course settings.
func Update(db *gorm.DB, id uuid.UUID, input UpdateInput) (Course, error) {
	course, err := Get(db, id)
	if err != nil {
		return course, err
	}

	updates := map[string]interface{}{}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return course, ErrTitleRequired
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = trimStringPtr(input.Description)
	}
	if input.DripFeed != nil {
		drip, err := access.ParseDripPolicy(*input.DripFeed)
		if err != nil {
			return course, err
		}
		updates["drip_feed"] = drip
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return course, ErrNegativePrice
		}
		updates["price"] = *input.Price
	}
	if input.Active != nil {
		updates["is_active"] = *input.Active
	}

	passing, attempts := course.ExamPassingScore, course.ExamMaxAttempts
	if input.ExamPassingScore != nil {
		passing = *input.ExamPassingScore
		updates["exam_passing_score"] = passing
	}
	if input.ExamMaxAttempts != nil {
		attempts = *input.ExamMaxAttempts
		updates["exam_max_attempts"] = attempts
	}
	if err := validateExamRules(passing, attempts); err != nil {
		return course, err
	}

	if len(updates) == 0 {
		return course, nil
	}
	if err := db.Model(&course).Updates(updates).Error; err != nil {
		return course, err
	}
	return Get(db, id)
}

// Delete removes a course; modules, lessons and enrollments cascade.
func Delete(db *gorm.DB, id uuid.UUID) error {
	result := db.Delete(&Course{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCourseNotFound
	}
	return nil
}

// CreateModule appends a module to a course.
func CreateModule(db *gorm.DB, courseID uuid.UUID, title string, order *int) (Module, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Module{}, ErrTitleRequired
	}
	if _, err := Get(db, courseID); err != nil {
		return Module{}, err
	}

	module := Module{CourseID: courseID, Title: title}
	if order != nil {
		module.SortOrder = *order
	} else {
		last := -1
		if err := db.Model(&Module{}).Where("course_id = ?", courseID).
			Select("COALESCE(MAX(sort_order), -1)").Scan(&last).Error; err != nil {
			return Module{}, err
		}
		module.SortOrder = last + 1
	}

	if err := db.Create(&module).Error; err != nil {
		return Module{}, err
	}
	return module, nil
}

// UpdateModule renames or reorders a module.
func UpdateModule(db *gorm.DB, courseID, moduleID uuid.UUID, title *string, order *int) (Module, error) {
	var module Module
	if err := db.First(&module, "id = ? AND course_id = ?", moduleID, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return module, ErrModuleNotFound
		}
		return module, err
	}

	updates := map[string]interface{}{}
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return module, ErrTitleRequired
		}
		updates["title"] = trimmed
	}
	if order != nil {
		updates["sort_order"] = *order
	}
	if len(updates) == 0 {
		return module, nil
	}

	if err := db.Model(&module).Updates(updates).Error; err != nil {
		return module, err
	}
	if err := db.First(&module, "id = ?", moduleID).Error; err != nil {
		return module, fmt.Errorf("reload module: %w", err)
	}
	return module, nil
}

// DeleteModule removes a module and its lessons.
func DeleteModule(db *gorm.DB, courseID, moduleID uuid.UUID) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("module_id = ? AND course_id = ?", moduleID, courseID).Delete(&lesson.Lesson{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&Module{}, "id = ? AND course_id = ?", moduleID, courseID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrModuleNotFound
		}
		return nil
	})
}

func validateExamRules(passing, attempts int) error {
	if passing < 0 || passing > 100 || attempts < 0 {
		return ErrInvalidExamRules
	}
	return nil
}

func trimStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
