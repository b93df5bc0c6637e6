package lesson

import (
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// Lesson is one unit of a module. Its position in the course is decided by
// module order, then SortOrder, then creation time.
type Lesson struct {
	types.BaseModel

	CourseID     uuid.UUID                   `gorm:"type:uuid;not null;column:course_id;index" json:"courseId"`
	ModuleID     uuid.UUID                   `gorm:"type:uuid;not null;column:module_id;index" json:"moduleId"`
	Title        string                      `gorm:"type:varchar(120);not null" json:"title"`
	Content      string                      `gorm:"type:text;not null;default:''" json:"content,omitempty"`
	YoutubeLinks datatypes.JSONSlice[string] `gorm:"column:youtube_links" json:"youtubeLinks,omitempty"`
	SortOrder    int                         `gorm:"type:int;not null;default:0;column:sort_order" json:"order"`
}

// TableName overrides the default table name.
func (Lesson) TableName() string { return "lessons" }

// CreateInput carries data for creating a new lesson.
type CreateInput struct {
	CourseID     uuid.UUID
	ModuleID     uuid.UUID
	Title        string
	Content      string
	YoutubeLinks []string
	Order        *int
}

// UpdateInput captures mutable lesson fields.
type UpdateInput struct {
	Title        *string
	Content      *string
	YoutubeLinks *[]string
	Order        *int
	ModuleID     *uuid.UUID
}

// OrderScope sorts lessons into curriculum order.
func OrderScope(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC").Order("created_at ASC")
}

// ListByCourse returns every lesson of a course in curriculum order within each module.
func ListByCourse(db *gorm.DB, courseID uuid.UUID) ([]Lesson, error) {
	var lessons []Lesson
	err := db.Where("course_id = ?", courseID).Scopes(OrderScope).Find(&lessons).Error
	return lessons, err
}

// Get loads a lesson that belongs to the course.
func Get(db *gorm.DB, courseID, lessonID uuid.UUID) (Lesson, error) {
	var lesson Lesson
	if err := db.First(&lesson, "id = ? AND course_id = ?", lessonID, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lesson, ErrLessonNotFound
		}
		return lesson, err
	}
	return lesson, nil
}

// Create inserts a lesson at the end of its module unless an order is given.
func Create(db *gorm.DB, input CreateInput) (Lesson, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Lesson{}, ErrTitleRequired
	}

	links, err := normalizeLinks(input.YoutubeLinks)
	if err != nil {
		return Lesson{}, err
	}

	if err := ensureModule(db, input.CourseID, input.ModuleID); err != nil {
		return Lesson{}, err
	}

	order := 0
	if input.Order != nil {
		order = *input.Order
	} else {
		last := -1
		if err := db.Model(&Lesson{}).Where("module_id = ?", input.ModuleID).
			Select("COALESCE(MAX(sort_order), -1)").Scan(&last).Error; err != nil {
			return Lesson{}, err
		}
		order = last + 1
	}

	lesson := Lesson{
		CourseID:     input.CourseID,
		ModuleID:     input.ModuleID,
		Title:        title,
		Content:      input.Content,
		YoutubeLinks: datatypes.JSONSlice[string](links),
		SortOrder:    order,
	}

	if err := db.Create(&lesson).Error; err != nil {
		return Lesson{}, err
	}
	return lesson, nil
}

// Update modifies a lesson. Moving it to another module of the same course is allowed.
func Update(db *gorm.DB, courseID, lessonID uuid.UUID, input UpdateInput) (Lesson, error) {
	lesson, err := Get(db, courseID, lessonID)
	if err != nil {
		return lesson, err
	}

	updates := map[string]interface{}{}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return lesson, ErrTitleRequired
		}
		updates["title"] = title
	}
	if input.Content != nil {
		updates["content"] = *input.Content
	}
	if input.YoutubeLinks != nil {
		links, err := normalizeLinks(*input.YoutubeLinks)
		if err != nil {
			return lesson, err
		}
		updates["youtube_links"] = datatypes.JSONSlice[string](links)
	}
	if input.Order != nil {
		updates["sort_order"] = *input.Order
	}
	if input.ModuleID != nil && *input.ModuleID != lesson.ModuleID {
		if err := ensureModule(db, courseID, *input.ModuleID); err != nil {
			return lesson, err
		}
		updates["module_id"] = *input.ModuleID
	}

	if len(updates) == 0 {
		return lesson, nil
	}
	if err := db.Model(&lesson).Updates(updates).Error; err != nil {
		return lesson, err
	}
	return Get(db, courseID, lessonID)
}

// Delete removes a lesson. Completion records pointing at it become stale and
// stop counting towards progress.
func Delete(db *gorm.DB, courseID, lessonID uuid.UUID) error {
	result := db.Delete(&Lesson{}, "id = ? AND course_id = ?", lessonID, courseID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLessonNotFound
	}
	return nil
}

func ensureModule(db *gorm.DB, courseID, moduleID uuid.UUID) error {
	var count int64
	if err := db.Table("modules").Where("id = ? AND course_id = ?", moduleID, courseID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrModuleNotFound
	}
	return nil
}

func normalizeLinks(links []string) ([]string, error) {
	out := make([]string, 0, len(links))
	for _, raw := range links {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		u, err := url.Parse(trimmed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, ErrInvalidLink
		}
		out = append(out, trimmed)
	}
	return out, nil
}
