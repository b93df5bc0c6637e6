package lesson

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/testutil"
)

func newDB(t *testing.T) (*gorm.DB, uuid.UUID, uuid.UUID) {
	db := testutil.DB(t, &Lesson{})
	require.NoError(t, db.Exec("CREATE TABLE modules (id TEXT PRIMARY KEY, course_id TEXT NOT NULL)").Error)

	courseID, moduleID := uuid.New(), uuid.New()
	require.NoError(t, db.Exec("INSERT INTO modules (id, course_id) VALUES (?, ?)", moduleID, courseID).Error)
	return db, courseID, moduleID
}

func TestCreateAppendsToModule(t *testing.T) {
	db, courseID, moduleID := newDB(t)

	first, err := Create(db, CreateInput{CourseID: courseID, ModuleID: moduleID, Title: "Intro"})
	require.NoError(t, err)
	second, err := Create(db, CreateInput{
		CourseID:     courseID,
		ModuleID:     moduleID,
		Title:        "Next",
		YoutubeLinks: []string{" https://youtu.be/abc ", ""},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, first.SortOrder)
	assert.Equal(t, 1, second.SortOrder)

	loaded, err := Get(db, courseID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://youtu.be/abc"}, []string(loaded.YoutubeLinks))

	lessons, err := ListByCourse(db, courseID)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, first.ID, lessons[0].ID)
}

func TestCreateValidates(t *testing.T) {
	db, courseID, moduleID := newDB(t)

	_, err := Create(db, CreateInput{CourseID: courseID, ModuleID: moduleID, Title: "  "})
	assert.ErrorIs(t, err, ErrTitleRequired)

	_, err = Create(db, CreateInput{CourseID: courseID, ModuleID: moduleID, Title: "x", YoutubeLinks: []string{"javascript:alert(1)"}})
	assert.ErrorIs(t, err, ErrInvalidLink)

	_, err = Create(db, CreateInput{CourseID: uuid.New(), ModuleID: moduleID, Title: "x"})
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestUpdateAndDelete(t *testing.T) {
	db, courseID, moduleID := newDB(t)
	l, err := Create(db, CreateInput{CourseID: courseID, ModuleID: moduleID, Title: "x"})
	require.NoError(t, err)

	other := uuid.New()
	_, err = Update(db, courseID, l.ID, UpdateInput{ModuleID: &other})
	assert.ErrorIs(t, err, ErrModuleNotFound)

	title := "Renamed"
	links := []string{"http://example.com/v"}
	updated, err := Update(db, courseID, l.ID, UpdateInput{Title: &title, YoutubeLinks: &links})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Len(t, updated.YoutubeLinks, 1)

	_, err = Update(db, uuid.New(), l.ID, UpdateInput{Title: &title})
	assert.ErrorIs(t, err, ErrLessonNotFound)

	require.NoError(t, Delete(db, courseID, l.ID))
	assert.ErrorIs(t, Delete(db, courseID, l.ID), ErrLessonNotFound)
}
