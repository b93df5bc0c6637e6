package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/lms-progress-server/pkg/logger"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

type widget struct {
	types.BaseModel
	Name string
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	db, err := OpenSQLite(":memory:", logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db, logger.Discard()) })

	require.NoError(t, AutoMigrate(db, logger.Discard(), &widget{}))

	w := widget{Name: "a"}
	require.NoError(t, db.Create(&w).Error)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", w.ID.String())
}

func TestDescribeQuery(t *testing.T) {
	op, table := describeQuery(`SELECT * FROM "enrollments" WHERE user_id = $1`)
	assert.Equal(t, "SELECT", op)
	assert.Equal(t, "enrollments", table)

	op, table = describeQuery(`INSERT INTO "lesson_completions" ("id") VALUES ($1)`)
	assert.Equal(t, "INSERT", op)
	assert.Equal(t, "lesson_completions", table)

	op, table = describeQuery(`update courses set title = 'x'`)
	assert.Equal(t, "UPDATE", op)
	assert.Equal(t, "courses", table)

	op, table = describeQuery("")
	assert.Equal(t, "UNKNOWN", op)
	assert.Equal(t, "unknown", table)
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, isConnectionError(errors.New("dial tcp: connection refused")))
	assert.True(t, isConnectionError(errors.New("driver: bad connection")))
	assert.False(t, isConnectionError(errors.New("duplicate key value")))
	assert.False(t, isConnectionError(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	db, err := OpenSQLite(":memory:", logger.Discard())
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE t (k TEXT UNIQUE)").Error)
	require.NoError(t, db.Exec("INSERT INTO t (k) VALUES ('a')").Error)

	err = db.Exec("INSERT INTO t (k) VALUES ('a')").Error
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.False(t, IsUniqueViolation(nil))
}
