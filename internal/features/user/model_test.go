package user

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/lms-progress-server/internal/testutil"
	"github.com/mo-amir99/lms-progress-server/pkg/pagination"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

func TestCreateHashesPasswordAndNormalizesEmail(t *testing.T) {
	db := testutil.DB(t, &User{})

	u, err := Create(db, CreateInput{FullName: " Ada ", Email: " Ada@Example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.FullName)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, types.UserTypeStudent, u.UserType)
	assert.NotEqual(t, "correct-horse", u.Password)
	assert.True(t, u.ComparePassword("correct-horse"))
	assert.False(t, u.ComparePassword("wrong"))

	found, err := GetByEmail(db, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestCreateRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	db := testutil.DB(t, &User{})

	_, err := Create(db, CreateInput{FullName: "A", Email: "a@x.io", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = Create(db, CreateInput{FullName: "A", Email: "a@x.io", Password: "longenough", UserType: "owner"})
	assert.ErrorIs(t, err, ErrInvalidUserType)

	_, err = Create(db, CreateInput{FullName: "A", Email: "a@x.io", Password: "longenough"})
	require.NoError(t, err)
	_, err = Create(db, CreateInput{FullName: "B", Email: "A@x.io", Password: "longenough"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUpdateAndDelete(t *testing.T) {
	db := testutil.DB(t, &User{})
	u, err := Create(db, CreateInput{FullName: "A", Email: "a@x.io", Password: "longenough"})
	require.NoError(t, err)

	tokenID := "abc"
	require.NoError(t, SetRefreshTokenID(db, u.ID, &tokenID))

	name := "Alice"
	password := "another-password"
	inactive := false
	updated, err := Update(db, u.ID, UpdateInput{FullName: &name, Password: &password, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.FullName)
	assert.False(t, updated.Active)
	assert.True(t, updated.ComparePassword(password))
	assert.Nil(t, updated.RefreshTokenID, "password change revokes refresh tokens")

	require.NoError(t, Delete(db, u.ID))
	assert.ErrorIs(t, Delete(db, u.ID), ErrUserNotFound)
	_, err = Get(db, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestListFilters(t *testing.T) {
	db := testutil.DB(t, &User{})
	for _, in := range []CreateInput{
		{FullName: "Student One", Email: "s1@x.io", Password: "longenough"},
		{FullName: "Student Two", Email: "s2@x.io", Password: "longenough"},
		{FullName: "Instructor", Email: "t@x.io", Password: "longenough", UserType: types.UserTypeInstructor},
	} {
		_, err := Create(db, in)
		require.NoError(t, err)
	}

	users, total, err := List(db, ListFilters{UserType: types.UserTypeStudent}, pagination.New(1, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, users, 1)

	users, total, err = List(db, ListFilters{Keyword: "teach"}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "t@x.io", users[0].Email)
}
