package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

func TestPairRoundTrip(t *testing.T) {
	issuer := Issuer{AccessSecret: "a", RefreshSecret: "r"}
	id := uuid.New()

	pair, err := issuer.Pair(id, types.UserTypeStudent)
	require.NoError(t, err)

	claims, err := issuer.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, types.UserTypeStudent, claims.UserType)

	claims, err = issuer.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, KindRefresh, claims.Kind)
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	issuer := Issuer{AccessSecret: "same", RefreshSecret: "same"}
	pair, err := issuer.Pair(uuid.New(), types.UserTypeStudent)
	require.NoError(t, err)

	_, err = issuer.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongTokenKind)
}

func TestExpiredToken(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	issuer := Issuer{AccessSecret: "a", RefreshSecret: "r", Now: func() time.Time { return past }}
	pair, err := issuer.Pair(uuid.New(), types.UserTypeStudent)
	require.NoError(t, err)

	_, err = issuer.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestWrongSecret(t *testing.T) {
	pair, err := Issuer{AccessSecret: "a", RefreshSecret: "r"}.Pair(uuid.New(), types.UserTypeAdmin)
	require.NoError(t, err)

	_, err = Issuer{AccessSecret: "b", RefreshSecret: "r"}.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = Issuer{}.VerifyAccess("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
