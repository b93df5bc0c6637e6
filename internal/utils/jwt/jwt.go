package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

var (
	ErrInvalidToken   = errors.New("invalid or malformed token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWrongTokenKind = errors.New("token cannot be used here")
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"

	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

type Claims struct {
	UserID   uuid.UUID      `json:"id"`
	UserType types.UserType `json:"userType"`
	Kind     string         `json:"kind"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Issuer signs access tokens with one secret and refresh tokens with another.
type Issuer struct {
	AccessSecret  string
	RefreshSecret string
	Now           func() time.Time
}

// Pair issues a fresh access/refresh token pair for a user.
func (i Issuer) Pair(userID uuid.UUID, userType types.UserType) (TokenPair, error) {
	access, err := sign(userID, userType, KindAccess, i.AccessSecret, i.now(), AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := sign(userID, userType, KindRefresh, i.RefreshSecret, i.now(), RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess validates an access token.
func (i Issuer) VerifyAccess(token string) (*Claims, error) {
	return verify(token, i.AccessSecret, KindAccess)
}

// VerifyRefresh validates a refresh token.
func (i Issuer) VerifyRefresh(token string) (*Claims, error) {
	return verify(token, i.RefreshSecret, KindRefresh)
}

func (i Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func sign(userID uuid.UUID, userType types.UserType, kind, secret string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:   userID,
		UserType: userType,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func verify(tokenString, secret, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrWrongTokenKind
	}

	return claims, nil
}
