package auth

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/internal/utils/jwt"
)

type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	User         *user.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Register creates a student account and signs them in.
func Register(db *gorm.DB, tokens jwt.Issuer, input RegisterInput) (*AuthResponse, error) {
	if strings.TrimSpace(input.FullName) == "" || input.Email == "" || input.Password == "" {
		return nil, ErrMissingFields
	}
	if !emailRegex.MatchString(strings.TrimSpace(input.Email)) {
		return nil, ErrInvalidEmail
	}
	if len(input.Password) < 8 {
		return nil, ErrWeakPassword
	}

	newUser, err := user.Create(db, user.CreateInput{
		FullName: input.FullName,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		return nil, err
	}

	return issue(db, tokens, newUser)
}

// Login authenticates a user and returns tokens.
func Login(db *gorm.DB, tokens jwt.Issuer, input LoginInput) (*AuthResponse, error) {
	if input.Email == "" || input.Password == "" {
		return nil, ErrMissingFields
	}

	usr, err := user.GetByEmail(db, input.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !usr.ComparePassword(input.Password) {
		return nil, ErrInvalidCredentials
	}
	if !usr.Active {
		return nil, ErrInactiveAccount
	}

	return issue(db, tokens, usr)
}

// Refresh redeems a refresh token for a new pair. Each refresh token can be used once.
func Refresh(db *gorm.DB, tokens jwt.Issuer, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	usr, err := user.Get(db, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if usr.RefreshTokenID == nil || *usr.RefreshTokenID != claims.ID {
		return nil, ErrInvalidToken
	}
	if !usr.Active {
		return nil, ErrInactiveAccount
	}

	resp, err := issue(db, tokens, usr)
	if err != nil {
		return nil, err
	}
	return &jwt.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// Logout revokes the user's refresh token.
func Logout(db *gorm.DB, userID uuid.UUID) error {
	return user.SetRefreshTokenID(db, userID, nil)
}

func issue(db *gorm.DB, tokens jwt.Issuer, usr user.User) (*AuthResponse, error) {
	pair, err := tokens.Pair(usr.ID, usr.UserType)
	if err != nil {
		return nil, err
	}

	claims, err := tokens.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		return nil, err
	}
	if err := user.SetRefreshTokenID(db, usr.ID, &claims.ID); err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         &usr,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}
