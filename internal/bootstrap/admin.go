package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// AdminAccount describes the administrator to create or synchronise.
type AdminAccount struct {
	FullName string
	Email    string
	Password string
}

// EnsureAdmin creates the account, or promotes, reactivates and resets the
// password of an existing user with that email. It reports whether a new
// user was created.
func EnsureAdmin(db *gorm.DB, account AdminAccount, logger *slog.Logger) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(account.Email))
	if email == "" {
		return false, fmt.Errorf("admin email is required")
	}

	existing, err := user.GetByEmail(db, email)
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		if _, err := user.Create(db, user.CreateInput{
			FullName: account.FullName,
			Email:    email,
			Password: account.Password,
			UserType: types.UserTypeAdmin,
		}); err != nil {
			return false, fmt.Errorf("create admin: %w", err)
		}
		logger.Info("admin created", slog.String("email", email))
		return true, nil

	case err != nil:
		return false, fmt.Errorf("get admin: %w", err)
	}

	admin := types.UserTypeAdmin
	active := true
	input := user.UpdateInput{UserType: &admin, Active: &active}
	if account.Password != "" {
		input.Password = &account.Password
	}
	if name := strings.TrimSpace(account.FullName); name != "" && name != existing.FullName {
		input.FullName = &name
	}

	if _, err := user.Update(db, existing.ID, input); err != nil {
		return false, fmt.Errorf("update admin: %w", err)
	}

	logger.Info("admin synchronized", slog.String("email", email))
	return false, nil
}
