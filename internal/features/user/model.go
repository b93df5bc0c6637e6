package user

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/pkg/database"
	"github.com/mo-amir99/lms-progress-server/pkg/pagination"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

const bcryptCost = 10

// User represents a learner or a member of staff.
type User struct {
	types.BaseModel

	FullName       string         `gorm:"type:varchar(60);not null;column:full_name" json:"fullName"`
	Email          string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Password       string         `gorm:"type:varchar(255);not null" json:"-"`
	UserType       types.UserType `gorm:"type:varchar(20);not null;default:'student';column:user_type;index" json:"userType"`
	RefreshTokenID *string        `gorm:"type:varchar(64);column:refresh_token_id" json:"-"`
	Active         bool           `gorm:"type:boolean;not null;default:true;column:is_active;index" json:"isActive"`
}

// TableName overrides the default table name.
func (User) TableName() string { return "users" }

// ComparePassword reports whether plain matches the stored hash.
func (u User) ComparePassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

// ListFilters defines user query filters.
type ListFilters struct {
	Keyword  string
	UserType types.UserType
}

// CreateInput carries data for creating a new user.
type CreateInput struct {
	FullName string
	Email    string
	Password string
	UserType types.UserType
}

// UpdateInput captures mutable user fields.
type UpdateInput struct {
	FullName *string
	Password *string
	UserType *types.UserType
	Active   *bool
}

// List queries users with filters and pagination.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]User, int64, error) {
	query := db.Model(&User{})

	if filters.Keyword != "" {
		keyword := "%" + strings.ToLower(filters.Keyword) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", keyword, keyword)
	}
	if filters.UserType != "" {
		query = query.Where("user_type = ?", filters.UserType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []User
	if err := query.Order("created_at DESC").Scopes(params.Scope).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Get retrieves a user by ID.
func Get(db *gorm.DB, id uuid.UUID) (User, error) {
	var user User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, err
	}
	return user, nil
}

// GetByEmail retrieves a user by case-insensitive email.
func GetByEmail(db *gorm.DB, email string) (User, error) {
	var user User
	if err := db.First(&user, "email = ?", normalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, err
	}
	return user, nil
}

// Create inserts a new user with a hashed password.
func Create(db *gorm.DB, input CreateInput) (User, error) {
	if len(input.Password) < 8 {
		return User{}, ErrInvalidPassword
	}

	userType := input.UserType
	if userType == "" {
		userType = types.UserTypeStudent
	}
	if !validUserType(userType) {
		return User{}, ErrInvalidUserType
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		FullName: strings.TrimSpace(input.FullName),
		Email:    normalizeEmail(input.Email),
		Password: string(hashed),
		UserType: userType,
		Active:   true,
	}

	if err := db.Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}

	return user, nil
}

// Update modifies an existing user.
func Update(db *gorm.DB, id uuid.UUID, input UpdateInput) (User, error) {
	user, err := Get(db, id)
	if err != nil {
		return user, err
	}

	updates := map[string]interface{}{}

	if input.FullName != nil {
		trimmed := strings.TrimSpace(*input.FullName)
		if trimmed == "" {
			return user, errors.New("fullName cannot be empty")
		}
		updates["full_name"] = trimmed
	}

	if input.Password != nil {
		if len(*input.Password) < 8 {
			return user, ErrInvalidPassword
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcryptCost)
		if err != nil {
			return user, err
		}
		updates["password"] = string(hashed)
		updates["refresh_token_id"] = nil
	}

	if input.UserType != nil {
		if !validUserType(*input.UserType) {
			return user, ErrInvalidUserType
		}
		updates["user_type"] = *input.UserType
	}

	if input.Active != nil {
		updates["is_active"] = *input.Active
	}

	if len(updates) == 0 {
		return user, nil
	}

	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return user, err
	}

	return Get(db, id)
}

// SetRefreshTokenID records the id of the only refresh token that may be redeemed.
func SetRefreshTokenID(db *gorm.DB, id uuid.UUID, tokenID *string) error {
	return db.Model(&User{}).Where("id = ?", id).Update("refresh_token_id", tokenID).Error
}

// Delete removes a user.
func Delete(db *gorm.DB, id uuid.UUID) error {
	result := db.Delete(&User{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validUserType(t types.UserType) bool {
	switch t {
	case types.UserTypeStudent, types.UserTypeInstructor, types.UserTypeAdmin:
		return true
	default:
		return false
	}
}
