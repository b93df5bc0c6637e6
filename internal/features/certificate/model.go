// Package certificate issues completion certificates for learners who
// finished every lesson and passed the final exam.
package certificate

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/pkg/database"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// Certificate is issued at most once per learner and course.
type Certificate struct {
	types.BaseModel

	UserID        uuid.UUID `gorm:"type:uuid;not null;column:user_id;uniqueIndex:idx_certificate_user_course,priority:1" json:"userId"`
	CourseID      uuid.UUID `gorm:"type:uuid;not null;column:course_id;uniqueIndex:idx_certificate_user_course,priority:2" json:"courseId"`
	Serial        string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"serial"`
	IssuedAt      time.Time `gorm:"not null;column:issued_at" json:"issuedAt"`
	ExamAttemptID uuid.UUID `gorm:"type:uuid;not null;column:exam_attempt_id" json:"examAttemptId"`

	User   *user.User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Course *course.Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// TableName overrides the default table name.
func (Certificate) TableName() string { return "certificates" }

// Issue creates the certificate, or returns the existing one when the learner
// already holds it. The boolean reports whether a new row was written.
func Issue(db *gorm.DB, userID, courseID, attemptID uuid.UUID, now time.Time) (Certificate, bool, error) {
	existing, err := Get(db, userID, courseID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrCertificateNotFound) {
		return Certificate{}, false, err
	}

	serial, err := newSerial()
	if err != nil {
		return Certificate{}, false, err
	}

	cert := Certificate{
		UserID:        userID,
		CourseID:      courseID,
		Serial:        serial,
		IssuedAt:      now.UTC(),
		ExamAttemptID: attemptID,
	}
	if err := db.Create(&cert).Error; err != nil {
		if database.IsUniqueViolation(err) {
			// lost a race with a concurrent request for the same pair
			existing, getErr := Get(db, userID, courseID)
			if getErr == nil {
				return existing, false, nil
			}
		}
		return Certificate{}, false, fmt.Errorf("create certificate: %w", err)
	}
	return cert, true, nil
}

// Get returns the learner's certificate for a course.
func Get(db *gorm.DB, userID, courseID uuid.UUID) (Certificate, error) {
	var cert Certificate
	if err := db.First(&cert, "user_id = ? AND course_id = ?", userID, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cert, ErrCertificateNotFound
		}
		return cert, err
	}
	return cert, nil
}

// GetBySerial looks a certificate up for verification.
func GetBySerial(db *gorm.DB, serial string) (Certificate, error) {
	var cert Certificate
	err := db.Preload("User", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "full_name") }).
		Preload("Course", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "title") }).
		First(&cert, "serial = ?", strings.ToUpper(strings.TrimSpace(serial))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cert, ErrCertificateNotFound
		}
		return cert, err
	}
	return cert, nil
}

// ListForUser returns a learner's certificates, newest first.
func ListForUser(db *gorm.DB, userID uuid.UUID) ([]Certificate, error) {
	var certs []Certificate
	err := db.Preload("Course", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "title") }).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&certs).Error
	return certs, err
}

func newSerial() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate serial: %w", err)
	}
	return "CERT-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}
