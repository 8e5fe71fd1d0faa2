// backend/internal/models/certificate.go
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Certificate proves a learner passed a course. One per user and course.
type Certificate struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt      time.Time `json:"createdAt"`
	UserID         string    `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_certificates_user_course"`
	User           *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	CourseID       string    `json:"courseId" gorm:"type:uuid;not null;uniqueIndex:idx_certificates_user_course"`
	Course         *Course   `json:"course,omitempty" gorm:"foreignKey:CourseID"`
	QuizScore      int       `json:"quizScore" gorm:"not null"`
	ValidationCode string    `json:"validationCode" gorm:"uniqueIndex;not null"`
	IssuedAt       time.Time `json:"issuedAt" gorm:"not null"`
}

func (c *Certificate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ValidationCode == "" {
		c.ValidationCode = NewValidationCode()
	}
	return nil
}

// NewValidationCode returns 12 upper-case hex characters.
func NewValidationCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
