// backend/internal/models/course.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultCourseHours applies to courses stored without a workload.
const DefaultCourseHours = 10

type Course struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Title     string    `json:"title" gorm:"not null"`
	Hours     int       `json:"hours"`
}

// Workload returns Hours, or DefaultCourseHours when it was never set.
func (c *Course) Workload() int {
	if c == nil || c.Hours <= 0 {
		return DefaultCourseHours
	}
	return c.Hours
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Hours <= 0 {
		c.Hours = DefaultCourseHours
	}
	return nil
}

// Quiz belongs to a course. Questions are ordered by Position.
type Quiz struct {
	ID        string     `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	CourseID  string     `json:"courseId" gorm:"type:uuid;not null;index"`
	Course    *Course    `json:"course,omitempty" gorm:"foreignKey:CourseID"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
}

func (q *Quiz) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

type Question struct {
	ID            string                      `json:"id" gorm:"type:uuid;primaryKey"`
	QuizID        string                      `json:"quizId" gorm:"type:uuid;not null;index"`
	Position      int                         `json:"position" gorm:"not null"`
	Text          string                      `json:"text" gorm:"not null"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer int                         `json:"correctAnswer" gorm:"not null"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

// All lists every model the schema migration has to know about.
func All() []interface{} {
	return []interface{}{
		&Course{},
		&User{},
		&Quiz{},
		&Question{},
		&QuizResponse{},
		&Certificate{},
	}
}
