// backend/internal/models/response.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Answer is one graded position of a submission. IsCorrect is always computed
// from the stored answer key.
type Answer struct {
	Question       string `json:"question"`
	SelectedAnswer int    `json:"selectedAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
}

// QuizResponse is one learner's attempt at one quiz. Answers live in the same
// row so creating a response is a single insert.
type QuizResponse struct {
	ID          string                      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UserID      string                      `json:"userId" gorm:"type:uuid;not null;index"`
	User        *User                       `json:"user,omitempty" gorm:"foreignKey:UserID"`
	QuizID      string                      `json:"quizId" gorm:"type:uuid;not null;index"`
	Quiz        *Quiz                       `json:"quiz,omitempty" gorm:"foreignKey:QuizID"`
	Answers     datatypes.JSONSlice[Answer] `json:"answers" gorm:"not null"`
	Score       int                         `json:"score" gorm:"not null"`
	CompletedAt time.Time                   `json:"completedAt" gorm:"not null;index"`
}

func (r *QuizResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
