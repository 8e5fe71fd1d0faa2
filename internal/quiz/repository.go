// backend/internal/quiz/repository.go
package quiz

import (
	"context"
	"errors"
	"log"

	"course-platform/internal/apperr"
	"course-platform/internal/models"
	"course-platform/pkg/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionSource hands out the shared database handle and takes reports of
// broken links. *database.Pool satisfies it.
type ConnectionSource interface {
	Acquire(ctx context.Context) (*gorm.DB, error)
	Disconnected(conn *gorm.DB)
}

// Repository is the gorm-backed store. It borrows a handle per call and never
// opens or closes one itself.
type Repository struct {
	conns ConnectionSource
}

func NewRepository(conns ConnectionSource) *Repository {
	return &Repository{conns: conns}
}

// db returns the pooled handle and a session bound to ctx.
func (r *Repository) db(ctx context.Context) (*gorm.DB, *gorm.DB, error) {
	conn, err := r.conns.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return conn, conn.WithContext(ctx), nil
}

// fail reports broken links to the pool so the next request reconnects.
func (r *Repository) fail(conn *gorm.DB, err error) error {
	if database.IsConnectionError(err) {
		r.conns.Disconnected(conn)
		return apperr.Connection(err)
	}
	return err
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *Repository) FindQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	if !validID(id) {
		return nil, apperr.NotFound("quiz not found")
	}
	conn, db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var quiz models.Quiz
	err = db.Preload("Questions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position asc")
	}).First(&quiz, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("quiz not found")
	}
	if err != nil {
		log.Printf("Error getting quiz %s: %v", id, err)
		return nil, r.fail(conn, err)
	}
	return &quiz, nil
}

func (r *Repository) QuizIDsByCourse(ctx context.Context, courseID string) ([]string, error) {
	if !validID(courseID) {
		return []string{}, nil
	}
	conn, db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	err = db.Model(&models.Quiz{}).Where("course_id = ?", courseID).Pluck("id", &ids).Error
	if err != nil {
		log.Printf("Error getting quizzes for course %s: %v", courseID, err)
		return nil, r.fail(conn, err)
	}
	return ids, nil
}

func (r *Repository) FindUser(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, apperr.NotFound("user not found")
	}
	conn, db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = db.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, r.fail(conn, err)
	}
	return &user, nil
}

func (r *Repository) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	if !validID(id) {
		return nil, apperr.NotFound("course not found")
	}
	conn, db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var course models.Course
	err = db.Select("id", "title", "hours").First(&course, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("course not found")
	}
	if err != nil {
		return nil, r.fail(conn, err)
	}
	return &course, nil
}

// CreateResponse inserts a single row; associations are never written.
func (r *Repository) CreateResponse(ctx context.Context, response *models.QuizResponse) error {
	conn, db, err := r.db(ctx)
	if err != nil {
		return err
	}
	if err := db.Omit("User", "Quiz").Create(response).Error; err != nil {
		log.Printf("Error saving response for quiz %s: %v", response.QuizID, err)
		return r.fail(conn, err)
	}
	log.Printf("Saved response %s (quiz %s, score %d)", response.ID, response.QuizID, response.Score)
	return nil
}

func joined(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "name", "email")
		}).
		Preload("Quiz").
		Preload("Quiz.Course", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "title")
		})
}

func (r *Repository) FindResponse(ctx context.Context, id string) (*models.QuizResponse, error) {
	if !validID(id) {
		return nil, apperr.NotFound("response not found")
	}
	conn, db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var response models.QuizResponse
	err = joined(db).First(&response, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("response not found")
	}
	if err != nil {
		return nil, r.fail(conn, err)
	}
	return &response, nil
}

// ListResponses returns joined responses, newest first. A nil quizIDs means
// no filter.
func (r *Repository) ListResponses(ctx context.Context, quizIDs []string) ([]models.QuizResponse, error) {
	conn, db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	query := joined(db).Model(&models.QuizResponse{})
	if quizIDs != nil {
		query = query.Where("quiz_id IN ?", quizIDs)
	}

	responses := []models.QuizResponse{}
	err = query.Order("completed_at desc").Order("id desc").Find(&responses).Error
	if err != nil {
		log.Printf("Error listing responses: %v", err)
		return nil, r.fail(conn, err)
	}
	return responses, nil
}
