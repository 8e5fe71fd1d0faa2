// backend/internal/quiz/service.go
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"course-platform/internal/apperr"
	"course-platform/internal/models"

	"github.com/go-playground/validator/v10"
)

type QuizRepository interface {
	FindQuiz(ctx context.Context, id string) (*models.Quiz, error)
	QuizIDsByCourse(ctx context.Context, courseID string) ([]string, error)
}

type UserRepository interface {
	FindUser(ctx context.Context, id string) (*models.User, error)
}

type CourseRepository interface {
	FindCourse(ctx context.Context, id string) (*models.Course, error)
}

type ResponseRepository interface {
	CreateResponse(ctx context.Context, response *models.QuizResponse) error
	FindResponse(ctx context.Context, id string) (*models.QuizResponse, error)
	ListResponses(ctx context.Context, quizIDs []string) ([]models.QuizResponse, error)
}

// Store groups the repositories the service reads and writes through.
type Store interface {
	QuizRepository
	UserRepository
	CourseRepository
	ResponseRepository
}

// QuizCache holds answer keys. Failures are logged and otherwise ignored.
type QuizCache interface {
	GetQuiz(ctx context.Context, id string) (*models.Quiz, error)
	SetQuiz(ctx context.Context, quiz *models.Quiz) error
}

// Notifier receives every persisted response, e.g. the admin live feed.
type Notifier interface {
	ResponseSubmitted(view models.ResponseView)
}

// Notifiers fans one submission out to several notifiers in order.
type Notifiers []Notifier

func (n Notifiers) ResponseSubmitted(view models.ResponseView) {
	for _, notifier := range n {
		notifier.ResponseSubmitted(view)
	}
}

type AnswerInput struct {
	Question       string `json:"question"`
	SelectedAnswer *int   `json:"selectedAnswer" validate:"required"`
}

type SubmitInput struct {
	QuizID  string        `json:"quizId" validate:"required"`
	UserID  string        `json:"-"`
	Answers []AnswerInput `json:"answers" validate:"required,min=1,dive"`
}

type ListFilter struct {
	CourseID string
}

type Requester struct {
	UserID string
}

type Service struct {
	store    Store
	cache    QuizCache
	notifier Notifier
	validate *validator.Validate
	now      func() time.Time
}

func NewService(store Store, cache QuizCache, notifier Notifier) *Service {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		store:    store,
		cache:    cache,
		notifier: notifier,
		validate: validate,
		now:      time.Now,
	}
}

// Submit grades and stores one attempt, then returns it joined with the
// learner and the quiz's course. Every call creates a new response.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*models.ResponseView, error) {
	if input.UserID == "" {
		return nil, apperr.Authentication("authentication required")
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	user, err := s.store.FindUser(ctx, input.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Authentication("unknown user")
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, apperr.Authorization("account inactive")
	}

	quiz, err := s.loadQuiz(ctx, input.QuizID)
	if err != nil {
		return nil, err
	}

	answers, score, err := Grade(quiz.Questions, input.Answers)
	if err != nil {
		return nil, err
	}

	response := &models.QuizResponse{
		UserID:      user.ID,
		QuizID:      quiz.ID,
		Answers:     answers,
		Score:       score,
		CompletedAt: s.now().UTC(),
	}
	if err := s.store.CreateResponse(ctx, response); err != nil {
		return nil, err
	}

	response.User = user
	response.Quiz = quiz
	course, err := s.store.FindCourse(ctx, quiz.CourseID)
	switch {
	case err == nil:
		quiz.Course = course
	case errors.Is(err, apperr.ErrNotFound):
		log.Printf("Course %s of quiz %s not found", quiz.CourseID, quiz.ID)
	default:
		// The response is already stored; report it without the course title.
		log.Printf("Error getting course %s for response %s: %v", quiz.CourseID, response.ID, err)
	}

	view := response.ToView()
	if s.notifier != nil {
		s.notifier.ResponseSubmitted(view)
	}
	return &view, nil
}

func (s *Service) validateInput(input SubmitInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation("invalid request")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return apperr.Validation(fmt.Sprintf("%s is required", fe.Field()))
	case "min":
		return apperr.Validation(fmt.Sprintf("%s must not be empty", fe.Field()))
	default:
		return apperr.Validation(fmt.Sprintf("%s is invalid", fe.Field()))
	}
}

// loadQuiz reads the answer key from the cache, falling back to the database.
func (s *Service) loadQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	if s.cache != nil {
		quiz, err := s.cache.GetQuiz(ctx, id)
		if err == nil {
			return quiz, nil
		}
	}

	quiz, err := s.store.FindQuiz(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetQuiz(ctx, quiz); err != nil {
			log.Printf("Error caching quiz %s: %v", id, err)
		}
	}
	return quiz, nil
}

// Authorize succeeds only for an existing, active admin.
func (s *Service) Authorize(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.Authentication("authentication required")
	}
	user, err := s.store.FindUser(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Authorization("access denied")
	}
	if err != nil {
		return err
	}
	if !user.IsAdmin() || !user.IsActive() {
		return apperr.Authorization("access denied")
	}
	return nil
}

// ListResponses returns responses newest first, optionally limited to one
// course. Only admins may list.
func (s *Service) ListResponses(ctx context.Context, filter ListFilter, requester Requester) ([]models.ResponseView, error) {
	if err := s.Authorize(ctx, requester.UserID); err != nil {
		return nil, err
	}

	var quizIDs []string
	if filter.CourseID != "" {
		ids, err := s.store.QuizIDsByCourse(ctx, filter.CourseID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []models.ResponseView{}, nil
		}
		quizIDs = ids
	}

	responses, err := s.store.ListResponses(ctx, quizIDs)
	if err != nil {
		return nil, err
	}
	return models.ToViews(responses), nil
}

// GetResponse returns one joined response to its owner or to an admin.
func (s *Service) GetResponse(ctx context.Context, id string, requester Requester) (*models.ResponseView, error) {
	if requester.UserID == "" {
		return nil, apperr.Authentication("authentication required")
	}
	response, err := s.store.FindResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	if response.UserID != requester.UserID {
		if err := s.Authorize(ctx, requester.UserID); err != nil {
			return nil, err
		}
	}
	view := response.ToView()
	return &view, nil
}
