// backend/internal/auth/service.go
package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"course-platform/internal/apperr"
	"course-platform/internal/config"
	"course-platform/internal/models"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

const TokenTTL = 24 * time.Hour

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

type Service struct {
	repo      UserStore
	jwtSecret []byte
	now       func() time.Time
}

func NewService(repo UserStore, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil, apperr.Authentication("invalid credentials")
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, apperr.Authentication("invalid credentials")
	}
	if user.Status != models.StatusActive {
		return "", nil, apperr.Authentication("account inactive")
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, apperr.Unexpected("sign token", err)
	}
	return token, user, nil
}

// IssueToken signs an HS256 token carrying the user's id and role.
func (s *Service) IssueToken(user *models.User) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", ErrNoSecret
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     s.now().Add(TokenTTL).Unix(),
	})
	return token.SignedString(s.jwtSecret)
}

// Register creates a student account.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	if name == "" || email == "" || password == "" {
		return nil, apperr.Validation("name, email and password are required")
	}
	return s.create(ctx, name, email, password, models.RoleStudent)
}

func (s *Service) create(ctx context.Context, name, email, password, role string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Validation("password cannot be used")
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: string(hashedPassword),
		Role:     role,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureAdmin creates the configured admin account unless it already exists.
func (s *Service) EnsureAdmin(ctx context.Context, admin config.AdminConfig) error {
	if admin.Email == "" {
		return nil
	}

	_, err := s.repo.GetUserByEmail(ctx, admin.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if admin.Password == "" {
		return apperr.Validation("ADMIN_PASSWORD is required with ADMIN_EMAIL")
	}

	user, err := s.create(ctx, admin.Name, admin.Email, admin.Password, models.RoleAdmin)
	if err != nil {
		return err
	}
	log.Printf("Created admin account %s", user.Email)
	return nil
}
