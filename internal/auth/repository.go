// backend/internal/auth/repository.go
package auth

import (
	"context"
	"errors"
	"log"
	"strings"

	"course-platform/internal/apperr"
	"course-platform/internal/models"
	"course-platform/pkg/database"

	"gorm.io/gorm"
)

// ConnectionSource is satisfied by *database.Pool.
type ConnectionSource interface {
	Acquire(ctx context.Context) (*gorm.DB, error)
	Disconnected(conn *gorm.DB)
}

type Repository struct {
	conns ConnectionSource
}

func NewRepository(conns ConnectionSource) *Repository {
	return &Repository{conns: conns}
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	conn, err := r.conns.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = conn.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		log.Printf("Error finding user %s: %v", email, err)
		return nil, r.fail(conn, err)
	}
	return &user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	conn, err := r.conns.Acquire(ctx)
	if err != nil {
		return err
	}

	user.Email = normalizeEmail(user.Email)
	err = conn.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Validation("email already registered")
	}
	if err != nil {
		log.Printf("Error creating user %s: %v", user.Email, err)
		return r.fail(conn, err)
	}
	return nil
}

func (r *Repository) fail(conn *gorm.DB, err error) error {
	if database.IsConnectionError(err) {
		r.conns.Disconnected(conn)
		return apperr.Connection(err)
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
