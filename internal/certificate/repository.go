// backend/internal/certificate/repository.go
package certificate

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

// ErrAlreadyIssued is returned when the user already holds a certificate for
// the course.
var ErrAlreadyIssued = errors.New("certificate already issued")

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

// FindCertificate loads a certificate with the holder's name and the course
// title and hours.
func (r *Repository) FindCertificate(ctx context.Context, id string) (*models.Certificate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("certificate not found")
	}
	conn, err := r.conns.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var cert models.Certificate
	err = conn.WithContext(ctx).
		Preload("User", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "name")
		}).
		Preload("Course", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "title", "hours")
		}).
		First(&cert, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("certificate not found")
	}
	if err != nil {
		log.Printf("Error getting certificate %s: %v", id, err)
		return nil, r.fail(conn, err)
	}
	return &cert, nil
}

func (r *Repository) CreateCertificate(ctx context.Context, cert *models.Certificate) error {
	conn, err := r.conns.Acquire(ctx)
	if err != nil {
		return err
	}

	err = conn.WithContext(ctx).Omit("User", "Course").Create(cert).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyIssued
	}
	if err != nil {
		log.Printf("Error saving certificate for user %s: %v", cert.UserID, err)
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
