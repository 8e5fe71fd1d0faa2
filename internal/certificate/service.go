// backend/internal/certificate/service.go
package certificate

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"course-platform/internal/apperr"
	"course-platform/internal/models"
)

type Store interface {
	FindCertificate(ctx context.Context, id string) (*models.Certificate, error)
	CreateCertificate(ctx context.Context, cert *models.Certificate) error
}

// Data is everything printed on a certificate.
type Data struct {
	StudentName    string
	CourseName     string
	CompletionDate time.Time
	ValidationCode string
	QuizScore      int
	CourseHours    int
}

// Renderer turns certificate data into a document, e.g. a PDF.
type Renderer interface {
	Render(data Data) ([]byte, error)
}

// Document is a rendered certificate ready to be served.
type Document struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Service struct {
	store    Store
	renderer Renderer
	now      func() time.Time
	timeout  time.Duration
}

func NewService(store Store, renderer Renderer) *Service {
	return &Service{
		store:    store,
		renderer: renderer,
		now:      time.Now,
		timeout:  5 * time.Second,
	}
}

// Download renders a certificate for its holder. Anyone else is rejected as
// unauthenticated, the same as a missing session.
func (s *Service) Download(ctx context.Context, id, userID string) (*Document, error) {
	if userID == "" {
		return nil, apperr.Authentication("authentication required")
	}
	if id == "" {
		return nil, apperr.Validation("certificateId is required")
	}

	cert, err := s.store.FindCertificate(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.UserID != userID {
		log.Printf("User %s denied certificate %s", userID, id)
		return nil, apperr.Authentication("not authorized")
	}

	data := Data{
		CompletionDate: cert.IssuedAt,
		ValidationCode: cert.ValidationCode,
		QuizScore:      cert.QuizScore,
		CourseHours:    cert.Course.Workload(),
	}
	if cert.User != nil {
		data.StudentName = cert.User.Name
	}
	if cert.Course != nil {
		data.CourseName = cert.Course.Title
	}

	content, err := s.renderer.Render(data)
	if err != nil {
		return nil, apperr.Unexpected("render certificate", err)
	}
	return &Document{
		Filename:    Filename(data.CourseName),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

// Filename is "certificado-" plus the lower-cased course title with
// whitespace runs replaced by dashes.
func Filename(courseTitle string) string {
	slug := strings.Join(strings.Fields(strings.ToLower(courseTitle)), "-")
	slug = strings.NewReplacer(`"`, "", `\`, "", "/", "-").Replace(slug)
	return "certificado-" + slug + ".pdf"
}

// Issue creates the certificate for a passing response. A user earns at most
// one certificate per course; later passes get ErrAlreadyIssued.
func (s *Service) Issue(ctx context.Context, view models.ResponseView) (*models.Certificate, error) {
	if view.Score < models.PassingScore {
		return nil, apperr.Validation("score below passing mark")
	}
	if view.User.ID == "" || view.Quiz.Course.ID == "" {
		return nil, apperr.Validation("response has no user or course")
	}

	cert := &models.Certificate{
		UserID:    view.User.ID,
		CourseID:  view.Quiz.Course.ID,
		QuizScore: view.Score,
		IssuedAt:  s.now().UTC(),
	}
	if err := s.store.CreateCertificate(ctx, cert); err != nil {
		return nil, err
	}
	log.Printf("Issued certificate %s to user %s for course %s", cert.ID, cert.UserID, cert.CourseID)
	return cert, nil
}

// ResponseSubmitted issues a certificate when a submission passes. Failures
// are logged; the response itself is already stored.
func (s *Service) ResponseSubmitted(view models.ResponseView) {
	if view.Score < models.PassingScore {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.Issue(ctx, view)
	if err != nil && !errors.Is(err, ErrAlreadyIssued) {
		log.Printf("Error issuing certificate for response %s: %v", view.ID, err)
	}
}
