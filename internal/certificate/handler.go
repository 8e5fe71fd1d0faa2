// backend/internal/certificate/handler.go
package certificate

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"course-platform/internal/apperr"
	"course-platform/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Download serves GET /api/certificates/download?certificateId=.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Download(
		r.Context(),
		r.URL.Query().Get("certificateId"),
		auth.UserIDFromContext(r.Context()),
	)
	if err != nil {
		status := apperr.StatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Printf("Certificate download failed: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": apperr.PublicMessage(err)})
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Content); err != nil {
		log.Printf("Error writing certificate: %v", err)
	}
}
