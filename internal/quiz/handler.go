// backend/internal/quiz/handler.go
package quiz

import (
	"encoding/json"
	"log"
	"net/http"

	"course-platform/internal/apperr"
	"course-platform/internal/auth"

	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var input SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	input.UserID = userID

	view, err := h.service.Submit(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{CourseID: r.URL.Query().Get("courseId")}
	requester := Requester{UserID: auth.UserIDFromContext(r.Context())}

	views, err := h.service.ListResponses(r.Context(), filter, requester)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) ResponseSummary(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{CourseID: r.URL.Query().Get("courseId")}
	requester := Requester{UserID: auth.UserIDFromContext(r.Context())}

	summary, err := h.service.Summary(r.Context(), filter, requester)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetResponse(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requester := Requester{UserID: auth.UserIDFromContext(r.Context())}

	view, err := h.service.GetResponse(r.Context(), id, requester)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.StatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}
	writeJSONError(w, status, apperr.PublicMessage(err))
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
