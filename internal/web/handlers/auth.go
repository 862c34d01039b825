package handlers

import (
	"net/http"

	"github.com/facegate/facegate/internal/recognition"
)

// AuthHandler serves face authentication. Unlike plain identification it
// consults the identity directory and can deny a matched face.
type AuthHandler struct {
	service Service
}

func NewAuthHandler(service Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// FaceLogin handles POST /auth/face-login. A denied outcome is 403, a
// non-match 401; the body always carries the full result so the client
// can show the recommendation on quality rejects.
func (h *AuthHandler) FaceLogin(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.Authenticate(r.Context(), img)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	switch {
	case res.Outcome.Denied():
		status = http.StatusForbidden
	case res.Outcome == recognition.OutcomeError:
		status = http.StatusBadGateway
	case res.Outcome != recognition.OutcomeSuccess:
		status = http.StatusUnauthorized
	}
	respondJSON(w, status, res)
}
