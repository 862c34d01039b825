package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// IdentitiesHandler manages enrollment and removal of identities.
type IdentitiesHandler struct {
	service Service
}

func NewIdentitiesHandler(service Service) *IdentitiesHandler {
	return &IdentitiesHandler{service: service}
}

// Enroll handles POST /identities/{id}/enroll: a multipart upload of one
// or more photos of the same person.
func (h *IdentitiesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "id")
	if identityID == "" {
		respondError(w, http.StatusBadRequest, "identity id is required")
		return
	}

	images, err := readImages(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.Enroll(r.Context(), identityID, images)
	if err != nil {
		// Partial information is still useful: which photos failed and why.
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  err.Error(),
			"result": res,
		})
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// Delete handles DELETE /identities/{id}. Removal is immediate: once the
// response is sent the identity can no longer match.
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "id")
	if identityID == "" {
		respondError(w, http.StatusBadRequest, "identity id is required")
		return
	}

	if err := h.service.RemoveIdentity(r.Context(), identityID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": identityID})
}
