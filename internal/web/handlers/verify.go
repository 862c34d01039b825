package handlers

import (
	"net/http"
)

// VerifyHandler serves one-to-one verification requests.
type VerifyHandler struct {
	service Service
}

func NewVerifyHandler(service Service) *VerifyHandler {
	return &VerifyHandler{service: service}
}

// Verify handles POST /verify: a multipart form with the image and an
// identity_id field claiming who it is.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	identityID := r.FormValue("identity_id")
	if identityID == "" {
		respondError(w, http.StatusBadRequest, "identity_id is required")
		return
	}

	res, err := h.service.Verify(r.Context(), img, identityID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
