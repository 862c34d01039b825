package handlers

import (
	"net/http"
)

// IdentifyHandler serves identification requests.
type IdentifyHandler struct {
	service Service
}

func NewIdentifyHandler(service Service) *IdentifyHandler {
	return &IdentifyHandler{service: service}
}

// Identify handles POST /identify: one image in, one result out.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.Identify(r.Context(), img)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// IdentifyBatch handles POST /identify/batch: a multipart upload of
// several images. Results keep upload order and fail independently.
func (h *IdentifyHandler) IdentifyBatch(w http.ResponseWriter, r *http.Request) {
	images, err := readImages(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.service.IdentifyBatch(r.Context(), images)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

// Readiness handles GET /ready. 503 until extractor warm-up finishes.
func (h *IdentifyHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if !h.service.Ready() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
