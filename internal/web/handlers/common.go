// Package handlers implements the HTTP API of the identification service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/facegate/facegate/internal/recognition"
)

// maxImageBytes caps a single uploaded image. Phone photos are a few MB;
// anything past this is abuse or a mistake.
const maxImageBytes = 16 << 20

// Service is the slice of the pipeline the HTTP layer needs.
type Service interface {
	Identify(ctx context.Context, imageData []byte) (*recognition.Result, error)
	IdentifyBatch(ctx context.Context, images [][]byte) ([]*recognition.Result, error)
	Verify(ctx context.Context, imageData []byte, identityID string) (*recognition.VerifyResult, error)
	Authenticate(ctx context.Context, imageData []byte) (*recognition.Result, error)
	Enroll(ctx context.Context, identityID string, images [][]byte) (*recognition.EnrollResult, error)
	RemoveIdentity(ctx context.Context, identityID string) error
	Ready() bool
	CacheStats() (hits, misses uint64, size int)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps pipeline errors onto status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, recognition.ErrInitializing) {
		respondError(w, http.StatusServiceUnavailable, "service is warming up, retry shortly")
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

// readImage pulls the uploaded image out of the request: a multipart
// form field named file or image, or the raw body for image/* uploads.
func readImage(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			return nil, fmt.Errorf("parsing multipart form: %w", err)
		}
		for _, field := range []string{"file", "image"} {
			f, _, err := r.FormFile(field)
			if err != nil {
				continue
			}
			defer f.Close()
			return io.ReadAll(io.LimitReader(f, maxImageBytes))
		}
		return nil, errors.New("multipart form has no file or image field")
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty request body")
	}
	return data, nil
}

// readImages pulls every uploaded file out of a multipart form, in form
// order.
func readImages(r *http.Request) ([][]byte, error) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, fmt.Errorf("parsing multipart form: %w", err)
	}
	if r.MultipartForm == nil {
		return nil, errors.New("expected multipart form upload")
	}

	var images [][]byte
	for _, field := range []string{"files", "file", "images", "image"} {
		for _, fh := range r.MultipartForm.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
			}
			data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("reading upload %s: %w", fh.Filename, err)
			}
			images = append(images, data)
		}
	}
	if len(images) == 0 {
		return nil, errors.New("multipart form has no uploaded files")
	}
	return images, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
