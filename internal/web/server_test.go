package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/facegate/facegate/internal/recognition"
)

// fakeService scripts pipeline responses for handler tests.
type fakeService struct {
	ready      bool
	identify   *recognition.Result
	verify     *recognition.VerifyResult
	auth       *recognition.Result
	enroll     *recognition.EnrollResult
	enrollErr  error
	removedIDs []string
}

func (f *fakeService) Identify(ctx context.Context, img []byte) (*recognition.Result, error) {
	if !f.ready {
		return nil, recognition.ErrInitializing
	}
	return f.identify, nil
}

func (f *fakeService) IdentifyBatch(ctx context.Context, images [][]byte) ([]*recognition.Result, error) {
	if !f.ready {
		return nil, recognition.ErrInitializing
	}
	out := make([]*recognition.Result, len(images))
	for i := range images {
		out[i] = f.identify
	}
	return out, nil
}

func (f *fakeService) Verify(ctx context.Context, img []byte, id string) (*recognition.VerifyResult, error) {
	return f.verify, nil
}

func (f *fakeService) Authenticate(ctx context.Context, img []byte) (*recognition.Result, error) {
	return f.auth, nil
}

func (f *fakeService) Enroll(ctx context.Context, id string, images [][]byte) (*recognition.EnrollResult, error) {
	return f.enroll, f.enrollErr
}

func (f *fakeService) RemoveIdentity(ctx context.Context, id string) error {
	f.removedIDs = append(f.removedIDs, id)
	return nil
}

func (f *fakeService) Ready() bool { return f.ready }

func (f *fakeService) CacheStats() (uint64, uint64, int) { return 3, 1, 2 }

func newTestServer(t *testing.T, svc *fakeService) *httptest.Server {
	t.Helper()
	s := NewServer(svc, recognition.NewEventRing(100), "127.0.0.1", 0)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

// multipartBody builds a multipart form with the given files and fields.
func multipartBody(t *testing.T, field string, files [][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for i, data := range files {
		part, err := w.CreateFormFile(field, fmt.Sprintf("img%d.jpg", i))
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		part.Write(data)
	}
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func decodeJSON(t *testing.T, r io.Reader, v any) {
	t.Helper()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, &fakeService{ready: true})

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, &fakeService{ready: true})

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected X-Frame-Options DENY, got %q", got)
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("expected a Content-Security-Policy header")
	}
}

func TestReadinessBeforeWarmup(t *testing.T) {
	srv := newTestServer(t, &fakeService{ready: false})

	resp, err := http.Get(srv.URL + "/api/v1/ready")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before warmup, got %d", resp.StatusCode)
	}
}

func TestIdentifyEndpoint(t *testing.T) {
	svc := &fakeService{
		ready:    true,
		identify: &recognition.Result{Outcome: recognition.OutcomeSuccess, IdentityID: "alice", Score: 0.92},
	}
	srv := newTestServer(t, svc)

	body, contentType := multipartBody(t, "file", [][]byte{[]byte("fake image")}, nil)
	resp, err := http.Post(srv.URL+"/api/v1/identify", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var res recognition.Result
	decodeJSON(t, resp.Body, &res)
	if res.Outcome != recognition.OutcomeSuccess || res.IdentityID != "alice" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestIdentifyWhileInitializingIs503(t *testing.T) {
	srv := newTestServer(t, &fakeService{ready: false})

	body, contentType := multipartBody(t, "file", [][]byte{[]byte("fake image")}, nil)
	resp, err := http.Post(srv.URL+"/api/v1/identify", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestIdentifyWithoutImageIs400(t *testing.T) {
	srv := newTestServer(t, &fakeService{ready: true})

	resp, err := http.Post(srv.URL+"/api/v1/identify", "application/octet-stream", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestIdentifyBatchEndpoint(t *testing.T) {
	svc := &fakeService{
		ready:    true,
		identify: &recognition.Result{Outcome: recognition.OutcomeNoMatch, Score: 0.4},
	}
	srv := newTestServer(t, svc)

	body, contentType := multipartBody(t, "files", [][]byte{[]byte("a"), []byte("b"), []byte("c")}, nil)
	resp, err := http.Post(srv.URL+"/api/v1/identify/batch", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Count   int                   `json:"count"`
		Results []*recognition.Result `json:"results"`
	}
	decodeJSON(t, resp.Body, &out)
	if out.Count != 3 || len(out.Results) != 3 {
		t.Errorf("expected 3 results, got %+v", out)
	}
}

func TestVerifyEndpointRequiresIdentity(t *testing.T) {
	srv := newTestServer(t, &fakeService{ready: true, verify: &recognition.VerifyResult{Verified: true}})

	body, contentType := multipartBody(t, "file", [][]byte{[]byte("fake image")}, nil)
	resp, err := http.Post(srv.URL+"/api/v1/verify", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without identity_id, got %d", resp.StatusCode)
	}

	body, contentType = multipartBody(t, "file", [][]byte{[]byte("fake image")}, map[string]string{"identity_id": "alice"})
	resp, err = http.Post(srv.URL+"/api/v1/verify", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestFaceLoginStatusCodes(t *testing.T) {
	tests := []struct {
		outcome recognition.Outcome
		status  int
	}{
		{recognition.OutcomeSuccess, http.StatusOK},
		{recognition.OutcomeNoMatch, http.StatusUnauthorized},
		{recognition.OutcomeNoFace, http.StatusUnauthorized},
		{recognition.OutcomeDeniedInactive, http.StatusForbidden},
		{recognition.OutcomeDeniedNoPermission, http.StatusForbidden},
		{recognition.OutcomeError, http.StatusBadGateway},
	}
	for _, tt := range tests {
		svc := &fakeService{ready: true, auth: &recognition.Result{Outcome: tt.outcome}}
		srv := newTestServer(t, svc)

		body, contentType := multipartBody(t, "file", [][]byte{[]byte("fake image")}, nil)
		resp, err := http.Post(srv.URL+"/api/v1/auth/face-login", contentType, body)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.status {
			t.Errorf("outcome %s: expected %d, got %d", tt.outcome, tt.status, resp.StatusCode)
		}
	}
}

func TestEnrollEndpoint(t *testing.T) {
	svc := &fakeService{
		ready:  true,
		enroll: &recognition.EnrollResult{IdentityID: "alice", Enrolled: 2},
	}
	srv := newTestServer(t, svc)

	body, contentType := multipartBody(t, "files", [][]byte{[]byte("a"), []byte("b")}, nil)
	resp, err := http.Post(srv.URL+"/api/v1/identities/alice/enroll", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
}

func TestEnrollFailureIs422(t *testing.T) {
	svc := &fakeService{
		ready:     true,
		enroll:    &recognition.EnrollResult{IdentityID: "alice", Skipped: []string{"photo 1: no face detected"}},
		enrollErr: errors.New("no usable enrollment photos"),
	}
	srv := newTestServer(t, svc)

	body, contentType := multipartBody(t, "files", [][]byte{[]byte("a")}, nil)
	resp, err := http.Post(srv.URL+"/api/v1/identities/alice/enroll", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", resp.StatusCode)
	}
}

func TestDeleteIdentityEndpoint(t *testing.T) {
	svc := &fakeService{ready: true}
	srv := newTestServer(t, svc)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/identities/alice", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(svc.removedIDs) != 1 || svc.removedIDs[0] != "alice" {
		t.Errorf("expected alice removed, got %v", svc.removedIDs)
	}
}

func TestEventsAndStatsEndpoints(t *testing.T) {
	svc := &fakeService{ready: true}
	ring := recognition.NewEventRing(10)
	ring.Record(context.Background(), recognition.NewEvent(recognition.OutcomeSuccess, "alice", 0.9, 0, false))
	ring.Record(context.Background(), recognition.NewEvent(recognition.OutcomeNoMatch, "", 0.3, 0, true))

	s := NewServer(svc, ring, "127.0.0.1", 0)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/events?outcome=SUCCESS")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Count  int                 `json:"count"`
		Events []recognition.Event `json:"events"`
	}
	decodeJSON(t, resp.Body, &out)
	if out.Count != 1 || out.Events[0].IdentityID != "alice" {
		t.Errorf("unexpected events response: %+v", out)
	}

	resp2, err := http.Get(srv.URL + "/api/v1/stats?window=1h")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp2.StatusCode)
	}
	var stats struct {
		Events recognition.Stats `json:"events"`
		Cache  struct {
			Hits uint64 `json:"hits"`
		} `json:"cache"`
	}
	decodeJSON(t, resp2.Body, &stats)
	if stats.Events.Total != 2 {
		t.Errorf("expected 2 events in stats, got %d", stats.Events.Total)
	}
	if stats.Cache.Hits != 3 {
		t.Errorf("expected cache hits from service, got %d", stats.Cache.Hits)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeService{ready: true})

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from metrics endpoint, got %d", resp.StatusCode)
	}
}
