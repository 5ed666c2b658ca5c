package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devworth/devworth/internal/ai"
	"github.com/devworth/devworth/internal/github"
	"github.com/devworth/devworth/internal/store"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type stubFetcher struct {
	profile *github.Profile
	err     error
	calls   int
}

func (s *stubFetcher) Fetch(_ context.Context, _ string) (*github.Profile, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

type stubEstimator struct {
	estimate ai.Estimate
}

func (s *stubEstimator) Estimate(_ context.Context, _ *github.Profile, _, _ string) *ai.Estimate {
	estimate := s.estimate
	return &estimate
}

type stubStore struct {
	configured bool
	result     store.SaveResult
	readErr    error
	records    []store.Record
	saved      chan *store.Record
}

func newStubStore() *stubStore {
	return &stubStore{saved: make(chan *store.Record, 8)}
}

func (s *stubStore) Configured() bool { return s.configured }

func (s *stubStore) Save(_ context.Context, record *store.Record) store.SaveResult {
	s.saved <- record
	if !s.configured {
		return store.SaveResult{Skipped: true}
	}
	return s.result
}

func (s *stubStore) History(_ context.Context, _ string, _ int) ([]store.Record, error) {
	if !s.configured {
		return nil, store.ErrNotConfigured
	}
	return s.records, s.readErr
}

func (s *stubStore) Recent(_ context.Context, _ int) ([]store.Record, error) {
	if !s.configured {
		return nil, store.ErrNotConfigured
	}
	return s.records, s.readErr
}

func newTestServer(t *testing.T, fetcher *stubFetcher, estimator *stubEstimator, st *stubStore) *Server {
	t.Helper()

	srv, err := NewServer(fetcher, estimator, st, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	t.Cleanup(func() { srv.saver.close() })

	return srv
}

func waitForSave(t *testing.T, st *stubStore) *store.Record {
	t.Helper()

	select {
	case record := <-st.saved:
		return record
	case <-time.After(2 * time.Second):
		t.Fatalf("no background save observed")
		return nil
	}
}

func analyzeBody() string {
	return `{"url": "https://github.com/octocat", "yearsOfExperience": "3-5 years", "targetRole": "Backend Engineer"}`
}

func TestAnalyze(t *testing.T) {
	fetcher := &stubFetcher{profile: &github.Profile{
		User:  github.Snapshot{Login: "octocat", PublicRepos: 2},
		Stats: github.Stats{TotalStars: 43, Languages: map[string]int{"Go": 120}},
	}}
	estimator := &stubEstimator{estimate: ai.Estimate{Range: "₹12,00,000 – ₹18,00,000", Message: "ok", Confidence: 72}}
	st := newStubStore()
	st.configured = true
	st.result = store.SaveResult{Saved: true, ID: "abc123"}

	srv := newTestServer(t, fetcher, estimator, st)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(analyzeBody()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if !resp.Success || resp.Username != "octocat" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Estimate.Range != "₹12,00,000 – ₹18,00,000" || resp.Estimate.Confidence != 72 {
		t.Fatalf("unexpected estimate: %+v", resp.Estimate)
	}
	if resp.Stats.TotalStars != 43 {
		t.Fatalf("unexpected stats: %+v", resp.Stats)
	}

	record := waitForSave(t, st)
	if record.GithubUsername != "octocat" || record.CTC != "₹12,00,000 – ₹18,00,000" {
		t.Fatalf("unexpected saved record: %+v", record)
	}
	if record.GithubURL != "https://github.com/octocat" {
		t.Fatalf("unexpected source url: %q", record.GithubURL)
	}
}

func TestAnalyzeRejectsForeignHostBeforeFetch(t *testing.T) {
	fetcher := &stubFetcher{}
	st := newStubStore()
	srv := newTestServer(t, fetcher, &stubEstimator{}, st)

	body := `{"url": "https://gitlab.com/octocat", "yearsOfExperience": "1-3 years", "targetRole": "x"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if fetcher.calls != 0 {
		t.Fatalf("fetcher must not be called for a rejected URL")
	}
}

func TestAnalyzeProfileUnavailable(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("boom")}
	st := newStubStore()
	srv := newTestServer(t, fetcher, &stubEstimator{}, st)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(analyzeBody()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unavailable") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestAnalyzeSucceedsDespiteFailingStore(t *testing.T) {
	fetcher := &stubFetcher{profile: &github.Profile{User: github.Snapshot{Login: "octocat"}}}
	estimator := &stubEstimator{estimate: ai.Estimate{Range: "₹6,00,000 – ₹9,00,000", Message: "ok", Confidence: 55}}
	st := newStubStore()
	st.configured = true
	st.result = store.SaveResult{Err: errors.New("store down")}

	srv := newTestServer(t, fetcher, estimator, st)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(analyzeBody()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("persistence failure must not surface, got %d", rec.Code)
	}

	waitForSave(t, st)
}

func TestSaveAnalysisSkippedWithoutStore(t *testing.T) {
	st := newStubStore()
	srv := newTestServer(t, &stubFetcher{}, &stubEstimator{}, st)

	body := `{
		"githubUsername": "octocat",
		"githubUrl": "https://github.com/octocat",
		"yearsOfExperience": "1-3 years",
		"targetRole": "Backend Engineer",
		"ctc": "₹8,00,000 – ₹12,00,000",
		"message": "ok",
		"confidence": 60,
		"githubData": {"publicRepos": 2, "totalStars": 43, "languages": {"Go": 120}}
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success || !resp.Skipped {
		t.Fatalf("expected skipped success, got %+v", resp)
	}

	record := waitForSave(t, st)
	if record.GithubData.TotalStars != 43 || record.GithubData.Languages["Go"] != 120 {
		t.Fatalf("stats not decoded: %+v", record.GithubData)
	}
}

func TestSaveAnalysisStoreFailure(t *testing.T) {
	st := newStubStore()
	st.configured = true
	st.result = store.SaveResult{Err: errors.New("insert failed")}

	srv := newTestServer(t, &stubFetcher{}, &stubEstimator{}, st)

	body := `{"githubUsername": "octocat", "githubUrl": "https://github.com/octocat", "ctc": "x", "message": "y", "confidence": 1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Failed to save analysis") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	st := newStubStore()
	srv := newTestServer(t, &stubFetcher{}, &stubEstimator{}, st)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/octocat", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	st := newStubStore()
	st.configured = true
	st.records = []store.Record{{GithubUsername: "octocat", CTC: "₹8,00,000 – ₹12,00,000"}}

	srv := newTestServer(t, &stubFetcher{}, &stubEstimator{}, st)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/octocat?limit=5", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].GithubUsername != "octocat" {
		t.Fatalf("unexpected history: %+v", resp)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{}, &stubEstimator{}, newStubStore())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
