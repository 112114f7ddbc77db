package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/domain"
	"github.com/cinevec/cinevec/internal/index"
	healthuc "github.com/cinevec/cinevec/internal/usecase/health"
)

// --- Mocks ---

type mockRecommender struct {
	byMovie func(id int64) ([]int64, error)
	byUser  func(id int64) ([]int64, error)
}

func (m *mockRecommender) ByMovie(_ context.Context, id int64) ([]int64, error) {
	return m.byMovie(id)
}

func (m *mockRecommender) ByUser(_ context.Context, id int64) ([]int64, error) {
	return m.byUser(id)
}

type mockSearcher struct {
	hits      []index.ScoredPoint
	err       error
	lastQuery domain.Query
	lastTopK  int
}

func (m *mockSearcher) Search(
	_ context.Context, _ string, query domain.Query, topK int,
) ([]index.ScoredPoint, error) {
	m.lastQuery = query
	m.lastTopK = topK
	return m.hits, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestServer(rec Recommender, search Searcher, health HealthChecker) http.Handler {
	if rec == nil {
		rec = &mockRecommender{}
	}
	if search == nil {
		search = &mockSearcher{}
	}
	if health == nil {
		health = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	return NewServer(rec, search, health, 10, zap.NewNop()).Router(nil)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Recommendations ---

func TestRecommendByMovie_OK(t *testing.T) {
	rec := &mockRecommender{byMovie: func(id int64) ([]int64, error) {
		if id != 42 {
			return nil, fmt.Errorf("unexpected id %d", id)
		}
		return []int64{7, 8, 9}, nil
	}}
	router := newTestServer(rec, nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/recommendations/movies/42", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp recommendationsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.IDs) != 3 || resp.IDs[0] != 7 {
		t.Errorf("ids = %v", resp.IDs)
	}
}

func TestRecommendByMovie_NotFound(t *testing.T) {
	rec := &mockRecommender{byMovie: func(int64) ([]int64, error) {
		return nil, fmt.Errorf("movie: %w", domain.ErrNotFound)
	}}
	router := newTestServer(rec, nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/recommendations/movies/404", http.NoBody))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if resp := decodeError(t, rr); resp.Code != codeNotFound {
		t.Errorf("code = %s, want %s", resp.Code, codeNotFound)
	}
}

func TestRecommendByMovie_BadID(t *testing.T) {
	router := newTestServer(nil, nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/recommendations/movies/abc", http.NoBody))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRecommendByUser_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   errorCode
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound, codeNotFound},
		{"no signal", domain.ErrNoSignal, http.StatusUnprocessableEntity, codeNoSignal},
		{"provider down", domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider},
		{"index down", domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, codeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockRecommender{byUser: func(int64) ([]int64, error) {
				return nil, fmt.Errorf("by user: %w", tt.err)
			}}
			router := newTestServer(rec, nil, nil)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest("GET", "/recommendations/users/1", http.NoBody))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if resp := decodeError(t, rr); resp.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Code, tt.wantCode)
			}
		})
	}
}

// --- Search ---

func searchBody(t *testing.T, req searchRequest) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewReader(b)
}

func TestSearchCollection_TextQuery(t *testing.T) {
	search := &mockSearcher{hits: []index.ScoredPoint{
		{ID: 0, Score: 0.9, Payload: map[string]any{"id": int64(3), "text": "t"}},
	}}
	router := newTestServer(nil, search, nil)

	body := searchBody(t, searchRequest{Collection: "movies", Query: "heist", TopK: 5})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/search", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].ID != 3 {
		t.Errorf("response = %+v", resp)
	}
	if !search.lastQuery.IsText() || search.lastQuery.Text() != "heist" {
		t.Errorf("query = %+v", search.lastQuery)
	}
	if search.lastTopK != 5 {
		t.Errorf("topK = %d, want 5", search.lastTopK)
	}
}

func TestSearchCollection_VectorQuery(t *testing.T) {
	search := &mockSearcher{}
	router := newTestServer(nil, search, nil)

	body := searchBody(t, searchRequest{Collection: "movies", Vector: []float32{1, 2}})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/search", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if search.lastQuery.IsText() {
		t.Error("query must be the vector variant")
	}
	// Default top_k applies when the request omits it.
	if search.lastTopK != 10 {
		t.Errorf("topK = %d, want default 10", search.lastTopK)
	}
}

func TestSearchCollection_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  searchRequest
	}{
		{"missing collection", searchRequest{Query: "q"}},
		{"neither query nor vector", searchRequest{Collection: "movies"}},
		{"both query and vector", searchRequest{Collection: "movies", Query: "q", Vector: []float32{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestServer(nil, nil, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest("POST", "/search", searchBody(t, tt.req)))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestSearchCollection_DimMismatch(t *testing.T) {
	search := &mockSearcher{err: fmt.Errorf("resolve: %w", domain.ErrDimMismatch)}
	router := newTestServer(nil, search, nil)

	body := searchBody(t, searchRequest{Collection: "movies", Vector: []float32{1}})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/search", body))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if resp := decodeError(t, rr); resp.Code != codeDimMismatch {
		t.Errorf("code = %s, want %s", resp.Code, codeDimMismatch)
	}
}

// --- Health ---

func TestHealthCheck_Degraded503(t *testing.T) {
	health := &mockHealth{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"index": healthuc.CheckError},
	}}
	router := newTestServer(nil, nil, health)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", http.NoBody))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthCheck_OK(t *testing.T) {
	router := newTestServer(nil, nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}
