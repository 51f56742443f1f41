package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/helixmind/genomeguard/internal/api/handler"
	mw "github.com/helixmind/genomeguard/internal/api/middleware"
	"github.com/helixmind/genomeguard/internal/cache"
	"github.com/helixmind/genomeguard/internal/store"
	"github.com/helixmind/genomeguard/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockService struct {
	submitFunc func(ctx context.Context, tenantID uuid.UUID, filename string, content []byte) (*models.Analysis, error)
	getFunc    func(ctx context.Context, id, tenantID uuid.UUID) (*models.Analysis, error)
	listFunc   func(ctx context.Context, tenantID uuid.UUID) ([]models.Analysis, error)
	deleteFunc func(ctx context.Context, id, tenantID uuid.UUID) error
}

func (m *mockService) Submit(ctx context.Context, tenantID uuid.UUID, filename string, content []byte) (*models.Analysis, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, tenantID, filename, content)
	}
	return &models.Analysis{
		ID:             uuid.New(),
		TenantID:       tenantID,
		SourceFilename: filename,
		Status:         models.AnalysisStatusPending,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (m *mockService) Get(ctx context.Context, id, tenantID uuid.UUID) (*models.Analysis, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id, tenantID)
	}
	return nil, store.ErrNotFound
}

func (m *mockService) List(ctx context.Context, tenantID uuid.UUID) ([]models.Analysis, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, tenantID)
	}
	return nil, nil
}

func (m *mockService) Delete(ctx context.Context, id, tenantID uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, tenantID)
	}
	return store.ErrNotFound
}

type mockReportCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMockReportCache() *mockReportCache {
	return &mockReportCache{items: make(map[string][]byte)}
}

func (c *mockReportCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *mockReportCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

// --- helpers ---

const testMaxUpload = 1 << 20

func testRouter(svc handler.AnalysisService, reports handler.ReportCache, tenantID uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(mw.SetTenantID(req.Context(), tenantID)))
		})
	})
	r.Post("/api/v1/analysis/upload", handler.NewUploadHandler(svc, testMaxUpload))
	r.Get("/api/v1/analysis/results/{analysisID}", handler.NewGetResultHandler(svc))
	r.Get("/api/v1/analysis/history", handler.NewHistoryHandler(svc))
	r.Delete("/api/v1/analysis/results/{analysisID}", handler.NewDeleteResultHandler(svc))
	r.Get("/api/v1/analysis/results/{analysisID}/download", handler.NewDownloadHandler(svc, reports))
	return r
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "expected data envelope, got %s", w.Body.String())
	return data
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %s", w.Body.String())
	return e
}

func completedAnalysis(id, tenantID uuid.UUID) *models.Analysis {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	done := created.Add(2 * time.Second)
	return &models.Analysis{
		ID:                 id,
		TenantID:           tenantID,
		SourceFilename:     "patient.vcf",
		Status:             models.AnalysisStatusCompleted,
		TotalVariants:      2,
		HighRiskVariants:   1,
		LowRiskVariants:    1,
		PathogenicVariants: 1,
		RiskProbability:    0.7183,
		RiskClassification: models.RiskHigh,
		TopVariants: []models.Variant{
			{Chrom: "17", Pos: 43094464, Ref: "A", Alt: "C", Gene: "BRCA1",
				Significance: models.SigPathogenic, Tier: models.TierHigh},
		},
		CreatedAt:   created,
		CompletedAt: &done,
	}
}

// --- upload ---

func TestUpload_AcceptsVCF(t *testing.T) {
	tenantID := uuid.New()
	var gotFilename string
	var gotContent []byte
	svc := &mockService{
		submitFunc: func(_ context.Context, tid uuid.UUID, filename string, content []byte) (*models.Analysis, error) {
			gotFilename = filename
			gotContent = content
			return &models.Analysis{
				ID: uuid.New(), TenantID: tid, SourceFilename: filename,
				Status: models.AnalysisStatusPending, CreatedAt: time.Now().UTC(),
			}, nil
		},
	}
	router := testRouter(svc, newMockReportCache(), tenantID)

	body, contentType := multipartBody(t, "file", "sample.vcf", "##fileformat=VCFv4.2\n")
	req := httptest.NewRequest("POST", "/api/v1/analysis/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	data := decodeData(t, w)
	assert.Equal(t, "sample.vcf", data["filename"])
	assert.Equal(t, models.AnalysisStatusPending, data["status"])
	assert.NotEmpty(t, data["analysis_id"])

	assert.Equal(t, "sample.vcf", gotFilename)
	assert.Equal(t, []byte("##fileformat=VCFv4.2\n"), gotContent)
}

func TestUpload_MissingFileField(t *testing.T) {
	router := testRouter(&mockService{}, newMockReportCache(), uuid.New())

	body, contentType := multipartBody(t, "document", "sample.vcf", "data")
	req := httptest.NewRequest("POST", "/api/v1/analysis/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeErr(t, w)["code"])
}

func TestUpload_RejectsNonVCF(t *testing.T) {
	router := testRouter(&mockService{}, newMockReportCache(), uuid.New())

	body, contentType := multipartBody(t, "file", "genome.txt", "not a vcf")
	req := httptest.NewRequest("POST", "/api/v1/analysis/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_FILE_TYPE", decodeErr(t, w)["code"])
}

func TestUpload_FileTooLarge(t *testing.T) {
	tenantID := uuid.New()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(mw.SetTenantID(req.Context(), tenantID)))
		})
	})
	r.Post("/api/v1/analysis/upload", handler.NewUploadHandler(&mockService{}, 64))

	big := bytes.Repeat([]byte("A"), 4096)
	body, contentType := multipartBody(t, "file", "big.vcf", string(big))
	req := httptest.NewRequest("POST", "/api/v1/analysis/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decodeErr(t, w)["code"])
}

// --- results ---

func TestGetResult_Found(t *testing.T) {
	tenantID := uuid.New()
	id := uuid.New()
	svc := &mockService{
		getFunc: func(_ context.Context, gotID, gotTenant uuid.UUID) (*models.Analysis, error) {
			require.Equal(t, id, gotID)
			require.Equal(t, tenantID, gotTenant)
			return completedAnalysis(id, tenantID), nil
		},
	}
	router := testRouter(svc, newMockReportCache(), tenantID)

	req := httptest.NewRequest("GET", "/api/v1/analysis/results/"+id.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, models.AnalysisStatusCompleted, data["status"])
	assert.Equal(t, "high", data["risk_classification"])
	assert.InDelta(t, 0.7183, data["risk_probability"].(float64), 1e-9)
}

func TestGetResult_NotFound(t *testing.T) {
	router := testRouter(&mockService{}, newMockReportCache(), uuid.New())

	req := httptest.NewRequest("GET", "/api/v1/analysis/results/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeErr(t, w)["code"])
}

func TestGetResult_InvalidID(t *testing.T) {
	router := testRouter(&mockService{}, newMockReportCache(), uuid.New())

	req := httptest.NewRequest("GET", "/api/v1/analysis/results/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeErr(t, w)["code"])
}

// --- history ---

func TestHistory_ReturnsSummaries(t *testing.T) {
	tenantID := uuid.New()
	svc := &mockService{
		listFunc: func(_ context.Context, _ uuid.UUID) ([]models.Analysis, error) {
			return []models.Analysis{
				*completedAnalysis(uuid.New(), tenantID),
				{ID: uuid.New(), TenantID: tenantID, SourceFilename: "b.vcf",
					Status: models.AnalysisStatusPending, CreatedAt: time.Now().UTC()},
			}, nil
		},
	}
	router := testRouter(svc, newMockReportCache(), tenantID)

	req := httptest.NewRequest("GET", "/api/v1/analysis/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "patient.vcf", body.Data[0]["source_filename"])
	// Summaries do not carry the full variant list.
	_, hasTop := body.Data[0]["top_variants"]
	assert.False(t, hasTop)
}

func TestHistory_Empty(t *testing.T) {
	router := testRouter(&mockService{}, newMockReportCache(), uuid.New())

	req := httptest.NewRequest("GET", "/api/v1/analysis/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Data)
}

// --- delete ---

func TestDeleteResult_NoContent(t *testing.T) {
	tenantID := uuid.New()
	id := uuid.New()
	svc := &mockService{
		deleteFunc: func(_ context.Context, gotID, _ uuid.UUID) error {
			require.Equal(t, id, gotID)
			return nil
		},
	}
	router := testRouter(svc, newMockReportCache(), tenantID)

	req := httptest.NewRequest("DELETE", "/api/v1/analysis/results/"+id.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteResult_NotFound(t *testing.T) {
	router := testRouter(&mockService{}, newMockReportCache(), uuid.New())

	req := httptest.NewRequest("DELETE", "/api/v1/analysis/results/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- download ---

func TestDownload_Completed(t *testing.T) {
	tenantID := uuid.New()
	id := uuid.New()
	svc := &mockService{
		getFunc: func(_ context.Context, _, _ uuid.UUID) (*models.Analysis, error) {
			return completedAnalysis(id, tenantID), nil
		},
	}
	reports := newMockReportCache()
	router := testRouter(svc, reports, tenantID)

	req := httptest.NewRequest("GET", "/api/v1/analysis/results/"+id.String()+"/download", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "risk_report_"+id.String()+".txt")
	assert.Contains(t, w.Body.String(), "GENETIC RISK ASSESSMENT REPORT")
	assert.Contains(t, w.Body.String(), "BRCA1")

	// The rendered report is cached for subsequent downloads.
	_, found, err := reports.Get(context.Background(), cache.ReportKey(id))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDownload_ServesCachedReport(t *testing.T) {
	tenantID := uuid.New()
	id := uuid.New()
	svc := &mockService{
		getFunc: func(_ context.Context, _, _ uuid.UUID) (*models.Analysis, error) {
			return completedAnalysis(id, tenantID), nil
		},
	}
	reports := newMockReportCache()
	require.NoError(t, reports.Set(context.Background(), cache.ReportKey(id), []byte("cached body"), time.Minute))
	router := testRouter(svc, reports, tenantID)

	req := httptest.NewRequest("GET", "/api/v1/analysis/results/"+id.String()+"/download", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cached body", w.Body.String())
}

func TestDownload_NotReady(t *testing.T) {
	tenantID := uuid.New()
	id := uuid.New()
	svc := &mockService{
		getFunc: func(_ context.Context, _, _ uuid.UUID) (*models.Analysis, error) {
			return &models.Analysis{
				ID: id, TenantID: tenantID, SourceFilename: "p.vcf",
				Status: models.AnalysisStatusProcessing, CreatedAt: time.Now().UTC(),
			}, nil
		},
	}
	router := testRouter(svc, newMockReportCache(), tenantID)

	req := httptest.NewRequest("GET", "/api/v1/analysis/results/"+id.String()+"/download", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	e := decodeErr(t, w)
	assert.Equal(t, "REPORT_NOT_READY", e["code"])
	details := e["details"].(map[string]any)
	assert.Equal(t, models.AnalysisStatusProcessing, details["status"])
}

func TestDownload_NotFound(t *testing.T) {
	router := testRouter(&mockService{}, newMockReportCache(), uuid.New())

	req := httptest.NewRequest("GET", "/api/v1/analysis/results/"+uuid.NewString()+"/download", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
