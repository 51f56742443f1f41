package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/helixmind/genomeguard/internal/api/middleware"
	"github.com/helixmind/genomeguard/internal/api/response"
	"github.com/helixmind/genomeguard/internal/cache"
	"github.com/helixmind/genomeguard/internal/report"
	"github.com/helixmind/genomeguard/internal/store"
	"github.com/helixmind/genomeguard/pkg/models"
)

// reportTTL bounds how long rendered reports stay cached.
const reportTTL = 10 * time.Minute

// AnalysisService defines the pipeline operations the handlers depend on.
type AnalysisService interface {
	Submit(ctx context.Context, tenantID uuid.UUID, filename string, content []byte) (*models.Analysis, error)
	Get(ctx context.Context, id, tenantID uuid.UUID) (*models.Analysis, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]models.Analysis, error)
	Delete(ctx context.Context, id, tenantID uuid.UUID) error
}

// ReportCache is the subset of the cache used for rendered reports.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NewUploadHandler returns the handler for POST /api/v1/analysis/upload.
// It accepts a multipart upload, persists a pending analysis, and returns
// 202 immediately; processing happens in the background.
func NewUploadHandler(svc AnalysisService, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
					fmt.Sprintf("Upload exceeds the %d byte limit", maxBytes), nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Multipart field 'file' is required", nil)
			return
		}
		defer file.Close()

		filename := filepath.Base(header.Filename)
		if !strings.HasSuffix(strings.ToLower(filename), ".vcf") {
			response.Error(w, http.StatusBadRequest, "INVALID_FILE_TYPE",
				"Only .vcf files are accepted", nil)
			return
		}

		content, err := io.ReadAll(file)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
					fmt.Sprintf("Upload exceeds the %d byte limit", maxBytes), nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Could not read uploaded file", nil)
			return
		}

		analysis, err := svc.Submit(r.Context(), tenantID, filename, content)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not accept the analysis", nil)
			return
		}

		response.Accepted(w, uploadResponse{
			AnalysisID: analysis.ID,
			Filename:   analysis.SourceFilename,
			Status:     analysis.Status,
		})
	}
}

type uploadResponse struct {
	AnalysisID uuid.UUID `json:"analysis_id"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
}

// NewGetResultHandler returns the handler for GET /api/v1/analysis/results/{analysisID}.
func NewGetResultHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, analysisID, ok := requestScope(w, r)
		if !ok {
			return
		}

		analysis, err := svc.Get(r.Context(), analysisID, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, analysis)
	}
}

// NewHistoryHandler returns the handler for GET /api/v1/analysis/history.
// It lists the tenant's analyses newest-first as summary projections.
func NewHistoryHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		analyses, err := svc.List(r.Context(), tenantID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		summaries := make([]models.AnalysisSummary, 0, len(analyses))
		for i := range analyses {
			summaries = append(summaries, analyses[i].Summary())
		}
		response.JSON(w, summaries)
	}
}

// NewDeleteResultHandler returns the handler for DELETE /api/v1/analysis/results/{analysisID}.
func NewDeleteResultHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, analysisID, ok := requestScope(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), analysisID, tenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.NoContent(w)
	}
}

// NewDownloadHandler returns the handler for GET /api/v1/analysis/results/{analysisID}/download.
// Rendered reports are cached; a report is only available once the
// analysis has completed.
func NewDownloadHandler(svc AnalysisService, reports ReportCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, analysisID, ok := requestScope(w, r)
		if !ok {
			return
		}

		// Verify ownership before serving anything cached.
		analysis, err := svc.Get(r.Context(), analysisID, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		body, found, err := reports.Get(r.Context(), cache.ReportKey(analysisID))
		if err != nil || !found {
			body, err = report.Render(analysis)
			if err != nil {
				if errors.Is(err, report.ErrNotReady) {
					response.Error(w, http.StatusConflict, "REPORT_NOT_READY",
						"Report is only available for completed analyses",
						map[string]string{"status": analysis.Status})
					return
				}
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
				return
			}
			_ = reports.Set(r.Context(), cache.ReportKey(analysisID), body, reportTTL)
		}

		response.Attachment(w, "risk_report_"+analysisID.String()+".txt",
			"text/plain; charset=utf-8", body)
	}
}

// requestScope extracts the tenant and the analysisID path parameter,
// writing the error response itself on failure.
func requestScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
		return uuid.Nil, uuid.Nil, false
	}

	analysisID, err := uuid.Parse(chi.URLParam(r, "analysisID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"analysisID must be a valid UUID", nil)
		return uuid.Nil, uuid.Nil, false
	}

	return tenantID, analysisID, true
}
