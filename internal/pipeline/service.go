// Package pipeline orchestrates the asynchronous VCF analysis flow:
// accept an upload, persist a pending record, and process it in the
// background through parse, annotate, and score stages.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/helixmind/genomeguard/internal/cache"
	"github.com/helixmind/genomeguard/internal/config"
	"github.com/helixmind/genomeguard/internal/metrics"
	"github.com/helixmind/genomeguard/internal/risk"
	"github.com/helixmind/genomeguard/internal/store"
	"github.com/helixmind/genomeguard/internal/vcf"
	"github.com/helixmind/genomeguard/pkg/models"
)

// mirrorTTL bounds how long mirrored in-flight records live in the cache.
const mirrorTTL = 30 * time.Minute

// Service coordinates analysis jobs. Submit returns immediately; the
// heavy lifting happens on a bounded pool of background goroutines.
type Service struct {
	store     store.Store
	cache     cache.Cache
	annotator models.VariantAnnotator
	workers   chan struct{}
	timeout   time.Duration
}

// NewService creates a pipeline service with a worker pool sized from config.
func NewService(st store.Store, ca cache.Cache, annotator models.VariantAnnotator, cfg config.PipelineConfig) *Service {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Service{
		store:     st,
		cache:     ca,
		annotator: annotator,
		workers:   make(chan struct{}, workers),
		timeout:   cfg.JobTimeout,
	}
}

// Submit persists a pending analysis for the uploaded VCF content and
// dispatches processing in a background goroutine. It returns the job
// record immediately without waiting for processing to start.
func (s *Service) Submit(ctx context.Context, tenantID uuid.UUID, filename string, content []byte) (*models.Analysis, error) {
	analysis := &models.Analysis{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		SourceFilename:     filename,
		Status:             models.AnalysisStatusPending,
		RiskClassification: models.RiskLow,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.store.CreateAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("creating analysis: %w", err)
	}

	_ = s.cache.SetAnalysis(ctx, analysis, mirrorTTL)
	metrics.AnalysesSubmitted.Inc()

	job := *analysis
	go s.run(&job, content)

	return analysis, nil
}

// Get returns a single analysis scoped to the owning tenant. In-flight
// records are served from the cache mirror so polling clients do not hit
// the database; terminal records come from the store, which evicted the
// mirror when the job finished.
func (s *Service) Get(ctx context.Context, id, tenantID uuid.UUID) (*models.Analysis, error) {
	if a, found, err := s.cache.GetAnalysis(ctx, id); err == nil && found {
		if a.TenantID == tenantID {
			return a, nil
		}
		// Mirrored record belongs to someone else; the store's owner
		// scoping decides, which yields ErrNotFound.
	}
	return s.store.GetAnalysis(ctx, id, tenantID)
}

// List returns the tenant's analyses, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]models.Analysis, error) {
	return s.store.ListAnalyses(ctx, tenantID)
}

// Delete removes an analysis and evicts its cache entries. Deleting a
// record whose job is still in flight is allowed; the worker's eventual
// writeback hits a missing row and is discarded.
func (s *Service) Delete(ctx context.Context, id, tenantID uuid.UUID) error {
	if err := s.store.DeleteAnalysis(ctx, id, tenantID); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, cache.AnalysisKey(id))
	_ = s.cache.Delete(ctx, cache.ReportKey(id))
	return nil
}

// run executes the parse/annotate/score stages for one job.
// It recovers from panics and always drives the record to a terminal
// state, unless the record was deleted mid-flight.
func (s *Service) run(a *models.Analysis, content []byte) {
	s.workers <- struct{}{}
	defer func() { <-s.workers }()

	ctx := context.Background()
	analysisID := a.ID

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in pipeline run", "error", r, "analysis_id", analysisID)
			s.fail(ctx, analysisID, fmt.Sprintf("internal error: %v", r), metrics.ReasonPanic)
		}
	}()

	start := time.Now()

	if err := s.store.MarkProcessing(ctx, analysisID); err != nil {
		// Deleted before pickup, or already terminal. Nothing to do.
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidTransition) {
			return
		}
		slog.Error("marking analysis processing", "error", err, "analysis_id", analysisID)
		s.fail(ctx, analysisID, "internal error: could not start processing", metrics.ReasonStore)
		return
	}
	a.Status = models.AnalysisStatusProcessing
	_ = s.cache.SetAnalysis(ctx, a, mirrorTTL)

	// jobCtx is the watchdog: every stage from here on runs under it, so a
	// stuck job fails with a timeout instead of holding a worker forever.
	jobCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	variants, err := vcf.Parse(bytes.NewReader(content))
	if err != nil {
		s.fail(ctx, analysisID, fmt.Sprintf("vcf %v", err), metrics.ReasonParse)
		return
	}
	metrics.VariantsProcessed.Add(float64(len(variants)))

	if jobCtx.Err() != nil {
		s.fail(ctx, analysisID, fmt.Sprintf("processing exceeded %s deadline", s.timeout), metrics.ReasonTimeout)
		return
	}

	annotated, err := s.annotator.Annotate(jobCtx, variants)
	if err != nil {
		reason := metrics.ReasonAnnotate
		msg := fmt.Sprintf("annotating variants: %v", err)
		if errors.Is(err, context.DeadlineExceeded) {
			reason = metrics.ReasonTimeout
			msg = fmt.Sprintf("processing exceeded %s deadline", s.timeout)
		}
		s.fail(ctx, analysisID, msg, reason)
		return
	}

	result := risk.Score(annotated)

	update := store.CompletionUpdate{
		TotalVariants:      result.TotalVariants,
		HighRiskVariants:   result.HighRiskVariants,
		MediumRiskVariants: result.MediumRiskVariants,
		LowRiskVariants:    result.LowRiskVariants,
		PathogenicVariants: result.PathogenicVariants,
		RiskProbability:    result.Probability,
		RiskClassification: result.Classification,
		TopVariants:        result.TopVariants,
	}

	if err := s.store.CompleteAnalysis(ctx, analysisID, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted while processing; discard the result and make sure
			// the mirror does not outlive the record.
			slog.Info("discarding result for deleted analysis", "analysis_id", analysisID)
			_ = s.cache.Delete(ctx, cache.AnalysisKey(analysisID))
			return
		}
		slog.Error("completing analysis", "error", err, "analysis_id", analysisID)
		s.fail(ctx, analysisID, "internal error: could not persist result", metrics.ReasonStore)
		return
	}

	// Terminal records are read from the store so repeated reads are
	// byte-identical; drop the in-flight mirror.
	_ = s.cache.Delete(ctx, cache.AnalysisKey(analysisID))
	metrics.AnalysesCompleted.Inc()
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	slog.Info("analysis completed",
		"analysis_id", analysisID,
		"total_variants", result.TotalVariants,
		"classification", result.Classification,
		"duration", time.Since(start))
}

// fail drives the record to the failed state and evicts the in-flight
// mirror. A record deleted mid-flight or already terminal is left alone.
func (s *Service) fail(ctx context.Context, analysisID uuid.UUID, msg, reason string) {
	_ = s.cache.Delete(ctx, cache.AnalysisKey(analysisID))
	err := s.store.FailAnalysis(ctx, analysisID, msg)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidTransition) {
			return
		}
		slog.Error("marking analysis failed", "error", err, "analysis_id", analysisID)
		return
	}
	metrics.AnalysesFailed.WithLabelValues(reason).Inc()
	slog.Warn("analysis failed", "analysis_id", analysisID, "reason", reason, "error", msg)
}
