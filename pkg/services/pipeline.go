package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/apperrors"
	"github.com/lexwatch/lexwatch-engine/pkg/config"
	"github.com/lexwatch/lexwatch-engine/pkg/fetch"
	"github.com/lexwatch/lexwatch-engine/pkg/models"
	"github.com/lexwatch/lexwatch-engine/pkg/normalize"
	"github.com/lexwatch/lexwatch-engine/pkg/repositories"
	"github.com/lexwatch/lexwatch-engine/pkg/storage"
)

// Pipeline stage names, reported in failure records.
const (
	StageFetch     = "fetch"
	StageNormalize = "normalize"
	StageExtract   = "extract"
	StageCompare   = "compare"
	StagePersist   = "persist"
)

// PipelineError is the structured failure record for an aborted run. No
// revision is persisted for the attempt it describes.
type PipelineError struct {
	SourceID uuid.UUID
	Stage    string
	Cause    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at %s for source %s: %v", e.Stage, e.SourceID, e.Cause)
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// RunResult summarizes one completed source scan.
type RunResult struct {
	SourceID       uuid.UUID  `json:"source_id"`
	RevisionID     uuid.UUID  `json:"revision_id"`
	ChangeDetected bool       `json:"change_detected"`
	DiffID         *uuid.UUID `json:"diff_id,omitempty"`
}

// RunAllResult aggregates one sweep over the enabled sources.
type RunAllResult struct {
	Scanned  int     `json:"scanned"`
	Changed  int     `json:"changed"`
	Skipped  int     `json:"skipped"`
	Failed   int     `json:"failed"`
	Failures []error `json:"-"`
}

// Pipeline runs the fetch, normalize, extract, compare, persist flow for
// monitored sources.
type Pipeline interface {
	// ProcessSource scans one source now, regardless of its scan interval.
	// Returns apperrors.ErrScanInProgress when a run for the source is
	// already underway.
	ProcessSource(ctx context.Context, sourceID uuid.UUID) (*RunResult, error)

	// RunAll scans every enabled source that is due per its scan interval,
	// bounded by the configured concurrency. Per-source failures are
	// collected, never propagated across sources.
	RunAll(ctx context.Context) (*RunAllResult, error)
}

type pipelineService struct {
	sourceRepo         repositories.SourceRepository
	revisionRepo       repositories.RevisionRepository
	fetcher            fetch.ContentFetcher
	normalizer         *normalize.Normalizer
	extractor          Extractor
	detector           ChangeDetector
	archive            storage.ObjectStore
	guard              ScanGuard
	events             EventPublisher
	maxConcurrentScans int
	logger             *zap.Logger
}

// NewPipeline creates the scan pipeline. archive may be nil to disable
// raw-content archiving.
func NewPipeline(
	sourceRepo repositories.SourceRepository,
	revisionRepo repositories.RevisionRepository,
	fetcher fetch.ContentFetcher,
	normalizer *normalize.Normalizer,
	extractor Extractor,
	detector ChangeDetector,
	archive storage.ObjectStore,
	guard ScanGuard,
	events EventPublisher,
	cfg *config.SchedulerConfig,
	logger *zap.Logger,
) Pipeline {
	maxConcurrent := cfg.MaxConcurrentScans
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &pipelineService{
		sourceRepo:         sourceRepo,
		revisionRepo:       revisionRepo,
		fetcher:            fetcher,
		normalizer:         normalizer,
		extractor:          extractor,
		detector:           detector,
		archive:            archive,
		guard:              guard,
		events:             events,
		maxConcurrentScans: maxConcurrent,
		logger:             logger.Named("pipeline"),
	}
}

var _ Pipeline = (*pipelineService)(nil)

// ProcessSource runs one scan for the source. Any stage failure aborts the
// run with a PipelineError and persists nothing.
func (s *pipelineService) ProcessSource(ctx context.Context, sourceID uuid.UUID) (*RunResult, error) {
	source, err := s.sourceRepo.Get(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source: %w", err)
	}
	if !source.Enabled {
		return nil, apperrors.ErrSourceDisabled
	}

	if err := s.guard.Acquire(ctx, sourceID); err != nil {
		return nil, err
	}
	// Release survives caller cancellation so the marker never lingers
	// for the full TTL.
	defer s.guard.Release(context.WithoutCancel(ctx), sourceID)

	return s.run(ctx, source)
}

// run executes the pipeline stages for a loaded source.
func (s *pipelineService) run(ctx context.Context, source *models.Source) (*RunResult, error) {
	start := time.Now()

	fetched, err := s.fetcher.Fetch(ctx, source.URL, source.AuthCredentials)
	if err != nil {
		return nil, s.stageFailure(source.ID, StageFetch, err)
	}
	fetchedAt := time.Now().UTC()

	contentLocation := s.archiveRawContent(ctx, source.ID, fetchedAt, fetched)

	text, err := s.normalizer.Normalize(fetched.Body, fetched.ContentType)
	if err != nil {
		return nil, s.stageFailure(source.ID, StageNormalize, err)
	}

	summary, err := s.extractor.Extract(ctx, text, source.ProjectPrompt, source.JurisdictionPrompt)
	if err != nil {
		return nil, s.stageFailure(source.ID, StageExtract, err)
	}

	previous, err := s.revisionRepo.GetLatestBySource(ctx, source.ID)
	if err != nil {
		return nil, s.stageFailure(source.ID, StageCompare, err)
	}

	changeDetected := true
	var diff *models.ChangeDiff
	if previous != nil {
		changeDetected = s.detector.Detect(previous.StructuredSummary, summary)
		if changeDetected && previous.StructuredSummary != nil {
			diff = &models.ChangeDiff{
				OldRevisionID: previous.ID,
				DiffPatch:     s.detector.Synthesize(previous.StructuredSummary, summary),
			}
		}
	}

	rev := &models.Revision{
		SourceID:          source.ID,
		FetchedAt:         fetchedAt,
		Status:            models.RevisionStatusProcessed,
		RawContent:        &text,
		ContentLocation:   contentLocation,
		ExtractedData:     summary.ExtractedData,
		StructuredSummary: summary,
		ChangeDetected:    &changeDetected,
	}
	if err := s.revisionRepo.CreateWithDiff(ctx, rev, diff); err != nil {
		return nil, s.stageFailure(source.ID, StagePersist, err)
	}

	var diffID *uuid.UUID
	if diff != nil {
		diffID = &diff.ID
	}

	event := RevisionProcessedEvent{
		SourceID:       source.ID,
		RevisionID:     rev.ID,
		ChangeDetected: changeDetected,
		DiffID:         diffID,
	}
	if err := s.events.PublishRevisionProcessed(ctx, event); err != nil {
		s.logger.Warn("failed to publish revision processed event",
			zap.String("source_id", source.ID.String()),
			zap.String("revision_id", rev.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("source scanned",
		zap.String("source_id", source.ID.String()),
		zap.String("revision_id", rev.ID.String()),
		zap.Bool("change_detected", changeDetected),
		zap.Duration("duration", time.Since(start)))

	return &RunResult{
		SourceID:       source.ID,
		RevisionID:     rev.ID,
		ChangeDetected: changeDetected,
		DiffID:         diffID,
	}, nil
}

// archiveRawContent stores the fetched payload in the object store and
// returns its key. Archive failures degrade to a warning; the scan itself
// proceeds on the in-memory payload.
func (s *pipelineService) archiveRawContent(ctx context.Context, sourceID uuid.UUID, fetchedAt time.Time, fetched *fetch.Result) *string {
	if s.archive == nil {
		return nil
	}

	key := storage.ArchiveKey(sourceID, fetchedAt, fetched.Kind)
	if err := s.archive.Put(ctx, key, fetched.Body, archiveContentType(fetched.Kind)); err != nil {
		s.logger.Warn("failed to archive raw content",
			zap.String("source_id", sourceID.String()),
			zap.String("key", key),
			zap.Error(err))
		return nil
	}
	return &key
}

// stageFailure logs and wraps a stage error into the structured failure
// record surfaced to the caller.
func (s *pipelineService) stageFailure(sourceID uuid.UUID, stage string, cause error) error {
	s.logger.Error("pipeline stage failed",
		zap.String("source_id", sourceID.String()),
		zap.String("stage", stage),
		zap.Error(cause))
	return &PipelineError{SourceID: sourceID, Stage: stage, Cause: cause}
}

// RunAll scans all enabled sources that are due. Concurrency is bounded by
// MaxConcurrentScans; one source's failure never affects another's run.
func (s *pipelineService) RunAll(ctx context.Context) (*RunAllResult, error) {
	sources, err := s.sourceRepo.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled sources: %w", err)
	}

	start := time.Now()
	result := &RunAllResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxConcurrentScans)

	for _, source := range sources {
		if ctx.Err() != nil {
			break
		}

		if !s.isDue(ctx, source) {
			s.logger.Debug("source not due, skipping",
				zap.String("source_id", source.ID.String()),
				zap.String("scan_interval", source.ScanInterval))
			result.Skipped++
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(src *models.Source) {
			defer wg.Done()
			defer func() { <-sem }()

			run, err := s.ProcessSource(ctx, src.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Scanned++
				if run.ChangeDetected {
					result.Changed++
				}
			case errors.Is(err, apperrors.ErrScanInProgress),
				errors.Is(err, apperrors.ErrSourceDisabled),
				errors.Is(err, apperrors.ErrSourceNotFound):
				// The source became ineligible between listing and running.
				s.logger.Debug("source skipped",
					zap.String("source_id", src.ID.String()),
					zap.Error(err))
				result.Skipped++
			default:
				result.Failed++
				result.Failures = append(result.Failures, err)
			}
		}(source)
	}
	wg.Wait()

	s.logger.Info("scan sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("changed", result.Changed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// isDue reports whether enough time has passed since the source's latest
// revision for its scan interval. Sources with no revisions are always
// due; when the lookup fails the source is treated as due and the scan
// itself surfaces the store error.
func (s *pipelineService) isDue(ctx context.Context, source *models.Source) bool {
	latest, err := s.revisionRepo.GetLatestBySource(ctx, source.ID)
	if err != nil {
		s.logger.Warn("failed to check source due time",
			zap.String("source_id", source.ID.String()),
			zap.Error(err))
		return true
	}
	if latest == nil {
		return true
	}
	return time.Since(latest.CreatedAt) >= models.ScanIntervalDuration(source.ScanInterval)
}

// archiveContentType maps a content class to the MIME type recorded on
// the archived object.
func archiveContentType(kind fetch.ContentKind) string {
	switch kind {
	case fetch.ContentKindHTML:
		return "text/html"
	case fetch.ContentKindPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
