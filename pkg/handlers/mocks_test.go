package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/lexwatch/lexwatch-engine/pkg/apperrors"
	"github.com/lexwatch/lexwatch-engine/pkg/models"
	"github.com/lexwatch/lexwatch-engine/pkg/services"
)

// mockSourceRepository is a configurable mock for all handler tests.
type mockSourceRepository struct {
	source  *models.Source
	sources []*models.Source
	created []*models.Source
	err     error
}

func (m *mockSourceRepository) Create(ctx context.Context, source *models.Source) error {
	if m.err != nil {
		return m.err
	}
	if source.ID == uuid.Nil {
		source.ID = uuid.New()
	}
	m.created = append(m.created, source)
	return nil
}

func (m *mockSourceRepository) Get(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.source != nil {
		return m.source, nil
	}
	return nil, apperrors.ErrSourceNotFound
}

func (m *mockSourceRepository) List(ctx context.Context) ([]*models.Source, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sources, nil
}

func (m *mockSourceRepository) ListEnabled(ctx context.Context) ([]*models.Source, error) {
	return m.List(ctx)
}

func (m *mockSourceRepository) Update(ctx context.Context, source *models.Source) error {
	return m.err
}

func (m *mockSourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

// mockRevisionRepository is a configurable mock for revision lookups. It
// records the pagination arguments it was called with.
type mockRevisionRepository struct {
	revision       *models.Revision
	revisions      []*models.Revision
	err            error
	recordedLimit  int
	recordedOffset int
}

func (m *mockRevisionRepository) Create(ctx context.Context, rev *models.Revision) error {
	return m.err
}

func (m *mockRevisionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Revision, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.revision != nil {
		return m.revision, nil
	}
	return nil, apperrors.ErrRevisionNotFound
}

func (m *mockRevisionRepository) GetLatestBySource(ctx context.Context, sourceID uuid.UUID) (*models.Revision, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.revision, nil
}

func (m *mockRevisionRepository) ListBySource(ctx context.Context, sourceID uuid.UUID, limit, offset int) ([]*models.Revision, error) {
	m.recordedLimit = limit
	m.recordedOffset = offset
	if m.err != nil {
		return nil, m.err
	}
	return m.revisions, nil
}

func (m *mockRevisionRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

func (m *mockRevisionRepository) CreateWithDiff(ctx context.Context, rev *models.Revision, diff *models.ChangeDiff) error {
	return m.err
}

// mockChangeDiffRepository is a configurable mock for diff lookups.
type mockChangeDiffRepository struct {
	diff *models.ChangeDiff
	err  error
}

func (m *mockChangeDiffRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChangeDiff, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.diff, nil
}

func (m *mockChangeDiffRepository) GetByNewRevision(ctx context.Context, revisionID uuid.UUID) (*models.ChangeDiff, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.diff, nil
}

func (m *mockChangeDiffRepository) ListBySource(ctx context.Context, sourceID uuid.UUID) ([]*models.ChangeDiff, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.diff != nil {
		return []*models.ChangeDiff{m.diff}, nil
	}
	return nil, nil
}

// mockScanPipeline is a configurable mock Pipeline for scan trigger tests.
type mockScanPipeline struct {
	runResult    *services.RunResult
	runAllResult *services.RunAllResult
	err          error
	processed    []uuid.UUID
}

func (m *mockScanPipeline) ProcessSource(ctx context.Context, sourceID uuid.UUID) (*services.RunResult, error) {
	m.processed = append(m.processed, sourceID)
	if m.err != nil {
		return nil, m.err
	}
	if m.runResult != nil {
		return m.runResult, nil
	}
	return &services.RunResult{SourceID: sourceID, RevisionID: uuid.New(), ChangeDetected: true}, nil
}

func (m *mockScanPipeline) RunAll(ctx context.Context) (*services.RunAllResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.runAllResult != nil {
		return m.runAllResult, nil
	}
	return &services.RunAllResult{}, nil
}
