//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lexwatch/lexwatch-engine/pkg/apperrors"
	"github.com/lexwatch/lexwatch-engine/pkg/models"
	"github.com/lexwatch/lexwatch-engine/pkg/testhelpers"
)

// revisionTestContext holds test dependencies for revision repository tests.
type revisionTestContext struct {
	t          *testing.T
	repo       RevisionRepository
	sourceRepo SourceRepository
	diffRepo   ChangeDiffRepository
}

func setupRevisionTest(t *testing.T) *revisionTestContext {
	testDB := testhelpers.GetTestDB(t)
	return &revisionTestContext{
		t:          t,
		repo:       NewRevisionRepository(testDB.DB),
		sourceRepo: NewSourceRepository(testDB.DB, nil),
		diffRepo:   NewChangeDiffRepository(testDB.DB),
	}
}

// createTestSource persists a fresh source for revisions to reference.
func (tc *revisionTestContext) createTestSource(ctx context.Context) *models.Source {
	tc.t.Helper()
	source := newTestSource("Revision Test Source")
	if err := tc.sourceRepo.Create(ctx, source); err != nil {
		tc.t.Fatalf("failed to create test source: %v", err)
	}
	return source
}

func testSummary(summary string) *models.StructuredSummary {
	return &models.StructuredSummary{
		Summary:         summary,
		MarkdownSummary: "## " + summary,
		ConfidenceScore: 0.9,
		KeyPoints:       []string{"point one", "point two"},
		ChangesDetected: "none",
		RiskLevel:       models.RiskLevelLow,
		ExtractedData:   map[string]any{"annual_fee_eur": float64(50)},
	}
}

func TestRevisionRepository_CreateAndGet(t *testing.T) {
	tc := setupRevisionTest(t)
	ctx := context.Background()
	source := tc.createTestSource(ctx)

	raw := "The annual fee is 50 EUR."
	location := source.ID.String() + "/2026-03-01T14:30:00Z.html"
	changed := true
	rev := &models.Revision{
		SourceID:          source.ID,
		Status:            models.RevisionStatusProcessed,
		RawContent:        &raw,
		ContentLocation:   &location,
		ExtractedData:     map[string]any{"annual_fee_eur": float64(50)},
		StructuredSummary: testSummary("Fee schedule published."),
		ChangeDetected:    &changed,
	}

	if err := tc.repo.Create(ctx, rev); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rev.Seq <= 0 {
		t.Errorf("expected database-assigned seq, got %d", rev.Seq)
	}

	retrieved, err := tc.repo.GetByID(ctx, rev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retrieved.SourceID != source.ID {
		t.Errorf("expected source ID %v, got %v", source.ID, retrieved.SourceID)
	}
	if retrieved.RawContent == nil || *retrieved.RawContent != raw {
		t.Errorf("expected raw content to round-trip, got %v", retrieved.RawContent)
	}
	if retrieved.StructuredSummary == nil {
		t.Fatal("expected structured summary to round-trip")
	}
	if retrieved.StructuredSummary.Summary != "Fee schedule published." {
		t.Errorf("unexpected summary: %q", retrieved.StructuredSummary.Summary)
	}
	if len(retrieved.StructuredSummary.KeyPoints) != 2 {
		t.Errorf("expected 2 key points, got %d", len(retrieved.StructuredSummary.KeyPoints))
	}
	if retrieved.ExtractedData["annual_fee_eur"] != float64(50) {
		t.Errorf("expected extracted data to round-trip, got %v", retrieved.ExtractedData)
	}
	if retrieved.ChangeDetected == nil || !*retrieved.ChangeDetected {
		t.Error("expected change_detected=true")
	}
}

func TestRevisionRepository_Create_DefaultsStatusPending(t *testing.T) {
	tc := setupRevisionTest(t)
	ctx := context.Background()
	source := tc.createTestSource(ctx)

	rev := &models.Revision{SourceID: source.ID}
	if err := tc.repo.Create(ctx, rev); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	retrieved, err := tc.repo.GetByID(ctx, rev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retrieved.Status != models.RevisionStatusPending {
		t.Errorf("expected default status pending, got %q", retrieved.Status)
	}
	if retrieved.StructuredSummary != nil {
		t.Error("expected nil structured summary for bare revision")
	}
}

func TestRevisionRepository_Create_RejectsInvalidStatus(t *testing.T) {
	tc := setupRevisionTest(t)
	ctx := context.Background()
	source := tc.createTestSource(ctx)

	rev := &models.Revision{SourceID: source.ID, Status: "finished"}
	if err := tc.repo.Create(ctx, rev); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestRevisionRepository_GetLatestBySource_NoneIsNil(t *testing.T) {
	tc := setupRevisionTest(t)
	ctx := context.Background()
	source := tc.createTestSource(ctx)

	latest, err := tc.repo.GetLatestBySource(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetLatestBySource failed: %v", err)
	}
	if latest != nil {
		t.Errorf("expected nil for source with no revisions, got %+v", latest)
	}
}

func TestRevisionRepository_GetLatestBySource_ReturnsNewest(t *testing.T) {
	tc := setupRevisionTest(t)
	ctx := context.Background()
	source := tc.createTestSource(ctx)

	older := &models.Revision{
		SourceID:  source.ID,
		Status:    models.RevisionStatusProcessed,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	newer := &models.Revision{
		SourceID: source.ID,
		Status:   models.RevisionStatusProcessed,
	}
	if err := tc.repo.Create(ctx, older); err != nil {
		t.Fatalf("Create older failed: %v", err)
	}
	if err := tc.repo.Create(ctx, newer); err != nil {
		t.Fatalf("Create newer failed: %v", err)
	}

	latest, err := tc.repo.GetLatestBySource(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetLatestBySource failed: %v", err)
	}
	if latest == nil || latest.ID != newer.ID {
		t.Errorf("expected newest revision %v, got %+v", newer.ID, latest)
	}
}

func TestRevisionRepository_GetLatestBySource_SeqBreaksTimestampTies(t *testing.T) {
	tc := setupRevisionTest(t)
	ctx := context.Background()
	source := tc.createTestSource(ctx)

	// Identical created_at forces the tiebreak onto the insert sequence.
	at := time.Now().Truncate(time.Microsecond)
	first := &models.Revision{SourceID: source.ID, CreatedAt: at}
	second := &models.Revision{SourceID: source.ID, CreatedAt: at}
	if err := tc.repo.Create(ctx, first); err != nil {
		t.Fatalf("Create first failed: %v", err)
	}
	if err := tc.repo.Create(ctx, second); err != nil {
		t.Fatalf("Create second failed: %v", err)
	}
	if second.Seq <= first.Seq {
		t.Fatalf("expected monotonic seq, got %d then %d", first.Seq, second.Seq)
	}

	latest, err := tc.repo.GetLatestBySource(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetLatestBySource failed: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Errorf("expected later insert %v to win the tie, got %+v", second.ID, latest)
	}
}

func TestRevisionRepository_SoftDelete_ExcludesFromReads(t *testing.T) {
	tc := setupRevisionTest(t)
	ctx := context.Background()
	source := tc.createTestSource(ctx)

	older := &models.Revision{
		SourceID:  source.ID,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	newest := &models.Revision{SourceID: source.ID}
	if err := tc.repo.Create(ctx, older); err != nil {
		t.Fatalf("Create older failed: %v", err)
	}
	if err := tc.repo.Create(ctx, newest); err != nil {
		t.Fatalf("Create newest failed: %v", err)
	}

	if err := tc.repo.SoftDelete(ctx, newest.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	// Deleted revision disappears from reads
	if _, err := tc.repo.GetByID(ctx, newest.ID); !errors.Is(err, apperrors.ErrRevisionNotFound) {
		t.Errorf("expected deleted revision hidden from GetByID, got %v", err)
	}

	// Latest falls back to the older revision
	latest, err := tc.repo.GetLatestBySource(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetLatestBySource failed: %v", err)
	}
	if latest == nil || latest.ID != older.ID {
		t.Errorf("expected older revision after delete, got %+v", latest)
	}

	// Deleting again reports not found, the row is untouched
	if err := tc.repo.SoftDelete(ctx, newest.ID); !errors.Is(err, apperrors.ErrRevisionNotFound) {
		t.Errorf("expected ErrRevisionNotFound on repeat delete, got %v", err)
	}
}

func TestRevisionRepository_ListBySource_NewestFirstPaginated(t *testing.T) {
	tc := setupRevisionTest(t)
	ctx := context.Background()
	source := tc.createTestSource(ctx)

	base := time.Now().Add(-time.Hour)
	ids := make([]uuid.UUID, 0, 3)
	for i := 0; i < 3; i++ {
		rev := &models.Revision{
			SourceID:  source.ID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := tc.repo.Create(ctx, rev); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		ids = append(ids, rev.ID)
	}

	page, err := tc.repo.ListBySource(ctx, source.ID, 2, 0)
	if err != nil {
		t.Fatalf("ListBySource failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(page))
	}
	if page[0].ID != ids[2] || page[1].ID != ids[1] {
		t.Errorf("expected newest first, got %v then %v", page[0].ID, page[1].ID)
	}

	rest, err := tc.repo.ListBySource(ctx, source.ID, 2, 2)
	if err != nil {
		t.Fatalf("ListBySource offset failed: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != ids[0] {
		t.Errorf("expected oldest revision on second page, got %+v", rest)
	}
}

func TestRevisionRepository_CreateWithDiff_WritesBoth(t *testing.T) {
	tc := setupRevisionTest(t)
	ctx := context.Background()
	source := tc.createTestSource(ctx)

	previous := &models.Revision{
		SourceID:          source.ID,
		Status:            models.RevisionStatusProcessed,
		StructuredSummary: testSummary("Fee is 50 EUR."),
		CreatedAt:         time.Now().Add(-time.Hour),
	}
	if err := tc.repo.Create(ctx, previous); err != nil {
		t.Fatalf("Create previous failed: %v", err)
	}

	changed := true
	rev := &models.Revision{
		SourceID:          source.ID,
		Status:            models.RevisionStatusProcessed,
		StructuredSummary: testSummary("Fee is 200 EUR."),
		ChangeDetected:    &changed,
	}
	diff := &models.ChangeDiff{
		OldRevisionID: previous.ID,
		DiffPatch: &models.DiffPatch{
			FieldChanges: map[string]models.FieldChange{
				"summary": {OldValue: "Fee is 50 EUR.", NewValue: "Fee is 200 EUR.", ChangeType: models.FieldChangeTypeModified},
			},
			ChangeSummary: models.ChangeSummary{FieldsChanged: []string{"summary"}, TotalChanges: 1},
		},
	}

	if err := tc.repo.CreateWithDiff(ctx, rev, diff); err != nil {
		t.Fatalf("CreateWithDiff failed: %v", err)
	}
	if diff.NewRevisionID != rev.ID {
		t.Errorf("expected diff to reference new revision %v, got %v", rev.ID, diff.NewRevisionID)
	}

	stored, err := tc.diffRepo.GetByNewRevision(ctx, rev.ID)
	if err != nil {
		t.Fatalf("GetByNewRevision failed: %v", err)
	}
	if stored == nil {
		t.Fatal("expected change diff to be persisted")
	}
	if stored.OldRevisionID != previous.ID {
		t.Errorf("expected old revision %v, got %v", previous.ID, stored.OldRevisionID)
	}
	if stored.DiffPatch == nil || stored.DiffPatch.ChangeSummary.TotalChanges != 1 {
		t.Errorf("expected diff patch to round-trip, got %+v", stored.DiffPatch)
	}
	fc, ok := stored.DiffPatch.FieldChanges["summary"]
	if !ok {
		t.Fatal("expected summary field change")
	}
	if fc.ChangeType != models.FieldChangeTypeModified {
		t.Errorf("expected change type modified, got %q", fc.ChangeType)
	}
}

func TestRevisionRepository_CreateWithDiff_NilDiffWritesRevisionOnly(t *testing.T) {
	tc := setupRevisionTest(t)
	ctx := context.Background()
	source := tc.createTestSource(ctx)

	rev := &models.Revision{SourceID: source.ID, Status: models.RevisionStatusProcessed}
	if err := tc.repo.CreateWithDiff(ctx, rev, nil); err != nil {
		t.Fatalf("CreateWithDiff failed: %v", err)
	}

	if _, err := tc.repo.GetByID(ctx, rev.ID); err != nil {
		t.Fatalf("expected revision to exist: %v", err)
	}
	stored, err := tc.diffRepo.GetByNewRevision(ctx, rev.ID)
	if err != nil {
		t.Fatalf("GetByNewRevision failed: %v", err)
	}
	if stored != nil {
		t.Errorf("expected no diff, got %+v", stored)
	}
}

func TestRevisionRepository_CreateWithDiff_RollsBackOnDiffFailure(t *testing.T) {
	tc := setupRevisionTest(t)
	ctx := context.Background()
	source := tc.createTestSource(ctx)

	rev := &models.Revision{SourceID: source.ID, Status: models.RevisionStatusProcessed}
	// Nonexistent old revision violates the FK and must abort the whole
	// transaction, including the already-inserted revision.
	diff := &models.ChangeDiff{OldRevisionID: uuid.New()}

	if err := tc.repo.CreateWithDiff(ctx, rev, diff); err == nil {
		t.Fatal("expected CreateWithDiff to fail on FK violation")
	}

	if _, err := tc.repo.GetByID(ctx, rev.ID); !errors.Is(err, apperrors.ErrRevisionNotFound) {
		t.Errorf("expected revision rolled back, got %v", err)
	}
}
