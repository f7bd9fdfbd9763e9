package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lexwatch/lexwatch-engine/pkg/apperrors"
	"github.com/lexwatch/lexwatch-engine/pkg/database"
	"github.com/lexwatch/lexwatch-engine/pkg/models"
)

// RevisionRepository defines the interface for revision data access.
// Revisions are append-only; the only mutation is soft deletion.
type RevisionRepository interface {
	Create(ctx context.Context, rev *models.Revision) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Revision, error)
	// GetLatestBySource returns the most recent non-deleted revision for the
	// source, or nil with no error when the source has none yet.
	GetLatestBySource(ctx context.Context, sourceID uuid.UUID) (*models.Revision, error)
	ListBySource(ctx context.Context, sourceID uuid.UUID, limit, offset int) ([]*models.Revision, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// CreateWithDiff inserts the revision and, when diff is non-nil, the
	// change diff referencing it, in a single transaction. Both rows are
	// written or neither is.
	CreateWithDiff(ctx context.Context, rev *models.Revision, diff *models.ChangeDiff) error
}

// executor is the query surface shared by the pool and a transaction.
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// revisionRepository implements RevisionRepository using PostgreSQL.
type revisionRepository struct {
	db *database.DB
}

// NewRevisionRepository creates a new revision repository.
func NewRevisionRepository(db *database.DB) RevisionRepository {
	return &revisionRepository{db: db}
}

const revisionColumns = `id, source_id, fetched_at, status, raw_content, content_location, extracted_data, structured_summary, change_detected, seq, created_at, deleted_at`

// Create inserts a new revision.
func (r *revisionRepository) Create(ctx context.Context, rev *models.Revision) error {
	return insertRevision(ctx, r.db, rev)
}

// insertRevision writes one revision row and fills in the database-assigned
// seq. Shared between Create and CreateWithDiff.
func insertRevision(ctx context.Context, ex executor, rev *models.Revision) error {
	if rev.ID == uuid.Nil {
		rev.ID = uuid.New()
	}
	if rev.Status == "" {
		rev.Status = models.RevisionStatusPending
	}
	if !models.IsValidRevisionStatus(rev.Status) {
		return fmt.Errorf("invalid revision status %q", rev.Status)
	}
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now()
	}
	if rev.FetchedAt.IsZero() {
		rev.FetchedAt = rev.CreatedAt
	}

	// nil byte slices insert as NULL
	var extracted, summary []byte
	var err error
	if rev.ExtractedData != nil {
		extracted, err = json.Marshal(rev.ExtractedData)
		if err != nil {
			return fmt.Errorf("failed to marshal extracted data: %w", err)
		}
	}
	if rev.StructuredSummary != nil {
		summary, err = json.Marshal(rev.StructuredSummary)
		if err != nil {
			return fmt.Errorf("failed to marshal structured summary: %w", err)
		}
	}

	query := `
		INSERT INTO revisions (id, source_id, fetched_at, status, raw_content, content_location, extracted_data, structured_summary, change_detected, created_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq`

	err = ex.QueryRow(ctx, query,
		rev.ID,
		rev.SourceID,
		rev.FetchedAt,
		rev.Status,
		rev.RawContent,
		rev.ContentLocation,
		extracted,
		summary,
		rev.ChangeDetected,
		rev.CreatedAt,
		rev.DeletedAt,
	).Scan(&rev.Seq)
	if err != nil {
		return fmt.Errorf("failed to create revision: %w", err)
	}
	return nil
}

// GetByID retrieves a non-deleted revision by ID.
func (r *revisionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Revision, error) {
	query := `SELECT ` + revisionColumns + ` FROM revisions WHERE id = $1 AND deleted_at IS NULL`

	rev, err := scanRevision(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrRevisionNotFound
		}
		return nil, fmt.Errorf("failed to get revision: %w", err)
	}
	return rev, nil
}

// GetLatestBySource returns the most recent non-deleted revision for a
// source. Recency is a total order: created_at descending with the insert
// sequence as tiebreak.
func (r *revisionRepository) GetLatestBySource(ctx context.Context, sourceID uuid.UUID) (*models.Revision, error) {
	query := `
		SELECT ` + revisionColumns + `
		FROM revisions
		WHERE source_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`

	rev, err := scanRevision(r.db.QueryRow(ctx, query, sourceID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest revision: %w", err)
	}
	return rev, nil
}

// ListBySource returns non-deleted revisions for a source, newest first.
func (r *revisionRepository) ListBySource(ctx context.Context, sourceID uuid.UUID, limit, offset int) ([]*models.Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + revisionColumns + `
		FROM revisions
		WHERE source_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, sourceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer rows.Close()

	revisions := make([]*models.Revision, 0)
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate revisions: %w", err)
	}
	return revisions, nil
}

// SoftDelete marks a revision deleted without removing the row. Already
// deleted revisions are left untouched.
func (r *revisionRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE revisions SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to soft delete revision: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrRevisionNotFound
	}
	return nil
}

// CreateWithDiff inserts the revision and its change diff atomically.
func (r *revisionRepository) CreateWithDiff(ctx context.Context, rev *models.Revision, diff *models.ChangeDiff) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertRevision(ctx, tx, rev); err != nil {
		return err
	}

	if diff != nil {
		diff.NewRevisionID = rev.ID
		if err := insertChangeDiff(ctx, tx, diff); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// scanRevision reads one revision row. Works for both QueryRow and Rows.
func scanRevision(row pgx.Row) (*models.Revision, error) {
	var rev models.Revision
	var extracted, summary []byte

	err := row.Scan(
		&rev.ID,
		&rev.SourceID,
		&rev.FetchedAt,
		&rev.Status,
		&rev.RawContent,
		&rev.ContentLocation,
		&extracted,
		&summary,
		&rev.ChangeDetected,
		&rev.Seq,
		&rev.CreatedAt,
		&rev.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &rev.ExtractedData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extracted data: %w", err)
		}
	}
	if len(summary) > 0 {
		rev.StructuredSummary = &models.StructuredSummary{}
		if err := json.Unmarshal(summary, rev.StructuredSummary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal structured summary: %w", err)
		}
	}
	return &rev, nil
}

// Ensure revisionRepository implements RevisionRepository at compile time.
var _ RevisionRepository = (*revisionRepository)(nil)
