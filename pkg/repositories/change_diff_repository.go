package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lexwatch/lexwatch-engine/pkg/apperrors"
	"github.com/lexwatch/lexwatch-engine/pkg/database"
	"github.com/lexwatch/lexwatch-engine/pkg/models"
)

// ChangeDiffRepository defines read access to change diffs. Diffs are only
// ever written alongside their revision via RevisionRepository.CreateWithDiff
// and are immutable afterwards.
type ChangeDiffRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ChangeDiff, error)
	// GetByNewRevision returns the diff whose new side is the given
	// revision, or nil with no error when that revision produced none.
	GetByNewRevision(ctx context.Context, revisionID uuid.UUID) (*models.ChangeDiff, error)
	ListBySource(ctx context.Context, sourceID uuid.UUID, limit, offset int) ([]*models.ChangeDiff, error)
}

// changeDiffRepository implements ChangeDiffRepository using PostgreSQL.
type changeDiffRepository struct {
	db *database.DB
}

// NewChangeDiffRepository creates a new change diff repository.
func NewChangeDiffRepository(db *database.DB) ChangeDiffRepository {
	return &changeDiffRepository{db: db}
}

const changeDiffColumns = `id, new_revision_id, old_revision_id, diff_patch, confidence, created_at`

// insertChangeDiff writes one change diff row. Only called inside the
// revision-creation transaction.
func insertChangeDiff(ctx context.Context, ex executor, diff *models.ChangeDiff) error {
	if diff.ID == uuid.Nil {
		diff.ID = uuid.New()
	}
	if diff.CreatedAt.IsZero() {
		diff.CreatedAt = time.Now()
	}

	var patch []byte
	var err error
	if diff.DiffPatch != nil {
		patch, err = json.Marshal(diff.DiffPatch)
		if err != nil {
			return fmt.Errorf("failed to marshal diff patch: %w", err)
		}
	}

	query := `
		INSERT INTO change_diffs (id, new_revision_id, old_revision_id, diff_patch, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = ex.Exec(ctx, query,
		diff.ID,
		diff.NewRevisionID,
		diff.OldRevisionID,
		patch,
		diff.Confidence,
		diff.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create change diff: %w", err)
	}
	return nil
}

// GetByID retrieves a change diff by ID.
func (r *changeDiffRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChangeDiff, error) {
	query := `SELECT ` + changeDiffColumns + ` FROM change_diffs WHERE id = $1`

	diff, err := scanChangeDiff(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrDiffNotFound
		}
		return nil, fmt.Errorf("failed to get change diff: %w", err)
	}
	return diff, nil
}

// GetByNewRevision returns the diff created with the given revision.
func (r *changeDiffRepository) GetByNewRevision(ctx context.Context, revisionID uuid.UUID) (*models.ChangeDiff, error) {
	query := `SELECT ` + changeDiffColumns + ` FROM change_diffs WHERE new_revision_id = $1`

	diff, err := scanChangeDiff(r.db.QueryRow(ctx, query, revisionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get change diff for revision: %w", err)
	}
	return diff, nil
}

// ListBySource returns diffs for a source's revisions, newest first.
func (r *changeDiffRepository) ListBySource(ctx context.Context, sourceID uuid.UUID, limit, offset int) ([]*models.ChangeDiff, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT cd.id, cd.new_revision_id, cd.old_revision_id, cd.diff_patch, cd.confidence, cd.created_at
		FROM change_diffs cd
		JOIN revisions r ON r.id = cd.new_revision_id
		WHERE r.source_id = $1
		ORDER BY cd.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, sourceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list change diffs: %w", err)
	}
	defer rows.Close()

	diffs := make([]*models.ChangeDiff, 0)
	for rows.Next() {
		diff, err := scanChangeDiff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change diff: %w", err)
		}
		diffs = append(diffs, diff)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate change diffs: %w", err)
	}
	return diffs, nil
}

// scanChangeDiff reads one change diff row. Works for both QueryRow and Rows.
func scanChangeDiff(row pgx.Row) (*models.ChangeDiff, error) {
	var diff models.ChangeDiff
	var patch []byte

	err := row.Scan(
		&diff.ID,
		&diff.NewRevisionID,
		&diff.OldRevisionID,
		&patch,
		&diff.Confidence,
		&diff.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(patch) > 0 {
		diff.DiffPatch = &models.DiffPatch{}
		if err := json.Unmarshal(patch, diff.DiffPatch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal diff patch: %w", err)
		}
	}
	return &diff, nil
}

// Ensure changeDiffRepository implements ChangeDiffRepository at compile time.
var _ ChangeDiffRepository = (*changeDiffRepository)(nil)
