//go:build integration

package migrations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexwatch/lexwatch-engine/pkg/testhelpers"
)

// Test_001_CoreSchema verifies the tables created by migrations 001-003
func Test_001_CoreSchema(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()

	// Verify the three core tables exist
	for _, table := range []string{"sources", "revisions", "change_diffs"} {
		var exists bool
		err := testDB.DB.Pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		require.NoError(t, err, "Failed to query table information")
		assert.True(t, exists, "%s table should exist", table)
	}

	// Verify scan_interval has the correct type and default
	var dataType string
	var columnDefault string
	err := testDB.DB.Pool.QueryRow(ctx, `
		SELECT data_type, column_default
		FROM information_schema.columns
		WHERE table_name = 'sources'
		AND column_name = 'scan_interval'
	`).Scan(&dataType, &columnDefault)
	require.NoError(t, err, "Failed to query column information")
	assert.Equal(t, "text", dataType, "scan_interval column should be TEXT type")
	assert.Contains(t, columnDefault, "'daily'", "scan_interval column should default to daily")

	// Verify structured_summary is JSONB
	err = testDB.DB.Pool.QueryRow(ctx, `
		SELECT data_type
		FROM information_schema.columns
		WHERE table_name = 'revisions'
		AND column_name = 'structured_summary'
	`).Scan(&dataType)
	require.NoError(t, err, "Failed to query column information")
	assert.Equal(t, "jsonb", dataType, "structured_summary column should be JSONB type")

	// Verify the latest-revision partial index exists
	var indexExists bool
	err = testDB.DB.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE tablename = 'revisions'
			AND indexname = 'idx_revisions_source_latest'
		)
	`).Scan(&indexExists)
	require.NoError(t, err, "Failed to query index information")
	assert.True(t, indexExists, "idx_revisions_source_latest index should exist")

	// Verify the seq column comment exists
	var comment string
	err = testDB.DB.Pool.QueryRow(ctx, `
		SELECT col_description('revisions'::regclass,
			(SELECT ordinal_position
			 FROM information_schema.columns
			 WHERE table_name = 'revisions'
			 AND column_name = 'seq'))
	`).Scan(&comment)
	require.NoError(t, err, "Failed to query column comment")
	assert.Contains(t, comment, "insert sequence", "Column should have descriptive comment")
}

// Test_001_CoreSchema_Constraints verifies status checks, cascades, and the
// one-diff-per-revision rule
func Test_001_CoreSchema_Constraints(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()
	sourceID := uuid.New()

	// Clean up after test; revisions and diffs cascade from the source
	defer func() {
		_, _ = testDB.DB.Pool.Exec(ctx, "DELETE FROM sources WHERE id = $1", sourceID)
	}()

	_, err := testDB.DB.Pool.Exec(ctx, `
		INSERT INTO sources (id, name, url)
		VALUES ($1, 'schema-test', 'https://example.com/feed')
	`, sourceID)
	require.NoError(t, err, "Failed to create test source")

	// Test 1: status outside the allowed set is rejected
	_, err = testDB.DB.Pool.Exec(ctx, `
		INSERT INTO revisions (id, source_id, status)
		VALUES ($1, $2, 'finished')
	`, uuid.New(), sourceID)
	require.Error(t, err, "Invalid status should violate the CHECK constraint")

	// Test 2: seq values increase with insert order
	rev1 := uuid.New()
	rev2 := uuid.New()
	var seq1, seq2 int64
	err = testDB.DB.Pool.QueryRow(ctx, `
		INSERT INTO revisions (id, source_id, status)
		VALUES ($1, $2, 'processed')
		RETURNING seq
	`, rev1, sourceID).Scan(&seq1)
	require.NoError(t, err, "Failed to insert first revision")
	err = testDB.DB.Pool.QueryRow(ctx, `
		INSERT INTO revisions (id, source_id, status)
		VALUES ($1, $2, 'processed')
		RETURNING seq
	`, rev2, sourceID).Scan(&seq2)
	require.NoError(t, err, "Failed to insert second revision")
	assert.Greater(t, seq2, seq1, "seq should increase with insert order")

	// Test 3: a diff referencing an unknown revision is rejected
	_, err = testDB.DB.Pool.Exec(ctx, `
		INSERT INTO change_diffs (id, new_revision_id, old_revision_id, diff_patch)
		VALUES ($1, $2, $3, '{}'::jsonb)
	`, uuid.New(), rev2, uuid.New())
	require.Error(t, err, "Unknown old revision should violate the foreign key")

	// Test 4: one diff per revision
	_, err = testDB.DB.Pool.Exec(ctx, `
		INSERT INTO change_diffs (id, new_revision_id, old_revision_id, diff_patch)
		VALUES ($1, $2, $3, '{}'::jsonb)
	`, uuid.New(), rev2, rev1)
	require.NoError(t, err, "Failed to insert diff")
	_, err = testDB.DB.Pool.Exec(ctx, `
		INSERT INTO change_diffs (id, new_revision_id, old_revision_id, diff_patch)
		VALUES ($1, $2, $3, '{}'::jsonb)
	`, uuid.New(), rev2, rev1)
	require.Error(t, err, "Second diff for the same revision should violate the unique index")

	// Test 5: deleting the source cascades to revisions and diffs
	_, err = testDB.DB.Pool.Exec(ctx, "DELETE FROM sources WHERE id = $1", sourceID)
	require.NoError(t, err, "Failed to delete source")
	var remaining int
	err = testDB.DB.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM revisions WHERE source_id = $1
	`, sourceID).Scan(&remaining)
	require.NoError(t, err, "Failed to count revisions")
	assert.Equal(t, 0, remaining, "Revisions should cascade with source deletion")
}
