//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestGetTestDB_MigratedSchema(t *testing.T) {
	testDB := GetTestDB(t)

	ctx := context.Background()

	// Verify migrations created the core tables
	for _, table := range []string{"sources", "revisions", "change_diffs"} {
		var exists bool
		err := testDB.DB.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
			table).Scan(&exists)
		if err != nil {
			t.Fatalf("failed to check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("expected table %s to exist after migrations", table)
		}
	}
}

func TestGetTestRedis_Connection(t *testing.T) {
	testRedis := GetTestRedis(t)

	ctx := context.Background()

	if err := testRedis.Client.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to ping test Redis: %v", err)
	}
}
