// cleanup-test-data removes test-like sources from the database. Deleting a
// source cascades to its revisions and change diffs.
//
// Test patterns matched (case-insensitive):
// - ^test (starts with "test")
// - test$ (ends with "test")
// - ^debug (debug prefix)
// - ^dummy (dummy prefix)
// - ^sample (sample prefix)
// - ^example (example prefix)
// - ^demo (demo prefix)
//
// Usage: go run ./scripts/cleanup-test-data
//
// Database connection: Uses standard PG* environment variables
//
// Flags:
//
//	-dry-run   Show what would be deleted without actually deleting (default: true)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
)

// testSourcePatterns defines regex patterns to identify test sources.
// These patterns are used with PostgreSQL's ~* (case-insensitive regex) operator.
var testSourcePatterns = []string{
	`^test`,    // Starts with "test"
	`test$`,    // Ends with "test"
	`^debug`,   // Debug prefix
	`^dummy`,   // Dummy prefix
	`^sample`,  // Sample prefix
	`^example`, // Example prefix
	`^demo`,    // Demo prefix
}

func main() {
	dryRun := flag.Bool("dry-run", true, "Show what would be deleted without actually deleting")
	flag.Parse()

	ctx := context.Background()

	conn, err := pgx.Connect(ctx, buildConnString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	if *dryRun {
		fmt.Println("DRY RUN - no changes will be made")
		fmt.Println("Run with -dry-run=false to actually delete sources")
		fmt.Println()
	}

	totalDeleted := 0
	for _, pattern := range testSourcePatterns {
		count, err := cleanupTestSources(ctx, conn, pattern, *dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error cleaning pattern %q: %v\n", pattern, err)
			os.Exit(1)
		}
		totalDeleted += count
	}

	if *dryRun {
		fmt.Printf("\nTotal sources that would be deleted: %d\n", totalDeleted)
	} else {
		fmt.Printf("\nTotal sources deleted: %d\n", totalDeleted)
	}
}

// cleanupTestSources deletes sources whose names match the given regex pattern.
// If dryRun is true, it only shows what would be deleted without making changes.
func cleanupTestSources(ctx context.Context, conn *pgx.Conn, pattern string, dryRun bool) (int, error) {
	if dryRun {
		rows, err := conn.Query(ctx, `
			SELECT s.name, s.url, count(r.id)
			FROM sources s
			LEFT JOIN revisions r ON r.source_id = s.id
			WHERE s.name ~* $1
			GROUP BY s.id, s.name, s.url
			ORDER BY s.name
		`, pattern)
		if err != nil {
			return 0, fmt.Errorf("query failed: %w", err)
		}
		defer rows.Close()

		var count int
		for rows.Next() {
			var name, url string
			var revisions int64
			if err := rows.Scan(&name, &url, &revisions); err != nil {
				return 0, fmt.Errorf("scan failed: %w", err)
			}
			count++
			fmt.Printf("  [%s] %q - %s (%d revisions)\n", pattern, name, truncate(url, 60), revisions)
		}
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("rows iteration failed: %w", err)
		}

		if count == 0 {
			fmt.Printf("  [%s] No matching sources\n", pattern)
		}
		return count, nil
	}

	result, err := conn.Exec(ctx, `DELETE FROM sources WHERE name ~* $1`, pattern)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}

	count := int(result.RowsAffected())
	fmt.Printf("Deleted %d sources matching pattern: %s\n", count, pattern)
	return count, nil
}

func buildConnString() string {
	host := getEnvOrDefault("PGHOST", "localhost")
	port := getEnvOrDefault("PGPORT", "5432")
	user := getEnvOrDefault("PGUSER", "lexwatch")
	password := os.Getenv("PGPASSWORD")
	dbname := getEnvOrDefault("PGDATABASE", "lexwatch_engine")

	connStr := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
	if password != "" {
		connStr += fmt.Sprintf(" password=%s", password)
	}
	return connStr
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// truncate shortens a string to maxLen characters, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
