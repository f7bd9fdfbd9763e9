// Package repositories contains PostgreSQL data access for sources,
// revisions, and change diffs.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lexwatch/lexwatch-engine/pkg/apperrors"
	"github.com/lexwatch/lexwatch-engine/pkg/crypto"
	"github.com/lexwatch/lexwatch-engine/pkg/database"
	"github.com/lexwatch/lexwatch-engine/pkg/models"
)

// SourceRepository defines the interface for source data access.
type SourceRepository interface {
	Create(ctx context.Context, source *models.Source) error
	Get(ctx context.Context, id uuid.UUID) (*models.Source, error)
	List(ctx context.Context) ([]*models.Source, error)
	ListEnabled(ctx context.Context) ([]*models.Source, error)
	Update(ctx context.Context, source *models.Source) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// sourceRepository implements SourceRepository using PostgreSQL.
type sourceRepository struct {
	db        *database.DB
	encryptor *crypto.CredentialEncryptor
}

// NewSourceRepository creates a new source repository. With a non-nil
// encryptor, auth credentials are sealed before they reach the database;
// with nil they are stored as plaintext JSON.
func NewSourceRepository(db *database.DB, encryptor *crypto.CredentialEncryptor) SourceRepository {
	return &sourceRepository{db: db, encryptor: encryptor}
}

const sourceColumns = `id, name, url, jurisdiction, project_prompt, jurisdiction_prompt, auth_credentials, scan_interval, enabled, created_at, updated_at`

// sealedCredentialsKey marks an auth_credentials object holding a sealed map
// instead of plaintext header values.
const sealedCredentialsKey = "sealed"

// Create inserts a new source or updates it if the ID already exists.
// Uses ON CONFLICT so seed scripts can be re-run safely.
func (r *sourceRepository) Create(ctx context.Context, source *models.Source) error {
	if source.ID == uuid.Nil {
		source.ID = uuid.New()
	}

	now := time.Now()
	source.CreatedAt = now
	source.UpdatedAt = now
	if source.ScanInterval == "" {
		source.ScanInterval = models.ScanIntervalDaily
	}

	creds, err := r.marshalCredentials(source.AuthCredentials)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sources (id, name, url, jurisdiction, project_prompt, jurisdiction_prompt, auth_credentials, scan_interval, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    url = EXCLUDED.url,
		    jurisdiction = EXCLUDED.jurisdiction,
		    project_prompt = EXCLUDED.project_prompt,
		    jurisdiction_prompt = EXCLUDED.jurisdiction_prompt,
		    auth_credentials = EXCLUDED.auth_credentials,
		    scan_interval = EXCLUDED.scan_interval,
		    enabled = EXCLUDED.enabled,
		    updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		source.ID,
		source.Name,
		source.URL,
		source.Jurisdiction,
		source.ProjectPrompt,
		source.JurisdictionPrompt,
		creds,
		source.ScanInterval,
		source.Enabled,
		source.CreatedAt,
		source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	return nil
}

// Get retrieves a source by ID.
func (r *sourceRepository) Get(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`

	source, err := r.scanSource(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return source, nil
}

// List returns all sources, newest first.
func (r *sourceRepository) List(ctx context.Context) ([]*models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources ORDER BY created_at DESC`
	return r.listSources(ctx, query)
}

// ListEnabled returns all sources participating in scheduled scans.
func (r *sourceRepository) ListEnabled(ctx context.Context) ([]*models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE enabled ORDER BY created_at DESC`
	return r.listSources(ctx, query)
}

func (r *sourceRepository) listSources(ctx context.Context, query string, args ...any) ([]*models.Source, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	sources := make([]*models.Source, 0)
	for rows.Next() {
		source, err := r.scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}

// Update updates an existing source's configuration.
func (r *sourceRepository) Update(ctx context.Context, source *models.Source) error {
	source.UpdatedAt = time.Now()
	if source.ScanInterval == "" {
		source.ScanInterval = models.ScanIntervalDaily
	}

	creds, err := r.marshalCredentials(source.AuthCredentials)
	if err != nil {
		return err
	}

	query := `
		UPDATE sources
		SET name = $2, url = $3, jurisdiction = $4, project_prompt = $5,
		    jurisdiction_prompt = $6, auth_credentials = $7, scan_interval = $8,
		    enabled = $9, updated_at = $10
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		source.ID,
		source.Name,
		source.URL,
		source.Jurisdiction,
		source.ProjectPrompt,
		source.JurisdictionPrompt,
		creds,
		source.ScanInterval,
		source.Enabled,
		source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrSourceNotFound
	}
	return nil
}

// Delete removes a source by ID. Related revisions are removed via CASCADE.
func (r *sourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrSourceNotFound
	}
	return nil
}

// marshalCredentials prepares the auth_credentials column value. With an
// encryptor configured, the map is stored as {"sealed": "<ciphertext>"} so
// header names and values never reach the database in plaintext.
func (r *sourceRepository) marshalCredentials(creds map[string]string) ([]byte, error) {
	if len(creds) == 0 {
		return nil, nil
	}

	if r.encryptor != nil {
		sealed, err := r.encryptor.SealCredentials(creds)
		if err != nil {
			return nil, fmt.Errorf("failed to seal auth credentials: %w", err)
		}
		creds = map[string]string{sealedCredentialsKey: sealed}
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth credentials: %w", err)
	}
	return data, nil
}

// unmarshalCredentials reads the auth_credentials column value, opening the
// sealed form when present. A sealed row without a configured key is an
// error: dropping the credentials silently would turn authenticated fetches
// into anonymous ones.
func (r *sourceRepository) unmarshalCredentials(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var stored map[string]string
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth credentials: %w", err)
	}

	sealed, ok := stored[sealedCredentialsKey]
	if !ok || len(stored) != 1 {
		return stored, nil
	}
	if r.encryptor == nil {
		return nil, fmt.Errorf("auth credentials are sealed but no credentials key is configured")
	}

	creds, err := r.encryptor.OpenCredentials(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open auth credentials: %w", err)
	}
	return creds, nil
}

// scanSource reads one source row. Works for both QueryRow and Rows.
func (r *sourceRepository) scanSource(row pgx.Row) (*models.Source, error) {
	var source models.Source
	var creds []byte

	err := row.Scan(
		&source.ID,
		&source.Name,
		&source.URL,
		&source.Jurisdiction,
		&source.ProjectPrompt,
		&source.JurisdictionPrompt,
		&creds,
		&source.ScanInterval,
		&source.Enabled,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	source.AuthCredentials, err = r.unmarshalCredentials(creds)
	if err != nil {
		return nil, err
	}
	return &source, nil
}

// Ensure sourceRepository implements SourceRepository at compile time.
var _ SourceRepository = (*sourceRepository)(nil)
