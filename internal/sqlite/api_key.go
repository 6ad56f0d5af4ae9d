package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/activitylog/internal/repository"
)

// APIKeyRepository implements repository.APIKeyRepository for SQLite
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// HashToken returns the stored form of a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create inserts a new API key
func (r *APIKeyRepository) Create(ctx context.Context, key *repository.APIKey) error {
	if key.KeyHash == "" || key.ProfileID == "" || key.ExtensionID == "" {
		return fmt.Errorf("%w: key hash, profile id and extension id are required", repository.ErrInvalidInput)
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, profile_id, extension_id, created_at, description)
		VALUES (?, ?, ?, ?, ?)
	`, key.KeyHash, key.ProfileID, key.ExtensionID, key.CreatedAt, key.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// Resolve returns the caller bound to keyHash and records its use
func (r *APIKeyRepository) Resolve(ctx context.Context, keyHash string) (repository.Caller, error) {
	var caller repository.Caller
	err := r.db.QueryRowContext(ctx,
		`SELECT profile_id, extension_id FROM api_keys WHERE key_hash = ?`, keyHash,
	).Scan(&caller.ProfileID, &caller.ExtensionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.Caller{}, repository.ErrNotFound
		}
		return repository.Caller{}, fmt.Errorf("failed to resolve api key: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now(), keyHash,
	); err != nil {
		return repository.Caller{}, fmt.Errorf("failed to stamp api key: %w", err)
	}
	return caller, nil
}

// ListByProfile returns the keys of a profile, newest first
func (r *APIKeyRepository) ListByProfile(ctx context.Context, profileID string) ([]repository.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT key_hash, profile_id, extension_id, created_at, last_used, description
		FROM api_keys
		WHERE profile_id = ?
		ORDER BY created_at DESC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []repository.APIKey
	for rows.Next() {
		var key repository.APIKey
		var lastUsed sql.NullTime
		if err := rows.Scan(
			&key.KeyHash,
			&key.ProfileID,
			&key.ExtensionID,
			&key.CreatedAt,
			&lastUsed,
			&key.Description,
		); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		if lastUsed.Valid {
			key.LastUsed = &lastUsed.Time
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api key rows: %w", err)
	}
	return keys, nil
}

// Delete removes an API key
func (r *APIKeyRepository) Delete(ctx context.Context, keyHash string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE key_hash = ?`, keyHash)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
