package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fdcollector/fdc/internal/model"
)

// Common errors for API key repository operations.
var (
	ErrAPIKeyNotFound = errors.New("API key not found")
)

const apiKeyColumns = `id, user_id, client_id, key_name, key_prefix, key_hash, key_sealed, is_active, last_used_at, created_at`

// CreateAPIKey inserts a new API key into the database.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	if err := insertAPIKey(ctx, r.pool, key); err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}
	return nil
}

// GetAPIKeyByHash retrieves an API key by the digest of its plaintext.
func (r *Repository) GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`

	key, err := scanAPIKey(r.pool.QueryRow(ctx, query, hash))
	if err != nil {
		return nil, fmt.Errorf("get API key by hash: %w", err)
	}
	return key, nil
}

// GetActiveClientKey returns the newest active key scoped to the client.
func (r *Repository) GetActiveClientKey(ctx context.Context, clientID string) (*model.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE client_id = $1 AND is_active
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	key, err := scanAPIKey(r.pool.QueryRow(ctx, query, clientID))
	if err != nil {
		return nil, fmt.Errorf("get active client key: %w", err)
	}
	return key, nil
}

// ListAPIKeysByUserID retrieves all API keys for a user.
func (r *Repository) ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	defer rows.Close()

	keys := make([]*model.APIKey, 0)
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan API key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API keys: %w", err)
	}

	return keys, nil
}

// DeactivateAPIKey marks a key owned by the user inactive.
func (r *Repository) DeactivateAPIKey(ctx context.Context, id, userID string) error {
	query := `
		UPDATE api_keys
		SET is_active = FALSE
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate API key: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}

	return nil
}

func insertAPIKey(ctx context.Context, q querier, key *model.APIKey) error {
	_, err := q.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, client_id, key_name, key_prefix, key_hash, key_sealed, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		key.ID,
		key.UserID,
		key.ClientID,
		key.Name,
		key.KeyPrefix,
		key.KeyHash,
		key.KeySealed,
		key.IsActive,
		key.CreatedAt,
	)
	return err
}

// scanAPIKey scans a single row into an APIKey model.
func scanAPIKey(row pgx.Row) (*model.APIKey, error) {
	var key model.APIKey

	err := row.Scan(
		&key.ID,
		&key.UserID,
		&key.ClientID,
		&key.Name,
		&key.KeyPrefix,
		&key.KeyHash,
		&key.KeySealed,
		&key.IsActive,
		&key.LastUsedAt,
		&key.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, err
	}

	return &key, nil
}
