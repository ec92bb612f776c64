package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fdcollector/fdc/internal/model"
)

// ErrClientNotFound is returned when a client does not exist.
var ErrClientNotFound = errors.New("client not found")

const clientColumns = `id, name, wordpress_url, COALESCE(wordpress_username, ''), wordpress_password_sealed, created_by, created_at, updated_at`

// CreateClientWithKey inserts a client and its connector API key in one
// transaction. Nothing is stored if either insert fails.
func (r *Repository) CreateClientWithKey(ctx context.Context, client *model.Client, key *model.APIKey) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO clients (id, name, wordpress_url, wordpress_username, wordpress_password_sealed, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
		`,
			client.ID,
			client.Name,
			client.WordPressURL,
			client.WordPressUsername,
			client.WordPressPasswordSealed,
			client.CreatedBy,
			client.CreatedAt,
			client.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert client: %w", err)
		}

		if err := insertAPIKey(ctx, tx, key); err != nil {
			return fmt.Errorf("insert connector key: %w", err)
		}
		return nil
	})
}

// GetClientByID retrieves a client by ID.
func (r *Repository) GetClientByID(ctx context.Context, id string) (*model.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	client, err := scanClient(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

// ListClients returns all clients, newest first.
func (r *Repository) ListClients(ctx context.Context) ([]*model.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]*model.Client, 0)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}

	return clients, nil
}

// DeleteClient removes a client. Forms, their submissions and the
// client's API keys are removed by cascade.
func (r *Repository) DeleteClient(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

func scanClient(row pgx.Row) (*model.Client, error) {
	var client model.Client
	err := row.Scan(
		&client.ID,
		&client.Name,
		&client.WordPressURL,
		&client.WordPressUsername,
		&client.WordPressPasswordSealed,
		&client.CreatedBy,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &client, nil
}
