package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fdcollector/fdc/internal/model"
)

// ErrFormNotFound is returned when a form does not exist.
var ErrFormNotFound = errors.New("form not found")

const formColumns = `id, client_id, external_form_id, form_name, plugin, form_schema, created_at, updated_at`

// UpsertForm inserts a form or, when (client_id, external_form_id, plugin)
// already exists, refreshes the columns selected by overwrite. It returns
// the stored row, whose ID is the existing one on conflict.
func (r *Repository) UpsertForm(ctx context.Context, form *model.Form, overwrite model.FormOverwrite) (*model.Form, error) {
	query := `
		INSERT INTO forms (id, client_id, external_form_id, form_name, plugin, form_schema, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (client_id, external_form_id, plugin) DO UPDATE SET
			form_name   = CASE WHEN $8 THEN EXCLUDED.form_name ELSE forms.form_name END,
			form_schema = CASE WHEN $9 THEN EXCLUDED.form_schema ELSE forms.form_schema END,
			updated_at  = EXCLUDED.updated_at
		RETURNING ` + formColumns

	stored, err := scanForm(r.pool.QueryRow(ctx, query,
		form.ID,
		form.ClientID,
		form.ExternalFormID,
		form.Name,
		form.Plugin,
		nullableJSON(form.Schema),
		form.UpdatedAt,
		overwrite.Has(model.OverwriteName),
		overwrite.Has(model.OverwriteSchema),
	))
	if err != nil {
		return nil, fmt.Errorf("upsert form: %w", err)
	}
	return stored, nil
}

// GetFormByKey retrieves a form by its natural key.
func (r *Repository) GetFormByKey(ctx context.Context, key model.FormKey) (*model.Form, error) {
	query := `
		SELECT ` + formColumns + `
		FROM forms
		WHERE client_id = $1 AND external_form_id = $2 AND plugin = $3
	`

	form, err := scanForm(r.pool.QueryRow(ctx, query, key.ClientID, key.ExternalFormID, key.Plugin))
	if err != nil {
		return nil, fmt.Errorf("get form by key: %w", err)
	}
	return form, nil
}

// GetFormByID retrieves a form by ID.
func (r *Repository) GetFormByID(ctx context.Context, id string) (*model.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms WHERE id = $1`

	form, err := scanForm(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get form: %w", err)
	}
	return form, nil
}

// ListFormsByClient returns the registry entries of a client ordered by name.
func (r *Repository) ListFormsByClient(ctx context.Context, clientID string) ([]*model.Form, error) {
	query := `
		SELECT ` + formColumns + `
		FROM forms
		WHERE client_id = $1
		ORDER BY form_name, id
	`

	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	forms := make([]*model.Form, 0)
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		forms = append(forms, form)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forms: %w", err)
	}

	return forms, nil
}

// DeleteForm removes a form and, by cascade, its submissions.
func (r *Repository) DeleteForm(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM forms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFormNotFound
	}
	return nil
}

func scanForm(row pgx.Row) (*model.Form, error) {
	var form model.Form
	var schema []byte
	err := row.Scan(
		&form.ID,
		&form.ClientID,
		&form.ExternalFormID,
		&form.Name,
		&form.Plugin,
		&schema,
		&form.CreatedAt,
		&form.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	if len(schema) > 0 {
		form.Schema = schema
	}
	return &form, nil
}

// nullableJSON maps an absent document to SQL NULL.
func nullableJSON(doc []byte) any {
	if len(doc) == 0 {
		return nil
	}
	return string(doc)
}
