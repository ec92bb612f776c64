package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fdcollector/fdc/internal/model"
)

// ErrSubmissionNotFound is returned when a submission does not exist.
var ErrSubmissionNotFound = errors.New("submission not found")

const submissionColumns = `id, form_id, submission_data, submitted_at, external_id, created_at`

// CreateSubmission inserts a submission without any dedup.
func (r *Repository) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	query := `
		INSERT INTO submissions (id, form_id, submission_data, submitted_at, external_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		sub.ID,
		sub.FormID,
		string(sub.Data),
		sub.SubmittedAt,
		sub.ExternalID,
		sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// UpsertSubmission inserts a submission keyed by (form_id, external_id) or
// refreshes its data and timestamp. It reports whether a new row was
// created. ExternalID must be set.
func (r *Repository) UpsertSubmission(ctx context.Context, sub *model.Submission) (bool, error) {
	if sub.ExternalID == nil {
		return false, errors.New("upsert submission: external id is required")
	}

	query := `
		INSERT INTO submissions (id, form_id, submission_data, submitted_at, external_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (form_id, external_id) WHERE external_id IS NOT NULL DO UPDATE SET
			submission_data = EXCLUDED.submission_data,
			submitted_at    = EXCLUDED.submitted_at
		RETURNING id, (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		sub.ID,
		sub.FormID,
		string(sub.Data),
		sub.SubmittedAt,
		sub.ExternalID,
		sub.CreatedAt,
	).Scan(&sub.ID, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert submission: %w", err)
	}
	return inserted, nil
}

// ListSubmissionsByForm returns a form's submissions, newest first,
// optionally bounded by submitted_at.
func (r *Repository) ListSubmissionsByForm(ctx context.Context, formID string, filter model.SubmissionFilter) ([]*model.Submission, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + submissionColumns + ` FROM submissions WHERE form_id = $1`)
	args := []any{formID}

	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&b, " AND submitted_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		fmt.Fprintf(&b, " AND submitted_at <= $%d", len(args))
	}
	b.WriteString(" ORDER BY submitted_at DESC, id DESC")

	rows, err := r.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]*model.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}

	return subs, nil
}

// ListRecentSubmissions returns up to limit submissions received since the
// given time across all clients, with form and client names.
func (r *Repository) ListRecentSubmissions(ctx context.Context, since time.Time, limit int) ([]*model.RecentSubmission, error) {
	query := `
		SELECT s.id, s.submission_data, s.submitted_at,
		       f.form_name, f.plugin, c.id, c.name
		FROM submissions s
		JOIN forms f ON s.form_id = f.id
		JOIN clients c ON f.client_id = c.id
		WHERE s.submitted_at >= $1
		ORDER BY s.submitted_at DESC, s.id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]*model.RecentSubmission, 0)
	for rows.Next() {
		var sub model.RecentSubmission
		var data []byte
		if err := rows.Scan(&sub.ID, &data, &sub.SubmittedAt, &sub.FormName, &sub.Plugin, &sub.ClientID, &sub.ClientName); err != nil {
			return nil, fmt.Errorf("scan recent submission: %w", err)
		}
		sub.Data = data
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent submissions: %w", err)
	}

	return subs, nil
}

// DeleteSubmission removes one submission.
func (r *Repository) DeleteSubmission(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

func scanSubmission(row pgx.Row) (*model.Submission, error) {
	var sub model.Submission
	var data []byte
	err := row.Scan(&sub.ID, &sub.FormID, &data, &sub.SubmittedAt, &sub.ExternalID, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	sub.Data = data
	return &sub, nil
}
