package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/fdcollector/fdc/internal/model"
)

// CountSubmissions counts submissions with submitted_at in [from, to).
// An empty clientID counts across all clients; a zero bound is open.
func (r *Repository) CountSubmissions(ctx context.Context, clientID string, from, to time.Time) (int64, error) {
	var b strings.Builder
	b.WriteString(`SELECT COUNT(*) FROM submissions s`)

	var conds []string
	var args []any
	if clientID != "" {
		b.WriteString(` JOIN forms f ON s.form_id = f.id`)
		args = append(args, clientID)
		conds = append(conds, fmt.Sprintf("f.client_id = $%d", len(args)))
	}
	if !from.IsZero() {
		args = append(args, from)
		conds = append(conds, fmt.Sprintf("s.submitted_at >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conds = append(conds, fmt.Sprintf("s.submitted_at < $%d", len(args)))
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	var count int64
	if err := r.pool.QueryRow(ctx, b.String(), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}

// CountClients counts all clients.
func (r *Repository) CountClients(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return count, nil
}

// CountForms counts registered forms, optionally for one client.
func (r *Repository) CountForms(ctx context.Context, clientID string) (int64, error) {
	query := `SELECT COUNT(*) FROM forms WHERE ($1::text = '' OR client_id = $1::text)`

	var count int64
	if err := r.pool.QueryRow(ctx, query, clientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count forms: %w", err)
	}
	return count, nil
}

// DailySubmissionCounts returns per-day counts (UTC days) of submissions
// since from. Days without submissions are absent.
func (r *Repository) DailySubmissionCounts(ctx context.Context, clientID string, from time.Time) ([]model.DailyCount, error) {
	query := `
		SELECT date_trunc('day', s.submitted_at AT TIME ZONE 'UTC') AS day, COUNT(*)
		FROM submissions s
		JOIN forms f ON s.form_id = f.id
		WHERE s.submitted_at >= $1 AND ($2::text = '' OR f.client_id = $2::text)
		GROUP BY day
		ORDER BY day
	`

	rows, err := r.pool.Query(ctx, query, from, clientID)
	if err != nil {
		return nil, fmt.Errorf("daily submission counts: %w", err)
	}
	defer rows.Close()

	var counts []model.DailyCount
	for rows.Next() {
		var c model.DailyCount
		if err := rows.Scan(&c.Day, &c.Count); err != nil {
			return nil, fmt.Errorf("scan daily count: %w", err)
		}
		c.Day = time.Date(c.Day.Year(), c.Day.Month(), c.Day.Day(), 0, 0, 0, 0, time.UTC)
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily counts: %w", err)
	}

	return counts, nil
}

// SubmissionTotalsByClient returns per-client submission totals, largest
// first. A nil clientIDs covers every client.
func (r *Repository) SubmissionTotalsByClient(ctx context.Context, clientIDs []string) ([]model.ClientTotal, error) {
	query := `
		SELECT c.id, c.name, COUNT(s.id)
		FROM clients c
		LEFT JOIN forms f ON f.client_id = c.id
		LEFT JOIN submissions s ON s.form_id = f.id
		WHERE $1::text[] IS NULL OR c.id = ANY($1::text[])
		GROUP BY c.id, c.name
		ORDER BY COUNT(s.id) DESC, c.name
	`

	var ids any
	if clientIDs != nil {
		ids = pq.Array(clientIDs)
	}

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("submission totals by client: %w", err)
	}
	defer rows.Close()

	totals := make([]model.ClientTotal, 0)
	for rows.Next() {
		var t model.ClientTotal
		if err := rows.Scan(&t.ClientID, &t.ClientName, &t.Total); err != nil {
			return nil, fmt.Errorf("scan client total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client totals: %w", err)
	}

	return totals, nil
}
