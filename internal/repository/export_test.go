//go:build integration

package repository

import (
	"context"

	"github.com/fdcollector/fdc/internal/model"
)

// loadSubmission reads a submission row back by id.
func loadSubmission(ctx context.Context, repo *Repository, id string) (*model.Submission, error) {
	return scanSubmission(repo.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
}

// LoadSubmission exposes loadSubmission to the external integration tests.
var LoadSubmission = loadSubmission
