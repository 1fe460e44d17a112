// Package postgres persists a durable history of apply runs. The live run
// state lives in redis; this table is the audit trail an operator checks
// after the fact.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/smartlead-sync/internal/apply"
)

// RunHistoryRepo records apply runs in PostgreSQL.
type RunHistoryRepo struct{ db *sql.DB }

// NewRunHistoryRepo creates a Postgres-backed run history.
func NewRunHistoryRepo(db *sql.DB) *RunHistoryRepo { return &RunHistoryRepo{db: db} }

// RunSummary is one row of apply-run history.
type RunSummary struct {
	ID               string
	CampaignID       int64
	State            string
	TotalBatches     int
	CompletedBatches int
	AccountsAdded    int
	Errors           []string
}

// Record upserts the run's current progress.
func (r *RunHistoryRepo) Record(ctx context.Context, run *apply.Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, campaign_id, state, total_batches, completed_batches,
		                       accounts_added, errors, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			completed_batches = EXCLUDED.completed_batches,
			accounts_added = EXCLUDED.accounts_added,
			errors = EXCLUDED.errors,
			updated_at = EXCLUDED.updated_at
	`, run.ID, run.CampaignID, string(run.State), run.TotalBatches(), run.CompletedBatches,
		run.AccountsAdded, pq.Array(run.Errors), run.StartedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (r *RunHistoryRepo) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, state, total_batches, completed_batches, accounts_added, errors
		FROM sync_runs
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		if err := rows.Scan(&run.ID, &run.CampaignID, &run.State, &run.TotalBatches,
			&run.CompletedBatches, &run.AccountsAdded, pq.Array(&run.Errors)); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
