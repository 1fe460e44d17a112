package apply

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ignite/smartlead-sync/internal/pkg/logger"
	"github.com/ignite/smartlead-sync/internal/smartlead"
)

// DefaultBatchInterval is the self-imposed pause between batch
// submissions. It throttles write pressure; it is not a response to any
// server rate-limit signal.
const DefaultBatchInterval = 500 * time.Millisecond

// AccountAdder is the write side of the Smartlead client.
type AccountAdder interface {
	AddEmailAccountsToCampaign(ctx context.Context, campaignID int64, accountIDs []int64) (smartlead.AddResult, error)
}

// Applier advances apply runs one batch at a time. Batches submit
// serially; a failed batch is recorded and skipped, never retried within
// the run.
type Applier struct {
	client AccountAdder
	store  RunStore
	pace   *rate.Limiter
}

// NewApplier creates an applier persisting progress through store.
func NewApplier(client AccountAdder, store RunStore) *Applier {
	return &Applier{
		client: client,
		store:  store,
		pace:   rate.NewLimiter(rate.Every(DefaultBatchInterval), 1),
	}
}

// SetPace overrides the inter-batch limiter, for tests.
func (a *Applier) SetPace(limiter *rate.Limiter) { a.pace = limiter }

// Start registers a new run with the store and returns it.
func (a *Applier) Start(ctx context.Context, campaignID int64, batches [][]int64) (*Run, error) {
	run := NewRun(campaignID, batches)
	if err := a.save(ctx, run); err != nil {
		return nil, err
	}
	logger.Info("apply run created", "run_id", run.ID, "campaign_id", campaignID,
		"batches", run.TotalBatches(), "accounts", run.TotalAccounts())
	return run, nil
}

// Resume loads a previously started run from the store.
func (a *Applier) Resume(ctx context.Context, runID string) (*Run, error) {
	return a.store.Load(ctx, runID)
}

// Advance submits exactly one pending batch and persists the updated run.
// It returns true once every batch index has been visited. Re-entrant: a
// run resumed at CompletedBatches=k continues with batch k, and batches
// below k are never re-submitted.
func (a *Applier) Advance(ctx context.Context, run *Run) (bool, error) {
	if run.State == StateComplete {
		return true, nil
	}
	if run.State == StateNotStarted {
		run.State = StateInProgress
		run.StartedAt = time.Now().UTC()
	}

	i := run.CompletedBatches
	if i >= run.TotalBatches() {
		run.State = StateComplete
		run.CompletedBatches = run.TotalBatches()
		if err := a.save(ctx, run); err != nil {
			return true, err
		}
		return true, nil
	}

	batch := run.Batches[i]
	result, err := a.client.AddEmailAccountsToCampaign(ctx, run.CampaignID, batch)
	switch {
	case err != nil:
		run.Errors = append(run.Errors, fmt.Sprintf("batch %d error: %v", i+1, err))
		logger.Error("batch submission failed", "run_id", run.ID, "batch", i+1, "error", err)
	case !result.Accepted():
		run.Errors = append(run.Errors, fmt.Sprintf("batch %d failed: %s", i+1, result.Message))
		logger.Error("batch rejected", "run_id", run.ID, "batch", i+1, "message", result.Message)
	default:
		run.AccountsAdded += len(batch)
		logger.Info("batch applied", "run_id", run.ID, "batch", i+1, "accounts", len(batch))
	}

	// Failed batches are recorded and skipped, not blocked on.
	run.CompletedBatches = i + 1
	if run.CompletedBatches >= run.TotalBatches() {
		run.State = StateComplete
	}

	if err := a.save(ctx, run); err != nil {
		return run.Done(), err
	}
	return run.Done(), nil
}

// Run drives Advance until the run completes, pausing between batch
// submissions. Cancellation is honored between batches; a batch already
// submitted runs to completion first.
func (a *Applier) Run(ctx context.Context, run *Run) error {
	for {
		done, err := a.Advance(ctx, run)
		if err != nil {
			return err
		}
		if done {
			logger.Info("apply run complete", "run_id", run.ID,
				"accounts_added", run.AccountsAdded, "errors", len(run.Errors))
			return nil
		}
		if err := a.pace.Wait(ctx); err != nil {
			return err
		}
	}
}

func (a *Applier) save(ctx context.Context, run *Run) error {
	run.UpdatedAt = time.Now().UTC()
	if err := a.store.Save(ctx, run); err != nil {
		return fmt.Errorf("apply: persist run %s: %w", run.ID, err)
	}
	return nil
}
