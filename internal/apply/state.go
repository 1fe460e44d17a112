// Package apply drives batched add-accounts writes through the Smartlead
// client as a resumable state machine. The persisted run record is the
// single source of truth for progress; an interrupted run continues from
// its last completed batch instead of restarting.
package apply

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle phase of one apply run.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateComplete   State = "complete"
)

// Run is the progress record of one batch-apply execution. It is
// JSON-serializable so a store can persist it between advances.
type Run struct {
	ID               string    `json:"id"`
	CampaignID       int64     `json:"campaign_id"`
	Batches          [][]int64 `json:"batches"`
	State            State     `json:"state"`
	CompletedBatches int       `json:"completed_batches"`
	AccountsAdded    int       `json:"accounts_added"`
	Errors           []string  `json:"errors"`
	StartedAt        time.Time `json:"started_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewRun creates a run in the NotStarted state for the given batches.
func NewRun(campaignID int64, batches [][]int64) *Run {
	return &Run{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		Batches:    batches,
		State:      StateNotStarted,
		Errors:     []string{},
	}
}

// TotalBatches is the number of batches in the run.
func (r *Run) TotalBatches() int { return len(r.Batches) }

// TotalAccounts is the number of account ids across all batches.
func (r *Run) TotalAccounts() int {
	total := 0
	for _, batch := range r.Batches {
		total += len(batch)
	}
	return total
}

// Done reports whether every batch index has been visited.
func (r *Run) Done() bool { return r.State == StateComplete }
