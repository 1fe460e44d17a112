package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/smartlead-sync/internal/apply"
)

// runTTL keeps finished and abandoned runs around long enough for an
// operator to come back to them.
const runTTL = 24 * time.Hour

// RunStore persists apply-run progress in redis, letting a run survive a
// process restart between batches.
type RunStore struct {
	rdb *redis.Client
}

// NewRunStore creates a redis-backed apply.RunStore.
func NewRunStore(rdb *redis.Client) *RunStore { return &RunStore{rdb: rdb} }

func runKey(runID string) string { return "smartlead:run:" + runID }

// Save serializes the run record under its id.
func (s *RunStore) Save(ctx context.Context, run *apply.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("cache: encode run: %w", err)
	}
	if err := s.rdb.Set(ctx, runKey(run.ID), data, runTTL).Err(); err != nil {
		return fmt.Errorf("cache: save run: %w", err)
	}
	return nil
}

// Load retrieves a run record; unknown ids map to apply.ErrRunNotFound.
func (s *RunStore) Load(ctx context.Context, runID string) (*apply.Run, error) {
	data, err := s.rdb.Get(ctx, runKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, apply.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache: load run: %w", err)
	}

	var run apply.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("cache: decode run: %w", err)
	}
	return &run, nil
}
