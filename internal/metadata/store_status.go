package metadata

import (
	"context"
	"fmt"

	"satpipe/internal/filestate"
)

// UpdateStatus atomically moves record id from one status to another. It
// reports true only when this call changed the record. Transitions the state
// machine forbids return false without touching the store, as does a record
// whose status is no longer from.
func (s *Store) UpdateStatus(ctx context.Context, id int64, from, to filestate.Status) (bool, error) {
	if !filestate.CanTransition(from, to) {
		return false, nil
	}
	return s.compareAndSet(ctx, id, from, to)
}

// ResetStatus is the operator override used to reconcile stuck or failed
// records. Any pair of distinct known statuses is allowed, but the update is
// still conditional on the current status.
func (s *Store) ResetStatus(ctx context.Context, id int64, from, to filestate.Status) (bool, error) {
	if !from.Valid() || !to.Valid() {
		return false, fmt.Errorf("%w: reset %s -> %s uses an unknown status", ErrValidation, from, to)
	}
	if from == to {
		return false, nil
	}
	return s.compareAndSet(ctx, id, from, to)
}

func (s *Store) compareAndSet(ctx context.Context, id int64, from, to filestate.Status) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	now := formatTimestamp(s.now())
	res, err := s.execWithRetry(ctx,
		"UPDATE file SET status = ?, last_processed = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(to), now, now, id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update status of record %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update status of record %d: %w", id, err)
	}
	return affected == 1, nil
}
