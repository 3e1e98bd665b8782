package ledger

import (
	"context"
	"fmt"

	"github.com/roach88/lotledger/internal/docstore"
)

// SetCount overwrites a lot's count_now without logging an event and
// without clamping to capacity. The lot must exist.
func (l *Ledger) SetCount(ctx context.Context, lotID string, count int64) (*Status, error) {
	if err := validateLotID(lotID); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, NewInvalidArgumentError("count must be a non-negative integer, got %d", count)
	}

	st := &Status{LotID: lotID, CountNow: count}
	err := l.runTx(ctx, lotID, func(ctx context.Context, tx docstore.Tx) error {
		lotSnap, err := tx.Get(LotPath(lotID))
		if err != nil {
			return err
		}
		if !lotSnap.Exists {
			return NewNotFoundError(lotID)
		}
		st.LastUpdated = l.timestamp()
		return tx.Set(StatusPath(lotID), docstore.Data{
			fieldCountNow:    count,
			fieldLastUpdated: st.LastUpdated,
		}, docstore.Merge())
	})
	if err != nil {
		return nil, fmt.Errorf("set count for %s: %w", lotID, err)
	}
	return st, nil
}

// Status reads a lot's live occupancy.
//
// Errors: NOT_FOUND when the lot or its status document is missing.
func (l *Ledger) Status(ctx context.Context, lotID string) (*Status, error) {
	if err := validateLotID(lotID); err != nil {
		return nil, err
	}

	snap, err := l.store.Get(ctx, StatusPath(lotID))
	if err != nil {
		return nil, fmt.Errorf("read status for %s: %w", lotID, err)
	}
	if snap.Exists {
		return statusFromSnapshot(lotID, snap), nil
	}

	lotSnap, err := l.store.Get(ctx, LotPath(lotID))
	if err != nil {
		return nil, fmt.Errorf("read lot %s: %w", lotID, err)
	}
	if !lotSnap.Exists {
		return nil, NewNotFoundError(lotID)
	}
	return nil, NewStatusNotFoundError(lotID)
}
