package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/lotledger/internal/docstore"
)

// SeedOptions configures Seed.
type SeedOptions struct {
	// KeepCounts leaves existing statuses alone; only lots without one get
	// a zero count.
	KeepCounts bool
}

// SeedResult reports one seeded lot.
type SeedResult struct {
	LotID string `json:"lot_id"`
	// StatusInitialized is true when a zero status was written.
	StatusInitialized bool `json:"status_initialized"`
}

// UpsertLot merge-writes a lot's attributes and creates a zero status if
// the lot has none. It reports whether the status was initialized.
func (l *Ledger) UpsertLot(ctx context.Context, lot *Lot) (bool, error) {
	return l.upsert(ctx, lot, false)
}

// Seed upserts each lot in order and zeroes its status, stopping at the
// first failure.
func (l *Ledger) Seed(ctx context.Context, lots []*Lot, opts SeedOptions) ([]SeedResult, error) {
	results := make([]SeedResult, 0, len(lots))
	for _, lot := range lots {
		initialized, err := l.upsert(ctx, lot, !opts.KeepCounts)
		if err != nil {
			return results, err
		}
		results = append(results, SeedResult{LotID: lot.ID, StatusInitialized: initialized})
	}
	return results, nil
}

func (l *Ledger) upsert(ctx context.Context, lot *Lot, reset bool) (bool, error) {
	if err := validateLotID(lot.ID); err != nil {
		return false, err
	}
	if strings.TrimSpace(lot.Name) == "" {
		return false, NewInvalidArgumentError("lot %s has no name", lot.ID)
	}
	if lot.Capacity != nil && *lot.Capacity < 0 {
		return false, NewInvalidArgumentError("lot %s: capacity must not be negative, got %d", lot.ID, *lot.Capacity)
	}

	var initialized bool
	err := l.runTx(ctx, lot.ID, func(ctx context.Context, tx docstore.Tx) error {
		statusSnap, err := tx.Get(StatusPath(lot.ID))
		if err != nil {
			return err
		}
		if err := tx.Set(LotPath(lot.ID), lotData(lot), docstore.Merge()); err != nil {
			return err
		}
		initialized = reset || !statusSnap.Exists
		if !initialized {
			return nil
		}
		return tx.Set(StatusPath(lot.ID), docstore.Data{
			fieldCountNow:    int64(0),
			fieldLastUpdated: l.timestamp(),
		}, docstore.Merge())
	})
	if err != nil {
		return false, fmt.Errorf("upsert lot %s: %w", lot.ID, err)
	}
	return initialized, nil
}

// GetLot reads one lot.
func (l *Ledger) GetLot(ctx context.Context, lotID string) (*Lot, error) {
	if err := validateLotID(lotID); err != nil {
		return nil, err
	}
	snap, err := l.store.Get(ctx, LotPath(lotID))
	if err != nil {
		return nil, fmt.Errorf("read lot %s: %w", lotID, err)
	}
	if !snap.Exists {
		return nil, NewNotFoundError(lotID)
	}
	return lotFromSnapshot(snap), nil
}

// ListLots returns every lot ordered by ID.
func (l *Ledger) ListLots(ctx context.Context) ([]*Lot, error) {
	snaps, err := l.store.List(ctx, LotsCollection)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	lots := make([]*Lot, 0, len(snaps))
	for _, snap := range snaps {
		lots = append(lots, lotFromSnapshot(snap))
	}
	return lots, nil
}

// UpdateLot merge-writes one attribute onto an existing lot. Status and
// events are untouched.
func (l *Ledger) UpdateLot(ctx context.Context, lotID, field string, value any) error {
	if err := validateLotID(lotID); err != nil {
		return err
	}
	field = strings.TrimSpace(field)
	if field == "" {
		return NewInvalidArgumentError("field must not be empty")
	}

	if field == fieldCapacity {
		c, ok := docstore.Int(docstore.Data{field: value}, field)
		switch {
		case ok && c < 0:
			return NewInvalidArgumentError("capacity must not be negative, got %v", value)
		case !ok:
			slog.Warn("capacity is not an integer in range; the lot will have no upper bound",
				"lot", lotID, "value", value)
		}
	}

	err := l.runTx(ctx, lotID, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(LotPath(lotID))
		if err != nil {
			return err
		}
		if !snap.Exists {
			return NewNotFoundError(lotID)
		}
		return tx.Set(LotPath(lotID), docstore.Data{field: value}, docstore.Merge())
	})
	if err != nil {
		return fmt.Errorf("update lot %s: %w", lotID, err)
	}
	return nil
}
