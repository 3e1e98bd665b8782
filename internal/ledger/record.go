package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/lotledger/internal/docstore"
)

// Record applies one ENTRY or EXIT to a lot using the ledger's provenance.
func (l *Ledger) Record(ctx context.Context, lotID string, dir Direction) (*Receipt, error) {
	return l.RecordWith(ctx, lotID, dir, l.provenance)
}

// RecordWith applies one ENTRY or EXIT to a lot.
//
// In one transaction it reads the lot's capacity and current count (a
// missing status counts as 0), appends an event and writes the clamped
// count. The transaction is retried on conflict.
//
// Errors:
//   - INVALID_ARGUMENT: bad lot id, direction or provenance
//   - NOT_FOUND: the lot does not exist
//   - CONFLICT: the attempt budget ran out
func (l *Ledger) RecordWith(ctx context.Context, lotID string, dir Direction, prov Provenance) (*Receipt, error) {
	if err := validateLotID(lotID); err != nil {
		return nil, err
	}
	if dir != Entry && dir != Exit {
		return nil, NewInvalidArgumentError("direction must be ENTRY or EXIT, got %q", dir)
	}
	if err := prov.validate(); err != nil {
		return nil, err
	}

	var receipt *Receipt
	err := l.runTx(ctx, lotID, func(ctx context.Context, tx docstore.Tx) error {
		lotSnap, err := tx.Get(LotPath(lotID))
		if err != nil {
			return err
		}
		if !lotSnap.Exists {
			return NewNotFoundError(lotID)
		}
		statusSnap, err := tx.Get(StatusPath(lotID))
		if err != nil {
			return err
		}

		capacity := capacityOf(lotSnap.Data)
		current, _ := docstore.Int(statusSnap.Data, fieldCountNow)
		next := Clamp(current, dir.Delta(), capacity)
		now := l.timestamp()

		eventPath, err := tx.Add(EventsCollection(lotID), docstore.Data{
			fieldTimestamp:  now,
			fieldDirection:  string(dir),
			fieldSource:     prov.Source,
			fieldConfidence: prov.Confidence,
		})
		if err != nil {
			return err
		}
		err = tx.Set(StatusPath(lotID), docstore.Data{
			fieldCountNow:    next,
			fieldLastUpdated: now,
		}, docstore.Merge())
		if err != nil {
			return err
		}

		receipt = &Receipt{
			LotID:     lotID,
			Direction: dir,
			CountNow:  next,
			Capacity:  capacity,
			EventID:   docstore.Base(eventPath),
			Timestamp: now,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record %s for %s: %w", dir, lotID, err)
	}

	slog.Debug("recorded event",
		"lot", lotID,
		"direction", dir,
		"count_now", receipt.CountNow,
		"capacity", receipt.CapacityString(),
		"source", prov.Source,
	)
	return receipt, nil
}
