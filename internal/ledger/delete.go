package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/lotledger/internal/docstore"
)

// DeleteLot removes a lot's events, then its status, then the lot.
//
// When all deletes fit in one transaction they are applied atomically.
// Otherwise events are removed one by one, then status, then the lot; if
// that stops partway, a PARTIAL_DELETE error carries the report of what was
// removed. Deleting an absent document is a no-op, so calling DeleteLot
// again finishes the job. A missing lot is not an error.
//
// Events recorded while DeleteLot runs may be left behind.
func (l *Ledger) DeleteLot(ctx context.Context, lotID string) (*DeleteReport, error) {
	if err := validateLotID(lotID); err != nil {
		return nil, err
	}

	events, err := l.store.List(ctx, EventsCollection(lotID))
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", lotID, err)
	}

	report := &DeleteReport{LotID: lotID, EventsFound: len(events)}
	if len(events)+2 <= l.maxBatch {
		if err := l.deleteInTx(ctx, events, report); err != nil {
			return nil, fmt.Errorf("delete lot %s: %w", lotID, err)
		}
		return report, nil
	}

	slog.Info("deleting lot in steps", "lot", lotID, "events", len(events))
	return report, l.deleteInSteps(ctx, events, report)
}

func (l *Ledger) deleteInTx(ctx context.Context, events []*docstore.Snapshot, report *DeleteReport) error {
	lotID := report.LotID
	return l.runTx(ctx, lotID, func(ctx context.Context, tx docstore.Tx) error {
		lotSnap, err := tx.Get(LotPath(lotID))
		if err != nil {
			return err
		}
		statusSnap, err := tx.Get(StatusPath(lotID))
		if err != nil {
			return err
		}

		for _, ev := range events {
			if err := tx.Delete(ev.Path); err != nil {
				return err
			}
		}
		if err := tx.Delete(StatusPath(lotID)); err != nil {
			return err
		}
		if err := tx.Delete(LotPath(lotID)); err != nil {
			return err
		}

		report.LotExisted = lotSnap.Exists
		report.StatusDeleted = statusSnap.Exists
		report.EventsDeleted = len(events)
		report.Transactional = true
		return nil
	})
}

func (l *Ledger) deleteInSteps(ctx context.Context, events []*docstore.Snapshot, report *DeleteReport) error {
	lotID := report.LotID

	for _, ev := range events {
		if err := l.store.Delete(ctx, ev.Path); err != nil {
			return NewPartialDeleteError(report, err)
		}
		report.EventsDeleted++
	}

	statusSnap, err := l.store.Get(ctx, StatusPath(lotID))
	switch {
	case err != nil:
		slog.Warn("could not read status during delete", "lot", lotID, "error", err)
	case statusSnap.Exists:
		if err := l.store.Delete(ctx, StatusPath(lotID)); err != nil {
			// The lot delete below still runs; the status can be removed by
			// a second DeleteLot.
			slog.Warn("could not delete status", "lot", lotID, "error", err)
		} else {
			report.StatusDeleted = true
		}
	}

	lotSnap, err := l.store.Get(ctx, LotPath(lotID))
	if err != nil {
		return NewPartialDeleteError(report, err)
	}
	report.LotExisted = lotSnap.Exists
	if err := l.store.Delete(ctx, LotPath(lotID)); err != nil {
		return NewPartialDeleteError(report, err)
	}
	return nil
}
