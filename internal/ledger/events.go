package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// Events returns a lot's event log in (timestamp, id) order. A positive
// limit keeps only the most recent limit events.
func (l *Ledger) Events(ctx context.Context, lotID string, limit int) ([]*Event, error) {
	if _, err := l.GetLot(ctx, lotID); err != nil {
		return nil, err
	}
	events, err := l.events(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

func (l *Ledger) events(ctx context.Context, lotID string) ([]*Event, error) {
	snaps, err := l.store.List(ctx, EventsCollection(lotID))
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", lotID, err)
	}
	events := make([]*Event, 0, len(snaps))
	for _, snap := range snaps {
		events = append(events, eventFromSnapshot(lotID, snap))
	}
	slices.SortStableFunc(events, func(a, b *Event) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return events, nil
}

// Audit replays a lot's event log from zero, clamped against the current
// capacity, and compares the result with the stored count.
func (l *Ledger) Audit(ctx context.Context, lotID string) (*AuditReport, error) {
	lot, err := l.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}

	var countNow int64
	st, err := l.Status(ctx, lotID)
	switch {
	case err == nil:
		countNow = st.CountNow
	case !IsNotFound(err):
		return nil, err
	}

	events, err := l.events(ctx, lotID)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{
		LotID:    lotID,
		Events:   len(events),
		CountNow: countNow,
		Capacity: lot.Capacity,
	}
	for _, ev := range events {
		switch ev.Direction {
		case Entry:
			report.Entries++
		case Exit:
			report.Exits++
		default:
			continue
		}
		report.Derived = Clamp(report.Derived, ev.Direction.Delta(), lot.Capacity)
	}
	report.Drift = report.CountNow - report.Derived
	return report, nil
}
