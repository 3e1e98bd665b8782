package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the sense of a gate crossing.
type Direction string

const (
	Entry Direction = "ENTRY"
	Exit  Direction = "EXIT"
)

// ParseDirection accepts ENTRY or EXIT in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case Entry, Exit:
		return d, nil
	default:
		return "", NewInvalidArgumentError("direction must be ENTRY or EXIT, got %q", s)
	}
}

// Delta is +1 for ENTRY and -1 for EXIT.
func (d Direction) Delta() int64 {
	if d == Entry {
		return 1
	}
	return -1
}

// Provenance records where an event came from.
type Provenance struct {
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Manual is the provenance of events recorded by an operator.
var Manual = Provenance{Source: "manual", Confidence: 1.0}

func (p Provenance) validate() error {
	if p.Source == "" {
		return NewInvalidArgumentError("event source must not be empty")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return NewInvalidArgumentError("confidence must be within [0, 1], got %g", p.Confidence)
	}
	return nil
}

// Lot is a parking lot's attributes.
type Lot struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description"`

	// Capacity is nil when the stored capacity is missing or not a number;
	// such a lot has no upper bound.
	Capacity *int64 `json:"capacity"`

	// Extra holds attributes beyond the standard ones, including a
	// non-numeric capacity.
	Extra map[string]any `json:"extra,omitempty"`
}

// CapacityString renders the capacity, "?" when unbounded.
func (l *Lot) CapacityString() string {
	return capacityString(l.Capacity)
}

func capacityString(c *int64) string {
	if c == nil {
		return "?"
	}
	return fmt.Sprint(*c)
}

// Status is a lot's live occupancy counter.
type Status struct {
	LotID       string    `json:"lot_id"`
	CountNow    int64     `json:"count_now"`
	LastUpdated time.Time `json:"last_updated"`
}

// Event is one logged gate crossing.
type Event struct {
	ID         string    `json:"id"`
	LotID      string    `json:"lot_id"`
	Timestamp  time.Time `json:"timestamp"`
	Direction  Direction `json:"direction"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
}

// Receipt describes a committed Record call.
type Receipt struct {
	LotID     string    `json:"lot_id"`
	Direction Direction `json:"direction"`
	CountNow  int64     `json:"count_now"`
	Capacity  *int64    `json:"capacity"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CapacityString renders the capacity, "?" when unbounded.
func (r *Receipt) CapacityString() string {
	return capacityString(r.Capacity)
}

// DeleteReport describes what DeleteLot removed.
type DeleteReport struct {
	LotID         string `json:"lot_id"`
	LotExisted    bool   `json:"lot_existed"`
	EventsFound   int    `json:"events_found"`
	EventsDeleted int    `json:"events_deleted"`
	StatusDeleted bool   `json:"status_deleted"`
	// Transactional is true when everything was removed in one transaction.
	Transactional bool `json:"transactional"`
}

// AuditReport compares the stored counter with a replay of the event log.
type AuditReport struct {
	LotID    string `json:"lot_id"`
	Events   int    `json:"events"`
	Entries  int    `json:"entries"`
	Exits    int    `json:"exits"`
	Derived  int64  `json:"derived"`
	CountNow int64  `json:"count_now"`
	// Drift is CountNow - Derived; non-zero after a setCount override or a
	// capacity change.
	Drift    int64  `json:"drift"`
	Capacity *int64 `json:"capacity"`
}
