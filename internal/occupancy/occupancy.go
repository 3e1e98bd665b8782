// Package occupancy turns a lot's event log into a "popular times" profile:
// the mean occupancy rate for each hour of the day.
package occupancy

import (
	"errors"
	"math"
	"time"

	"github.com/roach88/lotledger/internal/ledger"
)

// ErrNoCapacity is returned when a profile is requested for a lot without
// a positive numeric capacity.
var ErrNoCapacity = errors.New("occupancy rate needs a positive numeric capacity")

// Sample is the occupancy of a lot right after one event.
type Sample struct {
	Time     time.Time
	Occupied int64
}

// Replay walks events in order from an empty lot, clamping against
// capacity, and returns one sample per ENTRY/EXIT event.
func Replay(events []*ledger.Event, capacity *int64) []Sample {
	samples := make([]Sample, 0, len(events))
	var count int64
	for _, ev := range events {
		if ev.Direction != ledger.Entry && ev.Direction != ledger.Exit {
			continue
		}
		count = ledger.Clamp(count, ev.Direction.Delta(), capacity)
		samples = append(samples, Sample{Time: ev.Timestamp, Occupied: count})
	}
	return samples
}

// Profile is the hourly occupancy profile of a lot.
type Profile struct {
	LotID    string `json:"lot_id"`
	Capacity int64  `json:"capacity"`
	Samples  int    `json:"samples"`

	// Hours holds the mean occupancy rate (percent, two decimals) per
	// hour of day; hours without samples are 0.
	Hours [24]float64 `json:"hours"`

	Max float64 `json:"max_occupancy"`
	// PeakHour is the first hour reaching Max, or -1 without samples.
	PeakHour int  `json:"peak_hour"`
	PeakBand Band `json:"peak_band"`
}

// HourlyProfile buckets samples by hour of day in loc and averages their
// occupancy rate (occupied / capacity * 100).
func HourlyProfile(lotID string, samples []Sample, capacity int64, loc *time.Location) (*Profile, error) {
	if capacity <= 0 {
		return nil, ErrNoCapacity
	}
	if loc == nil {
		loc = time.Local
	}

	var (
		sums   [24]float64
		counts [24]int
	)
	for _, s := range samples {
		h := s.Time.In(loc).Hour()
		sums[h] += float64(s.Occupied) / float64(capacity) * 100
		counts[h]++
	}

	p := &Profile{LotID: lotID, Capacity: capacity, Samples: len(samples), PeakHour: -1}
	for h := range p.Hours {
		if counts[h] > 0 {
			p.Hours[h] = round2(sums[h] / float64(counts[h]))
		}
	}

	if len(samples) > 0 {
		p.PeakHour = 0
		for h, rate := range p.Hours {
			if rate > p.Max {
				p.Max = rate
				p.PeakHour = h
			}
		}
	}
	p.PeakBand = BandOf(p.Max)
	return p, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Band classifies an occupancy rate.
type Band string

const (
	Low    Band = "low"
	Medium Band = "medium"
	High   Band = "high"
)

// BandOf returns Low below 40%, Medium below 70%, High otherwise.
func BandOf(rate float64) Band {
	switch {
	case rate < 40:
		return Low
	case rate < 70:
		return Medium
	default:
		return High
	}
}

// Color is the band's display color.
func (b Band) Color() string {
	switch b {
	case Low:
		return "green"
	case Medium:
		return "yellow"
	default:
		return "red"
	}
}
