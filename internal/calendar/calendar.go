// Package calendar lists campus events that change parking demand.
package calendar

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed events.yaml
var builtinSrc []byte

// DateLayout is the layout of Event.Date.
const DateLayout = "2006-01-02"

// Type is the kind of campus event.
type Type string

const (
	Football    Type = "Football"
	Basketball  Type = "Basketball"
	CampusEvent Type = "Campus Event"
)

// Impact is how much an event affects parking.
type Impact string

const (
	ImpactLow    Impact = "Low"
	ImpactMedium Impact = "Medium"
	ImpactHigh   Impact = "High"
)

// Event is one campus event.
type Event struct {
	ID           string   `yaml:"id" json:"id"`
	Title        string   `yaml:"title" json:"title"`
	Type         Type     `yaml:"type" json:"type"`
	Date         string   `yaml:"date" json:"date"`
	Time         string   `yaml:"time" json:"time"`
	Venue        string   `yaml:"venue" json:"venue"`
	LotsAffected []string `yaml:"lots_affected" json:"lots_affected"`
	Impact       Impact   `yaml:"impact" json:"impact"`
	Notes        string   `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Day returns the event date at midnight UTC.
func (e *Event) Day() time.Time {
	d, _ := time.Parse(DateLayout, e.Date)
	return d
}

type file struct {
	Events []*Event `yaml:"events"`
}

// Builtin returns the embedded campus calendar, sorted by date.
func Builtin() ([]*Event, error) {
	return Parse("events.yaml", builtinSrc)
}

// Load reads a calendar file.
func Load(path string) ([]*Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes YAML calendar source, rejecting unknown fields, and
// returns its events sorted by date then id.
func Parse(name string, src []byte) ([]*Event, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	seen := make(map[string]bool, len(f.Events))
	for i, ev := range f.Events {
		if ev == nil {
			return nil, fmt.Errorf("%s: event %d is empty", name, i)
		}
		if err := ev.validate(); err != nil {
			return nil, fmt.Errorf("%s: event %d: %w", name, i, err)
		}
		if seen[ev.ID] {
			return nil, fmt.Errorf("%s: duplicate event id %q", name, ev.ID)
		}
		seen[ev.ID] = true
	}

	sortEvents(f.Events)
	return f.Events, nil
}

func (e *Event) validate() error {
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.Title == "" {
		return fmt.Errorf("%s: title is required", e.ID)
	}
	switch e.Type {
	case Football, Basketball, CampusEvent:
	default:
		return fmt.Errorf("%s: unknown type %q", e.ID, e.Type)
	}
	switch e.Impact {
	case ImpactLow, ImpactMedium, ImpactHigh:
	default:
		return fmt.Errorf("%s: unknown impact %q", e.ID, e.Impact)
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		return fmt.Errorf("%s: date %q is not YYYY-MM-DD", e.ID, e.Date)
	}
	return nil
}

func sortEvents(events []*Event) {
	slices.SortStableFunc(events, func(a, b *Event) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Filter selects events.
type Filter struct {
	// Lots keeps events affecting any of these lot names. Empty keeps all.
	Lots []string
	// From and To bound the event date, inclusive. Zero values are open.
	From time.Time
	To   time.Time
}

// Apply returns the events matching f, keeping their order.
func (f Filter) Apply(events []*Event) []*Event {
	keys := make([]string, 0, len(f.Lots))
	for _, name := range f.Lots {
		if k := foldName(name); k != "" {
			keys = append(keys, k)
		}
	}

	var out []*Event
	for _, ev := range events {
		day := ev.Day()
		if !f.From.IsZero() && day.Before(dayOf(f.From)) {
			continue
		}
		if !f.To.IsZero() && day.After(dayOf(f.To)) {
			continue
		}
		if len(keys) > 0 && !ev.affects(keys) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (e *Event) affects(keys []string) bool {
	for _, lot := range e.LotsAffected {
		if slices.Contains(keys, foldName(lot)) {
			return true
		}
	}
	return false
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// foldName maps a lot name to a key that ignores case, accents and
// surrounding space.
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		stripped = norm.NFC.String(strings.TrimSpace(s))
	}
	return cases.Fold().String(strings.Join(strings.Fields(stripped), " "))
}

// ParseDate parses a YYYY-MM-DD flag value. Empty yields the zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}
