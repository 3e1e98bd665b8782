package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lotledger/internal/calendar"
)

// CalendarOptions holds flags for the calendar command.
type CalendarOptions struct {
	*RootOptions
	Lot  string
	From string
	To   string
	File string
	ICS  string

	// Stamp overrides the ICS DTSTAMP (for testing).
	Stamp time.Time
}

// NewCalendarCommand creates the calendar command.
func NewCalendarCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CalendarOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "List campus events that affect parking",
		Long: `List games and campus events that change parking demand, by date.

--lot accepts a lot ID from the catalog or a lot name; names match without
regard to case or accents.

Example:
  lotledger calendar --lot=lot_72
  lotledger calendar --from=2025-11-01 --to=2025-11-30
  lotledger calendar --ics=parking.ics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalendar(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Lot, "lot", "", "only events affecting this lot")
	cmd.Flags().StringVar(&opts.From, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.To, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.File, "file", "", "YAML calendar file (default: built-in campus events)")
	cmd.Flags().StringVar(&opts.ICS, "ics", "", "write an iCalendar file to this path (- for stdout)")

	return cmd
}

func runCalendar(opts *CalendarOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	filter := calendar.Filter{}
	var err error
	if filter.From, err = calendar.ParseDate(opts.From); err != nil {
		return f.Fail(err)
	}
	if filter.To, err = calendar.ParseDate(opts.To); err != nil {
		return f.Fail(err)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return f.Fail(fmt.Errorf("--to %s is before --from %s", opts.To, opts.From))
	}

	name := "Campus parking events"
	if opts.Lot != "" {
		resolved := lotName(opts.Lot)
		filter.Lots = []string{resolved, opts.Lot}
		name = resolved + " events"
	}

	var events []*calendar.Event
	if opts.File != "" {
		events, err = calendar.Load(opts.File)
	} else {
		events, err = calendar.Builtin()
	}
	if err != nil {
		return f.Fail(err)
	}
	events = filter.Apply(events)
	f.VerboseLog("%d event(s) match", len(events))

	if opts.ICS != "" {
		return f.Fail(writeICS(opts, f, name, events))
	}
	if f.IsJSON() {
		return f.Success("", events)
	}
	if len(events) == 0 {
		return f.Success("No campus events match.", nil)
	}

	var b strings.Builder
	for i, ev := range events {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  %s  [%s, %s impact]\n", ev.Date, ev.Title, ev.Type, ev.Impact)
		if ev.Time != "" || ev.Venue != "" {
			fmt.Fprintf(&b, "  %s at %s\n", ev.Time, ev.Venue)
		}
		if len(ev.LotsAffected) > 0 {
			fmt.Fprintf(&b, "  lots: %s\n", strings.Join(ev.LotsAffected, ", "))
		}
		if ev.Notes != "" {
			fmt.Fprintf(&b, "  %s\n", ev.Notes)
		}
	}
	_, err = fmt.Fprint(f.Writer, b.String())
	return err
}

func writeICS(opts *CalendarOptions, f *OutputFormatter, name string, events []*calendar.Event) error {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	if opts.ICS == "-" {
		return calendar.WriteICS(f.Writer, name, events, stamp)
	}

	file, err := os.Create(opts.ICS)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.ICS, err)
	}
	if err := calendar.WriteICS(file, name, events, stamp); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", opts.ICS, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.ICS, err)
	}

	return f.Success(fmt.Sprintf("Wrote %d event(s) to %s", len(events), opts.ICS), map[string]any{
		"path":   opts.ICS,
		"events": len(events),
	})
}
