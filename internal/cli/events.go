package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/ledger"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Lot   string
	Limit int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "events",
		Short:         "Print a lot's event log",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Lot, "lot", "", "lot ID (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "print only the most recent N events (0 for all)")
	_ = cmd.MarkFlagRequired("lot")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if opts.Limit < 0 {
		return f.Fail(ledger.NewInvalidArgumentError("limit must be >= 0, got %d", opts.Limit))
	}

	err := opts.withLedger(cmd, func(ctx context.Context, l *ledger.Ledger, _ *config.Config) error {
		events, err := l.Events(ctx, opts.Lot, opts.Limit)
		if err != nil {
			return err
		}
		if f.IsJSON() {
			return f.Success("", events)
		}
		if len(events) == 0 {
			return f.Success(fmt.Sprintf("No events for %s", opts.Lot), nil)
		}

		tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIMESTAMP\tDIRECTION\tSOURCE\tCONFIDENCE\tID")
		for _, ev := range events {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n",
				ev.Timestamp.UTC().Format(time.RFC3339),
				ev.Direction,
				ev.Source,
				ev.Confidence,
				ev.ID,
			)
		}
		return tw.Flush()
	})
	return f.Fail(err)
}
