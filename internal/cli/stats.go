package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/ledger"
	"github.com/roach88/lotledger/internal/occupancy"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Lot   string
	Width int
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show a lot's popular times",
		Long: `Replay the lot's event log and print its mean occupancy for each hour of
the day, in the configured timezone (default America/Chicago).

Rates below 40% are low, below 70% medium, otherwise high.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Lot, "lot", "", "lot ID (required)")
	cmd.Flags().IntVar(&opts.Width, "width", 0, "output width in columns (default: terminal width)")
	_ = cmd.MarkFlagRequired("lot")

	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	err := opts.withLedger(cmd, func(ctx context.Context, l *ledger.Ledger, cfg *config.Config) error {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		lot, err := l.GetLot(ctx, opts.Lot)
		if err != nil {
			return err
		}
		events, err := l.Events(ctx, opts.Lot, 0)
		if err != nil {
			return err
		}
		if lot.Capacity == nil {
			return ledger.NewInvalidArgumentError("lot %s: %v", lot.ID, occupancy.ErrNoCapacity)
		}

		samples := occupancy.Replay(events, lot.Capacity)
		profile, err := occupancy.HourlyProfile(lot.ID, samples, *lot.Capacity, loc)
		if err != nil {
			return ledger.NewInvalidArgumentError("lot %s: %v", lot.ID, err)
		}
		if f.IsJSON() {
			return f.Success("", profile)
		}
		return occupancy.Render(f.Writer, profile, statsWidth(opts.Width, f))
	})
	return f.Fail(err)
}

func statsWidth(flag int, f *OutputFormatter) int {
	if flag > 0 {
		return flag
	}
	if file, ok := f.Writer.(*os.File); ok {
		return occupancy.TerminalWidth(file)
	}
	return 80
}
