package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/ledger"
)

// RecordOptions holds flags for recordEntry and recordExit.
type RecordOptions struct {
	*RootOptions
	Lot       string
	Direction ledger.Direction
}

// NewRecordCommand creates recordEntry or recordExit.
func NewRecordCommand(rootOpts *RootOptions, dir ledger.Direction) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts, Direction: dir}

	use, short := "recordEntry", "Log a vehicle entering a lot"
	if dir == ledger.Exit {
		use, short = "recordExit", "Log a vehicle leaving a lot"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

The event is appended and the lot's count updated in one transaction; the
count stays within [0, capacity]. Conflicting writers are retried.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Lot, "lot", "", "lot ID (required)")
	_ = cmd.MarkFlagRequired("lot")

	return cmd
}

func runRecord(opts *RecordOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	err := opts.withLedger(cmd, func(ctx context.Context, l *ledger.Ledger, _ *config.Config) error {
		receipt, err := l.Record(ctx, opts.Lot, opts.Direction)
		if err != nil {
			return err
		}
		text := fmt.Sprintf("Recorded %s for %s: %d/%s",
			receipt.Direction, receipt.LotID, receipt.CountNow, receipt.CapacityString())
		return f.Success(text, receipt)
	})
	return f.Fail(err)
}
