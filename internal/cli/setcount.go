package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/ledger"
)

// SetCountOptions holds flags for the setCount command.
type SetCountOptions struct {
	*RootOptions
	Lot   string
	Count int64
}

// NewSetCountCommand creates the setCount command.
func NewSetCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetCountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "setCount",
		Short: "Overwrite a lot's count without logging an event",
		Long: `Overwrite count_now directly. No event is logged and the value is not
clamped to capacity, so the count drifts from the event log (see audit).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetCount(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Lot, "lot", "", "lot ID (required)")
	cmd.Flags().Int64Var(&opts.Count, "count", 0, "new count, >= 0 (required)")
	_ = cmd.MarkFlagRequired("lot")
	_ = cmd.MarkFlagRequired("count")

	return cmd
}

func runSetCount(opts *SetCountOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if opts.Count < 0 {
		return f.Fail(ledger.NewInvalidArgumentError("count must be >= 0, got %d", opts.Count))
	}

	err := opts.withLedger(cmd, func(ctx context.Context, l *ledger.Ledger, _ *config.Config) error {
		st, err := l.SetCount(ctx, opts.Lot, opts.Count)
		if err != nil {
			return err
		}
		return f.Success(fmt.Sprintf("Set %s count_now = %d", st.LotID, st.CountNow), st)
	})
	return f.Fail(err)
}
