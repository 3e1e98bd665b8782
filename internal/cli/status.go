package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/ledger"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Lot string
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Print a lot's live count",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Lot, "lot", "", "lot ID (required)")
	_ = cmd.MarkFlagRequired("lot")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	err := opts.withLedger(cmd, func(ctx context.Context, l *ledger.Ledger, _ *config.Config) error {
		st, err := l.Status(ctx, opts.Lot)
		if err != nil {
			return err
		}
		return f.Success(formatStatus(st), st)
	})
	return f.Fail(err)
}

func formatStatus(st *ledger.Status) string {
	return fmt.Sprintf("%s: count_now=%d last_updated=%s",
		st.LotID, st.CountNow, st.LastUpdated.UTC().Format(time.RFC3339))
}
