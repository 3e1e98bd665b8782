package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/ledger"
)

// DeleteLotOptions holds flags for the deleteLot command.
type DeleteLotOptions struct {
	*RootOptions
	Lot string
}

// NewDeleteLotCommand creates the deleteLot command.
func NewDeleteLotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteLotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deleteLot",
		Short: "Delete a lot with its status and events",
		Long: `Delete a lot's events, then its status, then the lot.

Small lots are deleted in one transaction. Larger ones are deleted step by
step; if that stops partway, run the command again to finish.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeleteLot(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Lot, "lot", "", "lot ID (required)")
	_ = cmd.MarkFlagRequired("lot")

	return cmd
}

func runDeleteLot(opts *DeleteLotOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	var report *ledger.DeleteReport
	err := opts.withLedger(cmd, func(ctx context.Context, l *ledger.Ledger, _ *config.Config) error {
		var err error
		report, err = l.DeleteLot(ctx, opts.Lot)
		if err != nil {
			return err
		}
		if !report.LotExisted {
			f.VerboseLog("Lot %s did not exist", opts.Lot)
		}
		text := fmt.Sprintf("Deleted lot and its events: %s (%d events)", report.LotID, report.EventsDeleted)
		return f.Success(text, report)
	})
	return f.FailWithDetails(err, report)
}
