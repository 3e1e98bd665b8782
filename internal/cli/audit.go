package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/ledger"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Lot string
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare a lot's count with its event log",
		Long: `Replay the lot's events from zero, clamped to the current capacity, and
compare the result with count_now. Drift is expected after setCount or a
capacity change.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Lot, "lot", "", "lot ID (required)")
	_ = cmd.MarkFlagRequired("lot")

	return cmd
}

func runAudit(opts *AuditOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	err := opts.withLedger(cmd, func(ctx context.Context, l *ledger.Ledger, _ *config.Config) error {
		report, err := l.Audit(ctx, opts.Lot)
		if err != nil {
			return err
		}
		text := fmt.Sprintf("%s: %d events (%d entries, %d exits), derived %d, count_now %d, drift %+d",
			report.LotID, report.Events, report.Entries, report.Exits,
			report.Derived, report.CountNow, report.Drift)
		return f.Success(text, report)
	})
	return f.Fail(err)
}
