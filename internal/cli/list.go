package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/ledger"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "Print all lots",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	err := opts.withLedger(cmd, func(ctx context.Context, l *ledger.Ledger, _ *config.Config) error {
		lots, err := l.ListLots(ctx)
		if err != nil {
			return err
		}
		if f.IsJSON() {
			return f.Success("", lots)
		}
		if len(lots) == 0 {
			return f.Success("No lots. Run `lotledger seed` first.", nil)
		}

		tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCAPACITY\tLATITUDE\tLONGITUDE\tDESCRIPTION")
		for _, lot := range lots {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s%s\n",
				lot.ID,
				lot.Name,
				lot.CapacityString(),
				strconv.FormatFloat(lot.Latitude, 'f', -1, 64),
				strconv.FormatFloat(lot.Longitude, 'f', -1, 64),
				lot.Description,
				extraString(lot.Extra),
			)
		}
		return tw.Flush()
	})
	return f.Fail(err)
}

// extraString renders non-standard lot attributes as " key=value" pairs in
// key order.
func extraString(extra map[string]any) string {
	var s string
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		s += fmt.Sprintf(" %s=%v", k, extra[k])
	}
	return s
}
