package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/ledger"
)

// UpdateLotOptions holds flags for the updateLot command.
type UpdateLotOptions struct {
	*RootOptions
	Lot      string
	Field    string
	Value    string
	AsString bool
}

// UpdateLotOutput is the JSON payload of updateLot.
type UpdateLotOutput struct {
	LotID string `json:"lot_id"`
	Field string `json:"field"`
	Value any    `json:"value"`
}

// NewUpdateLotCommand creates the updateLot command.
func NewUpdateLotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateLotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "updateLot",
		Short: "Set one attribute of a lot",
		Long: `Merge one key/value onto a lot. Status and events are untouched.

The value is typed like a YAML scalar: 120 is an integer, 1.5 a float,
true a boolean and anything else a string. --string keeps it a string.

Example:
  lotledger updateLot --lot=lot_72 --field=capacity --value=150
  lotledger updateLot --lot=lot_72 --field=zone --value=007 --string`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdateLot(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Lot, "lot", "", "lot ID (required)")
	cmd.Flags().StringVar(&opts.Field, "field", "", "attribute name (required)")
	cmd.Flags().StringVar(&opts.Value, "value", "", "attribute value (required)")
	cmd.Flags().BoolVar(&opts.AsString, "string", false, "store the value as a string")
	_ = cmd.MarkFlagRequired("lot")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func runUpdateLot(opts *UpdateLotOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	value := any(opts.Value)
	if !opts.AsString {
		value = parseScalar(opts.Value)
	}
	f.VerboseLog("Setting %s.%s = %v (%T)", opts.Lot, opts.Field, value, value)

	err := opts.withLedger(cmd, func(ctx context.Context, l *ledger.Ledger, _ *config.Config) error {
		if err := l.UpdateLot(ctx, opts.Lot, opts.Field, value); err != nil {
			return err
		}
		return f.Success(fmt.Sprintf("Updated lot meta for %s", opts.Lot), UpdateLotOutput{
			LotID: opts.Lot,
			Field: opts.Field,
			Value: value,
		})
	})
	return f.Fail(err)
}

// parseScalar types s as a YAML scalar. Anything that does not decode to a
// number or boolean stays a string.
func parseScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case int, int64, uint64, float64, bool:
		return v
	default:
		return s
	}
}
