package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/lotledger/internal/catalog"
	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/ledger"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	KeepCounts bool
	Catalog    string
}

// SeedOutput is the JSON payload of seed.
type SeedOutput struct {
	Lots []ledger.SeedResult `json:"lots"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the lot catalog",
		Long: `Upsert every lot in the catalog and zero its count.

The built-in catalog holds Lot 72, Allen Fieldhouse Lot and GSP Lot. Use
--catalog to load a CUE file with the same shape instead.

Example:
  lotledger seed
  lotledger seed --keep-counts
  lotledger seed --catalog=./lots.cue`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.KeepCounts, "keep-counts", false, "keep the count of lots that already have a status")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "CUE catalog file (default: built-in campus lots)")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	lots, err := loadCatalog(opts.Catalog)
	if err != nil {
		return f.Fail(err)
	}
	f.VerboseLog("Seeding %d lot(s)", len(lots))

	err = opts.withLedger(cmd, func(ctx context.Context, l *ledger.Ledger, _ *config.Config) error {
		results, err := l.Seed(ctx, lots, ledger.SeedOptions{KeepCounts: opts.KeepCounts})
		if !f.IsJSON() {
			for _, r := range results {
				fmt.Fprintf(f.Writer, "Seeded %s\n", r.LotID)
			}
		}
		if err != nil {
			return err
		}
		return f.Success("Seeding complete", SeedOutput{Lots: results})
	})
	return f.Fail(err)
}

func loadCatalog(path string) ([]*ledger.Lot, error) {
	if path == "" {
		return catalog.Builtin()
	}
	return catalog.Load(path)
}

// lotName resolves a lot id to its catalog name. Unknown ids are returned
// unchanged.
func lotName(lotID string) string {
	lots, err := catalog.Builtin()
	if err != nil {
		return lotID
	}
	for _, lot := range lots {
		if strings.EqualFold(lot.ID, lotID) {
			return lot.Name
		}
	}
	return lotID
}
