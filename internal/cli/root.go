package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lotledger/internal/backend"
	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/docstore"
	"github.com/roach88/lotledger/internal/ledger"
	"github.com/roach88/lotledger/internal/sensor"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	ConfigPath     string
	EnvFile        string
	Driver         string
	DB             string
	Redis          string
	Project        string
	ServiceAccount string

	// OpenStore overrides backend.Open (for testing).
	OpenStore func(ctx context.Context, cfg *config.Config) (docstore.Store, error)

	// Now overrides the ledger clock (for testing).
	Now func() time.Time

	// OpenQueue overrides the SQS sensor queue (for testing).
	OpenQueue func(ctx context.Context, cfg config.SensorConfig) (sensor.Queue, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the lotledger CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lotledger",
		Short: "lotledger - campus parking occupancy ledger",
		Long: `Seed and maintain campus parking lots, their live occupancy and their
entry/exit event log.

Every entry or exit is appended to the lot's event log and applied to its
count in one transaction, clamped to [0, capacity].`,
		Example: `  lotledger seed
  lotledger recordEntry --lot=lot_72
  lotledger status --lot=lot_72
  lotledger --driver=redis --redis=localhost:6379 list`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Unknown commands fall through to RunE and print usage.
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			setupLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				slog.Debug("unknown command", "command", args[0])
			}
			return cmd.Help()
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before LOTLEDGER_* variables (skipped when missing)")
	flags.StringVar(&opts.Driver, "driver", "", "store backend (sqlite|mysql|redis|firestore)")
	flags.StringVar(&opts.DB, "db", "", "SQLite path or MySQL DSN")
	flags.StringVar(&opts.Redis, "redis", "", "Redis address (host:port)")
	flags.StringVar(&opts.Project, "project", "", "Firestore project ID")
	flags.StringVar(&opts.ServiceAccount, "serviceAccount", "", "Firestore service account key file")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSetCountCommand(opts))
	cmd.AddCommand(NewRecordCommand(opts, ledger.Entry))
	cmd.AddCommand(NewRecordCommand(opts, ledger.Exit))
	cmd.AddCommand(NewUpdateLotCommand(opts))
	cmd.AddCommand(NewDeleteLotCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewCalendarCommand(opts))
	cmd.AddCommand(NewConsumeCommand(opts))

	return cmd
}

// setupLogging installs a text slog handler on w: DEBUG when verbose,
// WARN otherwise so one-shot commands print only their result.
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadConfig resolves configuration: file, dotenv, environment, then the
// global flags.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath, o.EnvFile)
	if err != nil {
		return nil, NewExitError(ExitFailure, err.Error())
	}

	if o.Driver != "" {
		cfg.Driver = o.Driver
	}
	if o.DB != "" {
		cfg.DB = o.DB
	}
	if o.Redis != "" {
		cfg.Redis.Addr = o.Redis
	}
	if o.Project != "" {
		cfg.Firestore.Project = o.Project
	}
	if o.ServiceAccount != "" {
		cfg.Firestore.ServiceAccount = o.ServiceAccount
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// withLedger loads the configuration, opens the store and runs fn with a
// ledger over it. The store is closed when fn returns.
func (o *RootOptions) withLedger(cmd *cobra.Command, fn func(ctx context.Context, l *ledger.Ledger, cfg *config.Config) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	open := o.OpenStore
	if open == nil {
		open = backend.Open
	}
	st, err := open(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("failed to open %s store", cfg.Driver), err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing store", "error", closeErr)
		}
	}()

	ledgerOpts := []ledger.Option{
		ledger.WithMaxAttempts(cfg.Ledger.MaxAttempts),
		ledger.WithProvenance(ledger.Provenance{Source: cfg.Ledger.Source, Confidence: cfg.Ledger.Confidence}),
	}
	if o.Now != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithClock(o.Now))
	}
	return fn(ctx, ledger.New(st, ledgerOpts...), cfg)
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
