package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/ledger"
	"github.com/roach88/lotledger/internal/sensor"
)

// ConsumeOptions holds flags for the consume command.
type ConsumeOptions struct {
	*RootOptions
	Source  string
	Workers int
}

// NewConsumeCommand creates the consume command.
func NewConsumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConsumeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Apply gate sensor messages from an SQS queue",
		Long: `Long-poll the sensor queue and record each gate reading as an ENTRY or
EXIT event. Readings that can never apply (bad JSON, unknown lot) are
removed from the queue; conflicts and store errors leave them for
redelivery.

The queue comes from sensor.queue_url in the config file or
SQS_EVENT_QUEUE_URL. Stop with Ctrl-C.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsume(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "sensor", "source recorded for readings that carry none")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent workers (default: sensor.workers)")

	return cmd
}

func runConsume(opts *ConsumeOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	// The consumer is long-running; show its INFO logs.
	if !opts.Verbose {
		handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelInfo})
		slog.SetDefault(slog.New(handler))
	}

	err := opts.withLedger(cmd, func(ctx context.Context, l *ledger.Ledger, cfg *config.Config) error {
		queue, err := opts.openQueue(ctx, cfg.Sensor)
		if err != nil {
			return err
		}

		workers := opts.Workers
		if workers <= 0 {
			workers = cfg.Sensor.Workers
		}
		consumer := sensor.NewConsumer(queue, l,
			ledger.Provenance{Source: opts.Source, Confidence: cfg.Ledger.Confidence},
			sensor.WithWorkers(workers),
		)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		go func() {
			select {
			case sig := <-sigChan:
				slog.Info("received signal, shutting down", "signal", sig)
				cancel()
			case <-ctx.Done():
			}
		}()

		if !f.IsJSON() {
			fmt.Fprintf(f.Writer, "Consuming sensor events with %d worker(s). Press Ctrl-C to stop.\n", workers)
		}
		if err := consumer.Run(ctx); err != nil {
			return err
		}
		return f.Success("Consumer stopped", map[string]any{"workers": workers})
	})
	return f.Fail(err)
}

func (o *ConsumeOptions) openQueue(ctx context.Context, cfg config.SensorConfig) (sensor.Queue, error) {
	if o.OpenQueue != nil {
		return o.OpenQueue(ctx, cfg)
	}
	return sensor.NewSQSQueue(ctx, cfg)
}
