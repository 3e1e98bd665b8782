// Package sensor feeds gate sensor readings from a queue into the ledger.
//
// A reading is a JSON message:
//
//	{"lot_id": "lot_72", "direction": "ENTRY", "source": "gate-3", "confidence": 0.97}
//
// source and confidence are optional and fall back to the consumer's
// default provenance.
package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/lotledger/internal/ledger"
)

// Recorder applies one reading. *ledger.Ledger satisfies it.
type Recorder interface {
	RecordWith(ctx context.Context, lotID string, dir ledger.Direction, prov ledger.Provenance) (*ledger.Receipt, error)
}

// Reading is the decoded message body.
type Reading struct {
	LotID      string   `json:"lot_id"`
	Direction  string   `json:"direction"`
	Source     string   `json:"source,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Outcome is what happened to a message.
type Outcome int

const (
	// Applied means the reading was recorded and the message deleted.
	Applied Outcome = iota
	// Dropped means the reading can never succeed and was deleted.
	Dropped
	// Retained means the message was left for redelivery.
	Retained
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Dropped:
		return "dropped"
	default:
		return "retained"
	}
}

// errPermanent marks readings that redelivery cannot fix.
var errPermanent = errors.New("permanent")

// Consumer drains a Queue with a fixed pool of workers.
type Consumer struct {
	queue    Queue
	recorder Recorder
	defaults ledger.Provenance

	workers int
	backoff time.Duration
	timeout time.Duration
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithWorkers sets the worker count. Default: 4.
func WithWorkers(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithBackoff sets the pause after a failed receive. Default: 5s.
func WithBackoff(d time.Duration) Option {
	return func(c *Consumer) { c.backoff = d }
}

// WithTimeout bounds the handling of one message. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewConsumer creates a consumer. defaults fills in a reading's missing
// source or confidence.
func NewConsumer(queue Queue, recorder Recorder, defaults ledger.Provenance, opts ...Option) *Consumer {
	c := &Consumer{
		queue:    queue,
		recorder: recorder,
		defaults: defaults,
		workers:  4,
		backoff:  5 * time.Second,
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run receives and applies messages until ctx is done. It returns nil on
// cancellation after in-flight messages finish.
func (c *Consumer) Run(ctx context.Context) error {
	jobs := make(chan Message)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.workerLoop(ctx, id, jobs)
		}(i)
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	slog.Info("sensor consumer started", "workers", c.workers)
	for {
		if ctx.Err() != nil {
			slog.Info("sensor consumer stopping")
			return nil
		}

		msgs, err := c.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			slog.Warn("receive failed", "error", err, "retry_in", c.backoff)
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
			}
			continue
		}
		if len(msgs) > 0 {
			slog.Debug("received messages", "count", len(msgs))
		}

		for _, m := range msgs {
			select {
			case jobs <- m:
			case <-ctx.Done():
			}
		}
	}
}

func (c *Consumer) workerLoop(ctx context.Context, id int, jobs <-chan Message) {
	for m := range jobs {
		if ctx.Err() != nil {
			continue
		}
		outcome := c.Handle(ctx, m)
		slog.Debug("message handled", "worker", id, "message", m.ID, "outcome", outcome)
	}
}

// Handle applies one message and deletes it unless it should be retried.
func (c *Consumer) Handle(ctx context.Context, m Message) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	receipt, err := c.apply(ctx, m.Body)
	switch {
	case err == nil:
		slog.Info("recorded sensor event",
			"lot", receipt.LotID,
			"direction", receipt.Direction,
			"count_now", receipt.CountNow,
			"capacity", receipt.CapacityString(),
		)
		c.delete(ctx, m)
		return Applied
	case errors.Is(err, errPermanent) || ledger.IsInvalidArgument(err) || ledger.IsNotFound(err):
		slog.Warn("dropping sensor message", "message", m.ID, "error", err)
		c.delete(ctx, m)
		return Dropped
	default:
		slog.Warn("sensor message will be redelivered", "message", m.ID, "error", err)
		return Retained
	}
}

func (c *Consumer) apply(ctx context.Context, body string) (*ledger.Receipt, error) {
	r, err := Decode(body)
	if err != nil {
		return nil, err
	}
	dir, err := ledger.ParseDirection(r.Direction)
	if err != nil {
		return nil, err
	}

	prov := c.defaults
	if r.Source != "" {
		prov.Source = r.Source
	}
	if r.Confidence != nil {
		prov.Confidence = *r.Confidence
	}
	return c.recorder.RecordWith(ctx, r.LotID, dir, prov)
}

func (c *Consumer) delete(ctx context.Context, m Message) {
	if err := c.queue.Delete(ctx, m.Receipt); err != nil {
		slog.Error("failed to delete message", "message", m.ID, "error", err)
	}
}

// Decode parses a message body. Malformed bodies are permanent failures.
func Decode(body string) (*Reading, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: empty message body", errPermanent)
	}
	var r Reading
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("%w: invalid reading: %v", errPermanent, err)
	}
	if r.LotID == "" {
		return nil, fmt.Errorf("%w: reading has no lot_id", errPermanent)
	}
	return &r, nil
}
