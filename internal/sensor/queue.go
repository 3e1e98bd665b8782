package sensor

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/roach88/lotledger/internal/config"
)

// Message is one queued gate reading.
type Message struct {
	ID      string
	Body    string
	Receipt string
}

// Queue delivers gate messages.
type Queue interface {
	// Receive blocks until messages arrive, the wait ends, or ctx is done.
	// It may return an empty batch.
	Receive(ctx context.Context) ([]Message, error)

	// Delete acknowledges a message so it is not delivered again.
	Delete(ctx context.Context, receipt string) error
}

// SQSAPI is the subset of the SQS client used by SQSQueue.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue long-polls an Amazon SQS queue.
type SQSQueue struct {
	client      SQSAPI
	url         string
	maxMessages int32
	waitSeconds int32
}

// visibilityTimeout is how long a received message stays hidden before
// SQS redelivers it.
const visibilityTimeout = 60

// NewSQSQueue builds an SQS client from the default AWS credential chain.
func NewSQSQueue(ctx context.Context, cfg config.SensorConfig) (*SQSQueue, error) {
	if cfg.QueueURL == "" {
		return nil, errors.New("sensor queue URL is not configured (set sensor.queue_url or SQS_EVENT_QUEUE_URL)")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSQSQueueWithClient(sqs.NewFromConfig(awsCfg), cfg), nil
}

// NewSQSQueueWithClient wraps an existing client.
func NewSQSQueueWithClient(client SQSAPI, cfg config.SensorConfig) *SQSQueue {
	q := &SQSQueue{
		client:      client,
		url:         cfg.QueueURL,
		maxMessages: cfg.MaxMessages,
		waitSeconds: cfg.WaitSeconds,
	}
	if q.maxMessages <= 0 || q.maxMessages > 10 {
		q.maxMessages = 10
	}
	if q.waitSeconds < 0 || q.waitSeconds > 20 {
		q.waitSeconds = 20
	}
	return q
}

// Receive implements Queue.
func (q *SQSQueue) Receive(ctx context.Context) ([]Message, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: q.maxMessages,
		WaitTimeSeconds:     q.waitSeconds,
		VisibilityTimeout:   visibilityTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("receive from %s: %w", q.url, err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:      aws.ToString(m.MessageId),
			Body:    aws.ToString(m.Body),
			Receipt: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

// Delete implements Queue.
func (q *SQSQueue) Delete(ctx context.Context, receipt string) error {
	if receipt == "" {
		return errors.New("message has no receipt handle")
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", q.url, err)
	}
	return nil
}
