package sensor

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lotledger/internal/config"
)

type fakeSQS struct {
	receiveIn  *sqs.ReceiveMessageInput
	receiveOut *sqs.ReceiveMessageOutput
	deleteIn   *sqs.DeleteMessageInput
	err        error
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.receiveIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.receiveOut, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleteIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.DeleteMessageOutput{}, nil
}

const queueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/gate-events"

func TestSQSQueue_Receive(t *testing.T) {
	api := &fakeSQS{receiveOut: &sqs.ReceiveMessageOutput{Messages: []types.Message{
		{MessageId: aws.String("m1"), Body: aws.String(`{"lot_id":"lot_72"}`), ReceiptHandle: aws.String("r1")},
		{MessageId: aws.String("m2")},
	}}}
	q := NewSQSQueueWithClient(api, config.SensorConfig{QueueURL: queueURL, MaxMessages: 5, WaitSeconds: 3})

	msgs, err := q.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Message{
		{ID: "m1", Body: `{"lot_id":"lot_72"}`, Receipt: "r1"},
		{ID: "m2"},
	}, msgs)

	assert.Equal(t, queueURL, aws.ToString(api.receiveIn.QueueUrl))
	assert.Equal(t, int32(5), api.receiveIn.MaxNumberOfMessages)
	assert.Equal(t, int32(3), api.receiveIn.WaitTimeSeconds)
	assert.Equal(t, int32(visibilityTimeout), api.receiveIn.VisibilityTimeout)
}

func TestSQSQueue_Limits(t *testing.T) {
	q := NewSQSQueueWithClient(&fakeSQS{}, config.SensorConfig{QueueURL: queueURL, MaxMessages: 50, WaitSeconds: 60})
	assert.Equal(t, int32(10), q.maxMessages)
	assert.Equal(t, int32(20), q.waitSeconds)
}

func TestSQSQueue_Delete(t *testing.T) {
	api := &fakeSQS{}
	q := NewSQSQueueWithClient(api, config.SensorConfig{QueueURL: queueURL})

	require.NoError(t, q.Delete(context.Background(), "r1"))
	assert.Equal(t, "r1", aws.ToString(api.deleteIn.ReceiptHandle))
	assert.Equal(t, queueURL, aws.ToString(api.deleteIn.QueueUrl))

	assert.Error(t, q.Delete(context.Background(), ""))
}

func TestSQSQueue_Errors(t *testing.T) {
	api := &fakeSQS{err: errors.New("access denied")}
	q := NewSQSQueueWithClient(api, config.SensorConfig{QueueURL: queueURL})

	_, err := q.Receive(context.Background())
	assert.ErrorContains(t, err, "access denied")
	assert.ErrorContains(t, q.Delete(context.Background(), "r1"), "access denied")
}

func TestNewSQSQueue_RequiresURL(t *testing.T) {
	_, err := NewSQSQueue(context.Background(), config.SensorConfig{Region: "us-east-1"})
	assert.ErrorContains(t, err, "queue URL is not configured")
}
