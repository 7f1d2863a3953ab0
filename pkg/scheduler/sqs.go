package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/chris/vtu-ledger/pkg/models"
)

// SQSAPI is the subset of the SQS client the scheduler uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSScheduler implements the Scheduler interface using AWS SQS.
type SQSScheduler struct {
	Client   SQSAPI
	QueueURL string
}

// NewSQSScheduler creates a new SQSScheduler.
func NewSQSScheduler(client SQSAPI, queueURL string) *SQSScheduler {
	return &SQSScheduler{
		Client:   client,
		QueueURL: queueURL,
	}
}

// Make sure we conform to the interface
var _ Scheduler = (*SQSScheduler)(nil)

// ScheduleReward sends the job to an SQS queue for the rewards consumer.
func (s *SQSScheduler) ScheduleReward(ctx context.Context, job models.RewardJob) error {
	// Marshal the job to JSON.
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal reward job for SQS: %w", err)
	}

	// Send the message to SQS.
	_, err = s.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.QueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {DataType: aws.String("String"), StringValue: aws.String(string(job.Kind))},
		},
	})

	if err != nil {
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	return nil
}
