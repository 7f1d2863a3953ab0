package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/vtu-ledger/pkg/app"
	"github.com/chris/vtu-ledger/pkg/config"
	"github.com/chris/vtu-ledger/pkg/logging"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/scheduler"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// consumer applies reward jobs delivered by SQS. Failed messages are
// reported as batch item failures and redelivered by SQS.
type consumer struct {
	processor scheduler.Processor
	logger    *zap.Logger
}

func (c *consumer) HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, message := range sqsEvent.Records {
		msgLog := c.logger.With(zap.String("message_id", message.MessageId))

		var job models.RewardJob
		if err := json.Unmarshal([]byte(message.Body), &job); err != nil {
			msgLog.Error("failed to unmarshal reward job", zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
			continue
		}

		if err := c.processor.Process(ctx, job); err != nil {
			msgLog.Error("failed to apply reward", zap.String("job_id", job.ID), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
			continue
		}
		msgLog.Info("reward applied", zap.String("job_id", job.ID), zap.String("kind", string(job.Kind)))
	}
	return resp, nil
}

func main() {
	// Load environment variables from .env file (useful for local testing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, _, err := config.Load(nil)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Logger.Level, cfg.Application+"-rewards", cfg.IsProdMode)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise", zap.Error(err))
	}

	c := &consumer{processor: a.Rewards, logger: logger}
	lambda.Start(c.HandleRequest)
}
