package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/vtu-ledger/pkg/app"
	"github.com/chris/vtu-ledger/pkg/config"
	"github.com/chris/vtu-ledger/pkg/logging"
	"github.com/chris/vtu-ledger/pkg/reconcile"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var (
	sweeper *reconcile.Reconciler
	logger  *zap.Logger
)

func init() {
	// Load environment variables for local testing.
	godotenv.Load() //nolint:errcheck

	cfg, _, err := config.Load(nil)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if logger, err = logging.New(cfg.Logger.Level, cfg.Application+"-reconcile", cfg.IsProdMode); err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	// Backends stay open for the life of the execution environment.
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise", zap.Error(err))
	}
	sweeper = a.Reconciler
}

// HandleRequest is triggered by an EventBridge Schedule.
func HandleRequest(ctx context.Context) (reconcile.Summary, error) {
	summary, err := sweeper.RunSweep(ctx)
	if err != nil {
		logger.Error("reconciliation sweep failed", zap.Error(err))
		return summary, err
	}
	return summary, nil
}

func main() {
	lambda.Start(HandleRequest)
}
