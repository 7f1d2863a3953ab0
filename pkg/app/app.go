// Package app assembles the service from its configuration. The HTTP server
// and the lambdas share it so they agree on storage, rewards and settlement.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/vtu-ledger/pkg/config"
	"github.com/chris/vtu-ledger/pkg/directory"
	"github.com/chris/vtu-ledger/pkg/handlers"
	ledgerhandler "github.com/chris/vtu-ledger/pkg/handlers/ledger"
	"github.com/chris/vtu-ledger/pkg/handlers/payments"
	"github.com/chris/vtu-ledger/pkg/handlers/transactions"
	"github.com/chris/vtu-ledger/pkg/handlers/wallets"
	"github.com/chris/vtu-ledger/pkg/ledger"
	"github.com/chris/vtu-ledger/pkg/middleware"
	"github.com/chris/vtu-ledger/pkg/notify"
	"github.com/chris/vtu-ledger/pkg/orchestrator"
	"github.com/chris/vtu-ledger/pkg/provider"
	"github.com/chris/vtu-ledger/pkg/provider/flutterwave"
	"github.com/chris/vtu-ledger/pkg/provider/paystack"
	"github.com/chris/vtu-ledger/pkg/reconcile"
	"github.com/chris/vtu-ledger/pkg/rewards"
	"github.com/chris/vtu-ledger/pkg/scheduler"
	"github.com/chris/vtu-ledger/pkg/settlement"
	"github.com/chris/vtu-ledger/pkg/storage"
	dydbstore "github.com/chris/vtu-ledger/pkg/storage/dynamodb"
	"github.com/chris/vtu-ledger/pkg/storage/memory"
	"github.com/chris/vtu-ledger/pkg/vtu"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Store        storage.Storage
	Ledger       *ledger.Service
	Orchestrator *orchestrator.Orchestrator
	Settlement   *settlement.Engine
	Rewards      *rewards.Processor
	Scheduler    scheduler.Scheduler
	Reconciler   *reconcile.Reconciler

	closers []func(context.Context) error
}

// New connects every backend enabled in cfg. Callers must Close the result.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx); err != nil {
		return nil, multierr.Append(err, a.Close(ctx))
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	var awsCfg aws.Config
	if cfg.Storage.Driver == "dynamodb" || cfg.Scheduler.Mode == "sqs" {
		var err error
		if awsCfg, err = awsconfig.LoadDefaultConfig(ctx); err != nil {
			return fmt.Errorf("unable to load SDK config: %w", err)
		}
	}

	switch cfg.Storage.Driver {
	case "dynamodb":
		a.Store = dydbstore.New(dynamodb.NewFromConfig(awsCfg),
			cfg.DynamoDB.WalletsTable, cfg.DynamoDB.LedgerTable,
			cfg.DynamoDB.TransactionsTable, cfg.DynamoDB.PaymentsTable)
	default:
		a.Store = memory.New()
	}
	a.Ledger = ledger.New(a.Store, a.Logger.Named("ledger"))

	notifier, err := a.notifier()
	if err != nil {
		return err
	}

	settings, referrers, err := a.directory(ctx)
	if err != nil {
		return err
	}
	budget, deadLetter, err := a.redis(ctx)
	if err != nil {
		return err
	}
	a.Rewards = rewards.NewProcessor(a.Ledger, settings, referrers, budget, notifier, a.Logger.Named("rewards"))

	switch cfg.Scheduler.Mode {
	case "sqs":
		a.Scheduler = scheduler.NewSQSScheduler(sqs.NewFromConfig(awsCfg), cfg.Scheduler.QueueURL)
	default:
		inline := scheduler.NewInlineScheduler(a.Rewards, deadLetter, a.Logger.Named("scheduler"),
			cfg.Scheduler.MaxAttempts, cfg.Scheduler.Backoff)
		a.Scheduler = inline
		a.closers = append(a.closers, func(context.Context) error {
			inline.Wait()
			return nil
		})
	}

	vendor := vtu.NewClient(cfg.Vendor.BaseURL, cfg.Vendor.APIKey, cfg.Vendor.SecretKey, cfg.Vendor.Timeout)
	a.Orchestrator = orchestrator.New(a.Ledger, a.Store, vtu.NewRegistry(vendor), a.Scheduler,
		a.Logger.Named("orchestrator"), orchestrator.WithVendorTimeout(cfg.Vendor.Timeout))

	a.Settlement = settlement.New(a.verifier(), a.Store, a.Ledger, notifier, a.Logger.Named("settlement"))
	a.Reconciler = reconcile.New(a.Store, a.Settlement, a.Settlement.Provider(),
		cfg.Reconcile.BatchSize, cfg.Reconcile.Concurrency, a.Logger.Named("reconcile"))
	return nil
}

func (a *App) verifier() provider.Verifier {
	p := a.Config.Provider
	if p.Name == "paystack" {
		return paystack.New(p.BaseURL, p.SecretKey, p.Timeout)
	}
	return flutterwave.New(p.BaseURL, p.SecretKey, p.Timeout)
}

func (a *App) notifier() (notify.Sender, error) {
	k := a.Config.Kafka
	if !k.Enabled {
		return notify.LogSender{Logger: a.Logger.Named("notify")}, nil
	}
	metrics := kprom.NewMetrics("vtu_notify")
	sender, err := notify.NewKafkaSender(notify.KafkaConfig{Brokers: k.Brokers, Topic: k.Topic}, metrics, a.Logger.Named("notify"))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		sender.Close()
		return nil
	})
	return sender, nil
}

func (a *App) directory(ctx context.Context) (rewards.SettingsProvider, rewards.ReferrerLookup, error) {
	defaults := a.Config.Rewards.RewardSettings()
	m := a.Config.Mongo
	if !m.Enabled {
		return rewards.StaticSettings(defaults), rewards.NoReferrers{}, nil
	}
	client, err := directory.Connect(ctx, m.URI)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	a.closers = append(a.closers, client.Disconnect)
	dir := directory.New(client.Database(m.Database), defaults)
	return dir, dir, nil
}

func (a *App) redis(ctx context.Context) (rewards.Budget, scheduler.DeadLetter, error) {
	r := a.Config.Redis
	if !r.Enabled {
		return rewards.NewMemoryBudget(), rewards.LogDeadLetter{Logger: a.Logger.Named("dead_letter")}, nil
	}
	client, err := rewards.Connect(ctx, r.URI, r.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	return rewards.NewRedisBudget(client), rewards.NewRedisDeadLetter(client, a.Logger.Named("dead_letter")), nil
}

// Router returns the HTTP API with request logging attached.
func (a *App) Router() http.Handler {
	h := handlers.NewApiHandler(
		wallets.NewWalletsHandler(a.Ledger),
		ledgerhandler.NewLedgerHandler(a.Ledger),
		transactions.NewTransactionsHandler(a.Orchestrator),
		payments.NewPaymentsHandler(a.Settlement, a.Config.Provider.WebhookHash, a.Logger.Named("payments")),
	)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewStructuredLogger(a.Logger.Named("http")))
	r.Use(chimiddleware.Recoverer)
	return handlers.HandlerFromMux(h, r)
}

// Close releases backends in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i](ctx))
	}
	a.closers = nil
	return err
}
