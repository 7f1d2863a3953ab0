package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/chris/vtu-ledger/pkg/errs"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/shopspring/decimal"
)

var DefaultConfig = []byte(`
application: "vtu-ledger"

logger:
  level: "info"

is_prod_mode: false

http:
  port: 8080

storage:
  driver: "memory"

dynamodb:
  wallets_table: "vtu-wallets"
  ledger_table: "vtu-ledger"
  transactions_table: "vtu-transactions"
  payments_table: "vtu-payments"

scheduler:
  mode: "inline"
  queue_url: ""
  max_attempts: 3
  backoff: "2s"

rewards:
  cashback_enabled: true
  cashback_rate: "0.03"
  referral_enabled: true
  referral_rate: "0.01"
  referral_daily_budget: "50000"

vendor:
  base_url: "https://sandbox.vtpass.com"
  api_key: ""
  secret_key: ""
  timeout: "15s"

provider:
  name: "flutterwave"
  base_url: "https://api.flutterwave.com"
  secret_key: ""
  webhook_hash: ""
  timeout: "15s"

reconcile:
  enabled: false
  interval: "5m"
  batch_size: 50
  concurrency: 10

mongo:
  enabled: false
  uri: "mongodb://localhost:27017"
  database: "vtu"

redis:
  enabled: false
  uri: "localhost:6379"
  password: ""

kafka:
  enabled: false
  brokers:
    - "localhost:9092"
  topic: "notifications"
`)

type Config struct {
	Application string    `koanf:"application"`
	Logger      Logger    `koanf:"logger"`
	IsProdMode  bool      `koanf:"is_prod_mode"`
	HTTP        HTTP      `koanf:"http"`
	Storage     Storage   `koanf:"storage"`
	DynamoDB    DynamoDB  `koanf:"dynamodb"`
	Scheduler   Scheduler `koanf:"scheduler"`
	Rewards     Rewards   `koanf:"rewards"`
	Vendor      Vendor    `koanf:"vendor"`
	Provider    Provider  `koanf:"provider"`
	Reconcile   Reconcile `koanf:"reconcile"`
	Mongo       Mongo     `koanf:"mongo"`
	Redis       Redis     `koanf:"redis"`
	Kafka       Kafka     `koanf:"kafka"`
}

type Logger struct {
	Level string `koanf:"level"`
}

type HTTP struct {
	Port int `koanf:"port"`
}

type Storage struct {
	// Driver is "memory" or "dynamodb".
	Driver string `koanf:"driver"`
}

type DynamoDB struct {
	WalletsTable      string `koanf:"wallets_table"`
	LedgerTable       string `koanf:"ledger_table"`
	TransactionsTable string `koanf:"transactions_table"`
	PaymentsTable     string `koanf:"payments_table"`
}

type Scheduler struct {
	// Mode is "inline" or "sqs".
	Mode        string        `koanf:"mode"`
	QueueURL    string        `koanf:"queue_url"`
	MaxAttempts int           `koanf:"max_attempts"`
	Backoff     time.Duration `koanf:"backoff"`
}

type Rewards struct {
	CashbackEnabled     bool   `koanf:"cashback_enabled"`
	CashbackRate        string `koanf:"cashback_rate"`
	ReferralEnabled     bool   `koanf:"referral_enabled"`
	ReferralRate        string `koanf:"referral_rate"`
	ReferralDailyBudget string `koanf:"referral_daily_budget"`
}

type Vendor struct {
	BaseURL   string        `koanf:"base_url"`
	APIKey    string        `koanf:"api_key"`
	SecretKey string        `koanf:"secret_key"`
	Timeout   time.Duration `koanf:"timeout"`
}

type Provider struct {
	// Name is "flutterwave" or "paystack".
	Name        string        `koanf:"name"`
	BaseURL     string        `koanf:"base_url"`
	SecretKey   string        `koanf:"secret_key"`
	WebhookHash string        `koanf:"webhook_hash"`
	Timeout     time.Duration `koanf:"timeout"`
}

type Reconcile struct {
	Enabled     bool          `koanf:"enabled"`
	Interval    time.Duration `koanf:"interval"`
	BatchSize   int32         `koanf:"batch_size"`
	Concurrency int           `koanf:"concurrency"`
}

type Mongo struct {
	Enabled  bool   `koanf:"enabled"`
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type Redis struct {
	Enabled  bool   `koanf:"enabled"`
	URI      string `koanf:"uri"`
	Password string `koanf:"password"`
}

type Kafka struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// RewardSettings parses the reward defaults. Call Validate first.
func (r Rewards) RewardSettings() models.RewardSettings {
	return models.RewardSettings{
		CashbackEnabled:     r.CashbackEnabled,
		CashbackRate:        decimal.RequireFromString(r.CashbackRate),
		ReferralEnabled:     r.ReferralEnabled,
		ReferralRate:        decimal.RequireFromString(r.ReferralRate),
		ReferralDailyBudget: decimal.RequireFromString(r.ReferralDailyBudget),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	ve := errs.ValidationErrs()

	if c.Application == "" {
		ve.Add("application", "cannot be empty")
	}
	if c.Logger.Level == "" {
		ve.Add("logger.level", "cannot be empty")
	}
	if c.HTTP.Port <= 0 {
		ve.Add("http.port", "must be positive")
	}

	switch c.Storage.Driver {
	case "memory":
	case "dynamodb":
		if c.DynamoDB.WalletsTable == "" || c.DynamoDB.LedgerTable == "" ||
			c.DynamoDB.TransactionsTable == "" || c.DynamoDB.PaymentsTable == "" {
			ve.Add("dynamodb", "all table names must be set")
		}
	default:
		ve.Add("storage.driver", fmt.Sprintf("unknown driver %q", c.Storage.Driver))
	}

	switch c.Scheduler.Mode {
	case "inline":
	case "sqs":
		if c.Scheduler.QueueURL == "" {
			ve.Add("scheduler.queue_url", "cannot be empty in sqs mode")
		}
	default:
		ve.Add("scheduler.mode", fmt.Sprintf("unknown mode %q", c.Scheduler.Mode))
	}

	for key, raw := range map[string]string{
		"rewards.cashback_rate":         c.Rewards.CashbackRate,
		"rewards.referral_rate":         c.Rewards.ReferralRate,
		"rewards.referral_daily_budget": c.Rewards.ReferralDailyBudget,
	} {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			ve.Add(key, "must be a decimal number")
		} else if v.IsNegative() {
			ve.Add(key, "cannot be negative")
		}
	}

	if c.Vendor.BaseURL == "" {
		ve.Add("vendor.base_url", "cannot be empty")
	}
	if c.Provider.Name != "flutterwave" && c.Provider.Name != "paystack" {
		ve.Add("provider.name", fmt.Sprintf("unknown provider %q", c.Provider.Name))
	}
	if c.Provider.BaseURL == "" {
		ve.Add("provider.base_url", "cannot be empty")
	}
	if c.Reconcile.Enabled && c.Reconcile.Interval <= 0 {
		ve.Add("reconcile.interval", "must be positive")
	}
	if c.Mongo.Enabled && c.Mongo.URI == "" {
		ve.Add("mongo.uri", "cannot be empty")
	}
	if c.Redis.Enabled && c.Redis.URI == "" {
		ve.Add("redis.uri", "cannot be empty")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		ve.Add("kafka.brokers", "cannot be empty")
	}

	return ve.Err()
}

// EnvPrefix marks environment variables that override the configuration.
// VTU_PROVIDER__SECRET_KEY sets provider.secret_key.
const EnvPrefix = "VTU_"

// Load layers the defaults, the file named by --config and VTU_ environment
// variables, then validates the result.
func Load(args []string) (*Config, *koanf.Koanf, error) {
	app := kingpin.New("vtu-ledger", "VTU wallet ledger service")
	configPath := app.Flag("config", "Path to the application config file").Short('c').String()
	if _, err := app.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(DefaultConfig), yaml.Parser()); err != nil {
		return nil, nil, fmt.Errorf("failed to load default config: %w", err)
	}
	if *configPath != "" {
		if err := k.Load(file.Provider(*configPath), yaml.Parser()); err != nil {
			return nil, nil, fmt.Errorf("failed to load config file %s: %w", *configPath, err)
		}
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, k, nil
}
