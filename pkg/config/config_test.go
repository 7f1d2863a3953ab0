package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chris/vtu-ledger/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, _, err := Load(nil)

		require.NoError(t, err)
		assert.Equal(t, "vtu-ledger", cfg.Application)
		assert.Equal(t, "memory", cfg.Storage.Driver)
		assert.Equal(t, 15*time.Second, cfg.Vendor.Timeout)
		assert.Equal(t, int32(50), cfg.Reconcile.BatchSize)
		assert.Equal(t, "0.03", cfg.Rewards.RewardSettings().CashbackRate.String())
	})

	t.Run("File And Env Override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte("http:\n  port: 9000\nprovider:\n  name: paystack\n  base_url: https://api.paystack.co\n"), 0o600))
		t.Setenv("VTU_HTTP__PORT", "9100")
		t.Setenv("VTU_PROVIDER__SECRET_KEY", "sk_test")

		cfg, _, err := Load([]string{"-c", path})

		require.NoError(t, err)
		assert.Equal(t, 9100, cfg.HTTP.Port)
		assert.Equal(t, "paystack", cfg.Provider.Name)
		assert.Equal(t, "sk_test", cfg.Provider.SecretKey)
	})

	t.Run("Missing File", func(t *testing.T) {
		_, _, err := Load([]string{"--config", filepath.Join(t.TempDir(), "absent.yml")})
		assert.ErrorContains(t, err, "failed to load config file")
	})

	t.Run("Invalid", func(t *testing.T) {
		t.Setenv("VTU_STORAGE__DRIVER", "postgres")
		t.Setenv("VTU_REWARDS__CASHBACK_RATE", "three")

		_, _, err := Load(nil)

		assert.ErrorIs(t, err, errs.ErrInvalidRequest)
		assert.ErrorContains(t, err, "storage.driver")
		assert.ErrorContains(t, err, "rewards.cashback_rate")
	})
}

func TestValidate(t *testing.T) {
	cfg, _, err := Load(nil)
	require.NoError(t, err)

	t.Run("SQS Needs Queue", func(t *testing.T) {
		c := *cfg
		c.Scheduler.Mode = "sqs"
		assert.ErrorContains(t, c.Validate(), "scheduler.queue_url")
	})

	t.Run("DynamoDB Needs Tables", func(t *testing.T) {
		c := *cfg
		c.Storage.Driver = "dynamodb"
		c.DynamoDB.PaymentsTable = ""
		assert.ErrorContains(t, c.Validate(), "all table names must be set")
	})
}
