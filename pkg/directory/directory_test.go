package directory

import (
	"context"
	"testing"

	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

var defaults = models.RewardSettings{
	CashbackEnabled:     true,
	CashbackRate:        decimal.RequireFromString("0.03"),
	ReferralEnabled:     true,
	ReferralRate:        decimal.RequireFromString("0.01"),
	ReferralDailyBudget: decimal.RequireFromString("50000"),
}

func TestReferrerOf(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "vtu.users", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "buyer"}, {Key: "referred_by", Value: "referrer"}}))

		got, err := New(mt.DB, defaults).ReferrerOf(context.Background(), "buyer")

		require.NoError(mt, err)
		assert.Equal(mt, "referrer", got)
	})

	mt.Run("Not Found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "vtu.users", mtest.FirstBatch))

		got, err := New(mt.DB, defaults).ReferrerOf(context.Background(), "organic")

		require.NoError(mt, err)
		assert.Empty(mt, got)
	})

	mt.Run("Storage Error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11600, Message: "interrupted"}))

		_, err := New(mt.DB, defaults).ReferrerOf(context.Background(), "buyer")

		assert.ErrorContains(mt, err, "failed to find user buyer")
	})
}

func TestRewardSettings(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Overrides Defaults", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "vtu.settings", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "rewards"}, {Key: "cashback_enabled", Value: false}, {Key: "referral_daily_budget", Value: "1000"}}))

		s, err := New(mt.DB, defaults).RewardSettings(context.Background())

		require.NoError(mt, err)
		assert.False(mt, s.CashbackEnabled)
		assert.True(mt, s.ReferralEnabled)
		assert.Equal(mt, "1000", s.ReferralDailyBudget.String())
		assert.Equal(mt, "0.03", s.CashbackRate.String())
	})

	mt.Run("Missing Document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "vtu.settings", mtest.FirstBatch))

		s, err := New(mt.DB, defaults).RewardSettings(context.Background())

		require.NoError(mt, err)
		assert.Equal(mt, defaults, s)
	})

	mt.Run("Bad Decimal", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "vtu.settings", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "rewards"}, {Key: "cashback_rate", Value: "three percent"}}))

		_, err := New(mt.DB, defaults).RewardSettings(context.Background())

		assert.ErrorContains(mt, err, "invalid cashback_rate")
	})
}
